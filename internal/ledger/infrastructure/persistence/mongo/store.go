// Package mongo MongoDB 存储，集合布局与原始文档库一致，多文档事务基于会话
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// 集合名
const (
	collInvestment = "INVESTMENT"
	collHistory    = "HISTORY"
	collAllHistory = "ALLHISTORY"
	collWallet     = "WALLET"
	collUsers      = "USERS"
	collPlans      = "MANAGE_PLAN"
	collOutbox     = "OUTBOX"
)

// WriteConflict 错误码
const codeWriteConflict = 112

var _ domain.Store = (*Store)(nil)

// Store MongoDB 存储，需要副本集才能使用事务
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect 连接并校验 MongoDB
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logger.Info(ctx, "MongoDB connected successfully", "database", database)
	return NewStore(client, database), nil
}

// NewStore 使用已有客户端
func NewStore(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// EnsureIndexes 创建唯一索引与查询索引
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collUsers: {{
			Keys:    bson.D{{Key: "username_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		collHistory: {{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		}},
		collWallet: {{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
		}},
		collOutbox: {{
			Keys: bson.D{{Key: "published_at", Value: 1}, {Key: "created_at", Value: 1}},
		}},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// WithTx 在会话事务中执行 fn。不做自动重试，写冲突映射为 ErrConflict
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(txOpts); err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}

	sc := mongo.NewSessionContext(ctx, sess)
	if err := fn(sc); err != nil {
		if abortErr := sess.AbortTransaction(context.Background()); abortErr != nil {
			logger.Warn(ctx, "abort transaction failed", "error", abortErr)
		}
		return mapTxError(err)
	}
	if err := sess.CommitTransaction(context.Background()); err != nil {
		return mapTxError(err)
	}
	return nil
}

// mapTxError 事务冲突统一为 ErrConflict，领域错误原样返回
func mapTxError(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(codeWriteConflict) || se.HasErrorLabel("TransientTransactionError")) {
		return domain.ErrConflict
	}
	return err
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) Ledgers() domain.LedgerRepository               { return ledgerRepo{s} }
func (s *Store) History() domain.HistoryRepository              { return historyRepo{s} }
func (s *Store) PayoutAccounts() domain.PayoutAccountRepository { return payoutRepo{s} }
func (s *Store) Users() domain.UserRepository                   { return userRepo{s} }
func (s *Store) Plans() domain.PlanCatalog                      { return planRepo{s} }
func (s *Store) Outbox() domain.OutboxRepository                { return outboxRepo{s} }

// Close 断开连接
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) Get(ctx context.Context, userID string) (*domain.Ledger, error) {
	var doc investmentDoc
	err := r.s.coll(collInvestment).FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrLedgerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", userID, err)
	}
	return doc.toDomain(), nil
}

func (r ledgerRepo) Create(ctx context.Context, l *domain.Ledger) error {
	l.Version = 1
	if _, err := r.s.coll(collInvestment).InsertOne(ctx, toInvestmentDoc(l)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrLedgerExists
		}
		return fmt.Errorf("create ledger %s: %w", l.UserID, err)
	}
	return nil
}

// Save 以 version 为条件整体替换，未匹配即并发冲突
func (r ledgerRepo) Save(ctx context.Context, l *domain.Ledger) error {
	current := l.Version
	doc := toInvestmentDoc(l)
	doc.Version = current + 1

	res, err := r.s.coll(collInvestment).ReplaceOne(ctx, bson.M{"_id": l.UserID, "version": current}, doc)
	if err != nil {
		return fmt.Errorf("save ledger %s: %w", l.UserID, mapTxError(err))
	}
	if res.MatchedCount == 0 {
		return domain.ErrConflict
	}
	l.Version = current + 1
	return nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) Append(ctx context.Context, e *domain.HistoryEntry) error {
	doc := toHistoryDoc(e)
	if _, err := r.s.coll(collHistory).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateHistory
		}
		return fmt.Errorf("append history %s: %w", e.ID, err)
	}
	if _, err := r.s.coll(collAllHistory).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mirror history %s: %w", e.ID, err)
	}
	return nil
}

func (r historyRepo) Get(ctx context.Context, userID, entryID string) (*domain.HistoryEntry, error) {
	var doc historyDoc
	err := r.s.coll(collHistory).FindOne(ctx, bson.M{"_id": entryID, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", entryID, err)
	}
	return doc.toDomain(), nil
}

func (r historyRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.HistoryEntry, int64, error) {
	filter := bson.M{"user_id": userID}
	total, err := r.s.coll(collHistory).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.s.coll(collHistory).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	var docs []historyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode history: %w", err)
	}
	out := make([]*domain.HistoryEntry, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, total, nil
}

type payoutRepo struct{ s *Store }

func (r payoutRepo) Create(ctx context.Context, a *domain.PayoutAccount) error {
	if _, err := r.s.coll(collWallet).InsertOne(ctx, toWalletDoc(a)); err != nil {
		return fmt.Errorf("create payout account: %w", err)
	}
	return nil
}

func (r payoutRepo) Update(ctx context.Context, a *domain.PayoutAccount) error {
	doc := toWalletDoc(a)
	res, err := r.s.coll(collWallet).ReplaceOne(ctx, bson.M{"_id": a.ID, "user_id": a.UserID}, doc)
	if err != nil {
		return fmt.Errorf("update payout account: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrPayoutAccountNotFound
	}
	return nil
}

func (r payoutRepo) Get(ctx context.Context, userID, walletID string) (*domain.PayoutAccount, error) {
	var doc walletDoc
	err := r.s.coll(collWallet).FindOne(ctx, bson.M{"_id": walletID, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrPayoutAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payout account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r payoutRepo) ListByUser(ctx context.Context, userID string) ([]*domain.PayoutAccount, error) {
	cur, err := r.s.coll(collWallet).Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list payout accounts: %w", err)
	}
	var docs []walletDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode payout accounts: %w", err)
	}
	out := make([]*domain.PayoutAccount, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, nil
}

func (r payoutRepo) Delete(ctx context.Context, userID, walletID string) error {
	res, err := r.s.coll(collWallet).DeleteOne(ctx, bson.M{"_id": walletID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete payout account: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrPayoutAccountNotFound
	}
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *domain.UserProfile) error {
	if _, err := r.s.coll(collUsers).InsertOne(ctx, toUserDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r userRepo) Update(ctx context.Context, u *domain.UserProfile) error {
	res, err := r.s.coll(collUsers).ReplaceOne(ctx, bson.M{"_id": u.UserID}, toUserDoc(u))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r userRepo) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var doc userDoc
	err := r.s.coll(collUsers).FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return doc.toDomain(), nil
}

// FindIDByUsername 走 username_key 唯一索引
func (r userRepo) FindIDByUsername(ctx context.Context, username string) (string, error) {
	var doc struct {
		UserID string `bson:"_id"`
	}
	err := r.s.coll(collUsers).FindOne(ctx,
		bson.M{"username_key": domain.NormalizeUsername(username)},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve username: %w", err)
	}
	return doc.UserID, nil
}

type planRepo struct{ s *Store }

func (r planRepo) Get(ctx context.Context, planID string) (*domain.PlanDefinition, error) {
	var doc planDefDoc
	err := r.s.coll(collPlans).FindOne(ctx, bson.M{"_id": planID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	return doc.toDomain(), nil
}

func (r planRepo) List(ctx context.Context) ([]*domain.PlanDefinition, error) {
	cur, err := r.s.coll(collPlans).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "min_amount", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	var docs []planDefDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	out := make([]*domain.PlanDefinition, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, nil
}

func (r planRepo) Upsert(ctx context.Context, def *domain.PlanDefinition) error {
	_, err := r.s.coll(collPlans).ReplaceOne(ctx, bson.M{"_id": def.ID}, toPlanDefDoc(def), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Append(ctx context.Context, msg *domain.OutboxMessage) error {
	if _, err := r.s.coll(collOutbox).InsertOne(ctx, toOutboxDoc(msg)); err != nil {
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}

func (r outboxRepo) FetchPending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := r.s.coll(collOutbox).Find(ctx, bson.M{"published_at": nil}, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	var docs []outboxDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode outbox: %w", err)
	}
	out := make([]*domain.OutboxMessage, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.s.coll(collOutbox).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "published_at": nil},
		bson.M{"$set": bson.M{"published_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func (r outboxRepo) CountPending(ctx context.Context) (int64, error) {
	n, err := r.s.coll(collOutbox).CountDocuments(ctx, bson.M{"published_at": nil})
	if err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}
