// Package mysql 基于 GORM 的关系型存储，MySQL 与 PostgreSQL 共用
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/pkg/db"
	"github.com/wyfcoding/investledger/pkg/logger"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ domain.Store = (*Store)(nil)

// Store GORM 存储
type Store struct {
	db *gorm.DB
	// outbox 仅 MySQL 启用，sys_outbox_messages 的列类型不兼容 PostgreSQL
	outbox *outbox.Manager
}

// NewStore 创建存储
func NewStore(gdb *gorm.DB) *Store {
	s := &Store{db: gdb}
	if gdb.Dialector != nil && gdb.Dialector.Name() == "mysql" {
		s.outbox = outbox.NewManager(gdb, logger.Get())
	}
	return s
}

// AutoMigrate 建表与索引
func (s *Store) AutoMigrate(ctx context.Context) error {
	models := AllModels()
	if s.outbox != nil {
		models = append(models, &outbox.OutboxMessage{})
	}
	return s.db.WithContext(ctx).AutoMigrate(models...)
}

// WithTx 开启数据库事务，事务句柄通过 ctx 传递；已在事务中时直接复用
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.InTx(ctx) {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(db.WithTx(ctx, tx))
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, s.db)
}

func (s *Store) Ledgers() domain.LedgerRepository               { return ledgerRepo{s} }
func (s *Store) History() domain.HistoryRepository              { return historyRepo{s} }
func (s *Store) PayoutAccounts() domain.PayoutAccountRepository { return payoutRepo{s} }
func (s *Store) Users() domain.UserRepository                   { return userRepo{s} }
func (s *Store) Plans() domain.PlanCatalog                      { return planRepo{s} }

// Outbox MySQL 走 outbox.Manager，PostgreSQL 使用 outbox_messages 表
func (s *Store) Outbox() domain.OutboxRepository {
	if s.outbox != nil {
		return managedOutboxRepo{s}
	}
	return outboxRepo{s}
}

// Close 关闭连接池
func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) Get(ctx context.Context, userID string) (*domain.Ledger, error) {
	var m InvestmentModel
	if err := r.s.conn(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLedgerNotFound
		}
		return nil, fmt.Errorf("load ledger %s: %w", userID, err)
	}
	return toLedger(&m), nil
}

func (r ledgerRepo) Create(ctx context.Context, l *domain.Ledger) error {
	l.Version = 1
	m := toInvestmentModel(l)
	if err := r.s.conn(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrLedgerExists
		}
		return fmt.Errorf("create ledger %s: %w", l.UserID, err)
	}
	return nil
}

// Save 乐观锁更新：WHERE version = 当前版本，影响行数为 0 即并发冲突
func (r ledgerRepo) Save(ctx context.Context, l *domain.Ledger) error {
	m := toInvestmentModel(l)
	current := l.Version
	result := r.s.conn(ctx).Model(&InvestmentModel{}).
		Where("user_id = ? AND version = ?", l.UserID, current).
		Updates(map[string]any{
			"wallet_bal":          m.WalletBal,
			"locked_bal":          m.LockedBal,
			"currency":            m.Currency,
			"plan_id":             m.PlanID,
			"plan_name":           m.PlanName,
			"plan_amount":         m.PlanAmount,
			"plan_roi_percent":    m.PlanROIPercent,
			"plan_status":         m.PlanStatus,
			"plan_days_completed": m.PlanDaysCompleted,
			"plan_start_date":     m.PlanStartDate,
			"plan_paused_at":      m.PlanPausedAt,
			"plan_resumed_at":     m.PlanResumedAt,
			"plan_stopped_at":     m.PlanStoppedAt,
			"plan_stopped_day":    m.PlanStoppedDay,
			"version":             current + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("save ledger %s: %w", l.UserID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	l.Version = current + 1
	return nil
}

type historyRepo struct{ s *Store }

// Append 用户流水与全局镜像同时写入，调用方负责包在事务里
func (r historyRepo) Append(ctx context.Context, e *domain.HistoryEntry) error {
	m := toHistoryModel(e)
	conn := r.s.conn(ctx)
	if err := conn.Create(&UserHistoryModel{HistoryModel: m}).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateHistory
		}
		return fmt.Errorf("append history %s: %w", e.ID, err)
	}
	if err := conn.Create(&AllHistoryModel{HistoryModel: m}).Error; err != nil {
		return fmt.Errorf("mirror history %s: %w", e.ID, err)
	}
	return nil
}

func (r historyRepo) Get(ctx context.Context, userID, entryID string) (*domain.HistoryEntry, error) {
	var m UserHistoryModel
	err := r.s.conn(ctx).Where("user_id = ? AND entry_id = ?", userID, entryID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", entryID, err)
	}
	return toHistoryEntry(&m.HistoryModel), nil
}

func (r historyRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.HistoryEntry, int64, error) {
	var (
		models []*UserHistoryModel
		total  int64
	)
	if err := r.s.conn(ctx).Model(&UserHistoryModel{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}
	if err := r.s.conn(ctx).Where("user_id = ?", userID).Order("entry_time DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	out := make([]*domain.HistoryEntry, len(models))
	for i, m := range models {
		out[i] = toHistoryEntry(&m.HistoryModel)
	}
	return out, total, nil
}

type payoutRepo struct{ s *Store }

func (r payoutRepo) Create(ctx context.Context, a *domain.PayoutAccount) error {
	if err := r.s.conn(ctx).Create(toPayoutWalletModel(a)).Error; err != nil {
		return fmt.Errorf("create payout account: %w", err)
	}
	return nil
}

func (r payoutRepo) Update(ctx context.Context, a *domain.PayoutAccount) error {
	m := toPayoutWalletModel(a)
	result := r.s.conn(ctx).Model(&PayoutWalletModel{}).
		Where("user_id = ? AND wallet_id = ?", a.UserID, a.ID).
		Updates(map[string]any{
			"label":          m.Label,
			"method":         m.Method,
			"currency":       m.Currency,
			"wallet_address": m.WalletAddress,
			"bank_name":      m.BankName,
			"account_number": m.AccountNumber,
			"account_name":   m.AccountName,
			"updated_at":     a.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("update payout account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrPayoutAccountNotFound
	}
	return nil
}

func (r payoutRepo) Get(ctx context.Context, userID, walletID string) (*domain.PayoutAccount, error) {
	var m PayoutWalletModel
	if err := r.s.conn(ctx).Where("user_id = ? AND wallet_id = ?", userID, walletID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPayoutAccountNotFound
		}
		return nil, fmt.Errorf("load payout account: %w", err)
	}
	return toPayoutAccount(&m), nil
}

func (r payoutRepo) ListByUser(ctx context.Context, userID string) ([]*domain.PayoutAccount, error) {
	var models []*PayoutWalletModel
	if err := r.s.conn(ctx).Where("user_id = ?", userID).Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list payout accounts: %w", err)
	}
	out := make([]*domain.PayoutAccount, len(models))
	for i, m := range models {
		out[i] = toPayoutAccount(m)
	}
	return out, nil
}

func (r payoutRepo) Delete(ctx context.Context, userID, walletID string) error {
	result := r.s.conn(ctx).Where("user_id = ? AND wallet_id = ?", userID, walletID).Delete(&PayoutWalletModel{})
	if result.Error != nil {
		return fmt.Errorf("delete payout account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrPayoutAccountNotFound
	}
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *domain.UserProfile) error {
	if err := r.s.conn(ctx).Create(toUserModel(u)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r userRepo) Update(ctx context.Context, u *domain.UserProfile) error {
	m := toUserModel(u)
	result := r.s.conn(ctx).Model(&UserModel{}).Where("user_id = ?", u.UserID).Updates(map[string]any{
		"username":          m.Username,
		"username_key":      m.UsernameKey,
		"name":              m.Name,
		"email":             m.Email,
		"kyc_status":        m.KYCStatus,
		"kyc_document_type": m.KYCDocumentType,
		"kyc_document_url":  m.KYCDocumentURL,
		"kyc_submitted_at":  m.KYCSubmittedAt,
		"updated_at":        u.UpdatedAt,
	})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r userRepo) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var m UserModel
	if err := r.s.conn(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return toUserProfile(&m), nil
}

func (r userRepo) FindIDByUsername(ctx context.Context, username string) (string, error) {
	var m UserModel
	err := r.s.conn(ctx).Select("user_id").
		Where("username_key = ?", domain.NormalizeUsername(username)).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve username: %w", err)
	}
	return m.UserID, nil
}

type planRepo struct{ s *Store }

func (r planRepo) Get(ctx context.Context, planID string) (*domain.PlanDefinition, error) {
	var m PlanModel
	if err := r.s.conn(ctx).Where("plan_id = ?", planID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	return toPlanDefinition(&m), nil
}

func (r planRepo) List(ctx context.Context) ([]*domain.PlanDefinition, error) {
	var models []*PlanModel
	if err := r.s.conn(ctx).Order("min_amount").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	out := make([]*domain.PlanDefinition, len(models))
	for i, m := range models {
		out[i] = toPlanDefinition(m)
	}
	return out, nil
}

func (r planRepo) Upsert(ctx context.Context, def *domain.PlanDefinition) error {
	err := r.s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plan_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "min_amount", "max_amount", "roi_percent", "updated_at"}),
	}).Create(toPlanModel(def)).Error
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Append(ctx context.Context, msg *domain.OutboxMessage) error {
	if err := r.s.conn(ctx).Create(toOutboxModel(msg)).Error; err != nil {
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}

func (r outboxRepo) FetchPending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	var models []*OutboxModel
	if err := r.s.conn(ctx).Where("published_at IS NULL").Order("id").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	out := make([]*domain.OutboxMessage, len(models))
	for i, m := range models {
		out[i] = toOutboxMessage(m)
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.s.conn(ctx).Model(&OutboxModel{}).
		Where("message_id IN ? AND published_at IS NULL", ids).
		Update("published_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func (r outboxRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	if err := r.s.conn(ctx).Model(&OutboxModel{}).Where("published_at IS NULL").Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}
