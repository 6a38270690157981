// Package application 账本应用服务：事务编排、校验与 DTO 转换
package application

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/pkg/idgen"
	"github.com/wyfcoding/investledger/pkg/logger"
	"github.com/wyfcoding/investledger/pkg/metrics"
)

// LedgerStore 账本的原子读改写入口，所有余额变更都经过这里
type LedgerStore struct {
	store   domain.Store
	cache   domain.LedgerCache
	ids     idgen.Generator
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLedgerStore 创建 LedgerStore，cache 与 m 可为 nil
func NewLedgerStore(store domain.Store, cache domain.LedgerCache, ids idgen.Generator, m *metrics.Metrics) *LedgerStore {
	return &LedgerStore{
		store:   store,
		cache:   cache,
		ids:     ids,
		metrics: m,
		now:     time.Now,
	}
}

// Store 返回底层存储
func (s *LedgerStore) Store() domain.Store {
	return s.store
}

// LedgerTx 单次事务的工作区。Load 过的账本在提交前统一做余额校验并按版本保存
type LedgerTx struct {
	ctx    context.Context
	store  *LedgerStore
	now    time.Time
	loaded []*domain.Ledger
	byID   map[string]*domain.Ledger
}

// Context 携带事务句柄的 ctx，仓储调用必须使用它
func (tx *LedgerTx) Context() context.Context {
	return tx.ctx
}

// Now 事务开始时间，同一事务内的记录共用
func (tx *LedgerTx) Now() time.Time {
	return tx.now
}

// Load 在事务内读取账本，同一用户重复 Load 返回同一对象
func (tx *LedgerTx) Load(userID string) (*domain.Ledger, error) {
	if l, ok := tx.byID[userID]; ok {
		return l, nil
	}
	l, err := tx.store.store.Ledgers().Get(tx.ctx, userID)
	if err != nil {
		return nil, err
	}
	tx.byID[userID] = l
	tx.loaded = append(tx.loaded, l)
	return l, nil
}

// Create 在事务内新建账本
func (tx *LedgerTx) Create(l *domain.Ledger) error {
	return tx.store.store.Ledgers().Create(tx.ctx, l)
}

// AppendHistory 写入流水，ID 为空时自动生成
func (tx *LedgerTx) AppendHistory(entry *domain.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = tx.store.ids.NextID("H")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = tx.now
	}
	return tx.store.store.History().Append(tx.ctx, entry)
}

// Emit 把集成事件写入 outbox，随事务一起提交
func (tx *LedgerTx) Emit(event domain.LedgerEvent) error {
	msg, err := domain.NewOutboxMessage(tx.store.ids.NextID("EVT"), event, tx.now)
	if err != nil {
		return err
	}
	return tx.store.store.Outbox().Append(tx.ctx, msg)
}

// Run 在一个存储事务中执行 fn；fn 返回错误时整体回滚，提交成功后失效相关缓存
func (s *LedgerStore) Run(ctx context.Context, op string, fn func(tx *LedgerTx) error) error {
	start := time.Now()
	var touched []string

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		tx := &LedgerTx{
			ctx:   txCtx,
			store: s,
			now:   s.now(),
			byID:  make(map[string]*domain.Ledger),
		}
		if err := fn(tx); err != nil {
			return err
		}
		for _, l := range tx.loaded {
			if err := l.CheckInvariants(); err != nil {
				return err
			}
			if err := s.store.Ledgers().Save(txCtx, l); err != nil {
				return err
			}
			touched = append(touched, l.UserID)
		}
		return nil
	})
	s.metrics.ObserveLedgerOp(op, start, err)
	if err != nil {
		return err
	}

	s.invalidate(ctx, touched...)
	return nil
}

// ApplyLedgerUpdate 单账本读改写。mutator 返回错误则不写入任何内容
func (s *LedgerStore) ApplyLedgerUpdate(ctx context.Context, op, userID string, mutator func(tx *LedgerTx, l *domain.Ledger) error) (*domain.Ledger, error) {
	var updated *domain.Ledger
	err := s.Run(ctx, op, func(tx *LedgerTx) error {
		l, err := tx.Load(userID)
		if err != nil {
			return err
		}
		if err := mutator(tx, l); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyTransfer 双账本读改写。收款方 ID 由 resolve 在事务内解析，
// 缺失的账本分别映射为 ErrSenderNotFound / ErrRecipientNotFound
func (s *LedgerStore) ApplyTransfer(
	ctx context.Context,
	senderID string,
	resolve func(tx *LedgerTx) (string, error),
	mutator func(tx *LedgerTx, sender, recipient *domain.Ledger) error,
) error {
	return s.Run(ctx, "transfer", func(tx *LedgerTx) error {
		recipientID, err := resolve(tx)
		if err != nil {
			return err
		}
		if recipientID == "" {
			// 幂等重放，已处理过
			return nil
		}

		sender, err := tx.Load(senderID)
		if errors.Is(err, domain.ErrLedgerNotFound) {
			return domain.ErrSenderNotFound
		}
		if err != nil {
			return err
		}
		recipient, err := tx.Load(recipientID)
		if errors.Is(err, domain.ErrLedgerNotFound) {
			return domain.ErrRecipientNotFound
		}
		if err != nil {
			return err
		}
		return mutator(tx, sender, recipient)
	})
}

// GetLedger 读取账本，优先走缓存；缓存故障只记日志
func (s *LedgerStore) GetLedger(ctx context.Context, userID string) (*domain.Ledger, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			logger.Warn(ctx, "ledger cache read failed", "user_id", userID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	l, err := s.store.Ledgers().Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, l); err != nil {
			logger.Warn(ctx, "ledger cache write failed", "user_id", userID, "error", err)
		}
	}
	return l, nil
}

// CreateLedger 新建零余额账本
func (s *LedgerStore) CreateLedger(ctx context.Context, userID, currency string) (*domain.Ledger, error) {
	l := domain.NewLedger(userID, currency, s.now())
	err := s.Run(ctx, "create_ledger", func(tx *LedgerTx) error {
		return tx.Create(l)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *LedgerStore) invalidate(ctx context.Context, userIDs ...string) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		logger.Warn(ctx, "ledger cache invalidation failed", "user_ids", userIDs, "error", err)
	}
}

// logOutcome 按错误分类选择日志级别：业务拒绝记 Warn，内部故障记 Error
func logOutcome(ctx context.Context, op string, err error, args ...any) {
	if err == nil {
		logger.Info(ctx, op+" succeeded", args...)
		return
	}
	args = append(args, "code", domain.CodeOf(err), "error", err)
	switch domain.KindOf(err) {
	case domain.KindInternal, domain.KindTxConflict:
		logger.Error(ctx, op+" failed", args...)
	default:
		logger.Warn(ctx, op+" rejected", args...)
	}
}
