package domain

import "context"

// TxManager 事务边界。fn 收到的 ctx 携带事务句柄，
// 在其中调用的仓储方法共享同一事务；fn 返回错误则全部回滚
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LedgerRepository 账本仓储
type LedgerRepository interface {
	// Get 不存在返回 ErrLedgerNotFound
	Get(ctx context.Context, userID string) (*Ledger, error)
	// Create 新建账本，已存在返回 ErrLedgerExists
	Create(ctx context.Context, ledger *Ledger) error
	// Save 按 Version 做乐观锁更新，成功后 Version+1；版本不符返回 ErrConflict
	Save(ctx context.Context, ledger *Ledger) error
}

// HistoryRepository 流水仓储
type HistoryRepository interface {
	// Append 同时写入用户流水与全局镜像
	Append(ctx context.Context, entry *HistoryEntry) error
	// Get 不存在返回 nil, nil
	Get(ctx context.Context, userID, entryID string) (*HistoryEntry, error)
	// ListByUser 按创建时间倒序分页
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*HistoryEntry, int64, error)
}

// PayoutAccountRepository 出金账户仓储
type PayoutAccountRepository interface {
	Create(ctx context.Context, account *PayoutAccount) error
	// Update 不存在返回 ErrPayoutAccountNotFound
	Update(ctx context.Context, account *PayoutAccount) error
	// Get 不存在返回 ErrPayoutAccountNotFound
	Get(ctx context.Context, userID, walletID string) (*PayoutAccount, error)
	ListByUser(ctx context.Context, userID string) ([]*PayoutAccount, error)
	// Delete 不存在返回 ErrPayoutAccountNotFound
	Delete(ctx context.Context, userID, walletID string) error
}

// UserRepository 用户资料仓储，username 唯一索引
type UserRepository interface {
	// Create 用户名冲突返回 ErrUsernameTaken
	Create(ctx context.Context, user *UserProfile) error
	Update(ctx context.Context, user *UserProfile) error
	// Get 不存在返回 ErrUserNotFound
	Get(ctx context.Context, userID string) (*UserProfile, error)
	// FindIDByUsername 按规范化用户名索引查询，不存在返回 ErrUserNotFound
	FindIDByUsername(ctx context.Context, username string) (string, error)
}

// PlanCatalog 方案目录
type PlanCatalog interface {
	// Get 不存在返回 ErrPlanNotFound
	Get(ctx context.Context, planID string) (*PlanDefinition, error)
	List(ctx context.Context) ([]*PlanDefinition, error)
	// Upsert 供启动时写入种子方案
	Upsert(ctx context.Context, def *PlanDefinition) error
}

// OutboxRepository 事务性 outbox
type OutboxRepository interface {
	Append(ctx context.Context, msg *OutboxMessage) error
	// FetchPending 按创建顺序返回未投递消息
	FetchPending(ctx context.Context, limit int) ([]*OutboxMessage, error)
	MarkPublished(ctx context.Context, ids []string) error
	CountPending(ctx context.Context) (int64, error)
}

// Store 一个存储后端提供的全部仓储
type Store interface {
	TxManager
	Ledgers() LedgerRepository
	History() HistoryRepository
	PayoutAccounts() PayoutAccountRepository
	Users() UserRepository
	Plans() PlanCatalog
	Outbox() OutboxRepository
	Close(ctx context.Context) error
}

// LedgerCache 账本读缓存，只在事务提交后写入或失效
type LedgerCache interface {
	Get(ctx context.Context, userID string) (*Ledger, error)
	Set(ctx context.Context, ledger *Ledger) error
	Invalidate(ctx context.Context, userIDs ...string) error
}
