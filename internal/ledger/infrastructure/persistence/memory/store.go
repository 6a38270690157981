// Package memory 进程内存储，事务串行执行，写入先落在快照副本上，提交时整体替换
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
)

type state struct {
	ledgers    map[string]*domain.Ledger
	history    map[string][]*domain.HistoryEntry
	allHistory map[string]*domain.HistoryEntry
	wallets    map[string]map[string]*domain.PayoutAccount
	users      map[string]*domain.UserProfile
	usernames  map[string]string
	plans      map[string]*domain.PlanDefinition
	outbox     []*domain.OutboxMessage
}

func newState() *state {
	return &state{
		ledgers:    make(map[string]*domain.Ledger),
		history:    make(map[string][]*domain.HistoryEntry),
		allHistory: make(map[string]*domain.HistoryEntry),
		wallets:    make(map[string]map[string]*domain.PayoutAccount),
		users:      make(map[string]*domain.UserProfile),
		usernames:  make(map[string]string),
		plans:      make(map[string]*domain.PlanDefinition),
	}
}

// copy 存储的实体写入时即克隆、从不原地修改，因此只需复制容器
func (s *state) copy() *state {
	cp := newState()
	for k, v := range s.ledgers {
		cp.ledgers[k] = v
	}
	for k, v := range s.history {
		cp.history[k] = append([]*domain.HistoryEntry(nil), v...)
	}
	for k, v := range s.allHistory {
		cp.allHistory[k] = v
	}
	for uid, ws := range s.wallets {
		m := make(map[string]*domain.PayoutAccount, len(ws))
		for k, v := range ws {
			m[k] = v
		}
		cp.wallets[uid] = m
	}
	for k, v := range s.users {
		cp.users[k] = v
	}
	for k, v := range s.usernames {
		cp.usernames[k] = v
	}
	for k, v := range s.plans {
		cp.plans[k] = v
	}
	cp.outbox = append([]*domain.OutboxMessage(nil), s.outbox...)
	return cp
}

type txKey struct{}

var _ domain.Store = (*Store)(nil)

// Store 内存存储
type Store struct {
	// txMu 串行化所有写事务
	txMu sync.Mutex
	// mu 保护 current 指针
	mu      sync.RWMutex
	current *state
}

// NewStore 创建空存储
func NewStore() *Store {
	return &Store{current: newState()}
}

// WithTx 在快照副本上执行 fn，成功后替换当前状态；嵌套调用复用外层事务
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	staged := s.current.copy()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, staged)); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = staged
	s.mu.Unlock()
	return nil
}

// read 事务内读快照，否则读当前状态
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if st, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(st)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.current)
}

// write 事务内写快照，否则开启单语句事务
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	return s.WithTx(ctx, func(txCtx context.Context) error {
		return fn(txCtx.Value(txKey{}).(*state))
	})
}

func (s *Store) Ledgers() domain.LedgerRepository               { return ledgerRepo{s} }
func (s *Store) History() domain.HistoryRepository              { return historyRepo{s} }
func (s *Store) PayoutAccounts() domain.PayoutAccountRepository { return payoutRepo{s} }
func (s *Store) Users() domain.UserRepository                   { return userRepo{s} }
func (s *Store) Plans() domain.PlanCatalog                      { return planRepo{s} }
func (s *Store) Outbox() domain.OutboxRepository                { return outboxRepo{s} }

// Close 无资源需要释放
func (s *Store) Close(context.Context) error { return nil }

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) Get(ctx context.Context, userID string) (*domain.Ledger, error) {
	var out *domain.Ledger
	err := r.s.read(ctx, func(st *state) error {
		l, ok := st.ledgers[userID]
		if !ok {
			return domain.ErrLedgerNotFound
		}
		out = l.Clone()
		return nil
	})
	return out, err
}

func (r ledgerRepo) Create(ctx context.Context, l *domain.Ledger) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.ledgers[l.UserID]; ok {
			return domain.ErrLedgerExists
		}
		l.Version = 1
		st.ledgers[l.UserID] = l.Clone()
		return nil
	})
}

func (r ledgerRepo) Save(ctx context.Context, l *domain.Ledger) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.ledgers[l.UserID]
		if !ok {
			return domain.ErrLedgerNotFound
		}
		if cur.Version != l.Version {
			return domain.ErrConflict
		}
		l.Version++
		st.ledgers[l.UserID] = l.Clone()
		return nil
	})
}

type historyRepo struct{ s *Store }

func cloneEntry(e *domain.HistoryEntry) *domain.HistoryEntry {
	cp := *e
	if e.SelectedWallet != nil {
		w := *e.SelectedWallet
		cp.SelectedWallet = &w
	}
	return &cp
}

func (r historyRepo) Append(ctx context.Context, e *domain.HistoryEntry) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.allHistory[e.ID]; ok {
			return domain.ErrDuplicateHistory
		}
		stored := cloneEntry(e)
		st.history[e.UserID] = append(st.history[e.UserID], stored)
		st.allHistory[e.ID] = stored
		return nil
	})
}

func (r historyRepo) Get(ctx context.Context, userID, entryID string) (*domain.HistoryEntry, error) {
	var out *domain.HistoryEntry
	err := r.s.read(ctx, func(st *state) error {
		e, ok := st.allHistory[entryID]
		if ok && e.UserID == userID {
			out = cloneEntry(e)
		}
		return nil
	})
	return out, err
}

func (r historyRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.HistoryEntry, int64, error) {
	var (
		out   []*domain.HistoryEntry
		total int64
	)
	err := r.s.read(ctx, func(st *state) error {
		entries := st.history[userID]
		total = int64(len(entries))
		// 按追加顺序倒序即创建时间倒序
		for i := len(entries) - 1 - offset; i >= 0 && len(out) < limit; i-- {
			out = append(out, cloneEntry(entries[i]))
		}
		return nil
	})
	return out, total, err
}

type payoutRepo struct{ s *Store }

func clonePayout(a *domain.PayoutAccount) *domain.PayoutAccount {
	cp := *a
	return &cp
}

func (r payoutRepo) Create(ctx context.Context, a *domain.PayoutAccount) error {
	return r.s.write(ctx, func(st *state) error {
		ws, ok := st.wallets[a.UserID]
		if !ok {
			ws = make(map[string]*domain.PayoutAccount)
			st.wallets[a.UserID] = ws
		}
		ws[a.ID] = clonePayout(a)
		return nil
	})
}

func (r payoutRepo) Update(ctx context.Context, a *domain.PayoutAccount) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.wallets[a.UserID][a.ID]; !ok {
			return domain.ErrPayoutAccountNotFound
		}
		st.wallets[a.UserID][a.ID] = clonePayout(a)
		return nil
	})
}

func (r payoutRepo) Get(ctx context.Context, userID, walletID string) (*domain.PayoutAccount, error) {
	var out *domain.PayoutAccount
	err := r.s.read(ctx, func(st *state) error {
		a, ok := st.wallets[userID][walletID]
		if !ok {
			return domain.ErrPayoutAccountNotFound
		}
		out = clonePayout(a)
		return nil
	})
	return out, err
}

func (r payoutRepo) ListByUser(ctx context.Context, userID string) ([]*domain.PayoutAccount, error) {
	var out []*domain.PayoutAccount
	err := r.s.read(ctx, func(st *state) error {
		for _, a := range st.wallets[userID] {
			out = append(out, clonePayout(a))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r payoutRepo) Delete(ctx context.Context, userID, walletID string) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.wallets[userID][walletID]; !ok {
			return domain.ErrPayoutAccountNotFound
		}
		delete(st.wallets[userID], walletID)
		return nil
	})
}

type userRepo struct{ s *Store }

func cloneUser(u *domain.UserProfile) *domain.UserProfile {
	cp := *u
	if u.KYCSubmittedAt != nil {
		t := *u.KYCSubmittedAt
		cp.KYCSubmittedAt = &t
	}
	return &cp
}

func (r userRepo) Create(ctx context.Context, u *domain.UserProfile) error {
	return r.s.write(ctx, func(st *state) error {
		key := domain.NormalizeUsername(u.Username)
		if _, ok := st.usernames[key]; ok {
			return domain.ErrUsernameTaken
		}
		if _, ok := st.users[u.UserID]; ok {
			return domain.ErrUserExists
		}
		st.users[u.UserID] = cloneUser(u)
		st.usernames[key] = u.UserID
		return nil
	})
}

func (r userRepo) Update(ctx context.Context, u *domain.UserProfile) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.users[u.UserID]
		if !ok {
			return domain.ErrUserNotFound
		}
		oldKey, newKey := domain.NormalizeUsername(cur.Username), domain.NormalizeUsername(u.Username)
		if oldKey != newKey {
			if _, taken := st.usernames[newKey]; taken {
				return domain.ErrUsernameTaken
			}
			delete(st.usernames, oldKey)
			st.usernames[newKey] = u.UserID
		}
		st.users[u.UserID] = cloneUser(u)
		return nil
	})
}

func (r userRepo) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var out *domain.UserProfile
	err := r.s.read(ctx, func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return domain.ErrUserNotFound
		}
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (r userRepo) FindIDByUsername(ctx context.Context, username string) (string, error) {
	var id string
	err := r.s.read(ctx, func(st *state) error {
		uid, ok := st.usernames[domain.NormalizeUsername(username)]
		if !ok {
			return domain.ErrUserNotFound
		}
		id = uid
		return nil
	})
	return id, err
}

type planRepo struct{ s *Store }

func (r planRepo) Get(ctx context.Context, planID string) (*domain.PlanDefinition, error) {
	var out *domain.PlanDefinition
	err := r.s.read(ctx, func(st *state) error {
		p, ok := st.plans[planID]
		if !ok {
			return domain.ErrPlanNotFound
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

func (r planRepo) List(ctx context.Context) ([]*domain.PlanDefinition, error) {
	var out []*domain.PlanDefinition
	err := r.s.read(ctx, func(st *state) error {
		for _, p := range st.plans {
			cp := *p
			out = append(out, &cp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].MinAmount.LessThan(out[j].MinAmount) })
	return out, err
}

func (r planRepo) Upsert(ctx context.Context, def *domain.PlanDefinition) error {
	return r.s.write(ctx, func(st *state) error {
		cp := *def
		st.plans[def.ID] = &cp
		return nil
	})
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Append(ctx context.Context, msg *domain.OutboxMessage) error {
	return r.s.write(ctx, func(st *state) error {
		cp := *msg
		st.outbox = append(st.outbox, &cp)
		return nil
	})
}

func (r outboxRepo) FetchPending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	var out []*domain.OutboxMessage
	err := r.s.read(ctx, func(st *state) error {
		for _, m := range st.outbox {
			if m.PublishedAt != nil {
				continue
			}
			cp := *m
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r outboxRepo) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	now := time.Now()
	return r.s.write(ctx, func(st *state) error {
		for i, m := range st.outbox {
			if _, ok := set[m.ID]; !ok || m.PublishedAt != nil {
				continue
			}
			cp := *m
			cp.PublishedAt = &now
			st.outbox[i] = &cp
		}
		return nil
	})
}

func (r outboxRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.s.read(ctx, func(st *state) error {
		for _, m := range st.outbox {
			if m.PublishedAt == nil {
				n++
			}
		}
		return nil
	})
	return n, err
}
