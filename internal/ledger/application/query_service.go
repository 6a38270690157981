package application

import (
	"context"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
)

// 流水分页上限
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// QueryService 只读查询
type QueryService struct {
	ledgers *LedgerStore
	history domain.HistoryRepository
}

// NewQueryService 创建查询服务
func NewQueryService(ledgers *LedgerStore) *QueryService {
	return &QueryService{ledgers: ledgers, history: ledgers.Store().History()}
}

// GetLedger 账本视图
func (s *QueryService) GetLedger(ctx context.Context, userID string) (*LedgerDTO, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	l, err := s.ledgers.GetLedger(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toLedgerDTO(l), nil
}

// ListHistory 按时间倒序分页
func (s *QueryService) ListHistory(ctx context.Context, userID string, limit, offset int) (*HistoryPageDTO, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.history.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	page := &HistoryPageDTO{
		Items:  make([]*HistoryDTO, 0, len(entries)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, e := range entries {
		page.Items = append(page.Items, toHistoryDTO(e))
	}
	return page, nil
}
