package application

import (
	"context"
	"time"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/pkg/idgen"
)

// PayoutService 出金账户管理
type PayoutService struct {
	repo domain.PayoutAccountRepository
	ids  idgen.Generator
	now  func() time.Time
}

// NewPayoutService 创建出金账户服务
func NewPayoutService(repo domain.PayoutAccountRepository, ids idgen.Generator) *PayoutService {
	return &PayoutService{repo: repo, ids: ids, now: time.Now}
}

// Save 新增出金账户
func (s *PayoutService) Save(ctx context.Context, cmd SavePayoutAccountCommand) (*PayoutAccountDTO, error) {
	if err := ValidateUserID(cmd.UserID); err != nil {
		return nil, err
	}
	if err := ValidateSelectedWallet(cmd.Wallet); err != nil {
		return nil, err
	}

	now := s.now()
	account := &domain.PayoutAccount{
		ID:             s.ids.NextID("W"),
		UserID:         cmd.UserID,
		Label:          cmd.Label,
		SelectedWallet: *cmd.Wallet,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.repo.Create(ctx, account)
	logOutcome(ctx, "save payment account", err, "user_id", cmd.UserID, "wallet_id", account.ID, "method", string(account.Method))
	if err != nil {
		return nil, err
	}
	return toPayoutAccountDTO(account), nil
}

// Update 覆盖已有出金账户，不存在返回 ErrPayoutAccountNotFound
func (s *PayoutService) Update(ctx context.Context, cmd SavePayoutAccountCommand) (*PayoutAccountDTO, error) {
	if err := ValidateUserID(cmd.UserID); err != nil {
		return nil, err
	}
	if cmd.WalletID == "" {
		return nil, domain.NewValidationError("walletId is required")
	}
	if err := ValidateSelectedWallet(cmd.Wallet); err != nil {
		return nil, err
	}

	account, err := s.repo.Get(ctx, cmd.UserID, cmd.WalletID)
	if err != nil {
		logOutcome(ctx, "update payment account", err, "user_id", cmd.UserID, "wallet_id", cmd.WalletID)
		return nil, err
	}
	account.SelectedWallet = *cmd.Wallet
	if cmd.Label != "" {
		account.Label = cmd.Label
	}
	account.UpdatedAt = s.now()

	err = s.repo.Update(ctx, account)
	logOutcome(ctx, "update payment account", err, "user_id", cmd.UserID, "wallet_id", cmd.WalletID)
	if err != nil {
		return nil, err
	}
	return toPayoutAccountDTO(account), nil
}

// List 用户的全部出金账户
func (s *PayoutService) List(ctx context.Context, userID string) ([]*PayoutAccountDTO, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	accounts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*PayoutAccountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toPayoutAccountDTO(a))
	}
	return out, nil
}

// Delete 删除出金账户
func (s *PayoutService) Delete(ctx context.Context, userID, walletID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	err := s.repo.Delete(ctx, userID, walletID)
	logOutcome(ctx, "delete payment account", err, "user_id", userID, "wallet_id", walletID)
	return err
}
