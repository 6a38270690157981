package application

import (
	"context"
	"strings"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/pkg/logger"
)

// FundingService 充值与提现申请。结算（pending -> completed）由外部流程完成
type FundingService struct {
	ledgers *LedgerStore
}

// NewFundingService 创建资金服务
func NewFundingService(ledgers *LedgerStore) *FundingService {
	return &FundingService{ledgers: ledgers}
}

// RequestDeposit 登记一笔待结算充值，不改动余额
func (s *FundingService) RequestDeposit(ctx context.Context, cmd DepositRequestCommand) (*HistoryDTO, error) {
	logger.Info(ctx, "deposit requested", "user_id", cmd.UserID, "amount", cmd.Amount.String(), "crypto", cmd.Crypto)

	if err := ValidateUserID(cmd.UserID); err != nil {
		return nil, err
	}
	if err := ValidateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Crypto))
	if currency == "" {
		return nil, domain.NewValidationError("crypto currency is required")
	}

	entry := &domain.HistoryEntry{
		UserID: cmd.UserID,
		Type:   domain.HistoryDeposit,
		Amount: cmd.Amount,
		Status: domain.HistoryPending,
		SelectedWallet: &domain.SelectedWallet{
			Method:   domain.MethodCrypto,
			Currency: currency,
		},
	}
	err := s.ledgers.Run(ctx, "deposit_request", func(tx *LedgerTx) error {
		if err := tx.AppendHistory(entry); err != nil {
			return err
		}
		return tx.Emit(domain.DepositRequestedEvent{
			EntryID:  entry.ID,
			UserID:   cmd.UserID,
			Name:     cmd.Name,
			Email:    cmd.Email,
			Amount:   cmd.Amount,
			Currency: currency,
		})
	})
	logOutcome(ctx, "deposit request", err, "user_id", cmd.UserID, "entry_id", entry.ID)
	if err != nil {
		return nil, err
	}
	return toHistoryDTO(entry), nil
}

// RequestWithdrawal 扣减钱包并登记待结算提现，返回流水 ID
func (s *FundingService) RequestWithdrawal(ctx context.Context, cmd WithdrawRequestCommand) (*HistoryDTO, error) {
	logger.Info(ctx, "withdrawal requested", "user_id", cmd.UserID, "amount", cmd.Amount.String())

	if err := ValidateUserID(cmd.UserID); err != nil {
		return nil, err
	}
	if err := ValidateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	if err := ValidateSelectedWallet(cmd.SelectedWallet); err != nil {
		return nil, err
	}

	entry := &domain.HistoryEntry{
		UserID:         cmd.UserID,
		Type:           domain.HistoryWithdrawal,
		Amount:         cmd.Amount,
		Status:         domain.HistoryPending,
		SelectedWallet: cmd.SelectedWallet,
	}
	_, err := s.ledgers.ApplyLedgerUpdate(ctx, "withdraw_request", cmd.UserID, func(tx *LedgerTx, l *domain.Ledger) error {
		if err := ValidateDebit(l, cmd.Amount); err != nil {
			return err
		}
		if err := l.Debit(cmd.Amount); err != nil {
			return err
		}
		l.UpdatedAt = tx.Now()

		if err := tx.AppendHistory(entry); err != nil {
			return err
		}
		return tx.Emit(domain.WithdrawalRequestedEvent{
			EntryID:        entry.ID,
			UserID:         cmd.UserID,
			Name:           cmd.Name,
			Amount:         cmd.Amount,
			SelectedWallet: *cmd.SelectedWallet,
		})
	})
	logOutcome(ctx, "withdrawal request", err, "user_id", cmd.UserID, "entry_id", entry.ID, "amount", cmd.Amount.String())
	if err != nil {
		return nil, err
	}
	return toHistoryDTO(entry), nil
}
