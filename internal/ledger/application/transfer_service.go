package application

import (
	"context"
	"errors"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/pkg/idgen"
	"github.com/wyfcoding/investledger/pkg/logger"
)

// TransferService 用户间转账
type TransferService struct {
	ledgers *LedgerStore
	users   domain.UserRepository
	history domain.HistoryRepository
}

// NewTransferService 创建转账服务
func NewTransferService(ledgers *LedgerStore) *TransferService {
	store := ledgers.Store()
	return &TransferService{
		ledgers: ledgers,
		users:   store.Users(),
		history: store.History(),
	}
}

// 流水 ID 以发起方限定作用域，不同发起方可复用同一 transferId
func debitEntryID(senderID, transferID string) string {
	return "TRF-" + senderID + "-" + transferID + "-D"
}

func creditEntryID(senderID, transferID string) string {
	return "TRF-" + senderID + "-" + transferID + "-C"
}

// Transfer 收款方解析、双方余额变更、流水与事件在同一事务内完成
func (s *TransferService) Transfer(ctx context.Context, cmd TransferCommand) (*TransferResultDTO, error) {
	logger.Info(ctx, "transfer requested",
		"sender_id", cmd.SenderID,
		"recipient", cmd.RecipientUsername,
		"amount", cmd.Amount.String(),
		"transfer_id", cmd.TransferID,
	)

	if err := ValidateUserID(cmd.SenderID); err != nil {
		return nil, err
	}
	if err := ValidateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	if err := ValidateRecipient(cmd.RecipientUsername); err != nil {
		return nil, err
	}

	idempotent := cmd.TransferID != ""
	transferID := cmd.TransferID
	if !idempotent {
		transferID = idgen.NewUUID()
	}
	result := &TransferResultDTO{TransferID: transferID}

	resolve := func(tx *LedgerTx) (string, error) {
		recipientID, err := s.users.FindIDByUsername(tx.Context(), cmd.RecipientUsername)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			err = domain.ErrUnknownRecipient
		case err != nil:
			return "", err
		}

		if idempotent {
			prev, gerr := s.history.Get(tx.Context(), cmd.SenderID, debitEntryID(cmd.SenderID, transferID))
			if gerr != nil {
				return "", gerr
			}
			if prev != nil {
				// 同一 transferId 只能以相同收款人与金额重放
				if err != nil || prev.Counterparty != recipientID || !prev.Amount.Equal(cmd.Amount) {
					return "", domain.ErrTransferIDReused
				}
				result.Replayed = true
				result.RecipientID = prev.Counterparty
				return "", nil
			}
		}

		if err != nil {
			return "", err
		}
		if recipientID == cmd.SenderID {
			return "", domain.NewValidationError("cannot transfer funds to yourself")
		}
		result.RecipientID = recipientID
		return recipientID, nil
	}

	err := s.ledgers.ApplyTransfer(ctx, cmd.SenderID, resolve, func(tx *LedgerTx, sender, recipient *domain.Ledger) error {
		if err := ValidateDebit(sender, cmd.Amount); err != nil {
			return err
		}
		if err := sender.Debit(cmd.Amount); err != nil {
			return err
		}
		recipient.Credit(cmd.Amount)
		sender.UpdatedAt = tx.Now()
		recipient.UpdatedAt = tx.Now()

		if err := tx.AppendHistory(&domain.HistoryEntry{
			ID:           debitEntryID(sender.UserID, transferID),
			UserID:       sender.UserID,
			Type:         domain.HistoryWithdrawal,
			Amount:       cmd.Amount,
			Status:       domain.HistoryCompleted,
			Counterparty: recipient.UserID,
			Reference:    transferID,
		}); err != nil {
			return err
		}
		if err := tx.AppendHistory(&domain.HistoryEntry{
			ID:           creditEntryID(sender.UserID, transferID),
			UserID:       recipient.UserID,
			Type:         domain.HistoryCredit,
			Amount:       cmd.Amount,
			Status:       domain.HistoryCompleted,
			Counterparty: sender.UserID,
			Reference:    transferID,
		}); err != nil {
			return err
		}

		return tx.Emit(domain.FundsTransferredEvent{
			TransferID:  transferID,
			SenderID:    sender.UserID,
			RecipientID: recipient.UserID,
			Amount:      cmd.Amount,
		})
	})
	logOutcome(ctx, "transfer", err,
		"sender_id", cmd.SenderID,
		"recipient_id", result.RecipientID,
		"amount", cmd.Amount.String(),
		"transfer_id", transferID,
		"replayed", result.Replayed,
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}
