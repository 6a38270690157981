package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryType 流水类型
type HistoryType string

const (
	HistoryDeposit    HistoryType = "deposit"
	HistoryWithdrawal HistoryType = "withdrawal"
	HistoryCredit     HistoryType = "credit"
)

// HistoryStatus 流水状态，pending 由外部结算流程推进
type HistoryStatus string

const (
	HistoryPending   HistoryStatus = "pending"
	HistoryCompleted HistoryStatus = "completed"
	HistoryFailed    HistoryStatus = "failed"
)

// PaymentMethod 收付款方式
type PaymentMethod string

const (
	MethodCrypto PaymentMethod = "crypto"
	MethodBank   PaymentMethod = "bank"
)

// SelectedWallet 流水关联的收付款目标
type SelectedWallet struct {
	Method        PaymentMethod `json:"method" bson:"method" validate:"required,oneof=crypto bank"`
	Currency      string        `json:"currency,omitempty" bson:"currency,omitempty" validate:"required_if=Method crypto,max=16"`
	WalletAddress string        `json:"walletAddress,omitempty" bson:"wallet_address,omitempty" validate:"required_if=Method crypto,max=128"`
	BankName      string        `json:"bankName,omitempty" bson:"bank_name,omitempty" validate:"required_if=Method bank,max=128"`
	AccountNumber string        `json:"accountNumber,omitempty" bson:"account_number,omitempty" validate:"required_if=Method bank,max=34"`
	AccountName   string        `json:"accountName,omitempty" bson:"account_name,omitempty" validate:"max=128"`
}

// HistoryEntry 资金流水（HISTORY/{userId}/history/{entryId}，并镜像到 ALLHISTORY）
// 创建后只读，状态变更由外部结算流程完成
type HistoryEntry struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Type           HistoryType     `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Status         HistoryStatus   `json:"status"`
	SelectedWallet *SelectedWallet `json:"selected_wallet,omitempty"`
	// 转账对手方用户 ID
	Counterparty string `json:"counterparty,omitempty"`
	// 关联业务号（转账 ID 等）
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
