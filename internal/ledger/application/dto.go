package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/investledger/internal/ledger/domain"
)

// ActivatePlanCommand 激活方案命令
type ActivatePlanCommand struct {
	UserID string
	PlanID string
	Amount decimal.Decimal
}

// TransferCommand 转账命令，TransferID 可选，作为幂等键
type TransferCommand struct {
	SenderID          string
	RecipientUsername string
	Amount            decimal.Decimal
	TransferID        string
}

// DepositRequestCommand 充值申请
type DepositRequestCommand struct {
	UserID string
	Name   string
	Email  string
	Amount decimal.Decimal
	Crypto string
}

// WithdrawRequestCommand 提现申请
type WithdrawRequestCommand struct {
	UserID         string
	Name           string
	Amount         decimal.Decimal
	SelectedWallet *domain.SelectedWallet
}

// SavePayoutAccountCommand 新增或更新出金账户，WalletID 为空表示新增
type SavePayoutAccountCommand struct {
	UserID   string
	WalletID string
	Label    string
	Wallet   *domain.SelectedWallet
}

// RegisterUserCommand 注册用户
type RegisterUserCommand struct {
	UserID   string
	Username string
	Name     string
	Email    string
	Currency string
}

// SubmitKYCCommand 提交 KYC
type SubmitKYCCommand struct {
	UserID       string
	DocumentType string
	DocumentURL  string
}

// PlanDTO 方案视图
type PlanDTO struct {
	PlanID          string     `json:"planId"`
	PlanName        string     `json:"planName"`
	Amount          string     `json:"amount"`
	ROIPercent      string     `json:"roiPercent"`
	Status          string     `json:"status"`
	Phase           string     `json:"phase"`
	IsActive        bool       `json:"isActive"`
	DaysCompleted   int        `json:"daysCompleted"`
	DailyReturn     string     `json:"dailyReturn"`
	ProjectedReturn string     `json:"projectedReturn"`
	StartDate       time.Time  `json:"startDate"`
	PausedAt        *time.Time `json:"pausedAt,omitempty"`
	ResumedAt       *time.Time `json:"resumedAt,omitempty"`
	StoppedAt       *time.Time `json:"stoppedAt,omitempty"`
	StoppedDay      *int       `json:"stoppedDay,omitempty"`
}

// LedgerDTO 账本视图
type LedgerDTO struct {
	UserID        string    `json:"userId"`
	WalletBal     string    `json:"walletBal"`
	LockedBal     string    `json:"lockedBal"`
	Currency      string    `json:"currency"`
	HasActivePlan bool      `json:"hasActivePlan"`
	ActivePlan    *PlanDTO  `json:"activePlan"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HistoryDTO 流水视图
type HistoryDTO struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"userId"`
	Type           string                 `json:"type"`
	Amount         string                 `json:"amount"`
	Status         string                 `json:"status"`
	SelectedWallet *domain.SelectedWallet `json:"selectedWallet,omitempty"`
	Counterparty   string                 `json:"counterparty,omitempty"`
	Reference      string                 `json:"reference,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// HistoryPageDTO 流水分页
type HistoryPageDTO struct {
	Items  []*HistoryDTO `json:"items"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// PayoutAccountDTO 出金账户视图
type PayoutAccountDTO struct {
	WalletID string `json:"walletId"`
	UserID   string `json:"userId"`
	Label    string `json:"label,omitempty"`
	domain.SelectedWallet
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlanDefinitionDTO 方案目录视图
type PlanDefinitionDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	MinAmount  string `json:"minAmount"`
	MaxAmount  string `json:"maxAmount,omitempty"`
	ROIPercent string `json:"roiPercent"`
	TermDays   int    `json:"termDays"`
}

// UserProfileDTO 用户资料视图
type UserProfileDTO struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	KYCStatus string `json:"kycStatus"`
}

// TransferResultDTO 转账结果
type TransferResultDTO struct {
	TransferID  string `json:"transferId"`
	RecipientID string `json:"recipientId,omitempty"`
	Replayed    bool   `json:"replayed"`
}

func toLedgerDTO(l *domain.Ledger) *LedgerDTO {
	dto := &LedgerDTO{
		UserID:        l.UserID,
		WalletBal:     l.WalletBal.String(),
		LockedBal:     l.LockedBal.String(),
		Currency:      l.Currency,
		HasActivePlan: l.HasActivePlan(),
		Version:       l.Version,
		UpdatedAt:     l.UpdatedAt,
	}
	if p := l.Plan; p != nil {
		dto.ActivePlan = &PlanDTO{
			PlanID:          p.PlanID,
			PlanName:        p.PlanName,
			Amount:          p.Amount.String(),
			ROIPercent:      p.ROIPercent.String(),
			Status:          string(p.Status),
			Phase:           string(l.Phase()),
			IsActive:        p.IsActive(),
			DaysCompleted:   p.DaysCompleted,
			DailyReturn:     p.DailyReturn().String(),
			ProjectedReturn: p.ProjectedReturn().String(),
			StartDate:       p.StartDate,
			PausedAt:        p.PausedAt,
			ResumedAt:       p.ResumedAt,
			StoppedAt:       p.StoppedAt,
			StoppedDay:      p.StoppedDay,
		}
	}
	return dto
}

func toHistoryDTO(e *domain.HistoryEntry) *HistoryDTO {
	return &HistoryDTO{
		ID:             e.ID,
		UserID:         e.UserID,
		Type:           string(e.Type),
		Amount:         e.Amount.String(),
		Status:         string(e.Status),
		SelectedWallet: e.SelectedWallet,
		Counterparty:   e.Counterparty,
		Reference:      e.Reference,
		CreatedAt:      e.CreatedAt,
	}
}

func toPayoutAccountDTO(a *domain.PayoutAccount) *PayoutAccountDTO {
	return &PayoutAccountDTO{
		WalletID:       a.ID,
		UserID:         a.UserID,
		Label:          a.Label,
		SelectedWallet: a.SelectedWallet,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toPlanDefinitionDTO(d *domain.PlanDefinition) *PlanDefinitionDTO {
	dto := &PlanDefinitionDTO{
		ID:         d.ID,
		Name:       d.Name,
		Category:   d.Category,
		MinAmount:  d.MinAmount.String(),
		ROIPercent: d.ROIPercent.String(),
		TermDays:   domain.PlanTermDays,
	}
	if d.MaxAmount.IsPositive() {
		dto.MaxAmount = d.MaxAmount.String()
	}
	return dto
}

func toUserProfileDTO(u *domain.UserProfile) *UserProfileDTO {
	return &UserProfileDTO{
		UserID:    u.UserID,
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
		KYCStatus: string(u.KYCStatus),
	}
}
