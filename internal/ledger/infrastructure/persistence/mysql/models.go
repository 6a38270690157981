package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"gorm.io/gorm"
)

// InvestmentModel 账本表，方案字段平铺存储
type InvestmentModel struct {
	gorm.Model
	UserID    string          `gorm:"column:user_id;type:varchar(64);uniqueIndex;not null;comment:用户ID"`
	WalletBal decimal.Decimal `gorm:"column:wallet_bal;type:decimal(32,8);default:0;not null;comment:钱包余额"`
	LockedBal decimal.Decimal `gorm:"column:locked_bal;type:decimal(32,8);default:0;not null;comment:锁定余额"`
	Currency  string          `gorm:"column:currency;type:varchar(10);not null;comment:币种"`
	Version   int64           `gorm:"column:version;not null;default:1;comment:乐观锁版本"`

	PlanID            *string          `gorm:"column:plan_id;type:varchar(64);comment:方案ID"`
	PlanName          *string          `gorm:"column:plan_name;type:varchar(128);comment:方案名称"`
	PlanAmount        *decimal.Decimal `gorm:"column:plan_amount;type:decimal(32,8);comment:本金"`
	PlanROIPercent    *decimal.Decimal `gorm:"column:plan_roi_percent;type:decimal(10,4);comment:日收益率"`
	PlanStatus        *string          `gorm:"column:plan_status;type:varchar(16);comment:方案状态"`
	PlanDaysCompleted int              `gorm:"column:plan_days_completed;not null;default:0;comment:已完成天数"`
	PlanStartDate     *time.Time       `gorm:"column:plan_start_date"`
	PlanPausedAt      *time.Time       `gorm:"column:plan_paused_at"`
	PlanResumedAt     *time.Time       `gorm:"column:plan_resumed_at"`
	PlanStoppedAt     *time.Time       `gorm:"column:plan_stopped_at"`
	PlanStoppedDay    *int             `gorm:"column:plan_stopped_day"`
}

func (InvestmentModel) TableName() string { return "investments" }

// HistoryModel 用户流水，user_history 与 all_history 共用结构
type HistoryModel struct {
	gorm.Model
	EntryID       string          `gorm:"column:entry_id;type:varchar(96);uniqueIndex;not null;comment:流水ID"`
	UserID        string          `gorm:"column:user_id;type:varchar(64);index;not null"`
	Type          string          `gorm:"column:type;type:varchar(16);not null"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(32,8);not null"`
	Status        string          `gorm:"column:status;type:varchar(16);not null"`
	Method        string          `gorm:"column:method;type:varchar(16)"`
	Currency      string          `gorm:"column:currency;type:varchar(16)"`
	WalletAddress string          `gorm:"column:wallet_address;type:varchar(128)"`
	BankName      string          `gorm:"column:bank_name;type:varchar(128)"`
	AccountNumber string          `gorm:"column:account_number;type:varchar(34)"`
	AccountName   string          `gorm:"column:account_name;type:varchar(128)"`
	Counterparty  string          `gorm:"column:counterparty;type:varchar(64)"`
	Reference     string          `gorm:"column:reference;type:varchar(64);index"`
	EntryTime     time.Time       `gorm:"column:entry_time;index;not null"`
}

// UserHistoryModel HISTORY/{userId}/history
type UserHistoryModel struct{ HistoryModel }

func (UserHistoryModel) TableName() string { return "user_history" }

// AllHistoryModel ALLHISTORY 全局镜像
type AllHistoryModel struct{ HistoryModel }

func (AllHistoryModel) TableName() string { return "all_history" }

// PayoutWalletModel 出金账户
type PayoutWalletModel struct {
	gorm.Model
	WalletID      string `gorm:"column:wallet_id;type:varchar(64);uniqueIndex;not null"`
	UserID        string `gorm:"column:user_id;type:varchar(64);index;not null"`
	Label         string `gorm:"column:label;type:varchar(64)"`
	Method        string `gorm:"column:method;type:varchar(16);not null"`
	Currency      string `gorm:"column:currency;type:varchar(16)"`
	WalletAddress string `gorm:"column:wallet_address;type:varchar(128)"`
	BankName      string `gorm:"column:bank_name;type:varchar(128)"`
	AccountNumber string `gorm:"column:account_number;type:varchar(34)"`
	AccountName   string `gorm:"column:account_name;type:varchar(128)"`
}

func (PayoutWalletModel) TableName() string { return "payout_wallets" }

// UserModel 用户资料，username_key 为规范化用户名的唯一索引
type UserModel struct {
	gorm.Model
	UserID          string     `gorm:"column:user_id;type:varchar(64);uniqueIndex;not null"`
	Username        string     `gorm:"column:username;type:varchar(64);not null"`
	UsernameKey     string     `gorm:"column:username_key;type:varchar(64);uniqueIndex;not null"`
	Name            string     `gorm:"column:name;type:varchar(128)"`
	Email           string     `gorm:"column:email;type:varchar(255)"`
	KYCStatus       string     `gorm:"column:kyc_status;type:varchar(16);not null;default:none"`
	KYCDocumentType string     `gorm:"column:kyc_document_type;type:varchar(32)"`
	KYCDocumentURL  string     `gorm:"column:kyc_document_url;type:varchar(512)"`
	KYCSubmittedAt  *time.Time `gorm:"column:kyc_submitted_at"`
}

func (UserModel) TableName() string { return "users" }

// PlanModel 方案目录
type PlanModel struct {
	gorm.Model
	PlanID     string          `gorm:"column:plan_id;type:varchar(64);uniqueIndex;not null"`
	Name       string          `gorm:"column:name;type:varchar(128);not null"`
	Category   string          `gorm:"column:category;type:varchar(32)"`
	MinAmount  decimal.Decimal `gorm:"column:min_amount;type:decimal(32,8);not null"`
	MaxAmount  decimal.Decimal `gorm:"column:max_amount;type:decimal(32,8);not null;default:0"`
	ROIPercent decimal.Decimal `gorm:"column:roi_percent;type:decimal(10,4);not null"`
}

func (PlanModel) TableName() string { return "manage_plans" }

// OutboxModel 事务性 outbox
type OutboxModel struct {
	ID          uint       `gorm:"primarykey"`
	MessageID   string     `gorm:"column:message_id;type:varchar(64);uniqueIndex;not null"`
	Topic       string     `gorm:"column:topic;type:varchar(64);not null"`
	MsgKey      string     `gorm:"column:msg_key;type:varchar(64);not null"`
	EventType   string     `gorm:"column:event_type;type:varchar(64);not null"`
	Payload     []byte     `gorm:"column:payload;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	PublishedAt *time.Time `gorm:"column:published_at;index"`
}

func (OutboxModel) TableName() string { return "outbox_messages" }

// AllModels AutoMigrate 使用
func AllModels() []any {
	return []any{
		&InvestmentModel{},
		&UserHistoryModel{},
		&AllHistoryModel{},
		&PayoutWalletModel{},
		&UserModel{},
		&PlanModel{},
		&OutboxModel{},
	}
}

func toInvestmentModel(l *domain.Ledger) *InvestmentModel {
	m := &InvestmentModel{
		Model: gorm.Model{
			CreatedAt: l.CreatedAt,
			UpdatedAt: l.UpdatedAt,
		},
		UserID:    l.UserID,
		WalletBal: l.WalletBal,
		LockedBal: l.LockedBal,
		Currency:  l.Currency,
		Version:   l.Version,
	}
	if p := l.Plan; p != nil {
		status := string(p.Status)
		start := p.StartDate
		m.PlanID = &p.PlanID
		m.PlanName = &p.PlanName
		m.PlanAmount = &p.Amount
		m.PlanROIPercent = &p.ROIPercent
		m.PlanStatus = &status
		m.PlanDaysCompleted = p.DaysCompleted
		m.PlanStartDate = &start
		m.PlanPausedAt = p.PausedAt
		m.PlanResumedAt = p.ResumedAt
		m.PlanStoppedAt = p.StoppedAt
		m.PlanStoppedDay = p.StoppedDay
	}
	return m
}

func toLedger(m *InvestmentModel) *domain.Ledger {
	l := &domain.Ledger{
		UserID:    m.UserID,
		WalletBal: m.WalletBal,
		LockedBal: m.LockedBal,
		Currency:  m.Currency,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.PlanID != nil && m.PlanStatus != nil {
		p := &domain.PlanRecord{
			PlanID:        *m.PlanID,
			Status:        domain.PlanStatus(*m.PlanStatus),
			DaysCompleted: m.PlanDaysCompleted,
			PausedAt:      m.PlanPausedAt,
			ResumedAt:     m.PlanResumedAt,
			StoppedAt:     m.PlanStoppedAt,
			StoppedDay:    m.PlanStoppedDay,
		}
		if m.PlanName != nil {
			p.PlanName = *m.PlanName
		}
		if m.PlanAmount != nil {
			p.Amount = *m.PlanAmount
		}
		if m.PlanROIPercent != nil {
			p.ROIPercent = *m.PlanROIPercent
		}
		if m.PlanStartDate != nil {
			p.StartDate = *m.PlanStartDate
		}
		l.Plan = p
	}
	return l
}

func toHistoryModel(e *domain.HistoryEntry) HistoryModel {
	m := HistoryModel{
		EntryID:      e.ID,
		UserID:       e.UserID,
		Type:         string(e.Type),
		Amount:       e.Amount,
		Status:       string(e.Status),
		Counterparty: e.Counterparty,
		Reference:    e.Reference,
		EntryTime:    e.CreatedAt,
	}
	if w := e.SelectedWallet; w != nil {
		m.Method = string(w.Method)
		m.Currency = w.Currency
		m.WalletAddress = w.WalletAddress
		m.BankName = w.BankName
		m.AccountNumber = w.AccountNumber
		m.AccountName = w.AccountName
	}
	return m
}

func toHistoryEntry(m *HistoryModel) *domain.HistoryEntry {
	e := &domain.HistoryEntry{
		ID:           m.EntryID,
		UserID:       m.UserID,
		Type:         domain.HistoryType(m.Type),
		Amount:       m.Amount,
		Status:       domain.HistoryStatus(m.Status),
		Counterparty: m.Counterparty,
		Reference:    m.Reference,
		CreatedAt:    m.EntryTime,
	}
	if m.Method != "" {
		e.SelectedWallet = &domain.SelectedWallet{
			Method:        domain.PaymentMethod(m.Method),
			Currency:      m.Currency,
			WalletAddress: m.WalletAddress,
			BankName:      m.BankName,
			AccountNumber: m.AccountNumber,
			AccountName:   m.AccountName,
		}
	}
	return e
}

func toPayoutWalletModel(a *domain.PayoutAccount) *PayoutWalletModel {
	return &PayoutWalletModel{
		Model: gorm.Model{
			CreatedAt: a.CreatedAt,
			UpdatedAt: a.UpdatedAt,
		},
		WalletID:      a.ID,
		UserID:        a.UserID,
		Label:         a.Label,
		Method:        string(a.Method),
		Currency:      a.Currency,
		WalletAddress: a.WalletAddress,
		BankName:      a.BankName,
		AccountNumber: a.AccountNumber,
		AccountName:   a.AccountName,
	}
}

func toPayoutAccount(m *PayoutWalletModel) *domain.PayoutAccount {
	return &domain.PayoutAccount{
		ID:     m.WalletID,
		UserID: m.UserID,
		Label:  m.Label,
		SelectedWallet: domain.SelectedWallet{
			Method:        domain.PaymentMethod(m.Method),
			Currency:      m.Currency,
			WalletAddress: m.WalletAddress,
			BankName:      m.BankName,
			AccountNumber: m.AccountNumber,
			AccountName:   m.AccountName,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toUserModel(u *domain.UserProfile) *UserModel {
	return &UserModel{
		Model: gorm.Model{
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		},
		UserID:          u.UserID,
		Username:        u.Username,
		UsernameKey:     domain.NormalizeUsername(u.Username),
		Name:            u.Name,
		Email:           u.Email,
		KYCStatus:       string(u.KYCStatus),
		KYCDocumentType: u.KYCDocumentType,
		KYCDocumentURL:  u.KYCDocumentURL,
		KYCSubmittedAt:  u.KYCSubmittedAt,
	}
}

func toUserProfile(m *UserModel) *domain.UserProfile {
	return &domain.UserProfile{
		UserID:          m.UserID,
		Username:        m.Username,
		Name:            m.Name,
		Email:           m.Email,
		KYCStatus:       domain.KYCStatus(m.KYCStatus),
		KYCDocumentType: m.KYCDocumentType,
		KYCDocumentURL:  m.KYCDocumentURL,
		KYCSubmittedAt:  m.KYCSubmittedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toPlanModel(d *domain.PlanDefinition) *PlanModel {
	return &PlanModel{
		PlanID:     d.ID,
		Name:       d.Name,
		Category:   d.Category,
		MinAmount:  d.MinAmount,
		MaxAmount:  d.MaxAmount,
		ROIPercent: d.ROIPercent,
	}
}

func toPlanDefinition(m *PlanModel) *domain.PlanDefinition {
	return &domain.PlanDefinition{
		ID:         m.PlanID,
		Name:       m.Name,
		Category:   m.Category,
		MinAmount:  m.MinAmount,
		MaxAmount:  m.MaxAmount,
		ROIPercent: m.ROIPercent,
		CreatedAt:  m.CreatedAt,
	}
}

func toOutboxModel(msg *domain.OutboxMessage) *OutboxModel {
	return &OutboxModel{
		MessageID:   msg.ID,
		Topic:       msg.Topic,
		MsgKey:      msg.Key,
		EventType:   msg.EventType,
		Payload:     msg.Payload,
		CreatedAt:   msg.CreatedAt,
		PublishedAt: msg.PublishedAt,
	}
}

func toOutboxMessage(m *OutboxModel) *domain.OutboxMessage {
	return &domain.OutboxMessage{
		ID:          m.MessageID,
		Topic:       m.Topic,
		Key:         m.MsgKey,
		EventType:   m.EventType,
		Payload:     m.Payload,
		CreatedAt:   m.CreatedAt,
		PublishedAt: m.PublishedAt,
	}
}
