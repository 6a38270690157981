package mongo

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 金额精度，与 SQL 表 decimal(32,8) 一致
const moneyScale = 8

// 金额以 Decimal128 存储，避免浮点误差
func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.Round(moneyScale).String())
	if err != nil {
		// 只有超过 34 位有效数字才会失败，账本金额不可能达到
		panic(err)
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

type planDoc struct {
	PlanID        string               `bson:"plan_id"`
	PlanName      string               `bson:"plan_name"`
	Amount        primitive.Decimal128 `bson:"amount"`
	ROIPercent    primitive.Decimal128 `bson:"roi_percent"`
	Status        string               `bson:"status"`
	DaysCompleted int                  `bson:"days_completed"`
	StartDate     time.Time            `bson:"start_date"`
	PausedAt      *time.Time           `bson:"paused_at,omitempty"`
	ResumedAt     *time.Time           `bson:"resumed_at,omitempty"`
	StoppedAt     *time.Time           `bson:"stopped_at,omitempty"`
	StoppedDay    *int                 `bson:"stopped_day,omitempty"`
}

// investmentDoc INVESTMENT/{userId}
type investmentDoc struct {
	UserID    string               `bson:"_id"`
	WalletBal primitive.Decimal128 `bson:"wallet_bal"`
	LockedBal primitive.Decimal128 `bson:"locked_bal"`
	Currency  string               `bson:"currency"`
	Plan      *planDoc             `bson:"active_plan"`
	Version   int64                `bson:"version"`
	CreatedAt time.Time            `bson:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

func toInvestmentDoc(l *domain.Ledger) *investmentDoc {
	doc := &investmentDoc{
		UserID:    l.UserID,
		WalletBal: toDecimal128(l.WalletBal),
		LockedBal: toDecimal128(l.LockedBal),
		Currency:  l.Currency,
		Version:   l.Version,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if p := l.Plan; p != nil {
		doc.Plan = &planDoc{
			PlanID:        p.PlanID,
			PlanName:      p.PlanName,
			Amount:        toDecimal128(p.Amount),
			ROIPercent:    toDecimal128(p.ROIPercent),
			Status:        string(p.Status),
			DaysCompleted: p.DaysCompleted,
			StartDate:     p.StartDate,
			PausedAt:      p.PausedAt,
			ResumedAt:     p.ResumedAt,
			StoppedAt:     p.StoppedAt,
			StoppedDay:    p.StoppedDay,
		}
	}
	return doc
}

func (d *investmentDoc) toDomain() *domain.Ledger {
	l := &domain.Ledger{
		UserID:    d.UserID,
		WalletBal: fromDecimal128(d.WalletBal),
		LockedBal: fromDecimal128(d.LockedBal),
		Currency:  d.Currency,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if p := d.Plan; p != nil {
		l.Plan = &domain.PlanRecord{
			PlanID:        p.PlanID,
			PlanName:      p.PlanName,
			Amount:        fromDecimal128(p.Amount),
			ROIPercent:    fromDecimal128(p.ROIPercent),
			Status:        domain.PlanStatus(p.Status),
			DaysCompleted: p.DaysCompleted,
			StartDate:     p.StartDate,
			PausedAt:      p.PausedAt,
			ResumedAt:     p.ResumedAt,
			StoppedAt:     p.StoppedAt,
			StoppedDay:    p.StoppedDay,
		}
	}
	return l
}

// historyDoc HISTORY 与 ALLHISTORY 共用
type historyDoc struct {
	ID             string                 `bson:"_id"`
	UserID         string                 `bson:"user_id"`
	Type           string                 `bson:"type"`
	Amount         primitive.Decimal128   `bson:"amount"`
	Status         string                 `bson:"status"`
	SelectedWallet *domain.SelectedWallet `bson:"selected_wallet,omitempty"`
	Counterparty   string                 `bson:"counterparty,omitempty"`
	Reference      string                 `bson:"reference,omitempty"`
	CreatedAt      time.Time              `bson:"created_at"`
}

func toHistoryDoc(e *domain.HistoryEntry) *historyDoc {
	return &historyDoc{
		ID:             e.ID,
		UserID:         e.UserID,
		Type:           string(e.Type),
		Amount:         toDecimal128(e.Amount),
		Status:         string(e.Status),
		SelectedWallet: e.SelectedWallet,
		Counterparty:   e.Counterparty,
		Reference:      e.Reference,
		CreatedAt:      e.CreatedAt,
	}
}

func (d *historyDoc) toDomain() *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:             d.ID,
		UserID:         d.UserID,
		Type:           domain.HistoryType(d.Type),
		Amount:         fromDecimal128(d.Amount),
		Status:         domain.HistoryStatus(d.Status),
		SelectedWallet: d.SelectedWallet,
		Counterparty:   d.Counterparty,
		Reference:      d.Reference,
		CreatedAt:      d.CreatedAt,
	}
}

// walletDoc WALLET/{userId}/wallets/{walletId}
type walletDoc struct {
	ID                    string `bson:"_id"`
	UserID                string `bson:"user_id"`
	Label                 string `bson:"label,omitempty"`
	domain.SelectedWallet `bson:",inline"`
	CreatedAt             time.Time `bson:"created_at"`
	UpdatedAt             time.Time `bson:"updated_at"`
}

func toWalletDoc(a *domain.PayoutAccount) *walletDoc {
	return &walletDoc{
		ID:             a.ID,
		UserID:         a.UserID,
		Label:          a.Label,
		SelectedWallet: a.SelectedWallet,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func (d *walletDoc) toDomain() *domain.PayoutAccount {
	return &domain.PayoutAccount{
		ID:             d.ID,
		UserID:         d.UserID,
		Label:          d.Label,
		SelectedWallet: d.SelectedWallet,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// userDoc USERS/{userId}
type userDoc struct {
	UserID          string     `bson:"_id"`
	Username        string     `bson:"username"`
	UsernameKey     string     `bson:"username_key"`
	Name            string     `bson:"name"`
	Email           string     `bson:"email"`
	KYCStatus       string     `bson:"kyc_status"`
	KYCDocumentType string     `bson:"kyc_document_type,omitempty"`
	KYCDocumentURL  string     `bson:"kyc_document_url,omitempty"`
	KYCSubmittedAt  *time.Time `bson:"kyc_submitted_at,omitempty"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

func toUserDoc(u *domain.UserProfile) *userDoc {
	return &userDoc{
		UserID:          u.UserID,
		Username:        u.Username,
		UsernameKey:     domain.NormalizeUsername(u.Username),
		Name:            u.Name,
		Email:           u.Email,
		KYCStatus:       string(u.KYCStatus),
		KYCDocumentType: u.KYCDocumentType,
		KYCDocumentURL:  u.KYCDocumentURL,
		KYCSubmittedAt:  u.KYCSubmittedAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (d *userDoc) toDomain() *domain.UserProfile {
	return &domain.UserProfile{
		UserID:          d.UserID,
		Username:        d.Username,
		Name:            d.Name,
		Email:           d.Email,
		KYCStatus:       domain.KYCStatus(d.KYCStatus),
		KYCDocumentType: d.KYCDocumentType,
		KYCDocumentURL:  d.KYCDocumentURL,
		KYCSubmittedAt:  d.KYCSubmittedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// planDefDoc MANAGE_PLAN/{planId}
type planDefDoc struct {
	ID         string               `bson:"_id"`
	Name       string               `bson:"name"`
	Category   string               `bson:"category"`
	MinAmount  primitive.Decimal128 `bson:"min_amount"`
	MaxAmount  primitive.Decimal128 `bson:"max_amount"`
	ROIPercent primitive.Decimal128 `bson:"roi_percent"`
	CreatedAt  time.Time            `bson:"created_at"`
}

func toPlanDefDoc(d *domain.PlanDefinition) *planDefDoc {
	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return &planDefDoc{
		ID:         d.ID,
		Name:       d.Name,
		Category:   d.Category,
		MinAmount:  toDecimal128(d.MinAmount),
		MaxAmount:  toDecimal128(d.MaxAmount),
		ROIPercent: toDecimal128(d.ROIPercent),
		CreatedAt:  created,
	}
}

func (d *planDefDoc) toDomain() *domain.PlanDefinition {
	return &domain.PlanDefinition{
		ID:         d.ID,
		Name:       d.Name,
		Category:   d.Category,
		MinAmount:  fromDecimal128(d.MinAmount),
		MaxAmount:  fromDecimal128(d.MaxAmount),
		ROIPercent: fromDecimal128(d.ROIPercent),
		CreatedAt:  d.CreatedAt,
	}
}

// outboxDoc OUTBOX
type outboxDoc struct {
	ID          string     `bson:"_id"`
	Topic       string     `bson:"topic"`
	Key         string     `bson:"key"`
	EventType   string     `bson:"event_type"`
	Payload     []byte     `bson:"payload"`
	CreatedAt   time.Time  `bson:"created_at"`
	PublishedAt *time.Time `bson:"published_at"`
}

func toOutboxDoc(m *domain.OutboxMessage) *outboxDoc {
	return &outboxDoc{
		ID:          m.ID,
		Topic:       m.Topic,
		Key:         m.Key,
		EventType:   m.EventType,
		Payload:     m.Payload,
		CreatedAt:   m.CreatedAt,
		PublishedAt: m.PublishedAt,
	}
}

func (d *outboxDoc) toDomain() *domain.OutboxMessage {
	return &domain.OutboxMessage{
		ID:          d.ID,
		Topic:       d.Topic,
		Key:         d.Key,
		EventType:   d.EventType,
		Payload:     d.Payload,
		CreatedAt:   d.CreatedAt,
		PublishedAt: d.PublishedAt,
	}
}
