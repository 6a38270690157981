package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// 集成事件 topic
const (
	TopicPlan     = "plan"
	TopicTransfer = "transfer"
	TopicFunding  = "funding"
)

// LedgerEvent 账本领域事件
type LedgerEvent interface {
	EventType() string
	Topic() string
	// PartitionKey 同一用户的事件保持有序
	PartitionKey() string
}

// PlanEvent 方案状态变更事件
type PlanEvent struct {
	Type          string          `json:"type"`
	UserID        string          `json:"user_id"`
	PlanID        string          `json:"plan_id"`
	PlanName      string          `json:"plan_name"`
	Amount        decimal.Decimal `json:"amount"`
	WalletBal     decimal.Decimal `json:"wallet_bal"`
	LockedBal     decimal.Decimal `json:"locked_bal"`
	DaysCompleted int             `json:"days_completed"`
}

func (e PlanEvent) EventType() string    { return e.Type }
func (e PlanEvent) Topic() string        { return TopicPlan }
func (e PlanEvent) PartitionKey() string { return e.UserID }

// 方案事件类型
const (
	EventPlanActivated = "plan.activated"
	EventPlanPaused    = "plan.paused"
	EventPlanResumed   = "plan.resumed"
	EventPlanStopped   = "plan.stopped"
	EventPlanRestarted = "plan.restarted"
)

// NewPlanEvent 根据账本当前状态构造方案事件
func NewPlanEvent(eventType string, l *Ledger) PlanEvent {
	e := PlanEvent{
		Type:      eventType,
		UserID:    l.UserID,
		WalletBal: l.WalletBal,
		LockedBal: l.LockedBal,
	}
	if l.Plan != nil {
		e.PlanID = l.Plan.PlanID
		e.PlanName = l.Plan.PlanName
		e.Amount = l.Plan.Amount
		e.DaysCompleted = l.Plan.DaysCompleted
	}
	return e
}

// FundsTransferredEvent 转账完成事件
type FundsTransferredEvent struct {
	TransferID  string          `json:"transfer_id"`
	SenderID    string          `json:"sender_id"`
	RecipientID string          `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
}

func (e FundsTransferredEvent) EventType() string    { return "transfer.completed" }
func (e FundsTransferredEvent) Topic() string        { return TopicTransfer }
func (e FundsTransferredEvent) PartitionKey() string { return e.SenderID }

// DepositRequestedEvent 充值申请事件，供外部结算与通知流程消费
type DepositRequestedEvent struct {
	EntryID  string          `json:"entry_id"`
	UserID   string          `json:"user_id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (e DepositRequestedEvent) EventType() string    { return "deposit.requested" }
func (e DepositRequestedEvent) Topic() string        { return TopicFunding }
func (e DepositRequestedEvent) PartitionKey() string { return e.UserID }

// WithdrawalRequestedEvent 提现申请事件
type WithdrawalRequestedEvent struct {
	EntryID        string          `json:"entry_id"`
	UserID         string          `json:"user_id"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	SelectedWallet SelectedWallet  `json:"selected_wallet"`
}

func (e WithdrawalRequestedEvent) EventType() string    { return "withdrawal.requested" }
func (e WithdrawalRequestedEvent) Topic() string        { return TopicFunding }
func (e WithdrawalRequestedEvent) PartitionKey() string { return e.UserID }

// OutboxMessage 与业务写入同事务落库的待投递消息
type OutboxMessage struct {
	ID          string     `json:"id"`
	Topic       string     `json:"topic"`
	Key         string     `json:"key"`
	EventType   string     `json:"event_type"`
	Payload     []byte     `json:"payload"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       LedgerEvent `json:"data"`
}

// NewOutboxMessage 把事件封装为 outbox 消息
func NewOutboxMessage(id string, event LedgerEvent, now time.Time) (*OutboxMessage, error) {
	payload, err := json.Marshal(envelope{
		ID:         id,
		Type:       event.EventType(),
		OccurredAt: now,
		Data:       event,
	})
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		ID:        id,
		Topic:     event.Topic(),
		Key:       event.PartitionKey(),
		EventType: event.EventType(),
		Payload:   payload,
		CreatedAt: now,
	}, nil
}
