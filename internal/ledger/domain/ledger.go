// 包 domain 投资账本的领域模型：钱包余额、锁定余额与单一投资方案的状态机
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanTermDays 方案固定期限（天）
const PlanTermDays = 7

// PlanStatus 方案存储状态，唯一事实来源
type PlanStatus string

const (
	PlanStatusActive  PlanStatus = "active"
	PlanStatusPaused  PlanStatus = "paused"
	PlanStatusStopped PlanStatus = "stopped"
)

// PlanPhase 方案的只读视图状态，COMPLETED 由 DaysCompleted 推导，不落库
type PlanPhase string

const (
	PhaseNone      PlanPhase = "NONE"
	PhaseActive    PlanPhase = "ACTIVE"
	PhasePaused    PlanPhase = "PAUSED"
	PhaseStopped   PlanPhase = "STOPPED"
	PhaseCompleted PlanPhase = "COMPLETED"
)

// PlanRecord 用户当前（或最近一次）的投资方案
type PlanRecord struct {
	PlanID     string          `json:"plan_id"`
	PlanName   string          `json:"plan_name"`
	Amount     decimal.Decimal `json:"amount"`
	ROIPercent decimal.Decimal `json:"roi_percent"`
	Status     PlanStatus      `json:"status"`
	// 已完成天数 0..PlanTermDays，由外部结算流程推进
	DaysCompleted int        `json:"days_completed"`
	StartDate     time.Time  `json:"start_date"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	ResumedAt     *time.Time `json:"resumed_at,omitempty"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
	StoppedDay    *int       `json:"stopped_day,omitempty"`
}

// Completed 是否已跑满期限
func (p *PlanRecord) Completed() bool {
	return p.Status != PlanStatusStopped && p.DaysCompleted >= PlanTermDays
}

// IsActive 由 Status 计算，不单独存储
func (p *PlanRecord) IsActive() bool {
	return p.Status == PlanStatusActive
}

// DailyReturn 按日收益率计算的每日收益
func (p *PlanRecord) DailyReturn() decimal.Decimal {
	return p.Amount.Mul(p.ROIPercent).Div(decimal.NewFromInt(100))
}

// ProjectedReturn 整个期限的预期收益
func (p *PlanRecord) ProjectedReturn() decimal.Decimal {
	return p.DailyReturn().Mul(decimal.NewFromInt(PlanTermDays))
}

func (p *PlanRecord) clone() *PlanRecord {
	cp := *p
	if p.PausedAt != nil {
		t := *p.PausedAt
		cp.PausedAt = &t
	}
	if p.ResumedAt != nil {
		t := *p.ResumedAt
		cp.ResumedAt = &t
	}
	if p.StoppedAt != nil {
		t := *p.StoppedAt
		cp.StoppedAt = &t
	}
	if p.StoppedDay != nil {
		d := *p.StoppedDay
		cp.StoppedDay = &d
	}
	return &cp
}

// Ledger 用户资金账本（INVESTMENT/{userId}）
type Ledger struct {
	UserID    string          `json:"user_id"`
	WalletBal decimal.Decimal `json:"wallet_bal"`
	LockedBal decimal.Decimal `json:"locked_bal"`
	Currency  string          `json:"currency"`
	Plan      *PlanRecord     `json:"plan,omitempty"`
	// 乐观锁版本号，由存储层维护
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLedger 创建零余额账本
func NewLedger(userID, currency string, now time.Time) *Ledger {
	return &Ledger{
		UserID:    userID,
		WalletBal: decimal.Zero,
		LockedBal: decimal.Zero,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone 深拷贝，存储层用于隔离快照
func (l *Ledger) Clone() *Ledger {
	cp := *l
	if l.Plan != nil {
		cp.Plan = l.Plan.clone()
	}
	return &cp
}

// HasActivePlan 存在未停止且未到期的方案（含暂停中）
func (l *Ledger) HasActivePlan() bool {
	if l.Plan == nil {
		return false
	}
	return l.Plan.Status != PlanStatusStopped && !l.Plan.Completed()
}

// Phase 方案视图状态
func (l *Ledger) Phase() PlanPhase {
	switch {
	case l.Plan == nil:
		return PhaseNone
	case l.Plan.Status == PlanStatusStopped:
		return PhaseStopped
	case l.Plan.Completed():
		return PhaseCompleted
	case l.Plan.Status == PlanStatusPaused:
		return PhasePaused
	default:
		return PhaseActive
	}
}

// CheckInvariants 余额不得为负
func (l *Ledger) CheckInvariants() error {
	if l.WalletBal.IsNegative() || l.LockedBal.IsNegative() {
		return ErrNegativeBalance
	}
	return nil
}

// Credit 入账到钱包
func (l *Ledger) Credit(amount decimal.Decimal) {
	l.WalletBal = l.WalletBal.Add(amount)
}

// Debit 从钱包扣款，余额不足返回 ErrInsufficientFunds
func (l *Ledger) Debit(amount decimal.Decimal) error {
	if l.WalletBal.LessThan(amount) {
		return ErrInsufficientFunds
	}
	l.WalletBal = l.WalletBal.Sub(amount)
	return nil
}

// Activate NONE(或已停止/已到期) -> ACTIVE，本金从钱包转入锁定余额
func (l *Ledger) Activate(def *PlanDefinition, amount decimal.Decimal, now time.Time) error {
	if err := l.fire(evActivate); err != nil {
		return err
	}
	if err := def.CheckAmount(amount); err != nil {
		return err
	}
	if l.WalletBal.LessThan(amount) {
		return ErrInsufficientBalance
	}

	l.lock(amount)
	l.Plan = &PlanRecord{
		PlanID:     def.ID,
		PlanName:   def.Name,
		Amount:     amount,
		ROIPercent: def.ROIPercent,
		Status:     PlanStatusActive,
		StartDate:  now,
	}
	l.UpdatedAt = now
	return nil
}

// Pause ACTIVE -> PAUSED，不动余额
func (l *Ledger) Pause(now time.Time) error {
	if err := l.fire(evPause); err != nil {
		return err
	}

	l.Plan.Status = PlanStatusPaused
	l.Plan.PausedAt = &now
	l.UpdatedAt = now
	return nil
}

// Resume PAUSED -> ACTIVE，DaysCompleted 保持不变
func (l *Ledger) Resume(now time.Time) error {
	if err := l.fire(evResume); err != nil {
		return err
	}
	if l.Plan.Status != PlanStatusPaused {
		return ErrNotPaused
	}

	l.Plan.Status = PlanStatusActive
	l.Plan.ResumedAt = &now
	l.UpdatedAt = now
	return nil
}

// Stop ACTIVE/PAUSED -> STOPPED，锁定余额全额退回钱包
func (l *Ledger) Stop(now time.Time) error {
	if err := l.fire(evStop); err != nil {
		return err
	}

	l.WalletBal = l.WalletBal.Add(l.LockedBal)
	l.LockedBal = decimal.Zero

	day := l.Plan.DaysCompleted
	l.Plan.Status = PlanStatusStopped
	l.Plan.StoppedAt = &now
	l.Plan.StoppedDay = &day
	l.UpdatedAt = now
	return nil
}

// RestartAfterCompletion COMPLETED -> ACTIVE，沿用原方案条款重新扣款
func (l *Ledger) RestartAfterCompletion(now time.Time) error {
	if err := l.fire(evRestartCompleted); err != nil {
		return err
	}
	if l.WalletBal.LessThan(l.Plan.Amount) {
		return ErrInsufficientBalance
	}

	l.relock(now)
	return nil
}

// RestartAfterStop STOPPED -> ACTIVE，重新打开已停止的方案
func (l *Ledger) RestartAfterStop(now time.Time) error {
	if err := l.fire(evRestartStopped); err != nil {
		return err
	}
	if l.WalletBal.LessThan(l.Plan.Amount) {
		return ErrInsufficientBalance
	}

	l.relock(now)
	return nil
}

// lock 先把残留锁定额退回钱包，再锁定新本金；调用方已校验余额
func (l *Ledger) lock(amount decimal.Decimal) {
	l.WalletBal = l.WalletBal.Sub(amount).Add(l.LockedBal)
	l.LockedBal = amount
}

func (l *Ledger) relock(now time.Time) {
	l.lock(l.Plan.Amount)
	l.Plan.Status = PlanStatusActive
	l.Plan.DaysCompleted = 0
	l.Plan.StartDate = now
	l.Plan.PausedAt = nil
	l.Plan.ResumedAt = nil
	l.Plan.StoppedAt = nil
	l.Plan.StoppedDay = nil
	l.UpdatedAt = now
}
