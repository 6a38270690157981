package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanDefinition 方案目录条目（MANAGE_PLAN/{planId}），由运营维护，本服务只读
type PlanDefinition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	// 最低投资额
	MinAmount decimal.Decimal `json:"min_amount"`
	// 最高投资额，零表示不设上限
	MaxAmount decimal.Decimal `json:"max_amount"`
	// 日收益率（百分比）
	ROIPercent decimal.Decimal `json:"roi_percent"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CheckAmount 校验投资额落在方案上下限内
func (d *PlanDefinition) CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("amount must be greater than zero")
	}
	if amount.LessThan(d.MinAmount) {
		return NewValidationError("amount is below the %s plan minimum of %s", d.Name, d.MinAmount.String())
	}
	if d.MaxAmount.IsPositive() && amount.GreaterThan(d.MaxAmount) {
		return NewValidationError("amount exceeds the %s plan maximum of %s", d.Name, d.MaxAmount.String())
	}
	return nil
}
