package application

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/investledger/internal/ledger/domain"
)

// 请求前置校验，全部在访问存储之前执行（ValidateDebit 除外，它读取事务内账本），失败时不写任何状态

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息使用 JSON 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// 出金地址最短长度
const minWalletAddressLen = 10

// ManageAction 管理动作
type ManageAction string

const (
	ActionPause   ManageAction = "pause"
	ActionResume  ManageAction = "resume"
	ActionStop    ManageAction = "stop"
	ActionRestart ManageAction = "restart"
)

// ValidateAmount 金额必须为正数
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.NewValidationError("amount must be a positive number")
	}
	return nil
}

// ValidateDebit 扣款金额不得超过钱包余额
func ValidateDebit(l *domain.Ledger, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if l.WalletBal.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// ValidatePlanAmount 投资额落在方案上下限内
func ValidatePlanAmount(def *domain.PlanDefinition, amount decimal.Decimal) error {
	return def.CheckAmount(amount)
}

// ValidateSelectedWallet crypto 需要币种与地址，bank 需要银行名与账号
func ValidateSelectedWallet(w *domain.SelectedWallet) error {
	if w == nil {
		return domain.NewValidationError("selectedWallet is required")
	}
	w.Method = domain.PaymentMethod(strings.ToLower(strings.TrimSpace(string(w.Method))))
	w.Currency = strings.ToUpper(strings.TrimSpace(w.Currency))
	w.WalletAddress = strings.TrimSpace(w.WalletAddress)
	w.BankName = strings.TrimSpace(w.BankName)
	w.AccountNumber = strings.TrimSpace(w.AccountNumber)

	if err := validate.Struct(w); err != nil {
		return translate("selectedWallet", err)
	}
	if w.Method == domain.MethodCrypto && len(w.WalletAddress) < minWalletAddressLen {
		return domain.NewValidationError("selectedWallet.walletAddress is not a valid address")
	}
	if w.Method == domain.MethodBank && strings.ContainsAny(w.AccountNumber, " \t") {
		return domain.NewValidationError("selectedWallet.accountNumber must not contain spaces")
	}
	return nil
}

// ParseManageAction 解析管理动作
func ParseManageAction(action string) (ManageAction, error) {
	switch a := ManageAction(strings.ToLower(strings.TrimSpace(action))); a {
	case ActionPause, ActionResume, ActionStop, ActionRestart:
		return a, nil
	default:
		return "", domain.NewValidationError("invalid action %q, expected pause, resume, stop or restart", action)
	}
}

// ValidateUsername 注册用户名不能为空
func ValidateUsername(username string) error {
	if domain.NormalizeUsername(username) == "" {
		return domain.NewValidationError("username is required")
	}
	return nil
}

// ValidateRecipient 空收款人按无法解析处理
func ValidateRecipient(username string) error {
	if domain.NormalizeUsername(username) == "" {
		return domain.ErrUnknownRecipient
	}
	return nil
}

// ValidateUserID 用户 ID 不能为空
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError("userId is required")
	}
	return nil
}

// translate 把 validator 的第一条错误转为领域校验错误
func translate(prefix string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("%s is invalid", prefix)
	}
	fe := verrs[0]
	field := prefix + "." + fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return domain.NewValidationError("%s is required", field)
	case "oneof":
		return domain.NewValidationError("%s must be one of [%s]", field, fe.Param())
	case "max":
		return domain.NewValidationError("%s must be at most %s characters", field, fe.Param())
	default:
		return domain.NewValidationError("%s is invalid", field)
	}
}
