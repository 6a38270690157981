package domain

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wyfcoding/pkg/xerrors"
)

// ErrorKind 错误分类，接口层据此映射状态码
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	// KindValidation 输入形状/范围不合法，未访问存储
	KindValidation
	// KindStateConflict 当前方案状态不允许该操作
	KindStateConflict
	// KindInsufficientFunds 余额不足
	KindInsufficientFunds
	// KindNotFound 账本、用户、方案等不存在
	KindNotFound
	// KindUnknownRecipient 收款用户名无法解析
	KindUnknownRecipient
	// KindDuplicate 唯一约束冲突（如用户名）
	KindDuplicate
	// KindTxConflict 乐观事务冲突，调用方需重新提交
	KindTxConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindNotFound:
		return "not_found"
	case KindUnknownRecipient:
		return "unknown_recipient"
	case KindDuplicate:
		return "duplicate"
	case KindTxConflict:
		return "tx_conflict"
	default:
		return "internal"
	}
}

// errorType 分类对应的通用错误类型，决定传输层状态码
func (k ErrorKind) errorType() xerrors.ErrorType {
	switch k {
	case KindValidation, KindStateConflict, KindInsufficientFunds, KindUnknownRecipient:
		return xerrors.ErrInvalidArg
	case KindNotFound:
		return xerrors.ErrNotFound
	case KindDuplicate:
		return xerrors.ErrAlreadyExists
	case KindTxConflict:
		return xerrors.ErrUnavailable
	default:
		return xerrors.ErrInternal
	}
}

// Error 领域错误，携带字符串错误码，状态码映射委托给 xerrors
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	base    *xerrors.Error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap 暴露底层 xerrors.Error
func (e *Error) Unwrap() error {
	return e.base
}

// Is 同 Code 的错误视为相等，便于对带上下文的副本使用 errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus 收款人无法解析使用 422，其余沿用 xerrors 的映射
func (e *Error) HTTPStatus() int {
	if e.Kind == KindUnknownRecipient {
		return http.StatusUnprocessableEntity
	}
	if e.base == nil {
		return http.StatusInternalServerError
	}
	return e.base.HTTPStatus()
}

// WithMessage 保留错误码与分类，替换对外消息
func (e *Error) WithMessage(format string, args ...any) *Error {
	return newError(e.Kind, e.Code, fmt.Sprintf(format, args...))
}

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: msg,
		base:    xerrors.New(kind.errorType(), 0, msg, code, nil),
	}
}

// 方案状态机错误
var (
	ErrAlreadyPaused        = newError(KindStateConflict, "ALREADY_PAUSED", "plan is already paused")
	ErrNotPaused            = newError(KindStateConflict, "NOT_PAUSED", "plan is not paused")
	ErrAlreadyCompleted     = newError(KindStateConflict, "ALREADY_COMPLETED", "plan has already completed its term")
	ErrNoActivePlan         = newError(KindStateConflict, "NO_ACTIVE_PLAN", "no active plan")
	ErrNoPreviousPlan       = newError(KindStateConflict, "NO_PREVIOUS_PLAN", "no previous plan to restart")
	ErrAlreadyHasActivePlan = newError(KindStateConflict, "ALREADY_HAS_ACTIVE_PLAN", "user already has an active plan")
	ErrPlanNotRestartable   = newError(KindStateConflict, "PLAN_NOT_RESTARTABLE", "plan cannot be restarted in its current state")
	ErrInsufficientBalance  = newError(KindInsufficientFunds, "INSUFFICIENT_BALANCE", "insufficient wallet balance")
)

// 转账与资金错误
var (
	ErrInsufficientFunds = newError(KindInsufficientFunds, "INSUFFICIENT_FUNDS", "Insufficient funds")
	ErrUnknownRecipient  = newError(KindUnknownRecipient, "UNKNOWN_RECIPIENT", "recipient username is not valid")
	ErrSenderNotFound    = newError(KindNotFound, "SENDER_NOT_FOUND", "sender account not found")
	ErrRecipientNotFound = newError(KindNotFound, "RECIPIENT_NOT_FOUND", "recipient account not found")
	ErrTransferIDReused  = newError(KindDuplicate, "TRANSFER_ID_REUSED", "transferId was already used for a different transfer")
)

// 存储相关错误
var (
	ErrLedgerNotFound        = newError(KindNotFound, "LEDGER_NOT_FOUND", "investment account not found")
	ErrPlanNotFound          = newError(KindNotFound, "PLAN_NOT_FOUND", "plan not found")
	ErrUserNotFound          = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrPayoutAccountNotFound = newError(KindNotFound, "PAYMENT_ACCOUNT_NOT_FOUND", "payment account not found")
	ErrUsernameTaken         = newError(KindDuplicate, "USERNAME_TAKEN", "username is already taken")
	ErrLedgerExists          = newError(KindDuplicate, "LEDGER_EXISTS", "investment account already exists")
	ErrConflict              = newError(KindTxConflict, "TX_CONFLICT", "concurrent update detected, please retry")
	ErrDuplicateHistory      = newError(KindDuplicate, "DUPLICATE_HISTORY", "history entry already exists")
	ErrUserExists            = newError(KindDuplicate, "USER_EXISTS", "user already registered")
	ErrKYCAlreadyApproved    = newError(KindStateConflict, "KYC_ALREADY_APPROVED", "KYC has already been approved")
	ErrNegativeBalance       = newError(KindInternal, "NEGATIVE_BALANCE", "ledger balance would become negative")
)

// NewValidationError 构造输入校验错误
func NewValidationError(format string, args ...any) *Error {
	return newError(KindValidation, "VALIDATION_FAILED", fmt.Sprintf(format, args...))
}

// KindOf 返回错误分类，非领域错误视为内部错误
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf 返回错误码
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL"
}
