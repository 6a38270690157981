package domain

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pkg/xerrors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPlan() *PlanDefinition {
	return &PlanDefinition{
		ID:         "gold",
		Name:       "Gold",
		Category:   "crypto",
		MinAmount:  dec("100"),
		MaxAmount:  dec("5000"),
		ROIPercent: dec("2.5"),
	}
}

func fundedLedger(wallet string) *Ledger {
	l := NewLedger("u1", "USD", time.Now())
	l.Credit(dec(wallet))
	return l
}

func assertBalances(t *testing.T, l *Ledger, wallet, locked string) {
	t.Helper()
	assert.True(t, l.WalletBal.Equal(dec(wallet)), "walletBal = %s, want %s", l.WalletBal, wallet)
	assert.True(t, l.LockedBal.Equal(dec(locked)), "lockedBal = %s, want %s", l.LockedBal, locked)
	require.NoError(t, l.CheckInvariants())
}

func TestActivateMovesPrincipalToLocked(t *testing.T) {
	l := fundedLedger("1000")

	require.NoError(t, l.Activate(testPlan(), dec("500"), time.Now()))

	assertBalances(t, l, "500", "500")
	require.NotNil(t, l.Plan)
	assert.Equal(t, PlanStatusActive, l.Plan.Status)
	assert.Equal(t, 0, l.Plan.DaysCompleted)
	assert.True(t, l.Plan.IsActive())
	assert.True(t, l.HasActivePlan())
	assert.Equal(t, PhaseActive, l.Phase())
}

func TestActivateRejections(t *testing.T) {
	tests := []struct {
		name   string
		wallet string
		amount string
		want   error
		kind   ErrorKind
	}{
		{"insufficient balance", "300", "500", ErrInsufficientBalance, KindInsufficientFunds},
		{"below plan minimum", "1000", "50", nil, KindValidation},
		{"above plan maximum", "10000", "6000", nil, KindValidation},
		{"zero amount", "1000", "0", nil, KindValidation},
		{"negative amount", "1000", "-5", nil, KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := fundedLedger(tt.wallet)
			err := l.Activate(testPlan(), dec(tt.amount), time.Now())
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, tt.kind, KindOf(err))
			assertBalances(t, l, tt.wallet, "0")
			assert.Nil(t, l.Plan)
		})
	}
}

func TestDoubleActivationRejected(t *testing.T) {
	l := fundedLedger("1000")
	require.NoError(t, l.Activate(testPlan(), dec("200"), time.Now()))

	// 第二次激活无论参数如何都应拒绝
	cheap := testPlan()
	cheap.MinAmount = decimal.Zero
	err := l.Activate(cheap, dec("1"), time.Now())
	assert.ErrorIs(t, err, ErrAlreadyHasActivePlan)
	assertBalances(t, l, "800", "200")

	require.NoError(t, l.Pause(time.Now()))
	err = l.Activate(cheap, dec("1"), time.Now())
	assert.ErrorIs(t, err, ErrAlreadyHasActivePlan)
}

func TestPauseResumeKeepsProgress(t *testing.T) {
	l := fundedLedger("1000")
	require.NoError(t, l.Activate(testPlan(), dec("500"), time.Now()))
	l.Plan.DaysCompleted = 3

	require.NoError(t, l.Pause(time.Now()))
	assert.Equal(t, PlanStatusPaused, l.Plan.Status)
	assert.False(t, l.Plan.IsActive())
	assert.Equal(t, PhasePaused, l.Phase())
	assert.ErrorIs(t, l.Pause(time.Now()), ErrAlreadyPaused)

	require.NoError(t, l.Resume(time.Now()))
	assert.Equal(t, PlanStatusActive, l.Plan.Status)
	assert.Equal(t, 3, l.Plan.DaysCompleted)
	assert.NotNil(t, l.Plan.PausedAt)
	assert.NotNil(t, l.Plan.ResumedAt)
	assert.ErrorIs(t, l.Resume(time.Now()), ErrNotPaused)
	assertBalances(t, l, "500", "500")
}

func TestStopRefundsLocked(t *testing.T) {
	l := fundedLedger("1000")
	require.NoError(t, l.Activate(testPlan(), dec("500"), time.Now()))
	l.Plan.DaysCompleted = 2

	require.NoError(t, l.Stop(time.Now()))

	assertBalances(t, l, "1000", "0")
	assert.Equal(t, PlanStatusStopped, l.Plan.Status)
	assert.False(t, l.HasActivePlan())
	assert.Equal(t, PhaseStopped, l.Phase())
	require.NotNil(t, l.Plan.StoppedDay)
	assert.Equal(t, 2, *l.Plan.StoppedDay)

	assert.ErrorIs(t, l.Stop(time.Now()), ErrNoActivePlan)
	assert.ErrorIs(t, l.Pause(time.Now()), ErrNoActivePlan)
	assert.ErrorIs(t, l.Resume(time.Now()), ErrNoActivePlan)
}

func TestStopFromPaused(t *testing.T) {
	l := fundedLedger("800")
	require.NoError(t, l.Activate(testPlan(), dec("300"), time.Now()))
	require.NoError(t, l.Pause(time.Now()))

	require.NoError(t, l.Stop(time.Now()))
	assertBalances(t, l, "800", "0")
}

func TestCompletedPlanTransitions(t *testing.T) {
	l := fundedLedger("1000")
	require.NoError(t, l.Activate(testPlan(), dec("500"), time.Now()))
	l.Plan.DaysCompleted = PlanTermDays

	assert.Equal(t, PhaseCompleted, l.Phase())
	assert.False(t, l.HasActivePlan())
	assert.ErrorIs(t, l.Pause(time.Now()), ErrAlreadyCompleted)
	assert.ErrorIs(t, l.Stop(time.Now()), ErrAlreadyCompleted)
	assert.ErrorIs(t, l.RestartAfterStop(time.Now()), ErrPlanNotRestartable)
}

func TestRestartAfterCompletion(t *testing.T) {
	l := fundedLedger("1000")
	require.NoError(t, l.Activate(testPlan(), dec("500"), time.Now()))
	l.Plan.DaysCompleted = PlanTermDays

	require.NoError(t, l.RestartAfterCompletion(time.Now()))

	// 上一期锁定额先退回再重新锁定
	assertBalances(t, l, "500", "500")
	assert.Equal(t, 0, l.Plan.DaysCompleted)
	assert.Equal(t, PlanStatusActive, l.Plan.Status)
	assert.Equal(t, PhaseActive, l.Phase())
}

func TestRestartAfterCompletionInsufficient(t *testing.T) {
	l := fundedLedger("600")
	require.NoError(t, l.Activate(testPlan(), dec("500"), time.Now()))
	l.Plan.DaysCompleted = PlanTermDays
	// 到期本金已由结算流程释放
	l.LockedBal = decimal.Zero

	err := l.RestartAfterCompletion(time.Now())
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assertBalances(t, l, "100", "0")
	assert.Equal(t, PlanTermDays, l.Plan.DaysCompleted)
}

func TestRestartPreconditions(t *testing.T) {
	empty := fundedLedger("1000")
	assert.ErrorIs(t, empty.RestartAfterCompletion(time.Now()), ErrNoPreviousPlan)
	assert.ErrorIs(t, empty.RestartAfterStop(time.Now()), ErrNoPreviousPlan)
	assert.ErrorIs(t, empty.Pause(time.Now()), ErrNoActivePlan)

	running := fundedLedger("1000")
	require.NoError(t, running.Activate(testPlan(), dec("500"), time.Now()))
	assert.ErrorIs(t, running.RestartAfterCompletion(time.Now()), ErrAlreadyHasActivePlan)
	assert.ErrorIs(t, running.RestartAfterStop(time.Now()), ErrAlreadyHasActivePlan)
}

func TestRestartAfterStop(t *testing.T) {
	l := fundedLedger("1000")
	require.NoError(t, l.Activate(testPlan(), dec("400"), time.Now()))
	l.Plan.DaysCompleted = 4
	require.NoError(t, l.Stop(time.Now()))
	assert.ErrorIs(t, l.RestartAfterCompletion(time.Now()), ErrPlanNotRestartable)

	require.NoError(t, l.RestartAfterStop(time.Now()))
	assertBalances(t, l, "600", "400")
	assert.Equal(t, 0, l.Plan.DaysCompleted)
	assert.Nil(t, l.Plan.StoppedAt)
	assert.Nil(t, l.Plan.StoppedDay)
	assert.True(t, l.HasActivePlan())
}

func TestRestartAfterStopInsufficient(t *testing.T) {
	l := fundedLedger("1000")
	require.NoError(t, l.Activate(testPlan(), dec("400"), time.Now()))
	require.NoError(t, l.Stop(time.Now()))
	require.NoError(t, l.Debit(dec("700")))

	assert.ErrorIs(t, l.RestartAfterStop(time.Now()), ErrInsufficientBalance)
	assertBalances(t, l, "300", "0")
	assert.Equal(t, PlanStatusStopped, l.Plan.Status)
}

func TestActivateAfterStopReplacesRecord(t *testing.T) {
	l := fundedLedger("1000")
	require.NoError(t, l.Activate(testPlan(), dec("400"), time.Now()))
	require.NoError(t, l.Stop(time.Now()))

	require.NoError(t, l.Activate(testPlan(), dec("250"), time.Now()))
	assertBalances(t, l, "750", "250")
	assert.True(t, l.Plan.Amount.Equal(dec("250")))
}

func TestDebitCredit(t *testing.T) {
	l := fundedLedger("150")
	assert.ErrorIs(t, l.Debit(dec("151")), ErrInsufficientFunds)
	assertBalances(t, l, "150", "0")

	require.NoError(t, l.Debit(dec("100")))
	assertBalances(t, l, "50", "0")
}

func TestCloneIsIndependent(t *testing.T) {
	l := fundedLedger("1000")
	require.NoError(t, l.Activate(testPlan(), dec("500"), time.Now()))
	require.NoError(t, l.Pause(time.Now()))

	cp := l.Clone()
	cp.Plan.Status = PlanStatusStopped
	*cp.Plan.PausedAt = time.Time{}

	assert.Equal(t, PlanStatusPaused, l.Plan.Status)
	assert.False(t, l.Plan.PausedAt.IsZero())
}

func TestPlanReturns(t *testing.T) {
	p := &PlanRecord{Amount: dec("1000"), ROIPercent: dec("2.5")}
	assert.True(t, p.DailyReturn().Equal(dec("25")))
	assert.True(t, p.ProjectedReturn().Equal(dec("175")))
}

func TestErrorClassification(t *testing.T) {
	wrapped := ErrLedgerNotFound.WithMessage("investment account %s not found", "u9")
	assert.ErrorIs(t, wrapped, ErrLedgerNotFound)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "LEDGER_NOT_FOUND", CodeOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, "INTERNAL", CodeOf(assert.AnError))
}

func TestErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{NewValidationError("amount is required"), http.StatusBadRequest},
		{ErrAlreadyPaused, http.StatusBadRequest},
		{ErrInsufficientFunds, http.StatusBadRequest},
		{ErrLedgerNotFound, http.StatusNotFound},
		{ErrUnknownRecipient, http.StatusUnprocessableEntity},
		{ErrUsernameTaken, http.StatusConflict},
		{ErrConflict, http.StatusInternalServerError},
		{ErrNegativeBalance, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}

	var xe *xerrors.Error
	require.True(t, errors.As(ErrConflict, &xe))
	assert.Equal(t, xerrors.ErrUnavailable, xe.Type)
	assert.Equal(t, "TX_CONFLICT", xe.Detail)
}
