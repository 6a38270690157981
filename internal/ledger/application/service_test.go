package application

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/internal/ledger/infrastructure/persistence/memory"
	"github.com/wyfcoding/investledger/pkg/idgen"
)

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	ledgers  *LedgerStore
	plans    *PlanService
	transfer *TransferService
	funding  *FundingService
	payouts  *PayoutService
	profiles *ProfileService
	queries  *QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	ids, err := idgen.NewSnowflake(1)
	require.NoError(t, err)

	ledgers := NewLedgerStore(store, nil, ids, nil)
	f := &fixture{
		ctx:      ctx,
		store:    store,
		ledgers:  ledgers,
		plans:    NewPlanService(ledgers, store.Plans()),
		transfer: NewTransferService(ledgers),
		funding:  NewFundingService(ledgers),
		payouts:  NewPayoutService(store.PayoutAccounts(), ids),
		profiles: NewProfileService(ledgers, "USD"),
		queries:  NewQueryService(ledgers),
	}
	require.NoError(t, SeedPlans(ctx, store.Plans(), []*domain.PlanDefinition{
		{ID: "starter", Name: "Starter", Category: "energy", MinAmount: decimal.NewFromInt(100), MaxAmount: decimal.NewFromInt(999), ROIPercent: decimal.RequireFromString("1.5")},
		{ID: "gold", Name: "Gold", Category: "crypto", MinAmount: decimal.NewFromInt(1000), ROIPercent: decimal.RequireFromString("3")},
	}))
	return f
}

// register 注册用户并直接入账
func (f *fixture) register(t *testing.T, userID, username, wallet string) {
	t.Helper()
	_, err := f.profiles.Register(f.ctx, RegisterUserCommand{
		UserID:   userID,
		Username: username,
		Name:     username,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	if wallet == "0" {
		return
	}
	_, err = f.ledgers.ApplyLedgerUpdate(f.ctx, "seed", userID, func(_ *LedgerTx, l *domain.Ledger) error {
		l.Credit(decimal.RequireFromString(wallet))
		return nil
	})
	require.NoError(t, err)
}

func (f *fixture) ledger(t *testing.T, userID string) *domain.Ledger {
	t.Helper()
	l, err := f.store.Ledgers().Get(f.ctx, userID)
	require.NoError(t, err)
	return l
}

func (f *fixture) outboxTypes(t *testing.T) []string {
	t.Helper()
	msgs, err := f.store.Outbox().FetchPending(f.ctx, 100)
	require.NoError(t, err)
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		types = append(types, m.EventType)
	}
	return types
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestActivatePlan(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "alice", "1000")

	dto, err := f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: "starter", Amount: amt("500")})
	require.NoError(t, err)
	assert.Equal(t, "500", dto.WalletBal)
	assert.Equal(t, "500", dto.LockedBal)
	assert.True(t, dto.HasActivePlan)
	require.NotNil(t, dto.ActivePlan)
	assert.Equal(t, "active", dto.ActivePlan.Status)
	assert.Equal(t, 0, dto.ActivePlan.DaysCompleted)
	assert.Equal(t, "1.5", dto.ActivePlan.ROIPercent)

	assert.Contains(t, f.outboxTypes(t), domain.EventPlanActivated)
}

func TestActivatePlanRejections(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "alice", "300")

	_, err := f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: "starter", Amount: amt("500")})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: "nope", Amount: amt("200")})
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)

	_, err = f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: "starter", Amount: amt("50")})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "ghost", PlanID: "starter", Amount: amt("200")})
	assert.ErrorIs(t, err, domain.ErrLedgerNotFound)

	l := f.ledger(t, "u1")
	assert.True(t, l.WalletBal.Equal(amt("300")))
	assert.True(t, l.LockedBal.IsZero())
	assert.Nil(t, l.Plan)
	assert.NotContains(t, f.outboxTypes(t), domain.EventPlanActivated)
}

func TestDoubleActivation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "alice", "5000")

	_, err := f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: "starter", Amount: amt("500")})
	require.NoError(t, err)
	_, err = f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: "gold", Amount: amt("1000")})
	assert.ErrorIs(t, err, domain.ErrAlreadyHasActivePlan)

	l := f.ledger(t, "u1")
	assert.True(t, l.WalletBal.Equal(amt("4500")))
	assert.True(t, l.LockedBal.Equal(amt("500")))
}

func TestSecondActivationReportsActivePlanFirst(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "alice", "5000")

	_, err := f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: "starter", Amount: amt("500")})
	require.NoError(t, err)

	tests := []struct {
		name   string
		planID string
		amount string
	}{
		{"below plan minimum", "starter", "5"},
		{"above plan maximum", "starter", "2000"},
		{"unknown plan", "nope", "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: tt.planID, Amount: amt(tt.amount)})
			assert.ErrorIs(t, err, domain.ErrAlreadyHasActivePlan)
			assert.Equal(t, "ALREADY_HAS_ACTIVE_PLAN", domain.CodeOf(err))
		})
	}

	l := f.ledger(t, "u1")
	assert.True(t, l.WalletBal.Equal(amt("4500")))
	assert.True(t, l.LockedBal.Equal(amt("500")))
}

func TestManagePlanLifecycle(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "alice", "1000")
	_, err := f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: "starter", Amount: amt("500")})
	require.NoError(t, err)

	dto, err := f.plans.Manage(f.ctx, "u1", ActionPause)
	require.NoError(t, err)
	assert.Equal(t, "paused", dto.ActivePlan.Status)
	assert.False(t, dto.ActivePlan.IsActive)

	_, err = f.plans.Manage(f.ctx, "u1", ActionPause)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaused)

	dto, err = f.plans.Manage(f.ctx, "u1", ActionResume)
	require.NoError(t, err)
	assert.Equal(t, "active", dto.ActivePlan.Status)
	assert.Equal(t, "500", dto.WalletBal)

	dto, err = f.plans.Manage(f.ctx, "u1", ActionStop)
	require.NoError(t, err)
	assert.Equal(t, "1000", dto.WalletBal)
	assert.Equal(t, "0", dto.LockedBal)
	assert.False(t, dto.HasActivePlan)
	assert.Equal(t, "stopped", dto.ActivePlan.Status)

	dto, err = f.plans.Manage(f.ctx, "u1", ActionRestart)
	require.NoError(t, err)
	assert.Equal(t, "500", dto.WalletBal)
	assert.Equal(t, "500", dto.LockedBal)
	assert.True(t, dto.HasActivePlan)

	assert.Equal(t, []string{
		domain.EventPlanActivated,
		domain.EventPlanPaused,
		domain.EventPlanResumed,
		domain.EventPlanStopped,
		domain.EventPlanRestarted,
	}, f.outboxTypes(t))
}

func TestRestartCompletedPlan(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "alice", "1000")
	_, err := f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: "starter", Amount: amt("600")})
	require.NoError(t, err)

	_, err = f.plans.RestartCompleted(f.ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrAlreadyHasActivePlan)

	// 外部结算推进到期并释放本金
	_, err = f.ledgers.ApplyLedgerUpdate(f.ctx, "settle", "u1", func(_ *LedgerTx, l *domain.Ledger) error {
		l.Plan.DaysCompleted = domain.PlanTermDays
		l.LockedBal = decimal.Zero
		return nil
	})
	require.NoError(t, err)

	_, err = f.plans.RestartCompleted(f.ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	l := f.ledger(t, "u1")
	assert.True(t, l.WalletBal.Equal(amt("400")))
	assert.Equal(t, domain.PlanTermDays, l.Plan.DaysCompleted)

	_, err = f.ledgers.ApplyLedgerUpdate(f.ctx, "settle", "u1", func(_ *LedgerTx, l *domain.Ledger) error {
		l.Credit(amt("600"))
		return nil
	})
	require.NoError(t, err)

	dto, err := f.plans.RestartCompleted(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "400", dto.WalletBal)
	assert.Equal(t, "600", dto.LockedBal)
	assert.Equal(t, 0, dto.ActivePlan.DaysCompleted)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	f.register(t, "s1", "sender", "150")
	f.register(t, "r1", "Recipient", "50")

	res, err := f.transfer.Transfer(f.ctx, TransferCommand{SenderID: "s1", RecipientUsername: "recipient", Amount: amt("100")})
	require.NoError(t, err)
	assert.Equal(t, "r1", res.RecipientID)

	assert.True(t, f.ledger(t, "s1").WalletBal.Equal(amt("50")))
	assert.True(t, f.ledger(t, "r1").WalletBal.Equal(amt("150")))

	sent, total, err := f.store.History().ListByUser(f.ctx, "s1", 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, domain.HistoryWithdrawal, sent[0].Type)
	assert.Equal(t, domain.HistoryCompleted, sent[0].Status)
	assert.Equal(t, "r1", sent[0].Counterparty)

	received, total, err := f.store.History().ListByUser(f.ctx, "r1", 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, domain.HistoryCredit, received[0].Type)

	assert.Equal(t, []string{"transfer.completed"}, f.outboxTypes(t))
}

func TestTransferFailuresLeaveLedgersUntouched(t *testing.T) {
	f := newFixture(t)
	f.register(t, "s1", "sender", "150")
	f.register(t, "r1", "recipient", "50")

	tests := []struct {
		name string
		cmd  TransferCommand
		want error
		kind domain.ErrorKind
	}{
		{"unknown recipient", TransferCommand{SenderID: "s1", RecipientUsername: "nobody", Amount: amt("10")}, domain.ErrUnknownRecipient, domain.KindUnknownRecipient},
		{"insufficient funds", TransferCommand{SenderID: "s1", RecipientUsername: "recipient", Amount: amt("151")}, domain.ErrInsufficientFunds, domain.KindInsufficientFunds},
		{"zero amount", TransferCommand{SenderID: "s1", RecipientUsername: "recipient", Amount: decimal.Zero}, nil, domain.KindValidation},
		{"empty recipient", TransferCommand{SenderID: "s1", RecipientUsername: "  ", Amount: amt("10")}, domain.ErrUnknownRecipient, domain.KindUnknownRecipient},
		{"self transfer", TransferCommand{SenderID: "s1", RecipientUsername: "sender", Amount: amt("10")}, nil, domain.KindValidation},
		{"unknown sender", TransferCommand{SenderID: "ghost", RecipientUsername: "recipient", Amount: amt("10")}, domain.ErrSenderNotFound, domain.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.transfer.Transfer(f.ctx, tt.cmd)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, tt.kind, domain.KindOf(err))

			assert.True(t, f.ledger(t, "s1").WalletBal.Equal(amt("150")))
			assert.True(t, f.ledger(t, "r1").WalletBal.Equal(amt("50")))
			_, total, err := f.store.History().ListByUser(f.ctx, "s1", 10, 0)
			require.NoError(t, err)
			assert.Zero(t, total)
		})
	}
}

func TestTransferMissingRecipientLedger(t *testing.T) {
	f := newFixture(t)
	f.register(t, "s1", "sender", "150")
	// 只有资料没有账本
	require.NoError(t, f.store.Users().Create(f.ctx, &domain.UserProfile{UserID: "r2", Username: "orphan"}))

	_, err := f.transfer.Transfer(f.ctx, TransferCommand{SenderID: "s1", RecipientUsername: "orphan", Amount: amt("10")})
	assert.ErrorIs(t, err, domain.ErrRecipientNotFound)
	assert.True(t, f.ledger(t, "s1").WalletBal.Equal(amt("150")))
}

func TestTransferIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	f.register(t, "s1", "sender", "150")
	f.register(t, "r1", "recipient", "50")

	cmd := TransferCommand{SenderID: "s1", RecipientUsername: "recipient", Amount: amt("40"), TransferID: "t-123"}
	first, err := f.transfer.Transfer(f.ctx, cmd)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.transfer.Transfer(f.ctx, cmd)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, "r1", second.RecipientID)

	assert.True(t, f.ledger(t, "s1").WalletBal.Equal(amt("110")))
	assert.True(t, f.ledger(t, "r1").WalletBal.Equal(amt("90")))
	_, total, err := f.store.History().ListByUser(f.ctx, "s1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestTransferIDReusedWithDifferentTerms(t *testing.T) {
	f := newFixture(t)
	f.register(t, "s1", "sender", "500")
	f.register(t, "r1", "recipient", "0")
	f.register(t, "r2", "other", "0")

	_, err := f.transfer.Transfer(f.ctx, TransferCommand{SenderID: "s1", RecipientUsername: "recipient", Amount: amt("40"), TransferID: "t-1"})
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  TransferCommand
	}{
		{"different recipient and amount", TransferCommand{SenderID: "s1", RecipientUsername: "other", Amount: amt("100"), TransferID: "t-1"}},
		{"different recipient", TransferCommand{SenderID: "s1", RecipientUsername: "other", Amount: amt("40"), TransferID: "t-1"}},
		{"different amount", TransferCommand{SenderID: "s1", RecipientUsername: "recipient", Amount: amt("41"), TransferID: "t-1"}},
		{"unknown recipient", TransferCommand{SenderID: "s1", RecipientUsername: "nobody", Amount: amt("40"), TransferID: "t-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.transfer.Transfer(f.ctx, tt.cmd)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, domain.ErrTransferIDReused)
			assert.Equal(t, domain.KindDuplicate, domain.KindOf(err))
		})
	}

	assert.True(t, f.ledger(t, "s1").WalletBal.Equal(amt("460")))
	assert.True(t, f.ledger(t, "r1").WalletBal.Equal(amt("40")))
	assert.True(t, f.ledger(t, "r2").WalletBal.IsZero())
}

func TestTransferIDScopedPerSender(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a", "alpha", "100")
	f.register(t, "b", "bravo", "100")
	f.register(t, "r1", "recipient", "0")

	first, err := f.transfer.Transfer(f.ctx, TransferCommand{SenderID: "a", RecipientUsername: "recipient", Amount: amt("10"), TransferID: "k"})
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.transfer.Transfer(f.ctx, TransferCommand{SenderID: "b", RecipientUsername: "recipient", Amount: amt("25"), TransferID: "k"})
	require.NoError(t, err)
	assert.False(t, second.Replayed)

	assert.True(t, f.ledger(t, "a").WalletBal.Equal(amt("90")))
	assert.True(t, f.ledger(t, "b").WalletBal.Equal(amt("75")))
	assert.True(t, f.ledger(t, "r1").WalletBal.Equal(amt("35")))

	_, total, err := f.store.History().ListByUser(f.ctx, "r1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	f.register(t, "s1", "sender", "100")
	f.register(t, "r1", "recipient", "0")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.transfer.Transfer(f.ctx, TransferCommand{SenderID: "s1", RecipientUsername: "recipient", Amount: amt("10")})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.True(t, f.ledger(t, "s1").WalletBal.IsZero())
	assert.True(t, f.ledger(t, "r1").WalletBal.Equal(amt("100")))
}

func TestDepositRequest(t *testing.T) {
	f := newFixture(t)

	dto, err := f.funding.RequestDeposit(f.ctx, DepositRequestCommand{UserID: "u1", Name: "Alice", Email: "a@example.com", Amount: amt("250"), Crypto: "usdt"})
	require.NoError(t, err)
	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, "deposit", dto.Type)
	assert.Equal(t, "USDT", dto.SelectedWallet.Currency)

	msgs, err := f.store.Outbox().FetchPending(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "deposit.requested", msgs[0].EventType)
	assert.Equal(t, "u1", msgs[0].Key)

	var env struct {
		Data struct {
			Email   string `json:"email"`
			EntryID string `json:"entry_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &env))
	assert.Equal(t, "a@example.com", env.Data.Email)
	assert.Equal(t, dto.ID, env.Data.EntryID)

	_, err = f.funding.RequestDeposit(f.ctx, DepositRequestCommand{UserID: "u1", Amount: amt("10")})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestWithdrawRequest(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "alice", "300")
	wallet := &domain.SelectedWallet{Method: domain.MethodCrypto, Currency: "btc", WalletAddress: "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"}

	dto, err := f.funding.RequestWithdrawal(f.ctx, WithdrawRequestCommand{UserID: "u1", Name: "Alice", Amount: amt("120"), SelectedWallet: wallet})
	require.NoError(t, err)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "pending", dto.Status)
	assert.True(t, f.ledger(t, "u1").WalletBal.Equal(amt("180")))

	_, err = f.funding.RequestWithdrawal(f.ctx, WithdrawRequestCommand{UserID: "u1", Amount: amt("500"), SelectedWallet: wallet})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, f.ledger(t, "u1").WalletBal.Equal(amt("180")))

	_, err = f.funding.RequestWithdrawal(f.ctx, WithdrawRequestCommand{UserID: "u1", Amount: amt("10"), SelectedWallet: &domain.SelectedWallet{Method: domain.MethodBank}})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, total, err := f.store.History().ListByUser(f.ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "alice", "0")

	l := f.ledger(t, "u1")
	assert.Equal(t, "USD", l.Currency)
	assert.True(t, l.WalletBal.IsZero())

	_, err := f.profiles.Register(f.ctx, RegisterUserCommand{UserID: "u2", Username: "ALICE", Email: "x@example.com"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	// 资料与账本同时回滚
	_, err = f.store.Ledgers().Get(f.ctx, "u2")
	assert.ErrorIs(t, err, domain.ErrLedgerNotFound)

	_, err = f.profiles.Register(f.ctx, RegisterUserCommand{UserID: "u3", Username: "carol", Email: "not-an-email"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestSubmitKYC(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "alice", "0")

	dto, err := f.profiles.SubmitKYC(f.ctx, SubmitKYCCommand{UserID: "u1", DocumentType: "passport", DocumentURL: "https://files.example.com/kyc/u1.png"})
	require.NoError(t, err)
	assert.Equal(t, "pending", dto.KYCStatus)

	_, err = f.profiles.SubmitKYC(f.ctx, SubmitKYCCommand{UserID: "u1", DocumentType: "passport", DocumentURL: "not a url"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.profiles.SubmitKYC(f.ctx, SubmitKYCCommand{UserID: "ghost", DocumentType: "passport", DocumentURL: "https://files.example.com/x"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestPayoutAccounts(t *testing.T) {
	f := newFixture(t)

	saved, err := f.payouts.Save(f.ctx, SavePayoutAccountCommand{
		UserID: "u1",
		Label:  "main",
		Wallet: &domain.SelectedWallet{Method: domain.MethodBank, BankName: "ACME Bank", AccountNumber: "12345678", AccountName: "Alice"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.WalletID)

	updated, err := f.payouts.Update(f.ctx, SavePayoutAccountCommand{
		UserID:   "u1",
		WalletID: saved.WalletID,
		Wallet:   &domain.SelectedWallet{Method: domain.MethodCrypto, Currency: "eth", WalletAddress: "0x52908400098527886E0F7030069857D2E4169EE7"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ETH", updated.Currency)
	assert.Equal(t, "main", updated.Label)

	_, err = f.payouts.Update(f.ctx, SavePayoutAccountCommand{
		UserID:   "u1",
		WalletID: "missing",
		Wallet:   &domain.SelectedWallet{Method: domain.MethodBank, BankName: "ACME", AccountNumber: "9999"},
	})
	assert.ErrorIs(t, err, domain.ErrPayoutAccountNotFound)

	list, err := f.payouts.List(f.ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.payouts.Delete(f.ctx, "u1", saved.WalletID))
	list, err = f.payouts.List(f.ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1", "alice", "1000")
	_, err := f.plans.Activate(f.ctx, ActivatePlanCommand{UserID: "u1", PlanID: "starter", Amount: amt("200")})
	require.NoError(t, err)

	dto, err := f.queries.GetLedger(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "800", dto.WalletBal)
	assert.Equal(t, "ACTIVE", dto.ActivePlan.Phase)
	assert.Equal(t, "3", dto.ActivePlan.DailyReturn)

	for i := 0; i < 3; i++ {
		_, err := f.funding.RequestDeposit(f.ctx, DepositRequestCommand{UserID: "u1", Amount: amt("10"), Crypto: "BTC"})
		require.NoError(t, err)
	}
	page, err := f.queries.ListHistory(f.ctx, "u1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)

	plans, err := f.plans.ListPlans(f.ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "starter", plans[0].ID)
	assert.Empty(t, plans[1].MaxAmount)
}

func TestValidateSelectedWallet(t *testing.T) {
	tests := []struct {
		name    string
		wallet  *domain.SelectedWallet
		wantErr bool
	}{
		{"nil", nil, true},
		{"unknown method", &domain.SelectedWallet{Method: "paypal"}, true},
		{"crypto without address", &domain.SelectedWallet{Method: domain.MethodCrypto, Currency: "BTC"}, true},
		{"crypto short address", &domain.SelectedWallet{Method: domain.MethodCrypto, Currency: "BTC", WalletAddress: "abc"}, true},
		{"crypto ok", &domain.SelectedWallet{Method: "CRYPTO", Currency: "btc", WalletAddress: "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"}, false},
		{"bank without account", &domain.SelectedWallet{Method: domain.MethodBank, BankName: "ACME"}, true},
		{"bank ok", &domain.SelectedWallet{Method: domain.MethodBank, BankName: "ACME", AccountNumber: "000123456"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelectedWallet(tt.wallet)
			if tt.wantErr {
				assert.Equal(t, domain.KindValidation, domain.KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseManageAction(t *testing.T) {
	a, err := ParseManageAction(" Pause ")
	require.NoError(t, err)
	assert.Equal(t, ActionPause, a)

	_, err = ParseManageAction("delete")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
