package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/investledger/internal/ledger/domain"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRun 只生成 SQL 不执行，UPDATE 的影响行数恒为 0
func dryRun(t *testing.T, dialector gorm.Dialector) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(dialector, &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return gdb
}

func mysqlDryRun(t *testing.T) *gorm.DB {
	return dryRun(t, gormmysql.New(gormmysql.Config{
		DSN:                       "ledger:ledger@tcp(127.0.0.1:3306)/investledger?parseTime=true",
		SkipInitializeWithVersion: true,
	}))
}

func TestSaveWithoutMatchingVersionConflicts(t *testing.T) {
	s := NewStore(mysqlDryRun(t))
	l := domain.NewLedger("u1", "USD", time.Now())
	l.Version = 3

	err := s.Ledgers().Save(context.Background(), l)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, "TX_CONFLICT", domain.CodeOf(err))
	assert.Equal(t, int64(3), l.Version)
}

func TestOutboxRepoByDialect(t *testing.T) {
	my := NewStore(mysqlDryRun(t))
	assert.IsType(t, managedOutboxRepo{}, my.Outbox())
	require.NotNil(t, my.outbox)

	pg := NewStore(dryRun(t, postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 user=ledger password=ledger dbname=investledger sslmode=disable",
	})))
	assert.IsType(t, outboxRepo{}, pg.Outbox())
	assert.Nil(t, pg.outbox)
}

func TestManagedOutboxAppendAndFetch(t *testing.T) {
	ctx := context.Background()
	s := NewStore(mysqlDryRun(t))

	require.NoError(t, s.Outbox().Append(ctx, &domain.OutboxMessage{
		ID:        "evt-1",
		Topic:     "ledger.plan",
		Key:       "u1",
		EventType: domain.EventPlanActivated,
		Payload:   []byte(`{"id":"evt-1","type":"plan.activated"}`),
	}))

	msgs, err := s.Outbox().FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.Error(t, s.Outbox().MarkPublished(ctx, []string{"not-a-row-id"}))
	assert.NoError(t, s.Outbox().MarkPublished(ctx, nil))
}

func TestInvestmentModelMapping(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := domain.NewLedger("u1", "USD", now)
	l.Credit(decimal.RequireFromString("1000.25"))
	require.NoError(t, l.Activate(&domain.PlanDefinition{
		ID: "starter", Name: "Starter",
		MinAmount: decimal.NewFromInt(100), MaxAmount: decimal.NewFromInt(999),
		ROIPercent: decimal.RequireFromString("1.5"),
	}, decimal.NewFromInt(500), now))
	require.NoError(t, l.Stop(now.Add(time.Hour)))
	l.Version = 7

	got := toLedger(toInvestmentModel(l))
	assert.Equal(t, int64(7), got.Version)
	assert.True(t, got.WalletBal.Equal(l.WalletBal))
	require.NotNil(t, got.Plan)
	assert.Equal(t, domain.PlanStatusStopped, got.Plan.Status)
	assert.Equal(t, "Starter", got.Plan.PlanName)
	require.NotNil(t, got.Plan.StoppedDay)
	assert.Equal(t, 0, *got.Plan.StoppedDay)
	assert.Equal(t, domain.PhaseStopped, got.Phase())

	empty := toLedger(toInvestmentModel(domain.NewLedger("u2", "USD", now)))
	assert.Nil(t, empty.Plan)
}
