package mongo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestMapTxError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"write conflict", mongo.CommandError{Code: codeWriteConflict, Name: "WriteConflict"}, domain.ErrConflict},
		{"transient label", fmt.Errorf("commit: %w", mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}), domain.ErrConflict},
		{"domain error kept", domain.ErrInsufficientFunds, domain.ErrInsufficientFunds},
		{"other server error", mongo.CommandError{Code: 11600, Name: "InterruptedAtShutdown"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapTxError(tt.err)
			if tt.want == nil {
				assert.Equal(t, tt.err, got)
				assert.False(t, errors.Is(got, domain.ErrConflict))
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestInvestmentDocBSON(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := domain.NewLedger("u1", "USD", now)
	l.Credit(decimal.RequireFromString("1200.123456789"))
	require.NoError(t, l.Activate(&domain.PlanDefinition{
		ID: "gold", Name: "Gold",
		MinAmount: decimal.NewFromInt(1000), ROIPercent: decimal.RequireFromString("3"),
	}, decimal.NewFromInt(1000), now))
	require.NoError(t, l.Pause(now.Add(time.Minute)))
	l.Version = 4

	raw, err := bson.Marshal(toInvestmentDoc(l))
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "u1", fields["_id"])
	assert.Contains(t, fields, "active_plan")

	var doc investmentDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.toDomain()

	// 金额按 8 位小数存储
	assert.True(t, got.WalletBal.Equal(decimal.RequireFromString("200.12345679")), got.WalletBal.String())
	assert.True(t, got.LockedBal.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, int64(4), got.Version)
	require.NotNil(t, got.Plan)
	assert.Equal(t, domain.PlanStatusPaused, got.Plan.Status)
	require.NotNil(t, got.Plan.PausedAt)
	assert.True(t, got.Plan.PausedAt.Equal(now.Add(time.Minute)))
}
