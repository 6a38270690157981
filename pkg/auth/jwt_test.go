package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("s3cret", "auth.investledger")
	token, err := v.Sign("user-1", time.Minute)
	require.NoError(t, err)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("s3cret", "auth.investledger")

	_, err := v.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)

	expired, err := v.Sign("user-1", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewVerifier("other", "auth.investledger").Sign("user-1", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewVerifier("s3cret", "someone-else").Sign("user-1", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
