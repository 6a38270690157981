package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflakeIDsAreUniqueAndPrefixed(t *testing.T) {
	gen, err := NewSnowflake(7)
	require.NoError(t, err)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen.NextID("HIS")
		assert.True(t, strings.HasPrefix(id, "HIS"))
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewSnowflakeRejectsBadNode(t *testing.T) {
	_, err := NewSnowflake(5000)
	assert.Error(t, err)
}
