package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/internal/ledger/infrastructure/persistence/memory"
	"github.com/wyfcoding/investledger/pkg/metrics"
)

type sent struct {
	topic, key string
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []sent
	failAt int
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAt > 0 && len(p.sent)+1 == p.failAt {
		p.failAt = 0
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, sent{topic: topic, key: key})
	return nil
}

func seedOutbox(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Outbox().Append(context.Background(), &domain.OutboxMessage{
			ID:        fmt.Sprintf("m%d", i),
			Topic:     domain.TopicTransfer,
			Key:       fmt.Sprintf("u%d", i),
			Payload:   []byte(`{}`),
			CreatedAt: time.Now(),
		}))
	}
}

func TestRelayOncePublishesInOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedOutbox(t, store, 3)
	pub := &fakePublisher{}
	relay := NewRelay(store.Outbox(), pub, RelayConfig{BatchSize: 10, TopicPrefix: "investledger"}, metrics.New("relay_test"))

	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.sent, 3)
	assert.Equal(t, sent{topic: "investledger.transfer", key: "u0"}, pub.sent[0])
	assert.Equal(t, "u2", pub.sent[2].key)

	pending, err := store.Outbox().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRelayStopsAtFailureAndRetries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedOutbox(t, store, 3)
	pub := &fakePublisher{failAt: 2}
	relay := NewRelay(store.Outbox(), pub, RelayConfig{BatchSize: 10}, nil)

	n, err := relay.RelayOnce(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)

	pending, err := store.Outbox().FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "m1", pending[0].ID)

	n, err = relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"u0", "u1", "u2"}, []string{pub.sent[0].key, pub.sent[1].key, pub.sent[2].key})
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store, 1)
	pub := &fakePublisher{}
	relay := NewRelay(store.Outbox(), pub, RelayConfig{PollInterval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := store.Outbox().CountPending(context.Background())
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
