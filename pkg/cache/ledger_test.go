package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLedger(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis tests")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	ledger := NewEventLedger(rdb, time.Minute)
	id := "evt_" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(ctx, ledgerPrefix+id) })

	seen, err := ledger.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, ledger.Mark(ctx, id))
	seen, err = ledger.Seen(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)

	ttl, err := rdb.TTL(ctx, ledgerPrefix+id).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestNewRedisClientFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisClient(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestDefaultTTL(t *testing.T) {
	l := NewEventLedger(nil, 0)
	assert.Equal(t, DefaultLedgerTTL, l.ttl)
}
