package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-storefront-cart/internal/cart"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, opts SlotOptions) (*Slot, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return NewSlot(client, opts), mr
}

func TestSlotGetMissingIsEmpty(t *testing.T) {
	slot, _ := setupTestRedis(t, SlotOptions{})

	_, err := slot.Get(context.Background(), CartSlotKey("nobody"))
	assert.ErrorIs(t, err, cart.ErrSlotEmpty)
}

func TestSlotSetGetRemove(t *testing.T) {
	slot, mr := setupTestRedis(t, SlotOptions{})
	ctx := context.Background()
	key := CartSlotKey("s1")

	require.NoError(t, slot.Set(ctx, key, `[]`))
	stored, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, `[]`, stored)

	got, err := slot.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `[]`, got)

	require.NoError(t, slot.Remove(ctx, key))
	assert.False(t, mr.Exists(key))
	assert.NoError(t, slot.Remove(ctx, key), "removing a missing key is fine")
}

func TestSlotTTL(t *testing.T) {
	slot, mr := setupTestRedis(t, SlotOptions{TTL: time.Hour})
	key := CartSlotKey("ttl")

	require.NoError(t, slot.Set(context.Background(), key, `[]`))
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestSlotBreakerOpensWhenRedisIsDown(t *testing.T) {
	slot, mr := setupTestRedis(t, SlotOptions{MaxFailures: 2, OpenFor: time.Minute})
	ctx := context.Background()
	mr.Close()

	for i := 0; i < 2; i++ {
		assert.Error(t, slot.Set(ctx, "k", "v"))
	}
	err := slot.Set(ctx, "k", "v")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCartRoundTripOverRedis(t *testing.T) {
	slot, mr := setupTestRedis(t, SlotOptions{})
	ctx := context.Background()
	key := CartSlotKey("round-trip")

	s := cart.NewStore(ctx, slot, nil, cart.WithKey(key))
	s.AddProduct(ctx, cart.Product{ID: 1, Name: "Mug", Price: decimal.NewFromInt(10), Stock: cart.StockOf(5)}, 3)
	s.AddProduct(ctx, cart.Product{ID: 2, Name: "Pen", Price: decimal.RequireFromString("7.5")}, 2)

	restored := cart.NewStore(ctx, slot, nil, cart.WithKey(key))
	assert.Equal(t, s.TotalItems(), restored.TotalItems())
	assert.True(t, s.TotalAmount().Equal(restored.TotalAmount()))
	require.Len(t, restored.Items(), 2)
	assert.Equal(t, int64(1), restored.Items()[0].ProductID)

	restored.ClearCart(ctx)
	assert.False(t, mr.Exists(key))
}

func TestCorruptRedisValueStartsEmpty(t *testing.T) {
	slot, mr := setupTestRedis(t, SlotOptions{})
	key := CartSlotKey("corrupt")
	require.NoError(t, mr.Set(key, `{"product_id":1}`))

	s := cart.NewStore(context.Background(), slot, nil, cart.WithKey(key))
	assert.Empty(t, s.Items())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cart:slot:abc", CartSlotKey("abc"))
	assert.Equal(t, "dedup:notifier:e1", DedupKey("notifier", "e1"))
}

func TestPing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, Ping(context.Background(), client))
	mr.Close()
	assert.Error(t, Ping(context.Background(), client))
}
