package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-cart/internal/cart"
	"github.com/ariefcatur/go-storefront-cart/internal/logx"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// Slot stores cart snapshots in Redis. Calls go through a circuit breaker so
// a dead Redis costs one fast failure per mutation instead of a dial timeout.
type Slot struct {
	rdb redis.Cmdable
	ttl time.Duration
	cb  *gobreaker.CircuitBreaker[string]
}

type SlotOptions struct {
	TTL         time.Duration // 0 keeps keys forever
	MaxFailures uint32        // consecutive failures before the breaker opens
	OpenFor     time.Duration
	Log         *logx.Logger
}

func NewSlot(rdb redis.Cmdable, opts SlotOptions) *Slot {
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenFor == 0 {
		opts.OpenFor = 30 * time.Second
	}
	log := opts.Log
	if log == nil {
		log = logx.Nop()
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "cart-slot",
		Timeout: opts.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info(context.Background(), fmt.Sprintf("breaker %s: %s -> %s", name, from, to))
		},
	})
	return &Slot{rdb: rdb, ttl: opts.TTL, cb: cb}
}

func (s *Slot) Get(ctx context.Context, key string) (string, error) {
	v, err := s.cb.Execute(func() (string, error) {
		return s.rdb.Get(ctx, key).Result()
	})
	if errors.Is(err, redis.Nil) {
		return "", cart.ErrSlotEmpty
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *Slot) Set(ctx context.Context, key, value string) error {
	_, err := s.cb.Execute(func() (string, error) {
		return s.rdb.Set(ctx, key, value, s.ttl).Result()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Slot) Remove(ctx context.Context, key string) error {
	_, err := s.cb.Execute(func() (string, error) {
		return "", s.rdb.Del(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
