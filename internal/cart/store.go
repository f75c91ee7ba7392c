package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ariefcatur/go-storefront-cart/internal/logx"
	"github.com/ariefcatur/go-storefront-cart/internal/metrics"
	"github.com/shopspring/decimal"
)

// DefaultKey is the slot key used when no WithKey option is given.
const DefaultKey = "cart"

const (
	opAdd    = "add"
	opRemove = "remove"
	opSet    = "set"
	opClear  = "clear"
)

// Store owns one cart. Every operation is serialised by mu, and every change
// to items is followed by a whole-cart write to the slot. Slot and notifier
// failures never reach the caller.
type Store struct {
	mu       sync.Mutex
	items    []LineItem
	key      string
	slot     Slot
	notifier Notifier
	log      *logx.Logger
	metrics  *metrics.Cart
	// stale is set while the last slot read failed; the next mutation
	// re-reads before writing so it cannot overwrite a cart it never saw.
	stale bool
}

type Option func(*Store)

func WithKey(key string) Option { return func(s *Store) { s.key = key } }

func WithLogger(l *logx.Logger) Option { return func(s *Store) { s.log = l } }

func WithMetrics(m *metrics.Cart) Option { return func(s *Store) { s.metrics = m } }

// NewStore builds a store and hydrates it from the slot. A nil notifier
// drops notifications.
func NewStore(ctx context.Context, slot Slot, notifier Notifier, opts ...Option) *Store {
	s := &Store{
		key:      DefaultKey,
		slot:     slot,
		notifier: notifier,
		log:      logx.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restore(ctx)
	return s
}

func (s *Store) restore(ctx context.Context) {
	raw, err := s.slot.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrSlotEmpty) {
			s.stale = true
			s.absorb(ctx, "read", err)
			return
		}
		s.stale = false
		return
	}
	s.stale = false
	items, err := decodeItems(raw)
	if err != nil {
		s.absorb(ctx, "decode", err)
		return
	}
	s.items = items
}

// AddProduct adds qty units of p, clamped to the product's stock. An
// existing line takes p as its new snapshot but keeps its unit price.
func (s *Store) AddProduct(ctx context.Context, p Product, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh(ctx)

	idx := s.indexOf(p.ID)
	if idx < 0 {
		q := p.clamp(qty)
		if q == 0 {
			return
		}
		it := LineItem{ProductID: p.ID, Product: p, UnitPrice: p.Price}
		it.setQuantity(q)
		s.items = append(s.items, it)
		s.changed(ctx, opAdd)
		return
	}

	it := &s.items[idx]
	it.Product = p
	q := p.clamp(addSat(it.Quantity, qty))
	if q == 0 {
		s.removeAt(ctx, idx)
		return
	}
	it.setQuantity(q)
	s.changed(ctx, opAdd)
}

// RemoveProduct drops the line for productID and notifies about it.
func (s *Store) RemoveProduct(ctx context.Context, productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh(ctx)

	if idx := s.indexOf(productID); idx >= 0 {
		s.removeAt(ctx, idx)
	}
}

// SetQuantity sets the quantity of an existing line, clamped to its stored
// stock. Zero removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh(ctx)

	idx := s.indexOf(productID)
	if idx < 0 {
		return
	}
	it := &s.items[idx]
	q := it.Product.clamp(qty)
	if q == 0 {
		s.removeAt(ctx, idx)
		return
	}
	it.setQuantity(q)
	s.changed(ctx, opSet)
}

// ClearCart empties the cart and deletes the slot. No notifications.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.stale = false
	s.metrics.Mutation(opClear)
	if err := s.slot.Remove(ctx, s.key); err != nil {
		s.absorb(ctx, "remove", err)
	}
}

func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) TotalItems() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalItems()
}

func (s *Store) TotalAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalAmount()
}

// Summary is a consistent view of the cart taken under one lock.
type Summary struct {
	Items       []LineItem      `json:"items"`
	TotalItems  int64           `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]LineItem, len(s.items))
	copy(items, s.items)
	return Summary{Items: items, TotalItems: s.totalItems(), TotalAmount: s.totalAmount()}
}

// BuildOrderItems projects the cart into order lines, in cart order.
func (s *Store) BuildOrderItems() []OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]OrderItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, Subtotal: it.Subtotal})
	}
	return out
}

func (s *Store) totalItems() int64 {
	var n int64
	for _, it := range s.items {
		n = addSat(n, it.Quantity)
	}
	return n
}

// addSat adds two quantities, pinning at the int64 bounds instead of
// wrapping.
func addSat(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

// refresh retries a failed hydration. Expects mu held.
func (s *Store) refresh(ctx context.Context) {
	if s.stale {
		s.restore(ctx)
	}
}

// Hydrated reports whether the last slot read succeeded (an empty slot
// counts as success).
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stale
}

func (s *Store) totalAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range s.items {
		sum = sum.Add(it.Subtotal)
	}
	return sum
}

func (s *Store) indexOf(productID int64) int {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// removeAt expects mu held.
func (s *Store) removeAt(ctx context.Context, idx int) {
	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.changed(ctx, opRemove)
	s.notify(ctx, fmt.Sprintf("%s was removed from the cart", removed.Product.label()))
}

func (s *Store) changed(ctx context.Context, op string) {
	s.metrics.Mutation(op)
	raw, err := encodeItems(s.items)
	if err != nil {
		s.absorb(ctx, "encode", err)
		return
	}
	if err := s.slot.Set(ctx, s.key, raw); err != nil {
		s.absorb(ctx, "write", err)
	}
}

func (s *Store) notify(ctx context.Context, msg string) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.metrics.NotifyFailure()
			s.log.Warn(ctx, "cart notifier panicked", fmt.Errorf("%v", r))
		}
	}()
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.metrics.NotifyFailure()
		s.log.Warn(ctx, "cart notification dropped", err)
	}
}

func (s *Store) absorb(ctx context.Context, op string, err error) {
	s.metrics.StorageFailure(op)
	s.log.Warn(s.log.WithField(ctx, "slot_key", s.key), "cart slot "+op+" failed", err)
}
