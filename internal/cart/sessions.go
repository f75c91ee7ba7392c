package cart

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// hydrateTimeout bounds the first slot read of a session, which runs detached
// from the request context.
const hydrateTimeout = 3 * time.Second

// OpenFunc builds the store for a session id, typically with a per-session
// slot key.
type OpenFunc func(ctx context.Context, sessionID string) *Store

// Sessions hands out one Store per session, hydrating it on first use.
// Hydration of different sessions runs in parallel; concurrent first
// requests for the same session share one hydration. A store whose slot read
// failed is handed out but not kept, so the next request hydrates again.
// TODO: evict stores that have been idle for a while; the slot already holds
// their state, so reopening is lossless.
type Sessions struct {
	mu     sync.Mutex
	stores map[string]*Store
	open   OpenFunc
	sfg    singleflight.Group
}

func NewSessions(open OpenFunc) *Sessions {
	return &Sessions{stores: map[string]*Store{}, open: open}
}

func (s *Sessions) Get(ctx context.Context, sessionID string) *Store {
	if st, ok := s.lookup(sessionID); ok {
		return st
	}
	v, _, _ := s.sfg.Do(sessionID, func() (any, error) {
		if st, ok := s.lookup(sessionID); ok {
			return st, nil
		}
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
		defer cancel()
		st := s.open(hctx, sessionID)
		if !st.Hydrated() {
			return st, nil
		}
		s.mu.Lock()
		s.stores[sessionID] = st
		s.mu.Unlock()
		return st, nil
	})
	return v.(*Store)
}

func (s *Sessions) lookup(sessionID string) (*Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[sessionID]
	return st, ok
}
