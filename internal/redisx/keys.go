package redisx

import (
	"fmt"
	"time"
)

const (
	// Cart slot per session: cart:slot:{session_id} -> JSON array of line items
	KeyCartSlot = "cart:slot:%s"

	// Dedup notification delivery: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var TTLDedup = 48 * time.Hour

func CartSlotKey(sessionID string) string { return fmt.Sprintf(KeyCartSlot, sessionID) }

func DedupKey(service, eventID string) string { return fmt.Sprintf(KeyDedup, service, eventID) }
