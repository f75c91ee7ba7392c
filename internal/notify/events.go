package notify

import (
	"encoding/json"
	"time"
)

const (
	EventCartNotice = "CartNotice"

	TopicCartNotifications = "cart.notifications"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // cart session id
	Payload       json.RawMessage `json:"payload"`
}

type NoticePayload struct {
	Message string `json:"message"`
	Level   string `json:"level"` // info | warn
}

// PartitionKey keeps every notice of one session on one partition, in order.
func PartitionKey(sessionID string) []byte { return []byte(sessionID) }
