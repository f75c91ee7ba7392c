package notify

import (
	"context"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-cart/internal/kafka"
	"github.com/ariefcatur/go-storefront-cart/internal/logx"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

var _ publisher = (*kafkax.Producer)(nil)

// Publisher turns cart notices into envelopes on the notifications topic.
// One Publisher is bound to one cart session.
type Publisher struct {
	Producer  publisher
	Service   string
	SessionID string
}

func (p *Publisher) Notify(ctx context.Context, message string) error {
	payload := kafkax.MustMarshal(NoticePayload{Message: message, Level: "info"})
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventCartNotice,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		CorrelationID: p.SessionID,
		Payload:       payload,
	}
	err := p.Producer.Publish(PartitionKey(p.SessionID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(EventCartNotice, ev.EventVersion)...)
	if err != nil {
		return fmt.Errorf("publish cart notice: %w", err)
	}
	return nil
}

// Log writes notices straight to the logger. Used when Kafka is not wired.
type Log struct {
	Logger    *logx.Logger
	SessionID string
}

func (l *Log) Notify(ctx context.Context, message string) error {
	l.Logger.Info(l.Logger.WithField(ctx, "session_id", l.SessionID), "cart notice: "+message)
	return nil
}
