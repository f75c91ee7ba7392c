package notify

import (
	"context"
	"encoding/json"
	"fmt"

	kafkax "github.com/ariefcatur/go-storefront-cart/internal/kafka"
	"github.com/ariefcatur/go-storefront-cart/internal/logx"
	"github.com/ariefcatur/go-storefront-cart/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Sink is where a relayed notice ends up (a toast channel, a log, ...).
type Sink interface {
	Deliver(ctx context.Context, sessionID string, n NoticePayload) error
}

// Relay consumes notice envelopes, drops redeliveries by event id, and hands
// each notice to the sink once.
type Relay struct {
	Redis       redis.Cmdable
	Sink        Sink
	ServiceName string
	Log         *logx.Logger
}

// HandleNotice is installed as the consumer handler.
func (r *Relay) HandleNotice(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.HeaderValue(m, kafkax.HeaderEventType); t != "" && t != EventCartNotice {
		return nil
	}
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: log and let the offset move on
		r.Log.Warn(ctx, "undecodable notice envelope", err)
		return nil
	}
	if env.EventType != EventCartNotice {
		return nil
	}

	dkey := redisx.DedupKey(r.ServiceName, env.EventID)
	fresh, err := r.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup).Result()
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !fresh {
		return nil
	}

	n, err := kafkax.UnwrapPayload[NoticePayload](env.Payload)
	if err != nil {
		r.Log.Warn(ctx, "undecodable notice payload", err)
		return nil
	}
	if err := r.Sink.Deliver(ctx, env.CorrelationID, n); err != nil {
		// release the dedup key: the consumer retries, then halts uncommitted
		_ = r.Redis.Del(ctx, dkey).Err()
		return fmt.Errorf("deliver notice %s: %w", env.EventID, err)
	}
	return nil
}

// LogSink delivers notices to the structured log.
type LogSink struct{ Log *logx.Logger }

func (s LogSink) Deliver(ctx context.Context, sessionID string, n NoticePayload) error {
	ctx = s.Log.WithFields(ctx, map[string]any{"session_id": sessionID, "notice_level": n.Level})
	s.Log.Info(ctx, n.Message)
	return nil
}
