package kafka

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ariefcatur/go-storefront-cart/internal/logx"
	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message was processed and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer delivers every message of a partition to the same worker, in
// offset order. A handler that still fails after its retries halts the
// consumer without committing, so the group redelivers from that offset.
type Consumer struct {
	r       messageReader
	workers int
	retries int
	backoff time.Duration
	log     *logx.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *logx.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log *logx.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logx.Nop()
	}
	return &Consumer{r: r, workers: workers, retries: 3, backoff: 200 * time.Millisecond, log: log}
}

// Start fetches messages and fans them out to the workers until ctx is done,
// the reader fails, or a handler gives up. Returns nil only on ctx cancel.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	runCtx, halt := context.WithCancel(ctx)
	defer halt()

	var (
		halted  atomic.Bool
		failure = make(chan error, 1)
		wg      sync.WaitGroup
	)
	lanes := make([]chan kafka.Message, c.workers)
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(lane <-chan kafka.Message) {
			defer wg.Done()
			for m := range lane {
				if halted.Load() {
					continue
				}
				if err := c.handle(runCtx, h, m); err != nil {
					if halted.CompareAndSwap(false, true) {
						failure <- fmt.Errorf("partition %d offset %d: %w", m.Partition, m.Offset, err)
						halt()
					}
					continue
				}
				if err := c.r.CommitMessages(runCtx, m); err != nil {
					c.log.Warn(runCtx, "kafka commit failed", err)
				}
			}
		}(lanes[i])
	}
	stop := func() {
		for _, lane := range lanes {
			close(lane)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(runCtx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			select {
			case herr := <-failure:
				return herr
			default:
			}
			return err
		}
		select {
		case lanes[int(m.Partition)%c.workers] <- m:
		case <-runCtx.Done():
			// the fetch loop notices on the next FetchMessage
		}
	}
}

// handle runs h with linear backoff between attempts.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) error {
	for attempt := 0; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return nil
		}
		if attempt >= c.retries {
			return err
		}
		c.log.Warn(ctx, "kafka handler failed, retrying", err)
		select {
		case <-time.After(c.backoff * time.Duration(attempt+1)):
		case <-ctx.Done():
			return err
		}
	}
}
