package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront-cart/internal/logx"
	"github.com/segmentio/kafka-go"
)

var (
	ErrProducerBusy   = errors.New("kafka: producer inbox full")
	ErrProducerClosed = errors.New("kafka: producer closed")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages in an inbox and writes them from one goroutine.
// Publish never blocks: a full inbox or a closed producer is reported back.
type Producer struct {
	w         messageWriter
	inbox     chan kafka.Message
	quit      chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
	log       *logx.Logger
}

func NewProducer(brokers []string, topic string, buf int, log *logx.Logger) *Producer {
	if log == nil {
		log = logx.Nop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn(context.Background(), "kafka async write failed", err)
			}
		},
	}
	return newProducer(w, buf, log)
}

func newProducer(w messageWriter, buf int, log *logx.Logger) *Producer {
	return &Producer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		quit:    make(chan struct{}),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case <-p.quit:
				p.drain()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) error {
	select {
	case <-p.quit:
		return ErrProducerClosed
	default:
	}
	m := kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}
	select {
	case p.inbox <- m:
		return nil
	default:
		return ErrProducerBusy
	}
}

// Close stops accepting messages; the loop flushes what is buffered.
func (p *Producer) Close() { p.closeOnce.Do(func() { close(p.quit) }) }

// WaitClosed blocks until the loop has flushed and closed the writer.
func (p *Producer) WaitClosed() { <-p.closeCh }

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.log.Warn(context.Background(), "kafka writer close", err)
			}
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Warn(context.Background(), "kafka write failed", err)
	}
}
