package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, nil)
	p.Start(context.Background())

	require.NoError(t, p.Publish([]byte("k1"), []byte("v1")))
	require.NoError(t, p.Publish([]byte("k2"), []byte("v2"), EventHeaders("CartNotice", 1)...))
	p.Close()
	p.WaitClosed()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "v2", string(w.msgs[1].Value))
	assert.Equal(t, "CartNotice", HeaderValue(w.msgs[1], HeaderEventType))
	assert.True(t, w.closed)
}

func TestProducerRejectsAfterClose(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, nil)
	p.Start(context.Background())
	p.Close()
	p.Close()
	p.WaitClosed()

	assert.ErrorIs(t, p.Publish(nil, []byte("late")), ErrProducerClosed)
}

func TestProducerReportsFullInbox(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, nil) // not started: nothing drains the inbox

	assert.NoError(t, p.Publish(nil, []byte("a")))
	assert.ErrorIs(t, p.Publish(nil, []byte("b")), ErrProducerBusy)
}

func TestProducerStopsWithContext(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	require.NoError(t, p.Publish(nil, []byte("a")))
	cancel()
	p.WaitClosed()

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.True(t, w.closed)
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []string
	fetchErr  error
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		r.mu.Unlock()
		return kafka.Message{}, r.fetchErr
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, string(m.Value))
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.committed...)
}

func runConsumer(ctx context.Context, c *Consumer, h Handler) <-chan error {
	result := make(chan error, 1)
	go func() { result <- c.Start(ctx, h) }()
	return result
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Partition: 0, Value: []byte("a-1")},
		{Partition: 1, Value: []byte("b-1")},
		{Partition: 0, Value: []byte("a-2")},
	}}
	c := newConsumer(r, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result := runConsumer(ctx, c, func(context.Context, kafka.Message) error { return nil })

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-result)
	assert.ElementsMatch(t, []string{"a-1", "b-1", "a-2"}, r.commits())
	assert.True(t, r.closed)
}

func TestConsumerRetriesTransientFailure(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Value: []byte("flaky")}}}
	c := newConsumer(r, 1, nil)
	c.backoff = time.Millisecond

	var mu sync.Mutex
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result := runConsumer(ctx, c, func(context.Context, kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("sink busy")
		}
		return nil
	})

	require.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-result)
	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()
}

func TestConsumerStopsCommittingAfterHandlerGivesUp(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 10, Value: []byte("ok-1")},
		{Offset: 11, Value: []byte("bad")},
		{Offset: 12, Value: []byte("ok-2")},
	}}
	c := newConsumer(r, 1, nil)
	c.retries = 1
	c.backoff = time.Millisecond

	var attempts atomic.Int32
	result := runConsumer(context.Background(), c, func(_ context.Context, m kafka.Message) error {
		if string(m.Value) == "bad" {
			attempts.Add(1)
			return errors.New("cannot handle")
		}
		return nil
	})

	select {
	case err := <-result:
		require.Error(t, err)
		assert.ErrorContains(t, err, "offset 11")
		assert.ErrorContains(t, err, "cannot handle")
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not halt")
	}
	assert.Equal(t, []string{"ok-1"}, r.commits(), "nothing past the failed offset is committed")
	assert.Equal(t, int32(2), attempts.Load())
	assert.True(t, r.closed)
}

func TestConsumerReturnsReaderError(t *testing.T) {
	r := &fakeReader{fetchErr: errors.New("broker gone")}
	err := newConsumer(r, 1, nil).Start(context.Background(), func(context.Context, kafka.Message) error { return nil })
	assert.EqualError(t, err, "broker gone")
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		Message string `json:"message"`
	}
	got, err := UnwrapPayload[payload](json.RawMessage(MustMarshal(payload{Message: "hi"})))
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Message)

	_, err = UnwrapPayload[payload](json.RawMessage(`[`))
	assert.Error(t, err)
}

func TestHeaderValue(t *testing.T) {
	m := kafka.Message{Headers: EventHeaders("CartNotice", 2)}

	assert.Equal(t, "CartNotice", HeaderValue(m, HeaderEventType))
	assert.Equal(t, "2", HeaderValue(m, HeaderEventVersion))
	assert.Equal(t, "", HeaderValue(m, "x-missing"))
}
