package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MemoryBus is an in-process fan-out bus backed by buffered channels, one
// per topic. It is the default bus when Kafka is not configured: the
// scheduler and email sender still get retry-with-backoff and a dead-letter
// topic, just without cross-process durability.
type MemoryBus struct {
	mu     sync.Mutex
	topics map[string]chan Event
	closed bool
}

// NewMemoryBus constructs an empty bus. Topics are created lazily on first
// Publish or Subscribe.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{topics: make(map[string]chan Event)}
}

func (b *MemoryBus) topic(name string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan Event, 256)
		b.topics[name] = ch
	}
	return ch
}

func (b *MemoryBus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("eventbus: closed")
	}
	b.mu.Unlock()

	ch := b.topic(topic)
	select {
	case ch <- Event{Topic: topic, Key: key, Payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe starts workerCount goroutines pulling from topic's channel. A
// handler that keeps failing is tried up to 3 times in all (two retries,
// after 200ms and 400ms backoff), then routed to the "<topic>.dlq" channel
// for later inspection.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string, workerCount int, handler Handler) error {
	if workerCount < 1 {
		workerCount = 1
	}
	ch := b.topic(topic)
	dlq := b.topic(topic + ".dlq")

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case evt, ok := <-ch:
					if !ok {
						return
					}
					b.handle(ctx, evt, dlq, handler, workerID)
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func (b *MemoryBus) handle(ctx context.Context, evt Event, dlq chan Event, handler Handler, workerID int) {
	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := handler(ctx, evt); err != nil {
			lastErr = err
			if attempt < maxAttempts && ctx.Err() == nil {
				backoff := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
				log.Warn().Int("worker", workerID).Str("topic", evt.Topic).Int("attempt", attempt).
					Dur("backoff", backoff).Err(err).Msg("eventbus: transient handler error, retrying")
				t := time.NewTimer(backoff)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return
				}
				continue
			}
			break
		}
		return
	}
	log.Error().Str("topic", evt.Topic).Err(lastErr).Msg("eventbus: retries exhausted, routing to dlq")
	select {
	case dlq <- evt:
	default:
		log.Error().Str("topic", evt.Topic).Msg("eventbus: dlq full, dropping event")
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, ch := range b.topics {
		close(ch)
	}
	return nil
}
