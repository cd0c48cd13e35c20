package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// KafkaBus publishes and consumes events through Kafka topics. Subscribe
// runs a bounded worker pool per topic, retrying transient handler errors
// with backoff before committing, and publishes to "<topic>.dlq" once
// retries are exhausted — the same shape as the crawl/scheduler consumer
// this package replaces.
type KafkaBus struct {
	brokers []string
	groupID string
	writer  *kafka.Writer
}

// NewKafkaBus constructs a bus that writes through a shared producer and
// reads each subscribed topic with its own consumer group reader.
func NewKafkaBus(brokers []string, groupID string) *KafkaBus {
	return &KafkaBus{
		brokers: brokers,
		groupID: groupID,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (b *KafkaBus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	return b.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
}

func (b *KafkaBus) Subscribe(ctx context.Context, topic string, workerCount int, handler Handler) error {
	if workerCount < 1 {
		workerCount = 1
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.brokers,
		GroupID:  b.groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("eventbus: error closing kafka reader")
		}
	}()

	jobCount := workerCount * 4
	if jobCount < 64 {
		jobCount = 64
	}
	jobs := make(chan kafka.Message, jobCount)

	done := make(chan struct{})
	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range jobs {
				evt := Event{Topic: topic, Key: string(msg.Key), Payload: msg.Value}
				b.handleWithRetry(ctx, evt, workerID, handler)
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Warn().Err(err).Str("topic", topic).Int64("offset", msg.Offset).Msg("eventbus: commit failed")
				}
			}
			done <- struct{}{}
		}(i)
	}

	go func() {
		defer close(jobs)
		for {
			if ctx.Err() != nil {
				return
			}
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				log.Warn().Err(err).Str("topic", topic).Msg("eventbus: fetch error")
				t := time.NewTimer(500 * time.Millisecond)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return
				}
				continue
			}
			select {
			case jobs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		<-done
	}
	return ctx.Err()
}

func (b *KafkaBus) handleWithRetry(ctx context.Context, evt Event, workerID int, handler Handler) {
	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := handler(ctx, evt); err != nil {
			lastErr = err
			if attempt < maxAttempts && ctx.Err() == nil {
				backoff := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
				log.Warn().Int("worker", workerID).Str("topic", evt.Topic).Int("attempt", attempt).
					Err(err).Msg("eventbus: transient handler error, retrying")
				sleepCtx, cancel := context.WithTimeout(ctx, backoff)
				<-sleepCtx.Done()
				cancel()
				continue
			}
			b.publishDLQ(ctx, evt, attempt, lastErr)
			return
		}
		return
	}
}

func (b *KafkaBus) publishDLQ(ctx context.Context, evt Event, attempts int, lastErr error) {
	dlqTopic := evt.Topic + ".dlq"
	msg := kafka.Message{
		Topic: dlqTopic,
		Key:   []byte(evt.Key),
		Value: evt.Payload,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(fmt.Sprintf("transient failure after %d attempts: %v", attempts, lastErr))},
		},
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Str("topic", dlqTopic).Msg("eventbus: failed to publish to dlq")
	}
}

func (b *KafkaBus) Close() error {
	return b.writer.Close()
}
