// Package eventbus decouples the scheduler's reconciliation tick and the
// email delivery pipeline from their consumers. Publishers never block on a
// consumer: a crawl tick, a draft-ready notification, or a queued send is
// handed to the bus and the caller returns immediately.
//
// Two implementations share this interface: an in-process channel bus (the
// default) and a Kafka-backed bus for deployments that want durable queues
// and consumer groups across multiple processes.
package eventbus

import "context"

// Event is a single message published to a topic.
type Event struct {
	Topic   string
	Key     string
	Payload []byte
}

// Handler processes one event. Returning an error marks the event as a
// transient failure: the bus retries it with backoff before routing it to
// the topic's dead-letter queue.
type Handler func(ctx context.Context, evt Event) error

// Bus publishes events and runs a worker pool of handlers against a topic.
type Bus interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error

	// Subscribe starts workerCount goroutines consuming topic and calling
	// handler for each event. It blocks until ctx is canceled or an
	// unrecoverable setup error occurs.
	Subscribe(ctx context.Context, topic string, workerCount int, handler Handler) error

	Close() error
}

const (
	TopicCrawlTick  = "creatorpulse.crawl.tick"
	TopicDraftTick  = "creatorpulse.draft.tick"
	TopicEmailSend  = "creatorpulse.email.send"
	TopicDraftReady = "creatorpulse.draft.ready"
)
