package broker

import "context"

// Outcome is the explicit three-way result of handling one delivery. The
// subscriber acts on it; handlers never touch acknowledgment state directly.
type Outcome int

const (
	// Ack: the delivery is fully handled (or safely skipped) and must not
	// be redelivered.
	Ack Outcome = iota
	// Requeue: transient fault; retry the delivery.
	Requeue
	// DeadLetter: poison delivery; park it and never retry.
	DeadLetter
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case DeadLetter:
		return "dead-letter"
	default:
		return "unknown"
	}
}

// Delivery is one message handed to a Handler.
type Delivery struct {
	RoutingKey string
	Key        []byte
	Body       []byte
}

// Handler processes a delivery and reports what should happen to it.
type Handler func(ctx context.Context, d Delivery) Outcome

// Publisher sends payloads to the exchange under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, key, payload []byte) error
	Close() error
}

// Subscriber feeds queued deliveries to a handler until ctx is cancelled.
// A delivery is only removed from the queue once its outcome is final.
type Subscriber interface {
	Consume(ctx context.Context, h Handler) error
	Close() error
}
