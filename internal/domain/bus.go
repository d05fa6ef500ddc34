package domain

import (
	"context"
)

// EventBus defines the interface for outward notifications. The
// request cycle itself is strictly synchronous; the bus only carries
// alert events for interested subscribers (log sink, webhooks).
// Supports Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Alert topics published by the dashboards.
const (
	TopicChurnAlert    = "heron.churn.alert"     // high-risk prediction
	TopicIncidentAlert = "heron.incidents.alert" // unstable subsystem / SLA breach spike
)
