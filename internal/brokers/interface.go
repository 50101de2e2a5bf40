// Package brokers defines the transport boundary used to deliver notification
// batches. Implementations live in subpackages: rabbitmq for queue and topic
// endpoints, redis for broadcast endpoints and direct for in-process handlers.
package brokers

import (
	"time"

	"github.com/google/uuid"
)

// Broker publishes messages to one transport.
type Broker interface {
	Name() string
	Publish(message *Message) error
	Health() error
	Close() error
}

// BrokerConfig is implemented by every transport configuration.
type BrokerConfig interface {
	Validate() error
	GetConnectionString() string
	GetType() string
}

// Message is one outbound delivery. Queue targets a named queue or channel;
// Exchange and RoutingKey target a topic exchange.
type Message struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Headers    map[string]string
	Body       []byte
	Timestamp  time.Time
	MessageID  string
	Options    PublishOptions
}

// PublishOptions carries per-endpoint delivery settings.
type PublishOptions struct {
	Persistent bool
	TTL        time.Duration
}

// NewMessage creates a message with a fresh id and timestamp.
func NewMessage(body []byte) *Message {
	return &Message{
		Headers:   make(map[string]string),
		Body:      body,
		Timestamp: time.Now().UTC(),
		MessageID: uuid.NewString(),
	}
}

// BrokerInfo identifies a broker in health output.
type BrokerInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}
