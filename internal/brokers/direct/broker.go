// Package direct delivers DIRECT notification batches to handlers running in
// the same process. Endpoints without a handler fall back to a logging handler.
package direct

import (
	"sync"

	"ingest-router/internal/brokers"
	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
)

// HandlerFunc consumes one delivered message.
type HandlerFunc func(message *brokers.Message) error

// Config has no settings; it exists to satisfy brokers.BrokerConfig.
type Config struct{}

func (c *Config) Validate() error             { return nil }
func (c *Config) GetConnectionString() string { return "direct://in-process" }
func (c *Config) GetType() string             { return "direct" }

// Broker dispatches messages to handlers keyed by message.Queue.
type Broker struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	fallback HandlerFunc
	closed   bool
}

// NewBroker creates a broker whose fallback handler logs each delivery.
func NewBroker(logger logging.Logger) *Broker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Field{Key: "broker", Value: "direct"})

	return &Broker{
		handlers: make(map[string]HandlerFunc),
		fallback: func(message *brokers.Message) error {
			logger.Info("Direct notification delivered",
				logging.Field{Key: "endpoint", Value: message.Queue},
				logging.Field{Key: "message_id", Value: message.MessageID},
				logging.Field{Key: "bytes", Value: len(message.Body)},
			)
			return nil
		},
	}
}

func (b *Broker) Name() string {
	return "direct"
}

// GetBrokerInfo identifies the in-process broker in health output.
func (b *Broker) GetBrokerInfo() brokers.BrokerInfo {
	config := &Config{}
	return brokers.BrokerInfo{
		Name: b.Name(),
		Type: config.GetType(),
		URL:  config.GetConnectionString(),
	}
}

// Handle registers fn for endpoint. A nil fn removes the registration.
func (b *Broker) Handle(endpoint string, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn == nil {
		delete(b.handlers, endpoint)
		return
	}
	b.handlers[endpoint] = fn
}

// Publish calls the handler for message.Queue synchronously.
func (b *Broker) Publish(message *brokers.Message) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.ConnectionError("direct broker closed", nil)
	}
	fn, ok := b.handlers[message.Queue]
	if !ok {
		fn = b.fallback
	}
	b.mu.RUnlock()

	if err := fn(message); err != nil {
		return errors.TransportError("direct handler for "+message.Queue+" failed", err)
	}
	return nil
}

func (b *Broker) Health() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.ConnectionError("direct broker closed", nil)
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
