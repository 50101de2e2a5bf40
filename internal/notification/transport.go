package notification

import (
	"context"

	"ingest-router/internal/brokers"
	"ingest-router/internal/circuitbreaker"
	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
)

// Broker names each endpoint type is delivered through.
const (
	BrokerDirect    = "direct"
	BrokerRabbitMQ  = "rabbitmq"
	BrokerBroadcast = "redis"
)

func brokerFor(t EndpointType) string {
	switch t {
	case Queue, Topic:
		return BrokerRabbitMQ
	case Broadcast:
		return BrokerBroadcast
	default:
		return BrokerDirect
	}
}

type exchanger interface {
	Exchange() string
}

// BrokerTransport delivers batches through the brokers in a registry. Each
// endpoint publishes behind its own circuit breaker.
type BrokerTransport struct {
	brokers  *brokers.Registry
	breakers *circuitbreaker.GoBreakerManager
	logger   logging.Logger
}

// NewBrokerTransport creates a transport over registry. DIRECT endpoints use
// the broker named "direct", QUEUE and TOPIC endpoints "rabbitmq", and
// BROADCAST endpoints "redis".
func NewBrokerTransport(registry *brokers.Registry, breakers *circuitbreaker.GoBreakerManager, logger logging.Logger) *BrokerTransport {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if breakers == nil {
		breakers = circuitbreaker.NewGoBreakerManager(circuitbreaker.EndpointConfig, logger)
	}
	return &BrokerTransport{
		brokers:  registry,
		breakers: breakers,
		logger:   logger.WithFields(logging.Field{Key: "component", Value: "notification_transport"}),
	}
}

func (t *BrokerTransport) Supports(endpointType EndpointType) bool {
	return t.brokers.IsRegistered(brokerFor(endpointType))
}

// Deliver publishes payload to rule's endpoint. QUEUE, DIRECT and BROADCAST
// endpoints publish to a queue or channel named after the endpoint; TOPIC
// endpoints publish to the broker's topic exchange with the endpoint name as
// routing key.
func (t *BrokerTransport) Deliver(ctx context.Context, rule *Rule, payload []byte) error {
	broker, err := t.brokers.Get(brokerFor(rule.EndpointType))
	if err != nil {
		return errors.TransportError("no broker for endpoint type "+string(rule.EndpointType), err)
	}

	msg := brokers.NewMessage(payload)
	msg.Headers["endpoint"] = rule.EndpointName
	msg.Headers["format"] = string(rule.Format)
	msg.Options = brokers.PublishOptions{
		Persistent: rule.Durable && rule.EndpointType == Queue,
		TTL:        rule.TimeToLive(),
	}

	if rule.EndpointType == Topic {
		ex, ok := broker.(exchanger)
		if !ok {
			return errors.TransportError("broker "+broker.Name()+" has no topic exchange", nil)
		}
		msg.Exchange = ex.Exchange()
		msg.RoutingKey = rule.EndpointName
	} else {
		msg.Queue = rule.EndpointName
	}

	return t.breakers.Execute(ctx, rule.EndpointName, func() error {
		return broker.Publish(msg)
	})
}

// Retain drops circuit breakers for endpoints that are no longer loaded.
func (t *BrokerTransport) Retain(endpoints []string) {
	t.breakers.Retain(endpoints)
}

// Breakers returns the state of every endpoint circuit breaker.
func (t *BrokerTransport) Breakers() []circuitbreaker.Stats {
	return t.breakers.AllStats()
}
