// Package rabbitmq publishes notification batches over AMQP. QUEUE endpoints
// publish to a named queue through the default exchange; TOPIC endpoints
// publish to a shared topic exchange keyed by endpoint name.
package rabbitmq

import (
	"strconv"

	"github.com/streadway/amqp"

	"ingest-router/internal/brokers"
	"ingest-router/internal/brokers/base"
	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
)

// Broker implements brokers.Broker for RabbitMQ.
type Broker struct {
	*base.BaseBroker
	pool ConnectionPoolInterface
}

// NewBroker validates config and dials the connection pool.
func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("rabbitmq", config)
	if err != nil {
		return nil, err
	}

	pool, err := NewConnectionPool(config.URL, config.PoolSize, baseBroker.GetLogger())
	if err != nil {
		return nil, errors.ConnectionError("failed to create RabbitMQ connection pool", err)
	}

	return &Broker{
		BaseBroker: baseBroker,
		pool:       pool,
	}, nil
}

// NewBrokerWithPool creates a broker with an injected connection pool (for testing)
func NewBrokerWithPool(config *Config, pool ConnectionPoolInterface) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("rabbitmq", config)
	if err != nil {
		return nil, err
	}

	return &Broker{
		BaseBroker: baseBroker,
		pool:       pool,
	}, nil
}

// Exchange returns the topic exchange name.
func (b *Broker) Exchange() string {
	return b.GetConfig().(*Config).Exchange
}

// Publish sends message to its queue, or to its exchange when Exchange is set.
func (b *Broker) Publish(message *brokers.Message) error {
	if err := base.StandardHealthCheck(b.pool, "RabbitMQ"); err != nil {
		return err
	}
	if message.Queue == "" && message.Exchange == "" {
		return errors.ValidationError("message has neither queue nor exchange")
	}

	client, err := b.pool.NewClient()
	if err != nil {
		return errors.ConnectionError("failed to get RabbitMQ client", err)
	}
	defer client.Close()

	publishing := toPublishing(message)

	if message.Exchange != "" {
		if err := client.ExchangeDeclare(message.Exchange, "topic", true, false, false, false, nil); err != nil {
			return errors.TransportError("failed to declare exchange "+message.Exchange, err)
		}
		if err := client.Publish(message.Exchange, message.RoutingKey, false, false, publishing); err != nil {
			return errors.TransportError("failed to publish to exchange "+message.Exchange, err)
		}
		b.GetLogger().Debug("Message published to RabbitMQ exchange",
			logging.Field{Key: "exchange", Value: message.Exchange},
			logging.Field{Key: "routing_key", Value: message.RoutingKey},
			logging.Field{Key: "message_id", Value: message.MessageID},
		)
		return nil
	}

	if _, err := client.QueueDeclare(message.Queue, message.Options.Persistent, false, false, false, nil); err != nil {
		return errors.TransportError("failed to declare queue "+message.Queue, err)
	}
	if err := client.Publish("", message.Queue, false, false, publishing); err != nil {
		return errors.TransportError("failed to publish to queue "+message.Queue, err)
	}
	b.GetLogger().Debug("Message published to RabbitMQ queue",
		logging.Field{Key: "queue", Value: message.Queue},
		logging.Field{Key: "message_id", Value: message.MessageID},
	)
	return nil
}

func toPublishing(message *brokers.Message) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range message.Headers {
		headers[k] = v
	}

	publishing := amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    message.MessageID,
		Timestamp:    message.Timestamp,
		Body:         message.Body,
	}
	if message.Options.Persistent {
		publishing.DeliveryMode = amqp.Persistent
	}
	if message.Options.TTL > 0 {
		publishing.Expiration = strconv.FormatInt(message.Options.TTL.Milliseconds(), 10)
	}
	return publishing
}

// Health opens a channel to verify the connection.
func (b *Broker) Health() error {
	if err := base.StandardHealthCheck(b.pool, "RabbitMQ"); err != nil {
		return err
	}

	client, err := b.pool.NewClient()
	if err != nil {
		return errors.ConnectionError("failed to get RabbitMQ client for health check", err)
	}
	client.Close()
	return nil
}

// Close closes all pooled connections.
func (b *Broker) Close() error {
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
	return nil
}
