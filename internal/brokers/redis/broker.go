// Package redis delivers BROADCAST notification batches with Redis PUBLISH.
// Every subscriber on the endpoint's channel receives the batch; nothing is
// stored for subscribers that are not listening.
package redis

import (
	"context"

	"github.com/go-redis/redis/v8"

	"ingest-router/internal/brokers"
	"ingest-router/internal/brokers/base"
	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
)

// Broker implements brokers.Broker for Redis pub/sub.
type Broker struct {
	*base.BaseBroker
	client *redis.Client
	ctx    context.Context
}

// NewBroker validates config and pings the server.
func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("redis", config)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to connect to Redis", err)
	}

	return &Broker{
		BaseBroker: baseBroker,
		client:     client,
		ctx:        ctx,
	}, nil
}

// Publish sends the message body to the channel named by message.Queue.
func (b *Broker) Publish(message *brokers.Message) error {
	if b.client == nil {
		return errors.ConnectionError("Redis broker not connected", nil)
	}
	if message.Queue == "" {
		return errors.ValidationError("broadcast channel is required")
	}

	receivers, err := b.client.Publish(b.ctx, message.Queue, message.Body).Result()
	if err != nil {
		return errors.TransportError("failed to publish to Redis channel "+message.Queue, err)
	}

	b.GetLogger().Debug("Message broadcast on Redis channel",
		logging.Field{Key: "channel", Value: message.Queue},
		logging.Field{Key: "receivers", Value: receivers},
		logging.Field{Key: "message_id", Value: message.MessageID},
	)
	return nil
}

// Health sends a PING.
func (b *Broker) Health() error {
	if b.client == nil {
		return errors.ConnectionError("Redis client not initialized", nil)
	}
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return errors.ConnectionError("Redis ping failed", err)
	}
	return nil
}

// Close releases the connection pool.
func (b *Broker) Close() error {
	if b.client != nil {
		err := b.client.Close()
		b.client = nil
		return err
	}
	return nil
}
