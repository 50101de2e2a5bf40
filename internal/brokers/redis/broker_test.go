package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest-router/internal/brokers"
	"ingest-router/internal/common/errors"
)

func newTestBroker(t *testing.T) (*Broker, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)

	broker, err := NewBroker(&Config{Address: server.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { broker.Close() })
	return broker, server
}

func TestNewBroker(t *testing.T) {
	server := miniredis.RunT(t)

	tests := []struct {
		name    string
		config  *Config
		wantErr errors.ErrorType
	}{
		{
			name:   "valid config",
			config: &Config{Address: server.Addr()},
		},
		{
			name:    "missing address",
			config:  &Config{},
			wantErr: errors.ErrTypeConfig,
		},
		{
			name:    "unreachable server",
			config:  &Config{Address: "127.0.0.1:1", Timeout: 200 * time.Millisecond},
			wantErr: errors.ErrTypeConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker, err := NewBroker(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "redis", broker.Name())
			assert.NoError(t, broker.Close())
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{Address: "cache:6379", Password: "hunter2"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "redis://cache:6379/0", cfg.GetConnectionString())
	assert.NotContains(t, cfg.GetConnectionString(), "hunter2")
}

func TestPublish(t *testing.T) {
	broker, server := newTestBroker(t)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "radar-feed")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	msg := brokers.NewMessage([]byte(`{"endpoint":"radar-feed","identifiers":["x"]}`))
	msg.Queue = "radar-feed"
	require.NoError(t, broker.Publish(msg))

	select {
	case received := <-sub.Channel():
		assert.Equal(t, "radar-feed", received.Channel)
		assert.Equal(t, string(msg.Body), received.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast not received")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	broker, _ := newTestBroker(t)

	msg := brokers.NewMessage([]byte("{}"))
	msg.Queue = "nobody-listening"
	assert.NoError(t, broker.Publish(msg))
}

func TestPublishErrors(t *testing.T) {
	broker, server := newTestBroker(t)

	err := broker.Publish(brokers.NewMessage([]byte("{}")))
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	server.Close()
	msg := brokers.NewMessage([]byte("{}"))
	msg.Queue = "radar-feed"
	err = broker.Publish(msg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
}

func TestHealthAndClose(t *testing.T) {
	broker, server := newTestBroker(t)
	assert.NoError(t, broker.Health())

	server.Close()
	assert.Error(t, broker.Health())

	require.NoError(t, broker.Close())
	assert.True(t, errors.IsType(broker.Health(), errors.ErrTypeConnection))
	msg := brokers.NewMessage(nil)
	msg.Queue = "x"
	assert.True(t, errors.IsType(broker.Publish(msg), errors.ErrTypeConnection))
}
