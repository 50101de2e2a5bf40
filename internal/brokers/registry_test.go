package brokers_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest-router/internal/brokers"
	"ingest-router/internal/brokers/direct"
	"ingest-router/internal/common/errors"
)

type failingBroker struct {
	*direct.Broker
}

func (f failingBroker) Health() error { return fmt.Errorf("unreachable") }
func (f failingBroker) Close() error  { return fmt.Errorf("close failed") }

type anonymousBroker struct {
	brokers.Broker
}

func TestRegistry_InfoWithoutIdentity(t *testing.T) {
	r := brokers.NewRegistry()
	r.Register("custom", anonymousBroker{direct.NewBroker(nil)})

	assert.Equal(t, brokers.BrokerInfo{Name: "custom"}, r.Info()["custom"])
}

func TestRegistry(t *testing.T) {
	r := brokers.NewRegistry()
	d := direct.NewBroker(nil)
	r.Register("direct", d)
	r.Register("broadcast", failingBroker{direct.NewBroker(nil)})

	got, err := r.Get("direct")
	require.NoError(t, err)
	assert.Same(t, d, got)

	_, err = r.Get("queue")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	assert.True(t, r.IsRegistered("broadcast"))
	assert.Equal(t, []string{"broadcast", "direct"}, r.Names())

	health := r.Health()
	assert.NoError(t, health["direct"])
	assert.Error(t, health["broadcast"])

	info := r.Info()
	assert.Equal(t, brokers.BrokerInfo{Name: "direct", Type: "direct", URL: "direct://in-process"}, info["direct"])
	assert.Equal(t, "direct", info["broadcast"].Type, "embedded broker reports its own identity")

	assert.Error(t, r.Close())
	assert.Empty(t, r.Names())
	assert.Error(t, d.Health(), "registry closes its brokers")
}
