package brokers

import (
	"sort"
	"sync"

	"ingest-router/internal/common/errors"
)

// Registry holds the connected broker for each transport name.
type Registry struct {
	brokers map[string]Broker
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		brokers: make(map[string]Broker),
	}
}

// Register installs broker under name, replacing any previous one.
func (r *Registry) Register(name string, broker Broker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brokers[name] = broker
}

// Get returns the broker registered under name.
func (r *Registry) Get(name string) (Broker, error) {
	r.mu.RLock()
	broker, exists := r.brokers[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.NotFoundError("broker " + name)
	}
	return broker, nil
}

func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.brokers[name]
	return exists
}

// Names returns registered transport names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.brokers))
	for name := range r.brokers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Health runs every broker's health check. A nil value means healthy.
func (r *Registry) Health() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]error, len(r.brokers))
	for name, broker := range r.brokers {
		result[name] = broker.Health()
	}
	return result
}

// Info describes every broker that reports its identity. Brokers without a
// GetBrokerInfo method are listed by registered name only.
func (r *Registry) Info() map[string]BrokerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]BrokerInfo, len(r.brokers))
	for name, broker := range r.brokers {
		info := BrokerInfo{Name: name}
		if p, ok := broker.(interface{ GetBrokerInfo() BrokerInfo }); ok {
			info = p.GetBrokerInfo()
		}
		result[name] = info
	}
	return result
}

// Close closes every broker and returns the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for name, broker := range r.brokers {
		if err := broker.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.brokers, name)
	}
	return first
}
