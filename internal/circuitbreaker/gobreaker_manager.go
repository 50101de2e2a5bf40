package circuitbreaker

import (
	"context"
	"sort"
	"sync"

	"ingest-router/internal/common/logging"
)

// GoBreakerManager manages one breaker per name
type GoBreakerManager struct {
	breakers map[string]*GoBreakerAdapter
	config   Config
	logger   logging.Logger
	mu       sync.RWMutex
}

// NewGoBreakerManager creates a manager whose breakers use config
func NewGoBreakerManager(config Config, logger logging.Logger) *GoBreakerManager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &GoBreakerManager{
		breakers: make(map[string]*GoBreakerAdapter),
		config:   config,
		logger:   logger,
	}
}

// GetOrCreate gets an existing circuit breaker or creates a new one
func (m *GoBreakerManager) GetOrCreate(name string) *GoBreakerAdapter {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()
	if exists {
		return breaker
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}

	breaker = NewGoBreaker(name, m.config, m.logger)
	m.breakers[name] = breaker
	return breaker
}

// Get retrieves an existing circuit breaker by name
func (m *GoBreakerManager) Get(name string) (*GoBreakerAdapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	breaker, exists := m.breakers[name]
	return breaker, exists
}

// Execute executes a function with circuit breaker protection
func (m *GoBreakerManager) Execute(ctx context.Context, name string, fn func() error) error {
	return m.GetOrCreate(name).Execute(ctx, fn)
}

// AllStats returns statistics for all circuit breakers, sorted by name
func (m *GoBreakerManager) AllStats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]Stats, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		stats = append(stats, breaker.Stats())
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Name < stats[j].Name
	})

	return stats
}

// Retain drops breakers whose names are not in keep. Called after a
// notification reload so removed endpoints do not accumulate.
func (m *GoBreakerManager) Retain(keep []string) {
	wanted := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		wanted[name] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range m.breakers {
		if _, ok := wanted[name]; !ok {
			delete(m.breakers, name)
			m.logger.Debug("Circuit breaker removed", logging.Field{Key: "circuit_breaker", Value: name})
		}
	}
}
