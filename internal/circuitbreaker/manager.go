package circuitbreaker

import (
	"context"
	"sort"
	"sync"

	"pipeline-hub/internal/common/logging"
)

// Manager lazily creates one breaker per name with a shared config.
type Manager struct {
	config   Config
	breakers map[string]*Breaker
	logger   logging.Logger
	mu       sync.Mutex
}

// NewManager creates a manager whose breakers all use config.
func NewManager(config Config, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Manager{
		config:   config,
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}
}

// Get returns the breaker for name, creating it on first use.
func (m *Manager) Get(name string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}

	breaker := New(name, m.config, m.logger)
	m.breakers[name] = breaker
	return breaker
}

// Execute runs fn behind the breaker for name.
func (m *Manager) Execute(ctx context.Context, name string, fn func() error) error {
	return m.Get(name).Execute(ctx, fn)
}

// AllStats returns statistics for every breaker, sorted by name.
func (m *Manager) AllStats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]Stats, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		stats = append(stats, breaker.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}
