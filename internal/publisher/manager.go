package publisher

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Manager is the registry of platform publishers, keyed by platform name.
type Manager struct {
	publishers map[string]Publisher
	logger     *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		publishers: make(map[string]Publisher),
		logger:     logger,
	}
}

func (m *Manager) Register(publisher Publisher) error {
	name := publisher.Name()
	if _, exists := m.publishers[name]; exists {
		return fmt.Errorf("publisher for platform %s already registered", name)
	}

	m.publishers[name] = publisher
	m.logger.Info("Publisher registered", zap.String("platform", name))
	return nil
}

func (m *Manager) Get(name string) (Publisher, error) {
	publisher, exists := m.publishers[name]
	if !exists {
		return nil, fmt.Errorf("publisher for platform %s not found", name)
	}
	return publisher, nil
}

func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.publishers))
	for name := range m.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
