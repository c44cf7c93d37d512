package purchase

import (
	"sync"
	"time"

	"raplifeBack/internal/billing"
)

// Manager hands out one Pipeline per player and keeps it for the lifetime of
// the process. Pipelines are cheap; they hold no connection of their own.
type Manager struct {
	adapter  billing.Adapter
	ledger   Ledger
	notifier Notifier
	logger   Logger
	now      func() time.Time

	mu        sync.Mutex
	pipelines map[int]*Pipeline
}

func NewManager(adapter billing.Adapter, ledger Ledger, notifier Notifier, logger Logger) *Manager {
	return &Manager{
		adapter:   adapter,
		ledger:    ledger,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		pipelines: make(map[int]*Pipeline),
	}
}

// SetClock replaces the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Pipeline returns the player's pipeline, creating it on first use.
func (m *Manager) Pipeline(playerID int) *Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pipelines[playerID]; ok {
		return p
	}
	p := newPipeline(playerID, m.adapter, m.ledger, m.notifier, m.logger, func() time.Time { return m.now() })
	m.pipelines[playerID] = p
	return p
}
