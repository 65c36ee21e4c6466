package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Manager holds independent named sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Add registers s under its name.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.Name()]; ok {
		return fmt.Errorf("session %q already registered", s.Name())
	}
	m.sessions[s.Name()] = s
	m.order = append(m.order, s.Name())
	return nil
}

// Create builds a session from cfg and registers it.
func (m *Manager) Create(cfg Config, opts ...Option) (*Session, error) {
	s, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Add(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get looks up a session by name.
func (m *Manager) Get(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[name]
	return s, ok
}

// Names lists sessions in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Run runs every registered session until ctx is done or one fails.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.order))
	for _, name := range m.order {
		list = append(list, m.sessions[name])
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range list {
		g.Go(func() error { return s.Run(gctx) })
	}
	return g.Wait()
}
