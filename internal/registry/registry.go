package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tinytelemetry/vigil/internal/model"
)

// ErrUnknownStream is matched by every UnknownStreamError.
var ErrUnknownStream = errors.New("unknown stream")

// UnknownStreamError reports an operation on an id outside the registry's fixed set.
type UnknownStreamError struct {
	ID string
}

func (e *UnknownStreamError) Error() string {
	return fmt.Sprintf("registry: unknown stream %q", e.ID)
}

func (e *UnknownStreamError) Unwrap() error { return ErrUnknownStream }

// csvUnsafe are characters that would corrupt the unescaped CSV export.
const csvUnsafe = ",\"\r\n"

// Registry maps a fixed set of stream ids to an active flag.
// Ids are set at construction and never added or removed.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	active map[string]bool
}

// New creates a registry with every stream inactive.
func New(ids []string) (*Registry, error) {
	if len(ids) == 0 {
		return nil, errors.New("registry: at least one stream id is required")
	}
	r := &Registry{
		order:  make([]string, 0, len(ids)),
		active: make(map[string]bool, len(ids)),
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, errors.New("registry: empty stream id")
		}
		if strings.ContainsAny(id, csvUnsafe) {
			return nil, fmt.Errorf("registry: stream id %q contains a CSV separator", id)
		}
		if _, dup := r.active[id]; dup {
			return nil, fmt.Errorf("registry: duplicate stream id %q", id)
		}
		r.order = append(r.order, id)
		r.active[id] = false
	}
	return r, nil
}

// Toggle flips the active flag for id.
func (r *Registry) Toggle(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.active[id]
	if !ok {
		return &UnknownStreamError{ID: id}
	}
	r.active[id] = !cur
	return nil
}

// Set assigns the active flag for id.
func (r *Registry) Set(id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[id]; !ok {
		return &UnknownStreamError{ID: id}
	}
	r.active[id] = active
	return nil
}

// SetAll assigns the same flag to every stream.
func (r *Registry) SetAll(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.active {
		r.active[id] = active
	}
}

// AllActive reports whether every stream is active.
func (r *Registry) AllActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, on := range r.active {
		if !on {
			return false
		}
	}
	return true
}

// IsActive returns the flag for id.
func (r *Registry) IsActive(id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	on, ok := r.active[id]
	if !ok {
		return false, &UnknownStreamError{ID: id}
	}
	return on, nil
}

// ActiveCount returns the number of active streams.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, on := range r.active {
		if on {
			n++
		}
	}
	return n
}

// ActiveIDs returns active stream ids in registration order.
func (r *Registry) ActiveIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.active[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// IDs returns every known stream id in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of known streams.
func (r *Registry) Len() int { return len(r.order) }

// States lists every stream with its flag in registration order.
func (r *Registry) States() []model.StreamState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	states := make([]model.StreamState, 0, len(r.order))
	for _, id := range r.order {
		states = append(states, model.StreamState{ID: id, Active: r.active[id]})
	}
	return states
}
