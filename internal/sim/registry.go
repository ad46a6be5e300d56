package sim

import (
	"errors"
	"sync"
)

// ErrSimulationActive is returned when a match already has a live
// orchestrator; concurrent simulation or resimulation of the same match is
// rejected, never queued.
var ErrSimulationActive = errors.New("simulation already in progress for match")

// Registry is the only state shared between concurrent simulations: a
// match-id to orchestrator ownership map behind one narrow lock. No
// simulation logic runs while the lock is held.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Orchestrator
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Orchestrator)}
}

// Add claims the match id for an orchestrator.
func (r *Registry) Add(matchID string, o *Orchestrator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.active[matchID]; exists {
		return ErrSimulationActive
	}
	r.active[matchID] = o
	return nil
}

// Get returns the live orchestrator for a match, if any.
func (r *Registry) Get(matchID string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.active[matchID]
	return o, ok
}

// Remove releases the match id. Safe to call for ids never added.
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, matchID)
}

// Active reports whether a simulation currently owns the match id.
func (r *Registry) Active(matchID string) bool {
	_, ok := r.Get(matchID)
	return ok
}
