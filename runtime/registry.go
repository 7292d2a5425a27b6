package runtime

import (
	"sync"

	"github.com/google/uuid"

	"stampchat/contract"
)

// Registry tracks the active viewer sinks per group. A viewer may watch
// several groups at once; each (group, viewer) pair holds its own sink,
// registered on subscribe and released on unsubscribe or drop.
type Registry struct {
	mu           sync.RWMutex
	GroupViewers map[uuid.UUID]map[string]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{
		GroupViewers: make(map[uuid.UUID]map[string]contract.EventSink),
	}
}

// SinksForGroup returns a snapshot copy of the active sinks for a group.
// Callers iterate it without holding the registry lock, so a slow delivery
// never blocks subscribes on other goroutines.
// Returns nil if the group has no viewers.
func (r *Registry) SinksForGroup(groupID uuid.UUID) map[string]contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	viewers, ok := r.GroupViewers[groupID]
	if !ok {
		return nil
	}
	sinks := make(map[string]contract.EventSink, len(viewers))
	for viewerID, sink := range viewers {
		sinks[viewerID] = sink
	}
	return sinks
}

// Subscribe registers a viewer's sink for a group, initializing the group
// entry on the fly. Subscribing twice replaces the previous sink.
func (r *Registry) Subscribe(viewerID string, groupID uuid.UUID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.GroupViewers[groupID]; !ok {
		r.GroupViewers[groupID] = make(map[string]contract.EventSink)
	}
	r.GroupViewers[groupID][viewerID] = sink
}

// Unsubscribe removes a viewer from a group. Safe to call multiple times;
// a no-op if the viewer is not subscribed. Empty group entries are removed
// to prevent the map growing forever.
func (r *Registry) Unsubscribe(viewerID string, groupID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	viewers, ok := r.GroupViewers[groupID]
	if !ok {
		return
	}
	delete(viewers, viewerID)
	if len(viewers) == 0 {
		delete(r.GroupViewers, groupID)
	}
}
