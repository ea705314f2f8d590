package nav

import (
	"sync"

	"github.com/dualpane/navigator/internal/location"
)

// LocationEvent is delivered to listeners on every lifecycle transition.
type LocationEvent struct {
	PanelID  string
	Location location.Location
}

// Listener observes a panel's location lifecycle. For one change attempt the
// callbacks arrive as LocationChanging followed by exactly one of
// LocationChanged, LocationCancelled or LocationFailed. Delivery is
// synchronous on the worker goroutine and in registration order; listeners
// that touch UI state must redispatch themselves.
type Listener interface {
	LocationChanging(e LocationEvent)
	LocationChanged(e LocationEvent)
	LocationCancelled(e LocationEvent)
	LocationFailed(e LocationEvent)
}

// listenerRegistry is an ordered fan-out set. Registration order is delivery
// order.
type listenerRegistry struct {
	mu        sync.Mutex
	listeners []Listener
}

func (r *listenerRegistry) register(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *listenerRegistry) unregister(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.listeners {
		if existing == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// snapshot returns the listeners registered at fire time.
func (r *listenerRegistry) snapshot() []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Listener, len(r.listeners))
	copy(out, r.listeners)
	return out
}
