// Package history keeps the global record of visited locations, shared
// across all panels. The change task consults it for the browsable-container
// heuristic; registering the store as a location listener keeps it fed
// without any explicit call at commit sites.
package history

import (
	"sync"

	"github.com/dualpane/navigator/internal/constants"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/nav"
)

// Store is a bounded, ordered, deduplicated record of visited locations.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	visited  []location.Location // most recent last
}

// NewStore creates a store. capacity <= 0 uses the default.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = constants.HistoryCapacity
	}
	return &Store{capacity: capacity}
}

// Add records a visit. A location already present moves to the most recent
// position instead of duplicating; the oldest entry falls off at capacity.
func (s *Store) Add(loc location.Location) {
	if loc.IsZero() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.visited {
		if existing.SameResource(loc) {
			s.visited = append(s.visited[:i], s.visited[i+1:]...)
			break
		}
	}
	s.visited = append(s.visited, loc)
	if len(s.visited) > s.capacity {
		s.visited = s.visited[len(s.visited)-s.capacity:]
	}
}

// Contains reports whether loc was visited. Credentials and properties are
// ignored: the same folder visited with different credentials still counts.
func (s *Store) Contains(loc location.Location) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, existing := range s.visited {
		if existing.SameResource(loc) {
			return true
		}
	}
	return false
}

// Visited returns the visit record, most recent first.
func (s *Store) Visited() []location.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]location.Location, 0, len(s.visited))
	for i := len(s.visited) - 1; i >= 0; i-- {
		out = append(out, s.visited[i])
	}
	return out
}

// LocationChanged implements nav.Listener: every committed change is a
// visit.
func (s *Store) LocationChanged(e nav.LocationEvent) { s.Add(e.Location) }

// LocationChanging implements nav.Listener.
func (s *Store) LocationChanging(e nav.LocationEvent) {}

// LocationCancelled implements nav.Listener.
func (s *Store) LocationCancelled(e nav.LocationEvent) {}

// LocationFailed implements nav.Listener.
func (s *Store) LocationFailed(e nav.LocationEvent) {}
