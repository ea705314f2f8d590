// Package creds provides the credentials store consumed by the navigation
// core. Credentials are looked up by realm: the Location of the server (or
// share) they were entered for, stripped of path specifics.
package creds

import (
	"sort"
	"strings"
	"sync"

	"github.com/dualpane/navigator/internal/location"
)

// Mapping pairs a set of credentials with the Location they originate from.
// Guest mappings are used for the current attempt only and are never
// persisted to the store.
type Mapping struct {
	Credentials location.Credentials
	Realm       location.Location
	Guest       bool
}

// Store is the credentials store collaborator of the change-folder task.
// Implementations must be safe for concurrent use: the store is shared
// across all panels.
type Store interface {
	// Authenticate returns a copy of loc carrying the mapping's credentials.
	// The store itself is not modified.
	Authenticate(loc location.Location, mapping Mapping) location.Location

	// MatchingCredentials returns stored mappings relevant to loc, best
	// match first.
	MatchingCredentials(loc location.Location) []Mapping

	// Add persists the mapping. Guest mappings are ignored.
	Add(mapping Mapping)
}

// Realm reduces a Location to its credentials realm: scheme and host with
// the root path, no credentials, no properties.
func Realm(loc location.Location) location.Location {
	return location.MustParse(loc.Scheme() + "://" + loc.Host() + "/")
}

// MemoryStore is an in-memory Store keyed by realm.
type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[string][]Mapping // realm string form -> mappings, insertion order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mappings: make(map[string][]Mapping)}
}

// Authenticate implements Store.
func (s *MemoryStore) Authenticate(loc location.Location, mapping Mapping) location.Location {
	return loc.WithCredentials(mapping.Credentials)
}

// MatchingCredentials implements Store. Mappings whose realm matches the
// location's realm are returned; exact user matches (location already names
// a user) sort first.
func (s *MemoryStore) MatchingCredentials(loc location.Location) []Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()

	realm := Realm(loc).String()
	stored := s.mappings[realm]
	if len(stored) == 0 {
		return nil
	}

	out := make([]Mapping, len(stored))
	copy(out, stored)
	if user := loc.Credentials().User; user != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Credentials.User == user && out[j].Credentials.User != user
		})
	}
	return out
}

// Add implements Store. An existing mapping with the same realm and user is
// replaced in place so re-entering a password updates rather than duplicates.
func (s *MemoryStore) Add(mapping Mapping) {
	if mapping.Guest || mapping.Credentials.IsEmpty() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	realm := Realm(mapping.Realm).String()
	for i, existing := range s.mappings[realm] {
		if existing.Credentials.User == mapping.Credentials.User {
			s.mappings[realm][i] = mapping
			return
		}
	}
	s.mappings[realm] = append(s.mappings[realm], mapping)
}

// snapshot returns all mappings for persistence.
func (s *MemoryStore) snapshot() []Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.mappings))
	for k := range s.mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Mapping
	for _, k := range keys {
		out = append(out, s.mappings[k]...)
	}
	return out
}

// GuestMapping builds a mapping marked as guest for the given location.
func GuestMapping(loc location.Location) Mapping {
	return Mapping{Realm: Realm(loc), Guest: true}
}

// realmKey builds the keyring account key for a mapping.
func realmKey(m Mapping) string {
	return Realm(m.Realm).String() + "|" + m.Credentials.User
}

// splitRealmKey is the inverse of realmKey.
func splitRealmKey(key string) (realm, user string, ok bool) {
	i := strings.LastIndex(key, "|")
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
