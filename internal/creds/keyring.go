package creds

import (
	"encoding/json"

	"github.com/zalando/go-keyring"

	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/logging"
)

// keyring service name under which all mappings are stored.
const keyringService = "navigator-credentials"

// keyring account under which the index of known keys is kept. The OS
// keyring has no enumeration API, so the index is stored as its own entry.
const keyringIndex = "index"

// KeyringStore wraps a MemoryStore with best-effort persistence to the OS
// keyring. Keyring failures degrade to memory-only operation: they are
// logged and never surfaced to the task.
type KeyringStore struct {
	mem    *MemoryStore
	logger *logging.Logger
}

// NewKeyringStore creates a store pre-loaded with any mappings previously
// persisted to the OS keyring.
func NewKeyringStore(logger *logging.Logger) *KeyringStore {
	s := &KeyringStore{mem: NewMemoryStore(), logger: logger}
	s.load()
	return s
}

// Authenticate implements Store.
func (s *KeyringStore) Authenticate(loc location.Location, mapping Mapping) location.Location {
	return s.mem.Authenticate(loc, mapping)
}

// MatchingCredentials implements Store.
func (s *KeyringStore) MatchingCredentials(loc location.Location) []Mapping {
	return s.mem.MatchingCredentials(loc)
}

// Add implements Store. The mapping is added to the in-memory store first so
// it is usable immediately even if the keyring write fails.
func (s *KeyringStore) Add(mapping Mapping) {
	if mapping.Guest || mapping.Credentials.IsEmpty() {
		return
	}
	s.mem.Add(mapping)
	s.persist(mapping)
}

func (s *KeyringStore) persist(mapping Mapping) {
	key := realmKey(mapping)
	if err := keyring.Set(keyringService, key, mapping.Credentials.Password); err != nil {
		s.logger.Warn().Err(err).Str("realm", Realm(mapping.Realm).String()).
			Msg("Keyring write failed, credentials kept in memory only")
		return
	}
	s.updateIndex(key)
}

func (s *KeyringStore) updateIndex(key string) {
	keys := s.readIndex()
	for _, k := range keys {
		if k == key {
			return
		}
	}
	keys = append(keys, key)
	raw, err := json.Marshal(keys)
	if err == nil {
		err = keyring.Set(keyringService, keyringIndex, string(raw))
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Keyring index update failed")
	}
}

func (s *KeyringStore) readIndex() []string {
	raw, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		return nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		s.logger.Warn().Err(err).Msg("Keyring index is corrupt, ignoring")
		return nil
	}
	return keys
}

func (s *KeyringStore) load() {
	for _, key := range s.readIndex() {
		realmStr, user, ok := splitRealmKey(key)
		if !ok {
			continue
		}
		realm, err := location.Parse(realmStr)
		if err != nil {
			continue
		}
		password, err := keyring.Get(keyringService, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("realm", realmStr).Msg("Keyring read failed")
			continue
		}
		s.mem.Add(Mapping{
			Credentials: location.Credentials{User: user, Password: password},
			Realm:       realm,
		})
	}
}
