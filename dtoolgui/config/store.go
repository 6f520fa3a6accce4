package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	internal "github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui"

	"github.com/armon/go-radix"
	"github.com/bytedance/sonic"
)

// Store is the single writer of the persisted dtool config file.
// All mutations go through it; each one is saved atomically and announced on the broker.
type Store struct {
	mu        sync.RWMutex
	path      string
	tree      *radix.Tree // key -> string value, ordered for prefix walks
	broker    *Broker
	lastSaved []byte
}

// NewStore creates a store for the JSON config file at path.
// An empty path selects the default dtool config location.
func NewStore(path string, broker *Broker) *Store {
	if path == "" {
		path = internal.DefaultDtoolConfigFile
	}
	if broker == nil {
		broker = NewBroker()
	}
	return &Store{
		path:   path,
		tree:   radix.New(),
		broker: broker,
	}
}

// Path returns the config file location
func (s *Store) Path() string {
	return s.path
}

// Broker returns the broker the store publishes to
func (s *Store) Broker() *Broker {
	return s.broker
}

// Load reads the config file. A missing file yields an empty config.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.loadLocked()
	return err
}

// Reload re-reads the file and reports whether its content differs from what
// the store last saved or loaded.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			changed := s.tree.Len() > 0
			s.tree = radix.New()
			s.lastSaved = nil
			return changed, nil
		}
		return false, fmt.Errorf("failed to read config file %s: %w", s.path, err)
	}

	if bytes.Equal(data, s.lastSaved) {
		return false, nil
	}

	raw := make(map[string]any)
	if len(bytes.TrimSpace(data)) > 0 {
		if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
			return false, fmt.Errorf("failed to parse config file %s: %w", s.path, err)
		}
	}

	tree := radix.New()
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			tree.Insert(k, val)
		case nil:
			tree.Insert(k, "")
		default:
			// dtool writes strings only, but hand-edited files may carry numbers or booleans
			tree.Insert(k, fmt.Sprint(val))
		}
	}

	s.tree = tree
	s.lastSaved = data
	slog.Debug("Loaded dtool config", "path", s.path, "keys", tree.Len())
	return true, nil
}

// Get returns the value stored under key
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.tree.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// GetDefault returns the value under key or def when it is missing or empty
func (s *Store) GetDefault(key, def string) string {
	if v, ok := s.Get(key); ok && v != "" {
		return v
	}
	return def
}

// Keys returns all keys in lexical order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, s.tree.Len())
	s.tree.Walk(func(k string, _ interface{}) bool {
		keys = append(keys, k)
		return false
	})
	return keys
}

// KeysWithPrefix returns all keys starting with prefix in lexical order
func (s *Store) KeysWithPrefix(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	s.tree.WalkPrefix(prefix, func(k string, _ interface{}) bool {
		keys = append(keys, k)
		return false
	})
	return keys
}

// Snapshot returns a copy of all key/value pairs
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, s.tree.Len())
	s.tree.Walk(func(k string, v interface{}) bool {
		out[k] = v.(string)
		return false
	})
	return out
}

// Set stores a single value, persists the file and publishes a change event.
func (s *Store) Set(key, value string) error {
	return s.SetValues(map[string]string{key: value})
}

// SetValues stores several values with a single write and a single event.
func (s *Store) SetValues(values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	if _, ok := values[""]; ok {
		return fmt.Errorf("config key cannot be empty")
	}

	s.mu.Lock()
	changed := make([]string, 0, len(values))
	for k, v := range values {
		if old, ok := s.tree.Get(k); ok && old.(string) == v {
			continue
		}
		s.tree.Insert(k, v)
		changed = append(changed, k)
	}
	if len(changed) == 0 {
		s.mu.Unlock()
		return nil
	}
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	sort.Strings(changed)
	s.broker.Publish(Event{Topic: internal.ConfigChangedTopic, Keys: changed, Source: "local"})
	return nil
}

// Delete removes key, persists the file and publishes a change event.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	if _, ok := s.tree.Delete(key); !ok {
		s.mu.Unlock()
		return nil
	}
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.broker.Publish(Event{Topic: internal.ConfigChangedTopic, Keys: []string{key}, Source: "local"})
	return nil
}

// Save persists the current values
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	values := make(map[string]string, s.tree.Len())
	s.tree.Walk(func(k string, v interface{}) bool {
		values[k] = v.(string)
		return false
	})

	data, err := sonic.ConfigStd.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary config file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	// the file holds tokens and secrets
	if err := os.Chmod(tmpName, 0o600); err != nil {
		slog.Warn("Failed to restrict config file permissions", "path", tmpName, "error", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config file: %w", err)
	}

	s.lastSaved = data
	return nil
}
