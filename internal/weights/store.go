package weights

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store persists the weight map as a flat JSON object. Writes are exclusive
// and atomic (temp file + rename), so readers never see a partial file.
type Store struct {
	path     string
	defaults Map
	mu       sync.Mutex
}

// NewStore creates a store backed by path. defaults fixes the required key set.
func NewStore(path string, defaults Map) *Store {
	return &Store{path: path, defaults: defaults.Normalize()}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Defaults returns a copy of the normalised default map.
func (s *Store) Defaults() Map { return s.defaults.Clone() }

// Load reads the weight map. It always returns a usable normalised map: a
// missing file yields the defaults with a nil error, while an unreadable,
// malformed or incomplete file yields the defaults together with the reason.
func (s *Store) Load() (Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Map, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.Defaults(), nil
		}
		return s.Defaults(), fmt.Errorf("read weights: %w", err)
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return s.Defaults(), fmt.Errorf("decode weights: %w", err)
	}
	if err := m.Validate(s.defaults.Names()); err != nil {
		return s.Defaults(), err
	}
	return m.Restrict(s.defaults.Names()).Normalize(), nil
}

// Save normalises m and atomically replaces the file.
func (s *Store) Save(m Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(m)
}

func (s *Store) save(m Map) error {
	if err := m.Validate(s.defaults.Names()); err != nil {
		return fmt.Errorf("refusing to save weights: %w", err)
	}
	data, err := json.MarshalIndent(m.Normalize(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create weights dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".weights-*.json")
	if err != nil {
		return fmt.Errorf("create temp weights: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp weights: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp weights: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp weights: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace weights: %w", err)
	}
	return nil
}

// Update runs fn on the current map and saves the result while holding the
// write lock, so concurrent optimiser runs cannot interleave.
func (s *Store) Update(fn func(Map) (Map, error)) (Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load()
	if err != nil {
		log.Warn().Err(err).Str("component", "weights").Msg("stored weights unusable, starting from defaults")
	}
	next, err := fn(cur.Clone())
	if err != nil {
		return cur, err
	}
	next = next.Normalize()
	if err := s.save(next); err != nil {
		return cur, err
	}
	return next, nil
}
