// Package holdings loads and serves the user's instrument registry from a
// YAML file.
package holdings

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/iamkanga/asxtracker-sub003/internal/logger"
	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

type holdingsFile struct {
	Holdings []models.Holding `yaml:"holdings"`
}

// Store holds the registry keyed by normalized code. Load may be called
// again at any time to pick up file edits; readers always see a complete
// snapshot.
type Store struct {
	mu     sync.RWMutex
	path   string
	byCode map[string]models.Holding
}

// NewStore creates a store backed by the YAML file at path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		byCode: make(map[string]models.Holding),
	}
}

// Load reads the holdings file and replaces the current registry. Entries
// that fail validation are skipped with a warning; duplicate codes keep the
// last occurrence.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read holdings file: %w", err)
	}

	var file holdingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse holdings file: %w", err)
	}

	next := make(map[string]models.Holding, len(file.Holdings))
	for _, h := range file.Holdings {
		h.Code = models.NormalizeCode(h.Code)
		if err := h.Validate(); err != nil {
			logger.Warn("skipping holding %q: %v", h.Code, err)
			continue
		}
		if _, dup := next[h.Code]; dup {
			logger.Warn("duplicate holding %s, keeping last occurrence", h.Code)
		}
		next[h.Code] = h
	}

	s.mu.Lock()
	s.byCode = next
	s.mu.Unlock()
	return nil
}

// Get returns the holding for a normalized code.
func (s *Store) Get(code string) (models.Holding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byCode[code]
	return h, ok
}

// All returns a copy of every holding.
func (s *Store) All() []models.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Holding, 0, len(s.byCode))
	for _, h := range s.byCode {
		out = append(out, h)
	}
	return out
}

// Len returns the number of holdings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCode)
}
