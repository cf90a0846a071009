// Package rules holds the current movers rule, persists explicit changes,
// and notifies subscribers so dependent feeds can recompute.
package rules

import (
	"fmt"
	"sync"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
	"github.com/iamkanga/asxtracker-sub003/internal/storage"
)

// Store serves the active rule. The saved rule wins over the fallback; the
// fallback only seeds a fresh installation.
type Store struct {
	mu      sync.RWMutex
	current models.Rule
	storage *storage.Storage
	subs    []func(models.Rule)
}

// NewStore creates a rule store. A nil storage disables persistence. The
// fallback rule applies when no rule has ever been saved.
func NewStore(st *storage.Storage, fallback models.Rule) (*Store, error) {
	s := &Store{
		current: fallback.Clone(),
		storage: st,
	}
	if st != nil {
		saved, err := st.LoadRule()
		if err != nil {
			return nil, fmt.Errorf("failed to load saved rule: %w", err)
		}
		if saved != nil {
			s.current = saved.Clone()
		}
	}
	return s, nil
}

// Current returns a deep copy of the active rule.
func (s *Store) Current() models.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Set validates, persists, and activates a new rule, then notifies
// subscribers. The previous rule stays active if persistence fails.
func (s *Store) Set(rule models.Rule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	if s.storage != nil {
		if err := s.storage.SaveRule(&rule); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.current = rule.Clone()
	subs := make([]func(models.Rule), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(rule.Clone())
	}
	return nil
}

// Subscribe registers a callback invoked after every successful Set.
func (s *Store) Subscribe(fn func(models.Rule)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}
