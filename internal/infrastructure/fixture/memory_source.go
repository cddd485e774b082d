package fixture

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared"
)

// MemorySource is a rule.Source over definitions held in memory.
// Listings are ordered by priority, then by insertion order.
type MemorySource struct {
	mu    sync.RWMutex
	defs  map[string]*rule.Definition
	order []string
}

// NewMemorySource creates a source holding defs
func NewMemorySource(defs ...*rule.Definition) *MemorySource {
	s := &MemorySource{defs: make(map[string]*rule.Definition, len(defs))}
	for _, def := range defs {
		s.Put(def)
	}
	return s
}

// Put adds or replaces a definition. A replaced definition keeps its position.
func (s *MemorySource) Put(def *rule.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.defs[def.ID]; !ok {
		s.order = append(s.order, def.ID)
	}
	s.defs[def.ID] = def
}

// Remove deletes a definition; it reports whether one was present
func (s *MemorySource) Remove(ruleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.defs[ruleID]; !ok {
		return false
	}
	delete(s.defs, ruleID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == ruleID })
	return true
}

// Definitions returns every definition in listing order, active or not
func (s *MemorySource) Definitions() []*rule.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(*rule.Definition) bool { return true })
}

// LoadRuleConfig implements rule.Source
func (s *MemorySource) LoadRuleConfig(_ context.Context, ruleID string) (*rule.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.defs[ruleID]
	if !ok {
		return nil, fmt.Errorf("%w: rule %s", shared.ErrNotFound, ruleID)
	}
	return def, nil
}

// GetRulesByCategory implements rule.Source; only active rules are listed
func (s *MemorySource) GetRulesByCategory(_ context.Context, category string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ids(s.sorted(func(d *rule.Definition) bool { return d.Active && d.Category == category })), nil
}

// LoadAllActiveRules implements rule.Source
func (s *MemorySource) LoadAllActiveRules(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ids(s.sorted(func(d *rule.Definition) bool { return d.Active })), nil
}

// sorted must be called with the lock held
func (s *MemorySource) sorted(keep func(*rule.Definition) bool) []*rule.Definition {
	out := make([]*rule.Definition, 0, len(s.order))
	for _, id := range s.order {
		if def := s.defs[id]; keep(def) {
			out = append(out, def)
		}
	}
	slices.SortStableFunc(out, func(a, b *rule.Definition) int { return cmp.Compare(a.Priority, b.Priority) })
	return out
}

func ids(defs []*rule.Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.ID
	}
	return out
}

var _ rule.Source = (*MemorySource)(nil)
