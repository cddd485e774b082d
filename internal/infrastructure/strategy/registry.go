package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
)

// StrategyRegistry manages work-time strategy registrations
type StrategyRegistry struct {
	mu          sync.RWMutex
	strategies  map[string]worktime.Strategy
	defaultName string
}

// NewStrategyRegistry creates a new strategy registry
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		strategies: make(map[string]worktime.Strategy),
	}
}

// Register registers a work-time strategy
func (r *StrategyRegistry) Register(s worktime.Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("%w: work-time strategy '%s' already registered", shared.ErrAlreadyExists, name)
	}
	r.strategies[name] = s
	return nil
}

// Get returns a strategy by name, or the default if name is empty
func (r *StrategyRegistry) Get(name string) (worktime.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultName
		if name == "" {
			return nil, fmt.Errorf("%w: no default work-time strategy set", shared.ErrNotFound)
		}
	}

	s, exists := r.strategies[name]
	if !exists {
		return nil, fmt.Errorf("%w: work-time strategy '%s' not found", shared.ErrNotFound, name)
	}
	return s, nil
}

// GetOrDefault returns a strategy by name, or the default if not found
func (r *StrategyRegistry) GetOrDefault(name string) worktime.Strategy {
	s, err := r.Get(name)
	if err != nil {
		s, _ = r.Get("")
	}
	return s
}

// List returns all registered strategy names
func (r *StrategyRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a strategy
func (r *StrategyRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[name]; !exists {
		return fmt.Errorf("%w: work-time strategy '%s' not found", shared.ErrNotFound, name)
	}
	delete(r.strategies, name)

	// Clear default if it was this strategy
	if r.defaultName == name {
		r.defaultName = ""
	}
	return nil
}

// SetDefault sets the default strategy
func (r *StrategyRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[name]; !exists {
		return fmt.Errorf("%w: cannot set default: work-time strategy '%s' not registered", shared.ErrNotFound, name)
	}
	r.defaultName = name
	return nil
}

// GetDefault returns the default strategy name
func (r *StrategyRegistry) GetDefault() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// IsRegistered checks if a strategy is registered
func (r *StrategyRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.strategies[name]
	return exists
}

// Stats returns the number of registered strategies
func (r *StrategyRegistry) Stats() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}
