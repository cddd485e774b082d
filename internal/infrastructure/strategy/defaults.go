package strategy

import (
	"github.com/erp/attendance/internal/domain/worktime"
)

// NewRegistryWithDefaults creates a new registry with the standard, rotating
// and flexible strategies registered. Standard is the default.
func NewRegistryWithDefaults() (*StrategyRegistry, error) {
	r := NewStrategyRegistry()

	defaults := []worktime.Strategy{
		worktime.NewStandardStrategy(),
		worktime.NewRotatingStrategy(),
		worktime.NewFlexibleStrategy(),
	}
	for _, s := range defaults {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}

	if err := r.SetDefault(worktime.StandardStrategyName); err != nil {
		return nil, err
	}
	return r, nil
}
