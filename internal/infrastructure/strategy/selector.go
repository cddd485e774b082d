package strategy

import (
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/worktime"
)

// Selector picks the work-time strategy for a shift configuration.
type Selector struct {
	registry *StrategyRegistry
	logger   *zap.Logger
}

// SelectorOption configures a Selector
type SelectorOption func(*Selector)

// WithSelectorLogger sets the logger used for degraded selections
func WithSelectorLogger(logger *zap.Logger) SelectorOption {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSelector creates a selector backed by registry
func NewSelector(registry *StrategyRegistry, opts ...SelectorOption) *Selector {
	s := &Selector{
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the strategy for shift. Configured flexible bounds win over
// the family tag, so a STANDARD shift with both bounds set is flexible.
func (s *Selector) Select(shift *worktime.WorkShift) worktime.Strategy {
	name := s.nameFor(shift)
	return s.registry.GetOrDefault(name)
}

func (s *Selector) nameFor(shift *worktime.WorkShift) string {
	switch {
	case shift == nil:
		s.logger.Warn("no shift configured, falling back to standard strategy")
		return worktime.StandardStrategyName
	case shift.Family == worktime.FamilyFlexible || shift.HasFlexibleWindow():
		return worktime.FlexibleStrategyName
	case shift.Family == worktime.FamilyRotating:
		return worktime.RotatingStrategyName
	default:
		return worktime.StandardStrategyName
	}
}
