package worktime

import (
	"time"

	"github.com/erp/attendance/internal/domain/shared/strategy"
)

// RotatingStrategy handles shifts whose instance is identified by the clock-in
// punch rather than the calendar day, as in day/night rotations.
type RotatingStrategy struct {
	StandardStrategy
}

// NewRotatingStrategy creates a new RotatingStrategy
func NewRotatingStrategy() *RotatingStrategy {
	return &RotatingStrategy{
		StandardStrategy: StandardStrategy{
			BaseStrategy: strategy.NewBaseStrategy(
				RotatingStrategyName,
				strategy.StrategyTypeWorkTime,
				"Rotating shifts; the shift instance is anchored to the clock-in punch",
			),
		},
	}
}

// Calculate implements Strategy. The calendar date in the context is ignored.
func (s *RotatingStrategy) Calculate(cc CalculateContext) (*CalculateResult, error) {
	return calculateFixed(s.Name(), s, cc, func(clockIn time.Time) time.Time {
		return instanceDate(clockIn, cc.Shift)
	})
}

// ValidatePunchRecords additionally requires every punch to fall inside the
// allowed range of the instance started by the first clock-in.
func (s *RotatingStrategy) ValidatePunchRecords(records []PunchRecord, shift *WorkShift) bool {
	if !s.StandardStrategy.ValidatePunchRecords(records, shift) {
		return false
	}
	if shift == nil {
		return true
	}
	in, _ := clockInOut(records)
	from, to := s.AllowedPunchTimeRange(instanceDate(*in, shift), shift)
	for _, r := range records {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			return false
		}
	}
	return true
}
