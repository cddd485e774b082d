package worktime

import (
	"fmt"
	"time"

	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/shared/strategy"
)

// StandardStrategy measures attendance against a fixed start and end time.
type StandardStrategy struct {
	strategy.BaseStrategy
	calculator
}

// NewStandardStrategy creates a new StandardStrategy
func NewStandardStrategy() *StandardStrategy {
	return &StandardStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			StandardStrategyName,
			strategy.StrategyTypeWorkTime,
			"Fixed start/end shifts; late and early leave measured against the schedule",
		),
	}
}

// Calculate implements Strategy
func (s *StandardStrategy) Calculate(cc CalculateContext) (*CalculateResult, error) {
	return calculateFixed(s.Name(), s, cc, func(clockIn time.Time) time.Time {
		if !cc.Date.IsZero() {
			return startOfDay(cc.Date)
		}
		return instanceDate(clockIn, cc.Shift)
	})
}

// ValidatePunchRecords requires at least one IN, one OUT, and every record valid.
func (s *StandardStrategy) ValidatePunchRecords(records []PunchRecord, _ *WorkShift) bool {
	return len(records) > 0 && allValid(records) && hasInAndOut(records)
}

func (s *StandardStrategy) CalculateLateMinutes(punch time.Time, shift *WorkShift) int {
	if shift == nil {
		return 0
	}
	start, _ := scheduledWindow(instanceDate(punch, shift), shift)
	return minutesBetween(start, punch)
}

func (s *StandardStrategy) CalculateEarlyLeaveMinutes(punch time.Time, shift *WorkShift) int {
	if shift == nil {
		return 0
	}
	_, end := scheduledWindow(instanceDate(punch, shift), shift)
	return minutesBetween(punch, end)
}

func (s *StandardStrategy) CalculateOvertimeMinutes(punch time.Time, shift *WorkShift) int {
	if shift == nil {
		return 0
	}
	_, end := scheduledWindow(instanceDate(punch, shift), shift)
	return overtime(minutesBetween(end, punch), shift)
}

func (s *StandardStrategy) CalculateWorkTimeSpans(records []PunchRecord, _ *WorkShift) []WorkSpan {
	return pairSpans(records, normalSpan)
}

func (s *StandardStrategy) IsValidWorkTime(punch time.Time, shift *WorkShift) bool {
	if shift == nil {
		return false
	}
	from, to := s.AllowedPunchTimeRange(instanceDate(punch, shift), shift)
	return !punch.Before(from) && !punch.After(to)
}

// AllowedPunchTimeRange returns the schedule widened by the punch window on both sides.
// Without a shift the range is empty.
func (s *StandardStrategy) AllowedPunchTimeRange(date time.Time, shift *WorkShift) (time.Time, time.Time) {
	if shift == nil {
		return emptyRange(date)
	}
	start, end := scheduledWindow(startOfDay(date), shift)
	return start.Add(-shift.punchWindow()), end.Add(shift.punchWindow())
}

// fixedSchedule is the subset of Strategy used by calculateFixed.
type fixedSchedule interface {
	ValidatePunchRecords(records []PunchRecord, shift *WorkShift) bool
	CalculateWorkTimeSpans(records []PunchRecord, shift *WorkShift) []WorkSpan
	CalculateBreakMinutes(shift *WorkShift) int
}

// calculateFixed runs the fixed-schedule calculation shared by the standard
// and rotating strategies; anchor picks the day the shift instance starts on.
func calculateFixed(name string, s fixedSchedule, cc CalculateContext, anchor func(clockIn time.Time) time.Time) (*CalculateResult, error) {
	if cc.Shift == nil {
		return nil, fmt.Errorf("%w: %s strategy requires a shift", shared.ErrInvalidInput, name)
	}
	if !s.ValidatePunchRecords(cc.Records, cc.Shift) {
		return invalidResult(name, cc.Shift), nil
	}

	in, out := clockInOut(cc.Records)
	start, end := scheduledWindow(anchor(*in), cc.Shift)

	late := minutesBetween(start, *in)
	early := minutesBetween(*out, end)
	extra := overtime(minutesBetween(end, *out), cc.Shift)

	spans := s.CalculateWorkTimeSpans(cc.Records, cc.Shift)
	breakMinutes := s.CalculateBreakMinutes(cc.Shift)
	work := max(0, totalMinutes(spans)-breakMinutes)

	return &CalculateResult{
		Strategy:          name,
		Status:            statusFor(late, early, extra),
		WorkMinutes:       work,
		LateMinutes:       late,
		EarlyLeaveMinutes: early,
		OvertimeMinutes:   extra,
		BreakMinutes:      breakMinutes,
		ClockIn:           in,
		ClockOut:          out,
		Spans:             spans,
	}, nil
}
