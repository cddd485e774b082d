package worktime

import (
	"fmt"
	"time"

	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/shared/strategy"
)

// FlexibleStrategy lets employees start anywhere inside a start window and
// measures the rest of the day from their actual start.
type FlexibleStrategy struct {
	strategy.BaseStrategy
	calculator
}

// NewFlexibleStrategy creates a new FlexibleStrategy
func NewFlexibleStrategy() *FlexibleStrategy {
	return &FlexibleStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			FlexibleStrategyName,
			strategy.StrategyTypeWorkTime,
			"Flexible start window; lateness and early leave measured from the actual start",
		),
	}
}

// startWindow returns the earliest and latest permitted start on date.
// Without explicit bounds the window opens at the nominal start.
func startWindow(date time.Time, shift *WorkShift) (time.Time, time.Time) {
	earliest := shift.StartTime.On(date)
	if shift.FlexStartEarliest != nil {
		earliest = shift.FlexStartEarliest.On(date)
	}
	latest := earliest.Add(shift.flexWindow())
	if shift.FlexStartLatest != nil {
		latest = shift.FlexStartLatest.On(date)
	}
	return earliest, latest
}

// requiredDuration is the required work plus the break
func requiredDuration(shift *WorkShift) time.Duration {
	breakMinutes := max(0, shift.BreakMinutes)
	return time.Duration(shift.workMinutes()+breakMinutes) * time.Minute
}

// Calculate implements Strategy
func (s *FlexibleStrategy) Calculate(cc CalculateContext) (*CalculateResult, error) {
	shift := cc.Shift
	if shift == nil {
		return nil, fmt.Errorf("%w: flexible strategy requires a shift", shared.ErrInvalidInput)
	}
	if !s.ValidatePunchRecords(cc.Records, shift) {
		return invalidResult(s.Name(), shift), nil
	}
	in, out := clockInOut(cc.Records)
	if in == nil || out == nil {
		return invalidResult(s.Name(), shift), nil
	}

	date := startOfDay(*in)
	if !cc.Date.IsZero() {
		date = startOfDay(cc.Date)
	}
	earliest, latest := startWindow(date, shift)

	actualStart := *in
	if actualStart.Before(earliest) {
		actualStart = earliest
	}
	expectedEnd := actualStart.Add(requiredDuration(shift))

	late := minutesBetween(latest, *in)
	early := minutesBetween(*out, expectedEnd)
	extra := overtime(minutesBetween(expectedEnd, *out), shift)

	spans := s.spans(cc.Records, date, shift)
	present := totalMinutes(spans)
	breakMinutes := s.CalculateBreakMinutes(shift)
	work := max(0, present-breakMinutes)

	// core hours count time present, break included
	status := statusFor(late, early, extra)
	if present < shift.coreMinutes() {
		status = StatusInsufficientHours
	}

	return &CalculateResult{
		Strategy:          s.Name(),
		Status:            status,
		WorkMinutes:       work,
		LateMinutes:       late,
		EarlyLeaveMinutes: early,
		OvertimeMinutes:   extra,
		BreakMinutes:      breakMinutes,
		FlexibleMinutes:   max(0, work-shift.workMinutes()),
		ClockIn:           in,
		ClockOut:          out,
		Spans:             spans,
	}, nil
}

// ValidatePunchRecords only requires a non-empty set of valid records.
func (s *FlexibleStrategy) ValidatePunchRecords(records []PunchRecord, _ *WorkShift) bool {
	return len(records) > 0 && allValid(records)
}

// CalculateLateMinutes measures against the latest permitted start, so a punch
// inside the window yields zero or a negative value.
func (s *FlexibleStrategy) CalculateLateMinutes(punch time.Time, shift *WorkShift) int {
	if shift == nil {
		return 0
	}
	_, latest := startWindow(instanceDate(punch, shift), shift)
	return minutesBetween(latest, punch)
}

// CalculateEarlyLeaveMinutes measures against the earliest possible end of day,
// which is the earliest start plus the required duration.
func (s *FlexibleStrategy) CalculateEarlyLeaveMinutes(punch time.Time, shift *WorkShift) int {
	if shift == nil {
		return 0
	}
	earliest, _ := startWindow(instanceDate(punch, shift), shift)
	return minutesBetween(punch, earliest.Add(requiredDuration(shift)))
}

// CalculateOvertimeMinutes measures against the latest possible end of day.
func (s *FlexibleStrategy) CalculateOvertimeMinutes(punch time.Time, shift *WorkShift) int {
	if shift == nil {
		return 0
	}
	_, latest := startWindow(instanceDate(punch, shift), shift)
	return overtime(minutesBetween(latest.Add(requiredDuration(shift)), punch), shift)
}

func (s *FlexibleStrategy) CalculateWorkTimeSpans(records []PunchRecord, shift *WorkShift) []WorkSpan {
	if len(records) == 0 {
		return []WorkSpan{}
	}
	if shift == nil {
		return pairSpans(records, normalSpan)
	}
	in, _ := clockInOut(records)
	date := startOfDay(sortedRecords(records)[0].Timestamp)
	if in != nil {
		date = startOfDay(*in)
	}
	return s.spans(records, date, shift)
}

func (s *FlexibleStrategy) IsValidWorkTime(punch time.Time, shift *WorkShift) bool {
	if shift == nil {
		return false
	}
	from, to := s.AllowedPunchTimeRange(instanceDate(punch, shift), shift)
	return !punch.Before(from) && !punch.After(to)
}

// AllowedPunchTimeRange spans from the punch window before the earliest start
// to the punch window after the latest possible end.
func (s *FlexibleStrategy) AllowedPunchTimeRange(date time.Time, shift *WorkShift) (time.Time, time.Time) {
	if shift == nil {
		return emptyRange(date)
	}
	earliest, latest := startWindow(startOfDay(date), shift)
	return earliest.Add(-shift.punchWindow()), latest.Add(requiredDuration(shift)).Add(shift.punchWindow())
}

// spans classifies spans inside the core window as NORMAL and the rest as FLEXIBLE.
func (s *FlexibleStrategy) spans(records []PunchRecord, date time.Time, shift *WorkShift) []WorkSpan {
	earliest, latest := startWindow(date, shift)
	coreStart, coreEnd := latest, earliest.Add(requiredDuration(shift))
	return pairSpans(records, func(start, end time.Time) SpanKind {
		if !start.Before(coreStart) && !end.After(coreEnd) {
			return SpanNormal
		}
		return SpanFlexible
	})
}
