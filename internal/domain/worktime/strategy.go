package worktime

import (
	"time"

	"github.com/erp/attendance/internal/domain/shared/strategy"
)

// Strategy calculates attendance metrics for one shift family.
// Implementations are stateless and safe for concurrent use.
type Strategy interface {
	strategy.Strategy

	Calculate(cc CalculateContext) (*CalculateResult, error)
	ValidatePunchRecords(records []PunchRecord, shift *WorkShift) bool

	// Punch helpers derive the shift instance from the punch itself
	CalculateLateMinutes(punch time.Time, shift *WorkShift) int
	CalculateEarlyLeaveMinutes(punch time.Time, shift *WorkShift) int
	CalculateOvertimeMinutes(punch time.Time, shift *WorkShift) int

	CalculateWorkTimeSpans(records []PunchRecord, shift *WorkShift) []WorkSpan
	IsValidWorkTime(punch time.Time, shift *WorkShift) bool
	AllowedPunchTimeRange(date time.Time, shift *WorkShift) (from, to time.Time)
	CalculateCoreWorkMinutes(shift *WorkShift) int
	CalculateBreakMinutes(shift *WorkShift) int
	IsOvernightShift(shift *WorkShift) bool
	CalculateOvernightEndTime(startDate time.Time, end ClockTime) time.Time
}

// Strategy names used for registration
const (
	StandardStrategyName = "standard"
	RotatingStrategyName = "rotating"
	FlexibleStrategyName = "flexible"
)
