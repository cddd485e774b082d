package worktime

import (
	"fmt"
	"time"
)

// ShiftFamily is the coarse category of a work shift
type ShiftFamily string

const (
	FamilyStandard ShiftFamily = "STANDARD"
	FamilyRotating ShiftFamily = "ROTATING"
	FamilyFlexible ShiftFamily = "FLEXIBLE"
)

// IsValid returns true if the family is known
func (f ShiftFamily) IsValid() bool {
	switch f {
	case FamilyStandard, FamilyRotating, FamilyFlexible:
		return true
	}
	return false
}

// Shift defaults applied when the corresponding field is zero
const (
	DefaultWorkMinutes        = 480
	DefaultCoreMinutes        = 360
	DefaultPunchWindowMinutes = 120
	DefaultFlexWindowMinutes  = 180
)

// ClockTime is a time of day with minute precision
type ClockTime struct {
	Hour   int
	Minute int
}

// NewClockTime creates a ClockTime, panicking on out of range values
func NewClockTime(hour, minute int) ClockTime {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		panic(fmt.Sprintf("worktime: invalid clock time %02d:%02d", hour, minute))
	}
	return ClockTime{Hour: hour, Minute: minute}
}

// ParseClockTime parses "HH:MM"
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes returns minutes since midnight
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// On places the clock time on the calendar day of date, in date's location
func (c ClockTime) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, date.Location())
}

// After reports whether c is strictly later in the day than other
func (c ClockTime) After(other ClockTime) bool {
	return c.Minutes() > other.Minutes()
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// MarshalText implements encoding.TextMarshaler
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// WorkShift is a shift definition supplied by the shift source.
type WorkShift struct {
	ID                 string      `json:"id" yaml:"id"`
	Name               string      `json:"name" yaml:"name"`
	Family             ShiftFamily `json:"family" yaml:"family"`
	StartTime          ClockTime   `json:"start_time" yaml:"start_time"`
	EndTime            ClockTime   `json:"end_time" yaml:"end_time"`
	FlexStartEarliest  *ClockTime  `json:"flex_start_earliest,omitempty" yaml:"flex_start_earliest"`
	FlexStartLatest    *ClockTime  `json:"flex_start_latest,omitempty" yaml:"flex_start_latest"`
	BreakMinutes       int         `json:"break_minutes" yaml:"break_minutes"`
	WorkMinutes        int         `json:"work_minutes" yaml:"work_minutes"`
	CoreMinutes        int         `json:"core_minutes" yaml:"core_minutes"`
	MinOvertimeMinutes int         `json:"min_overtime_minutes" yaml:"min_overtime_minutes"`
	PunchWindowMinutes int         `json:"punch_window_minutes" yaml:"punch_window_minutes"`
	FlexWindowMinutes  int         `json:"flex_window_minutes" yaml:"flex_window_minutes"`
}

// HasFlexibleWindow reports whether both flexible start bounds are configured
func (s *WorkShift) HasFlexibleWindow() bool {
	return s.FlexStartEarliest != nil && s.FlexStartLatest != nil
}

// IsOvernight reports whether the end time of day is not after the start time of day
func (s *WorkShift) IsOvernight() bool {
	return !s.EndTime.After(s.StartTime)
}

func (s *WorkShift) workMinutes() int {
	if s.WorkMinutes > 0 {
		return s.WorkMinutes
	}
	return DefaultWorkMinutes
}

func (s *WorkShift) coreMinutes() int {
	if s.CoreMinutes > 0 {
		return s.CoreMinutes
	}
	return DefaultCoreMinutes
}

func (s *WorkShift) punchWindow() time.Duration {
	if s.PunchWindowMinutes > 0 {
		return time.Duration(s.PunchWindowMinutes) * time.Minute
	}
	return DefaultPunchWindowMinutes * time.Minute
}

func (s *WorkShift) flexWindow() time.Duration {
	if s.FlexWindowMinutes > 0 {
		return time.Duration(s.FlexWindowMinutes) * time.Minute
	}
	return DefaultFlexWindowMinutes * time.Minute
}
