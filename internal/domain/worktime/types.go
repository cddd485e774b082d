package worktime

import (
	"time"
)

// PunchType is the direction of a punch
type PunchType string

const (
	PunchIn  PunchType = "IN"
	PunchOut PunchType = "OUT"
)

// PunchRecord is a single clock event
type PunchRecord struct {
	ID         string    `json:"id" yaml:"id"`
	EmployeeID string    `json:"employee_id" yaml:"employee_id"`
	DeviceID   string    `json:"device_id,omitempty" yaml:"device_id"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Type       PunchType `json:"type" yaml:"type"`
}

// IsValid reports whether the record carries an employee, a timestamp and a known type
func (p PunchRecord) IsValid() bool {
	if p.EmployeeID == "" || p.Timestamp.IsZero() {
		return false
	}
	return p.Type == PunchIn || p.Type == PunchOut
}

// SpanKind classifies a work span
type SpanKind string

const (
	SpanNormal   SpanKind = "NORMAL"
	SpanFlexible SpanKind = "FLEXIBLE"
)

// WorkSpan is a paired IN/OUT interval
type WorkSpan struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int       `json:"minutes"`
	Kind    SpanKind  `json:"kind"`
}

// Status summarizes a calculated attendance day
type Status string

const (
	StatusNormal            Status = "NORMAL"
	StatusLate              Status = "LATE"
	StatusEarlyLeave        Status = "EARLY_LEAVE"
	StatusLateAndEarlyLeave Status = "LATE_AND_EARLY_LEAVE"
	StatusOvertime          Status = "OVERTIME"
	StatusInsufficientHours Status = "INSUFFICIENT_HOURS"
	StatusInvalid           Status = "INVALID"
)

// CalculateContext is the input to Strategy.Calculate.
// Date is the calendar day the shift instance starts on.
type CalculateContext struct {
	EmployeeID string
	Date       time.Time
	Shift      *WorkShift
	Records    []PunchRecord
}

// CalculateResult holds calculated work metrics. Late and early-leave minutes
// are signed: negative values mean the employee was early or left late.
type CalculateResult struct {
	Strategy          string     `json:"strategy"`
	Status            Status     `json:"status"`
	WorkMinutes       int        `json:"work_minutes"`
	LateMinutes       int        `json:"late_minutes"`
	EarlyLeaveMinutes int        `json:"early_leave_minutes"`
	OvertimeMinutes   int        `json:"overtime_minutes"`
	BreakMinutes      int        `json:"break_minutes"`
	FlexibleMinutes   int        `json:"flexible_minutes"`
	ClockIn           *time.Time `json:"clock_in,omitempty"`
	ClockOut          *time.Time `json:"clock_out,omitempty"`
	Spans             []WorkSpan `json:"spans"`
}

// IsLate reports a positive late value
func (r *CalculateResult) IsLate() bool {
	return r.LateMinutes > 0
}

// IsEarlyLeave reports a positive early-leave value
func (r *CalculateResult) IsEarlyLeave() bool {
	return r.EarlyLeaveMinutes > 0
}

// Metrics exposes the result as a flat map for rule evaluation
func (r *CalculateResult) Metrics() map[string]any {
	return map[string]any{
		"status":            string(r.Status),
		"workMinutes":       r.WorkMinutes,
		"lateMinutes":       r.LateMinutes,
		"earlyLeaveMinutes": r.EarlyLeaveMinutes,
		"overtimeMinutes":   r.OvertimeMinutes,
		"breakMinutes":      r.BreakMinutes,
		"flexibleMinutes":   r.FlexibleMinutes,
		"strategy":          r.Strategy,
	}
}
