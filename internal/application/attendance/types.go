// Package attendance turns a raw punch from a clock device into a persisted,
// rule-checked attendance result.
package attendance

import (
	"time"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/worktime"
)

// PunchEvent is a punch as reported by a device, before the employee is known
type PunchEvent struct {
	EventID    string             `json:"event_id" yaml:"event_id" validate:"omitempty,max=64"`
	DeviceID   string             `json:"device_id" yaml:"device_id" validate:"required,max=64"`
	Credential string             `json:"credential" yaml:"credential" validate:"required,max=128"`
	Timestamp  time.Time          `json:"timestamp" yaml:"timestamp" validate:"required"`
	Type       worktime.PunchType `json:"type" yaml:"type" validate:"required,oneof=IN OUT"`
}

// dedupKey identifies the punch for duplicate suppression. Devices that
// resend without an event ID are matched on device, credential and second.
func (e PunchEvent) dedupKey() string {
	if e.EventID != "" {
		return e.EventID
	}
	return e.DeviceID + "|" + e.Credential + "|" + string(e.Type) + "|" + e.Timestamp.UTC().Format(time.RFC3339)
}

// Outcome is the uniform result class of a processed punch
type Outcome string

const (
	OutcomeSuccess     Outcome = "SUCCESS"
	OutcomeDenied      Outcome = "DENIED"
	OutcomeSystemError Outcome = "SYSTEM_ERROR"
)

// Calculation is what the calculate step produces for the shift instance
// the punch belongs to
type Calculation struct {
	Date    time.Time                 `json:"date"`
	ShiftID string                    `json:"shift_id"`
	Result  *worktime.CalculateResult `json:"result"`
	Rules   []*rule.EvaluationResult  `json:"rules,omitempty"`
}

// ProcessResult is returned for every punch, whatever happened to it
type ProcessResult struct {
	EventID     string       `json:"event_id,omitempty"`
	DeviceID    string       `json:"device_id"`
	Outcome     Outcome      `json:"outcome"`
	Message     string       `json:"message,omitempty"`
	EmployeeID  string       `json:"employee_id,omitempty"`
	PunchID     string       `json:"punch_id,omitempty"`
	Calculation *Calculation `json:"calculation,omitempty"`
	ProcessedAt time.Time    `json:"processed_at"`
}

// Succeeded reports a SUCCESS outcome
func (r *ProcessResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}
