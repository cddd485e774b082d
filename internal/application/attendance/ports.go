package attendance

import (
	"context"
	"time"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/worktime"
)

// Device is a registered punch terminal
type Device struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location,omitempty" yaml:"location"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
}

// DeviceRegistry looks up devices. Unknown IDs return shared.ErrNotFound.
type DeviceRegistry interface {
	Device(ctx context.Context, deviceID string) (*Device, error)
}

// ResultStore persists processed results
type ResultStore interface {
	SaveResult(ctx context.Context, result *ProcessResult) error
}

// NotificationHook is told about every persisted result. Its error is
// logged and never changes the outcome.
type NotificationHook interface {
	Notify(ctx context.Context, result *ProcessResult) error
}

// Steps are the variable parts of processing. Processor runs them in a
// fixed order: Identify, Record, Calculate.
type Steps interface {
	// Identify maps the punch credential to an employee. Returning an error
	// wrapping shared.ErrNotFound or shared.ErrUnauthorized denies the punch.
	Identify(ctx context.Context, event PunchEvent) (employeeID string, err error)
	Record(ctx context.Context, employeeID string, event PunchEvent) (*worktime.PunchRecord, error)
	Calculate(ctx context.Context, record *worktime.PunchRecord) (*Calculation, error)
}

// EmployeeDirectory resolves badge or biometric credentials
type EmployeeDirectory interface {
	EmployeeForCredential(ctx context.Context, credential string) (string, error)
}

// PunchStore keeps raw punch records
type PunchStore interface {
	SavePunch(ctx context.Context, record *worktime.PunchRecord) error
	// ListBetween returns the employee's punches in [from, to], oldest first
	ListBetween(ctx context.Context, employeeID string, from, to time.Time) ([]worktime.PunchRecord, error)
}

// ShiftSource returns the shift an employee works on a calendar day.
// It returns shared.ErrNotFound when the employee is off that day.
type ShiftSource interface {
	ShiftFor(ctx context.Context, employeeID string, day time.Time) (*worktime.WorkShift, error)
}

// StrategySelector picks the work-time strategy for a shift
type StrategySelector interface {
	Select(shift *worktime.WorkShift) worktime.Strategy
}

// RuleEvaluator runs the rules of a category against a context
type RuleEvaluator interface {
	EvaluateRulesByCategory(ctx context.Context, category string, ec rule.ExecutionContext) []*rule.EvaluationResult
}
