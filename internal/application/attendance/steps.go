package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
)

// DefaultAttendanceCategory is the rule category evaluated after each calculation
const DefaultAttendanceCategory = "attendance"

// DefaultSteps implements Steps on top of the directory, punch store, shift
// source, strategy selector and, optionally, the rule engine
type DefaultSteps struct {
	Directory EmployeeDirectory
	Punches   PunchStore
	Shifts    ShiftSource
	Selector  StrategySelector
	// Rules is optional; without it no rules are evaluated
	Rules    RuleEvaluator
	Category string
}

// Identify resolves the credential through the directory
func (s *DefaultSteps) Identify(ctx context.Context, event PunchEvent) (string, error) {
	employeeID, err := s.Directory.EmployeeForCredential(ctx, event.Credential)
	if err != nil {
		return "", fmt.Errorf("identify credential: %w", err)
	}
	return employeeID, nil
}

// Record stores the punch under a new ID
func (s *DefaultSteps) Record(ctx context.Context, employeeID string, event PunchEvent) (*worktime.PunchRecord, error) {
	record := &worktime.PunchRecord{
		ID:         uuid.New().String(),
		EmployeeID: employeeID,
		DeviceID:   event.DeviceID,
		Timestamp:  event.Timestamp,
		Type:       event.Type,
	}
	if err := s.Punches.SavePunch(ctx, record); err != nil {
		return nil, fmt.Errorf("save punch: %w", err)
	}
	return record, nil
}

// Calculate finds the shift instance the punch belongs to, recalculates
// that instance from all of its punches and evaluates the attendance rules
// against the resulting metrics.
func (s *DefaultSteps) Calculate(ctx context.Context, record *worktime.PunchRecord) (*Calculation, error) {
	in, err := s.instanceFor(ctx, record)
	if err != nil {
		return nil, err
	}
	day, shift, strategy := in.day, in.shift, in.strategy

	from, to := strategy.AllowedPunchTimeRange(day, shift)
	records, err := s.Punches.ListBetween(ctx, record.EmployeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list punches: %w", err)
	}

	result, err := strategy.Calculate(worktime.CalculateContext{
		EmployeeID: record.EmployeeID,
		Date:       day,
		Shift:      shift,
		Records:    records,
	})
	if err != nil {
		return nil, fmt.Errorf("calculate %s: %w", strategy.Name(), err)
	}

	calc := &Calculation{Date: day, ShiftID: shift.ID, Result: result}
	if s.Rules != nil {
		ec := rule.NewExecutionContext(record.EmployeeID).
			WithDate(day).
			WithAttributes(result.Metrics()).
			WithAttribute("shiftId", shift.ID).
			WithAttribute("punchType", string(record.Type))
		calc.Rules = s.Rules.EvaluateRulesByCategory(ctx, s.category(), ec)
	}
	return calc, nil
}

func (s *DefaultSteps) category() string {
	if s.Category == "" {
		return DefaultAttendanceCategory
	}
	return s.Category
}

// instance is one dated occurrence of a shift
type instance struct {
	day      time.Time
	shift    *worktime.WorkShift
	strategy worktime.Strategy
}

func (in *instance) covers(t time.Time) bool {
	from, to := in.strategy.AllowedPunchTimeRange(in.day, in.shift)
	return !t.Before(from) && !t.After(to)
}

// instanceFor picks the shift instance the punch belongs to. A punch that
// comes before the day's allowed range, such as a clock-out after an
// overnight shift, belongs to the previous day's instance if that one covers it.
func (s *DefaultSteps) instanceFor(ctx context.Context, record *worktime.PunchRecord) (*instance, error) {
	day := midnight(record.Timestamp)
	today, err := s.lookup(ctx, record.EmployeeID, day)
	if err != nil {
		return nil, err
	}
	if today != nil {
		from, _ := today.strategy.AllowedPunchTimeRange(day, today.shift)
		if !record.Timestamp.Before(from) {
			return today, nil
		}
	}

	yesterday, err := s.lookup(ctx, record.EmployeeID, day.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	switch {
	case yesterday != nil && yesterday.covers(record.Timestamp):
		return yesterday, nil
	case today != nil:
		return today, nil
	}
	return nil, fmt.Errorf("%w: no shift for %s on %s", shared.ErrNotFound, record.EmployeeID, day.Format(time.DateOnly))
}

// lookup returns nil without error when the employee has no shift that day
func (s *DefaultSteps) lookup(ctx context.Context, employeeID string, day time.Time) (*instance, error) {
	shift, err := s.Shifts.ShiftFor(ctx, employeeID, day)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("shift for %s: %w", day.Format(time.DateOnly), err)
	case shift == nil:
		return nil, nil
	}
	return &instance{day: day, shift: shift, strategy: s.Selector.Select(shift)}, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
