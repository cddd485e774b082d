// Package fixture reads rules, shifts, punches, schedules and execution
// contexts from YAML files for the command line tools.
package fixture

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/schedule"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
)

// ErrFileNotFound is returned when a fixture file does not exist
var ErrFileNotFound = errors.New("fixture file not found")

var knownRuleTypes = []rule.Type{rule.TypeCondition, rule.TypeCEL, rule.TypeJSONLogic}

// RuleFile is the layout of a rules file
type RuleFile struct {
	Rules []rule.Definition `yaml:"rules"`
}

// PunchFile is the layout of a punches file
type PunchFile struct {
	Punches []worktime.PunchRecord `yaml:"punches"`
}

// ContextFile is the layout of an execution contexts file
type ContextFile struct {
	Contexts []rule.ExecutionContext `yaml:"contexts"`
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// LoadRules reads and validates rule definitions. Rule IDs must be unique
// and every rule needs an ID, a known type and a condition.
func LoadRules(path string) ([]*rule.Definition, error) {
	var file RuleFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	seen := make(map[string]bool, len(file.Rules))
	defs := make([]*rule.Definition, 0, len(file.Rules))
	for i := range file.Rules {
		def := &file.Rules[i]
		if err := v.Struct(def); err != nil {
			return nil, fmt.Errorf("%w: rule #%d in %s: %v", shared.ErrInvalidInput, i+1, path, err)
		}
		if !slices.Contains(knownRuleTypes, def.Type) {
			return nil, fmt.Errorf("%w: rule %s has unknown type %q", shared.ErrInvalidInput, def.ID, def.Type)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("%w: duplicate rule id %s", shared.ErrInvalidInput, def.ID)
		}
		seen[def.ID] = true
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadShift reads a single shift definition
func LoadShift(path string) (*worktime.WorkShift, error) {
	var shift worktime.WorkShift
	if err := readYAML(path, &shift); err != nil {
		return nil, err
	}
	if shift.ID == "" {
		return nil, fmt.Errorf("%w: shift in %s has no id", shared.ErrInvalidInput, path)
	}
	if shift.Family == "" {
		shift.Family = worktime.FamilyStandard
	}
	if !shift.Family.IsValid() {
		return nil, fmt.Errorf("%w: shift %s has unknown family %q", shared.ErrInvalidInput, shift.ID, shift.Family)
	}
	return &shift, nil
}

// LoadPunches reads punch records; records without an ID are numbered
func LoadPunches(path string) ([]worktime.PunchRecord, error) {
	var file PunchFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}
	for i := range file.Punches {
		if file.Punches[i].ID == "" {
			file.Punches[i].ID = fmt.Sprintf("punch-%d", i+1)
		}
	}
	return file.Punches, nil
}

// LoadSchedule reads a proposed schedule with its reference data
func LoadSchedule(path string) (*schedule.ScheduleData, error) {
	var data schedule.ScheduleData
	if err := readYAML(path, &data); err != nil {
		return nil, err
	}
	for i, a := range data.Assignments {
		if a.ID == "" || a.EmployeeID == "" {
			return nil, fmt.Errorf("%w: assignment #%d needs id and employee_id", shared.ErrInvalidInput, i+1)
		}
		if !a.End.After(a.Start) {
			return nil, fmt.Errorf("%w: assignment %s ends before it starts", shared.ErrInvalidInput, a.ID)
		}
	}
	return &data, nil
}

// LoadContexts reads execution contexts
func LoadContexts(path string) ([]rule.ExecutionContext, error) {
	var file ContextFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}
	for i := range file.Contexts {
		if file.Contexts[i].Attributes == nil {
			file.Contexts[i].Attributes = make(map[string]any)
		}
	}
	return file.Contexts, nil
}
