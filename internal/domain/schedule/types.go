// Package schedule detects and resolves conflicts in proposed shift schedules.
package schedule

import (
	"maps"
	"slices"
	"time"
)

// Assignment places one employee on one shift instance.
// Lower Priority values take precedence when capacity must be cut.
type Assignment struct {
	ID         string    `json:"id" yaml:"id"`
	EmployeeID string    `json:"employee_id" yaml:"employee_id"`
	ShiftID    string    `json:"shift_id" yaml:"shift_id"`
	Start      time.Time `json:"start" yaml:"start"`
	End        time.Time `json:"end" yaml:"end"`
	Priority   int       `json:"priority" yaml:"priority"`
}

// Minutes returns the assignment length in whole minutes
func (a Assignment) Minutes() int {
	return int(a.End.Sub(a.Start) / time.Minute)
}

func (a Assignment) overlaps(b Assignment) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// ScheduleData is a proposed schedule plus the reference data needed to check it.
type ScheduleData struct {
	ID                string              `json:"id" yaml:"id"`
	Assignments       []Assignment        `json:"assignments" yaml:"assignments"`
	EmployeeSkills    map[string][]string `json:"employee_skills,omitempty" yaml:"employee_skills"`
	ShiftRequirements map[string][]string `json:"shift_requirements,omitempty" yaml:"shift_requirements"`
	ShiftCapacities   map[string]int      `json:"shift_capacities,omitempty" yaml:"shift_capacities"`
	StandbyEmployees  []string            `json:"standby_employees,omitempty" yaml:"standby_employees"`
}

// Clone returns a deep copy
func (d *ScheduleData) Clone() *ScheduleData {
	if d == nil {
		return nil
	}
	c := &ScheduleData{
		ID:               d.ID,
		Assignments:      slices.Clone(d.Assignments),
		ShiftCapacities:  maps.Clone(d.ShiftCapacities),
		StandbyEmployees: slices.Clone(d.StandbyEmployees),
	}
	c.EmployeeSkills = cloneSkills(d.EmployeeSkills)
	c.ShiftRequirements = cloneSkills(d.ShiftRequirements)
	return c
}

func cloneSkills(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

func (d *ScheduleData) assignment(id string) (int, bool) {
	for i, a := range d.Assignments {
		if a.ID == id {
			return i, true
		}
	}
	return -1, false
}

// ConflictType classifies a schedule conflict
type ConflictType string

const (
	ConflictOverlap  ConflictType = "OVERLAP"
	ConflictSkill    ConflictType = "SKILL"
	ConflictWorkHour ConflictType = "WORK_HOUR"
	ConflictCapacity ConflictType = "CAPACITY"
)

// Conflict is one policy violation. Severity runs from 1 (minor) to 5.
type Conflict struct {
	ID            string       `json:"id"`
	Type          ConflictType `json:"type"`
	Severity      int          `json:"severity"`
	EmployeeID    string       `json:"employee_id,omitempty"`
	ShiftID       string       `json:"shift_id,omitempty"`
	AssignmentIDs []string     `json:"assignment_ids"`
	MissingSkills []string     `json:"missing_skills,omitempty"`
	Description   string       `json:"description"`
}

// DetectionResult lists the conflicts found in a schedule, in detection order
type DetectionResult struct {
	HasConflicts  bool       `json:"has_conflicts"`
	ConflictCount int        `json:"conflict_count"`
	Conflicts     []Conflict `json:"conflicts"`
	DetectedAt    time.Time  `json:"detected_at"`
}

// ResolutionStrategy selects how conflicts are handled
type ResolutionStrategy string

const (
	StrategyAuto   ResolutionStrategy = "AUTO"
	StrategyManual ResolutionStrategy = "MANUAL"
)

// ChangeKind is the kind of edit a resolution makes
type ChangeKind string

const (
	ChangeReassign ChangeKind = "REASSIGN"
	ChangeRemove   ChangeKind = "REMOVE"
)

// Change is one edit to a schedule made while resolving a conflict
type Change struct {
	Kind          ChangeKind `json:"kind"`
	AssignmentID  string     `json:"assignment_id"`
	NewEmployeeID string     `json:"new_employee_id,omitempty"`
	ConflictID    string     `json:"conflict_id"`
}

// Resolution is the outcome of resolving a set of conflicts
type Resolution struct {
	Strategy             ResolutionStrategy `json:"strategy"`
	ResolutionSuccessful bool               `json:"resolution_successful"`
	ResolvedCount        int                `json:"resolved_count"`
	Unresolved           []Conflict         `json:"unresolved"`
	Changes              []Change           `json:"changes"`
}
