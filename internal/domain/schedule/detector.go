package schedule

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Limits caps the scheduled working time per employee
type Limits struct {
	MaxDailyMinutes  int
	MaxWeeklyMinutes int
}

// DefaultLimits returns 12 hours per day and 60 hours per week
func DefaultLimits() Limits {
	return Limits{MaxDailyMinutes: 12 * 60, MaxWeeklyMinutes: 60 * 60}
}

// Detector finds policy violations in a ScheduleData.
// Checks run in a fixed order: overlap, skill, work hour, capacity.
type Detector struct {
	limits Limits
	newID  func() string
	now    func() time.Time
}

// DetectorOption configures a Detector
type DetectorOption func(*Detector)

// WithLimits overrides the work-hour limits. Non-positive values keep the default.
func WithLimits(l Limits) DetectorOption {
	return func(d *Detector) {
		if l.MaxDailyMinutes > 0 {
			d.limits.MaxDailyMinutes = l.MaxDailyMinutes
		}
		if l.MaxWeeklyMinutes > 0 {
			d.limits.MaxWeeklyMinutes = l.MaxWeeklyMinutes
		}
	}
}

// WithIDGenerator replaces the UUID conflict ID generator
func WithIDGenerator(fn func() string) DetectorOption {
	return func(d *Detector) {
		d.newID = fn
	}
}

// WithDetectorClock overrides the detection timestamp source
func WithDetectorClock(now func() time.Time) DetectorOption {
	return func(d *Detector) {
		d.now = now
	}
}

// NewDetector creates a Detector
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		limits: DefaultLimits(),
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect examines data and returns every conflict found. A nil or empty
// schedule has no conflicts.
func (d *Detector) Detect(data *ScheduleData) *DetectionResult {
	result := &DetectionResult{Conflicts: []Conflict{}, DetectedAt: d.now()}
	if data == nil || len(data.Assignments) == 0 {
		return result
	}

	result.Conflicts = append(result.Conflicts, d.overlaps(data)...)
	result.Conflicts = append(result.Conflicts, d.skills(data)...)
	result.Conflicts = append(result.Conflicts, d.workHours(data)...)
	result.Conflicts = append(result.Conflicts, d.capacity(data)...)

	result.ConflictCount = len(result.Conflicts)
	result.HasConflicts = result.ConflictCount > 0
	return result
}

func (d *Detector) overlaps(data *ScheduleData) []Conflict {
	var out []Conflict
	for _, employee := range employeesInOrder(data.Assignments) {
		mine := byEmployee(data.Assignments, employee)
		sort.SliceStable(mine, func(i, j int) bool { return mine[i].Start.Before(mine[j].Start) })

		for i := 0; i < len(mine); i++ {
			for j := i + 1; j < len(mine); j++ {
				a, b := mine[i], mine[j]
				if !a.overlaps(b) {
					continue
				}
				minutes := overlapMinutes(a, b)
				out = append(out, Conflict{
					ID:            d.newID(),
					Type:          ConflictOverlap,
					Severity:      overlapSeverity(minutes),
					EmployeeID:    employee,
					AssignmentIDs: []string{a.ID, b.ID},
					Description: fmt.Sprintf("employee %s is double-booked for %d minutes (%s, %s)",
						employee, minutes, a.ID, b.ID),
				})
			}
		}
	}
	return out
}

func overlapMinutes(a, b Assignment) int {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return int(end.Sub(start) / time.Minute)
}

func overlapSeverity(minutes int) int {
	switch {
	case minutes >= 480:
		return 5
	case minutes >= 240:
		return 4
	case minutes >= 120:
		return 3
	case minutes >= 60:
		return 2
	default:
		return 1
	}
}

func (d *Detector) skills(data *ScheduleData) []Conflict {
	var out []Conflict
	for _, a := range data.Assignments {
		required := data.ShiftRequirements[a.ShiftID]
		missing := missingSkills(required, data.EmployeeSkills[a.EmployeeID])
		if len(missing) == 0 {
			continue
		}
		out = append(out, Conflict{
			ID:            d.newID(),
			Type:          ConflictSkill,
			Severity:      skillSeverity(required, missing),
			EmployeeID:    a.EmployeeID,
			ShiftID:       a.ShiftID,
			AssignmentIDs: []string{a.ID},
			MissingSkills: missing,
			Description: fmt.Sprintf("employee %s lacks %s required by shift %s",
				a.EmployeeID, strings.Join(missing, ", "), a.ShiftID),
		})
	}
	return out
}

func missingSkills(required, held []string) []string {
	var missing []string
	for _, s := range required {
		if !slices.Contains(held, s) {
			missing = append(missing, s)
		}
	}
	return missing
}

// skillSeverity ranks by the share of required skills missing; the first
// three required skills are treated as core.
func skillSeverity(required, missing []string) int {
	switch {
	case len(missing) == len(required):
		return 5
	case len(missing)*2 >= len(required):
		return 4
	}
	core := required[:min(3, len(required))]
	for _, s := range missing {
		if slices.Contains(core, s) {
			return 3
		}
	}
	return 2
}

type weekKey struct {
	year, week int
}

func (d *Detector) workHours(data *ScheduleData) []Conflict {
	maxDaily := minutesToHours(d.limits.MaxDailyMinutes)
	maxWeekly := minutesToHours(d.limits.MaxWeeklyMinutes)

	var out []Conflict
	for _, employee := range employeesInOrder(data.Assignments) {
		daily := make(map[string]decimal.Decimal)
		dailyIDs := make(map[string][]string)
		weekly := make(map[weekKey]decimal.Decimal)
		weeklyIDs := make(map[weekKey][]string)
		var days []string
		var weeks []weekKey

		for _, a := range byEmployee(data.Assignments, employee) {
			hours := minutesToHours(a.Minutes())

			day := a.Start.Format("2006-01-02")
			if _, seen := daily[day]; !seen {
				days = append(days, day)
			}
			daily[day] = daily[day].Add(hours)
			dailyIDs[day] = append(dailyIDs[day], a.ID)

			y, w := a.Start.ISOWeek()
			wk := weekKey{y, w}
			if _, seen := weekly[wk]; !seen {
				weeks = append(weeks, wk)
			}
			weekly[wk] = weekly[wk].Add(hours)
			weeklyIDs[wk] = append(weeklyIDs[wk], a.ID)
		}

		sort.Strings(days)
		for _, day := range days {
			if daily[day].GreaterThan(maxDaily) {
				out = append(out, Conflict{
					ID:            d.newID(),
					Type:          ConflictWorkHour,
					Severity:      4,
					EmployeeID:    employee,
					AssignmentIDs: dailyIDs[day],
					Description: fmt.Sprintf("employee %s is scheduled %s hours on %s (limit %s)",
						employee, daily[day].StringFixed(2), day, maxDaily.StringFixed(2)),
				})
			}
		}
		sort.Slice(weeks, func(i, j int) bool {
			if weeks[i].year != weeks[j].year {
				return weeks[i].year < weeks[j].year
			}
			return weeks[i].week < weeks[j].week
		})
		for _, wk := range weeks {
			if weekly[wk].GreaterThan(maxWeekly) {
				out = append(out, Conflict{
					ID:            d.newID(),
					Type:          ConflictWorkHour,
					Severity:      3,
					EmployeeID:    employee,
					AssignmentIDs: weeklyIDs[wk],
					Description: fmt.Sprintf("employee %s is scheduled %s hours in week %d-W%02d (limit %s)",
						employee, weekly[wk].StringFixed(2), wk.year, wk.week, maxWeekly.StringFixed(2)),
				})
			}
		}
	}
	return out
}

func minutesToHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
}

func (d *Detector) capacity(data *ScheduleData) []Conflict {
	var out []Conflict
	for _, shift := range shiftsInOrder(data.Assignments) {
		limit, ok := data.ShiftCapacities[shift]
		if !ok || limit <= 0 {
			continue
		}
		var ids []string
		for _, a := range data.Assignments {
			if a.ShiftID == shift {
				ids = append(ids, a.ID)
			}
		}
		if len(ids) <= limit {
			continue
		}
		overload := (len(ids) - limit) * 100 / limit
		out = append(out, Conflict{
			ID:            d.newID(),
			Type:          ConflictCapacity,
			Severity:      capacitySeverity(overload),
			ShiftID:       shift,
			AssignmentIDs: ids,
			Description:   fmt.Sprintf("shift %s has %d assignments for capacity %d", shift, len(ids), limit),
		})
	}
	return out
}

func capacitySeverity(overloadPercent int) int {
	switch {
	case overloadPercent >= 50:
		return 5
	case overloadPercent >= 30:
		return 4
	case overloadPercent >= 10:
		return 3
	default:
		return 2
	}
}

func employeesInOrder(as []Assignment) []string {
	var out []string
	for _, a := range as {
		if !slices.Contains(out, a.EmployeeID) {
			out = append(out, a.EmployeeID)
		}
	}
	return out
}

func shiftsInOrder(as []Assignment) []string {
	var out []string
	for _, a := range as {
		if !slices.Contains(out, a.ShiftID) {
			out = append(out, a.ShiftID)
		}
	}
	return out
}

func byEmployee(as []Assignment, employee string) []Assignment {
	var out []Assignment
	for _, a := range as {
		if a.EmployeeID == employee {
			out = append(out, a)
		}
	}
	return out
}
