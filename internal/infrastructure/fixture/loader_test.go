package fixture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRules(t *testing.T) {
	path := writeFixture(t, `
rules:
  - id: late-arrival
    name: Late arrival
    type: CONDITION
    condition: "lateMinutes > 0"
    category: ARRIVAL
    priority: 10
    active: true
    scope:
      departments: [ops]
  - id: long-day
    type: CEL
    condition: "workMinutes > 600"
    priority: 5
`)

	defs, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "late-arrival", defs[0].ID)
	assert.Equal(t, rule.TypeCondition, defs[0].Type)
	assert.Equal(t, "ARRIVAL", defs[0].Category)
	assert.True(t, defs[0].Active)
	assert.Equal(t, []string{"ops"}, defs[0].Scope.Departments)

	assert.Equal(t, rule.TypeCEL, defs[1].Type)
	assert.False(t, defs[1].Active)
}

func TestLoadRules_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "missing condition",
			content: "rules:\n  - id: r1\n    type: CEL\n",
			errMsg:  "rule #1",
		},
		{
			name:    "unknown type",
			content: "rules:\n  - id: r1\n    type: LUA\n    condition: x\n",
			errMsg:  `unknown type "LUA"`,
		},
		{
			name:    "duplicate id",
			content: "rules:\n  - {id: r1, type: CEL, condition: a}\n  - {id: r1, type: CEL, condition: b}\n",
			errMsg:  "duplicate rule id r1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(writeFixture(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadRules_FileErrors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = LoadRules(writeFixture(t, "rules: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestLoadShift(t *testing.T) {
	path := writeFixture(t, `
id: flex
name: Flexible office
family: FLEXIBLE
start_time: "09:00"
end_time: "18:00"
flex_start_earliest: "07:30"
flex_start_latest: "10:00"
break_minutes: 60
`)

	shift, err := LoadShift(path)
	require.NoError(t, err)
	assert.Equal(t, worktime.FamilyFlexible, shift.Family)
	assert.Equal(t, worktime.NewClockTime(9, 0), shift.StartTime)
	require.NotNil(t, shift.FlexStartEarliest)
	assert.Equal(t, worktime.NewClockTime(7, 30), *shift.FlexStartEarliest)
	assert.Equal(t, 60, shift.BreakMinutes)
}

func TestLoadShift_DefaultsFamily(t *testing.T) {
	shift, err := LoadShift(writeFixture(t, "id: day\nstart_time: \"09:00\"\nend_time: \"18:00\"\n"))
	require.NoError(t, err)
	assert.Equal(t, worktime.FamilyStandard, shift.Family)
}

func TestLoadShift_Invalid(t *testing.T) {
	_, err := LoadShift(writeFixture(t, "name: nameless\n"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = LoadShift(writeFixture(t, "id: x\nfamily: SPLIT\n"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = LoadShift(writeFixture(t, "id: x\nstart_time: \"25:00\"\n"))
	assert.Error(t, err)
}

func TestLoadPunches(t *testing.T) {
	path := writeFixture(t, `
punches:
  - employee_id: emp-1
    timestamp: 2024-03-04T09:05:00Z
    type: IN
  - id: p-out
    employee_id: emp-1
    timestamp: 2024-03-04T18:00:00Z
    type: OUT
`)

	punches, err := LoadPunches(path)
	require.NoError(t, err)
	require.Len(t, punches, 2)
	assert.Equal(t, "punch-1", punches[0].ID)
	assert.Equal(t, "p-out", punches[1].ID)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 5, 0, 0, time.UTC), punches[0].Timestamp.UTC())
	assert.Equal(t, worktime.PunchOut, punches[1].Type)
}

func TestLoadSchedule(t *testing.T) {
	path := writeFixture(t, `
id: week-10
assignments:
  - id: a1
    employee_id: emp-1
    shift_id: day
    start: 2024-03-04T09:00:00Z
    end: 2024-03-04T18:00:00Z
shift_capacities:
  day: 3
standby_employees: [emp-9]
`)

	data, err := LoadSchedule(path)
	require.NoError(t, err)
	assert.Equal(t, "week-10", data.ID)
	require.Len(t, data.Assignments, 1)
	assert.Equal(t, "day", data.Assignments[0].ShiftID)
	assert.Equal(t, 3, data.ShiftCapacities["day"])
	assert.Equal(t, []string{"emp-9"}, data.StandbyEmployees)
}

func TestLoadSchedule_Invalid(t *testing.T) {
	_, err := LoadSchedule(writeFixture(t, `
assignments:
  - id: a1
    employee_id: emp-1
    start: 2024-03-04T18:00:00Z
    end: 2024-03-04T09:00:00Z
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a1 ends before it starts")

	_, err = LoadSchedule(writeFixture(t, "assignments:\n  - id: a1\n"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestLoadContexts(t *testing.T) {
	path := writeFixture(t, `
contexts:
  - employee_id: emp-1
    department_id: ops
    date: 2024-03-04T00:00:00Z
    attributes:
      lateMinutes: 12
      remote: true
  - employee_id: emp-2
`)

	contexts, err := LoadContexts(path)
	require.NoError(t, err)
	require.Len(t, contexts, 2)
	assert.Equal(t, "ops", contexts[0].DepartmentID)
	assert.Equal(t, 12, contexts[0].Attributes["lateMinutes"])
	assert.Equal(t, true, contexts[0].Attributes["remote"])
	assert.NotNil(t, contexts[1].Attributes)
}
