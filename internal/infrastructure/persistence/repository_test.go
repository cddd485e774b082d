package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/attendance/internal/application/attendance"
	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
	"github.com/erp/attendance/internal/infrastructure/persistence/models"
)

func setupTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabaseWithDialector(sqlite.Open(":memory:"), nil, gormlogger.Silent)
	require.NoError(t, err)

	// Every pooled connection to :memory: would get its own empty database
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func lateRule(id string, priority int, active bool) *rule.Definition {
	return &rule.Definition{
		ID:        id,
		Name:      "Late arrival",
		Type:      rule.TypeCondition,
		Condition: "lateMinutes > 5",
		Action:    "FLAG:level=warning",
		Category:  "attendance",
		Priority:  priority,
		Active:    active,
	}
}

func TestGormRuleRepository_SaveAndGet(t *testing.T) {
	repo := NewGormRuleRepository(setupTestDatabase(t).DB)
	ctx := context.Background()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	def := lateRule("late", 1, true)
	def.Scope = rule.Scope{Departments: []string{"ops"}, StartDate: &start}
	require.NoError(t, repo.Save(ctx, def))

	got, err := repo.Get(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, "late", got.ID)
	assert.Equal(t, rule.TypeCondition, got.Type)
	assert.Equal(t, "lateMinutes > 5", got.Condition)
	assert.Equal(t, "FLAG:level=warning", got.Action)
	assert.True(t, got.Active)
	assert.Equal(t, []string{"ops"}, got.Scope.Departments)
	require.NotNil(t, got.Scope.StartDate)
	assert.True(t, start.Equal(*got.Scope.StartDate))
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestGormRuleRepository_SaveUpserts(t *testing.T) {
	repo := NewGormRuleRepository(setupTestDatabase(t).DB)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, lateRule("late", 1, true)))
	updated := lateRule("late", 3, false)
	updated.Condition = "lateMinutes > 15"
	require.NoError(t, repo.Save(ctx, updated))

	got, err := repo.Get(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, "lateMinutes > 15", got.Condition)
	assert.Equal(t, 3, got.Priority)
	assert.False(t, got.Active)
}

func TestGormRuleRepository_Source(t *testing.T) {
	repo := NewGormRuleRepository(setupTestDatabase(t).DB)
	ctx := context.Background()

	overtime := lateRule("overtime", 2, true)
	overtime.Category = "overtime"
	for _, def := range []*rule.Definition{
		lateRule("late-b", 5, true),
		lateRule("late-a", 5, true),
		lateRule("early", 1, true),
		lateRule("retired", 0, false),
		overtime,
	} {
		require.NoError(t, repo.Save(ctx, def))
	}

	ids, err := repo.GetRulesByCategory(ctx, "attendance")
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late-a", "late-b"}, ids)

	all, err := repo.LoadAllActiveRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "overtime", "late-a", "late-b"}, all)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 4)

	none, err := repo.GetRulesByCategory(ctx, "payroll")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormRuleRepository_NotFound(t *testing.T) {
	repo := NewGormRuleRepository(setupTestDatabase(t).DB)
	ctx := context.Background()

	_, err := repo.LoadRuleConfig(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "missing"), shared.ErrNotFound)

	require.NoError(t, repo.Save(ctx, lateRule("late", 1, true)))
	require.NoError(t, repo.Delete(ctx, "late"))
	_, err = repo.Get(ctx, "late")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormRuleRepository_RejectsMissingID(t *testing.T) {
	repo := NewGormRuleRepository(setupTestDatabase(t).DB)

	err := repo.Save(context.Background(), &rule.Definition{Condition: "a > 1"})

	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGormShiftRepository_ShiftFor(t *testing.T) {
	repo := NewGormShiftRepository(setupTestDatabase(t).DB)
	ctx := context.Background()

	earliest, latest := worktime.NewClockTime(7, 0), worktime.NewClockTime(10, 0)
	flex := &worktime.WorkShift{
		ID:                "flex",
		Name:              "Office flex",
		Family:            worktime.FamilyFlexible,
		StartTime:         worktime.NewClockTime(8, 0),
		EndTime:           worktime.NewClockTime(17, 0),
		FlexStartEarliest: &earliest,
		FlexStartLatest:   &latest,
		BreakMinutes:      60,
		CoreMinutes:       300,
	}
	require.NoError(t, repo.Save(ctx, flex))
	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Assign(ctx, "emp-1", day, "flex"))

	got, err := repo.ShiftFor(ctx, "emp-1", day.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, flex, got)

	_, err = repo.ShiftFor(ctx, "emp-1", day.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = repo.ShiftFor(ctx, "emp-2", day)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormShiftRepository_AssignReplaces(t *testing.T) {
	repo := NewGormShiftRepository(setupTestDatabase(t).DB)
	ctx := context.Background()

	for _, s := range []*worktime.WorkShift{
		{ID: "day", Family: worktime.FamilyStandard, StartTime: worktime.NewClockTime(9, 0), EndTime: worktime.NewClockTime(18, 0)},
		{ID: "night", Family: worktime.FamilyRotating, StartTime: worktime.NewClockTime(22, 0), EndTime: worktime.NewClockTime(6, 0)},
	} {
		require.NoError(t, repo.Save(ctx, s))
	}
	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Assign(ctx, "emp-1", day, "day"))
	require.NoError(t, repo.Assign(ctx, "emp-1", day, "night"))

	got, err := repo.ShiftFor(ctx, "emp-1", day)
	require.NoError(t, err)
	assert.Equal(t, "night", got.ID)
	assert.True(t, got.IsOvernight())
}

func TestGormShiftRepository_RejectsUnknownFamily(t *testing.T) {
	repo := NewGormShiftRepository(setupTestDatabase(t).DB)

	err := repo.Save(context.Background(), &worktime.WorkShift{ID: "x", Family: "SPLIT"})

	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGormPunchRepository_ListBetween(t *testing.T) {
	repo := NewGormPunchRepository(setupTestDatabase(t).DB)
	ctx := context.Background()

	cet := time.FixedZone("CET", 3600)
	at := func(day, hour int) time.Time { return time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC) }
	for _, p := range []worktime.PunchRecord{
		{ID: "p2", EmployeeID: "emp-1", Timestamp: at(4, 18), Type: worktime.PunchOut},
		{ID: "p1", EmployeeID: "emp-1", Timestamp: at(4, 9).In(cet), Type: worktime.PunchIn, DeviceID: "gate-1"},
		{ID: "p3", EmployeeID: "emp-1", Timestamp: at(5, 9), Type: worktime.PunchIn},
		{ID: "p4", EmployeeID: "emp-2", Timestamp: at(4, 10), Type: worktime.PunchIn},
	} {
		require.NoError(t, repo.SavePunch(ctx, &p))
	}

	records, err := repo.ListBetween(ctx, "emp-1", at(4, 9), at(4, 18))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "p1", records[0].ID)
	assert.Equal(t, "gate-1", records[0].DeviceID)
	assert.True(t, at(4, 9).Equal(records[0].Timestamp))
	assert.Equal(t, time.UTC, records[0].Timestamp.Location())
	assert.Equal(t, "p2", records[1].ID)
	assert.Equal(t, worktime.PunchOut, records[1].Type)

	empty, err := repo.ListBetween(ctx, "emp-1", at(6, 0), at(7, 0))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormResultRepository_SaveResult(t *testing.T) {
	db := setupTestDatabase(t)
	repo := NewGormResultRepository(db.DB)
	ctx := context.Background()

	processed := time.Date(2024, time.March, 4, 18, 0, 1, 0, time.UTC)
	success := &attendance.ProcessResult{
		EventID:    "evt-1",
		DeviceID:   "gate-1",
		Outcome:    attendance.OutcomeSuccess,
		EmployeeID: "emp-1",
		PunchID:    "p2",
		Calculation: &attendance.Calculation{
			Date:    time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
			ShiftID: "day",
			Result:  &worktime.CalculateResult{Strategy: "standard", Status: worktime.StatusLate, LateMinutes: 5},
			Rules:   []*rule.EvaluationResult{{RuleID: "late", Verdict: rule.VerdictMatched}},
		},
		ProcessedAt: processed,
	}
	denied := &attendance.ProcessResult{
		DeviceID:    "gate-2",
		Outcome:     attendance.OutcomeDenied,
		Message:     "credential not recognized",
		ProcessedAt: processed.Add(-time.Hour),
	}
	require.NoError(t, repo.SaveResult(ctx, success))
	require.NoError(t, repo.SaveResult(ctx, denied))

	rows, err := repo.ListForEmployee(ctx, ResultQuery{EmployeeID: "emp-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.NotEmpty(t, row.ID)
	assert.Equal(t, "SUCCESS", row.Outcome)
	assert.Equal(t, "2024-03-04", row.WorkDate)
	assert.Equal(t, "day", row.ShiftID)
	assert.Equal(t, worktime.StatusLate, row.Status)
	require.NotNil(t, row.CalculationJSON)
	assert.Contains(t, *row.CalculationJSON, `"late_minutes":5`)
	require.NotNil(t, row.RulesJSON)
	assert.Contains(t, *row.RulesJSON, `"rule_id":"late"`)

	var deniedRow models.AttendanceResultModel
	require.NoError(t, db.DB.Where("outcome = ?", "DENIED").First(&deniedRow).Error)
	assert.Equal(t, "credential not recognized", deniedRow.Message)
	assert.Nil(t, deniedRow.CalculationJSON)
	assert.Nil(t, deniedRow.RulesJSON)
}
