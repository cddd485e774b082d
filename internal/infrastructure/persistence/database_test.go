package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/attendance/internal/domain/shared"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	db, err := NewDatabaseWithDialector(dialector, nil, gormlogger.Silent)
	require.NoError(t, err)

	return db, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("successful ping", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectPing()

		require.NoError(t, db.Ping())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, stats.InUse)
	assert.Equal(t, time.Duration(0), stats.WaitDuration)
}

func TestGormRuleRepository_CategoryQuery(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormRuleRepository(db.DB)

	mock.ExpectQuery(`SELECT .*id.* FROM "attendance_rules" WHERE active = \$1 AND category = \$2 ORDER BY priority ASC,id ASC`).
		WithArgs(true, "attendance").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("early").AddRow("late"))

	ids, err := repo.GetRulesByCategory(context.Background(), "attendance")

	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormShiftRepository_DriverErrorIsNotNotFound(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormShiftRepository(db.DB)

	mock.ExpectQuery(`SELECT \* FROM "employee_shifts" WHERE employee_id = \$1 AND work_date = \$2`).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ShiftFor(context.Background(), "emp-1", time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC))

	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGormPunchRepository_ListQueryUsesUTC(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormPunchRepository(db.DB)

	cet := time.FixedZone("CET", 3600)
	from := time.Date(2024, time.March, 4, 8, 0, 0, 0, cet)
	to := time.Date(2024, time.March, 4, 20, 0, 0, 0, cet)
	mock.ExpectQuery(`SELECT \* FROM "punch_records" WHERE employee_id = \$1 AND punched_at >= \$2 AND punched_at <= \$3 ORDER BY punched_at ASC,id ASC`).
		WithArgs("emp-1", from.UTC(), to.UTC()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "employee_id", "device_id", "punched_at", "type", "created_at"}).
			AddRow("p1", "emp-1", "gate-1", time.Date(2024, time.March, 4, 8, 5, 0, 0, time.UTC), "IN", time.Now()))

	records, err := repo.ListBetween(context.Background(), "emp-1", from, to)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "p1", records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
