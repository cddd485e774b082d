package telemetry_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/attendance/internal/infrastructure/telemetry"
)

type punchRow struct {
	ID         string `gorm:"primaryKey"`
	EmployeeID string
}

func (punchRow) TableName() string { return "punch_records" }

func openTracedSQLite(t *testing.T, cfg telemetry.DBTracingConfig) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&punchRow{}))
	require.NoError(t, telemetry.TraceDatabase(db, cfg, nil))
	return db
}

func statementSpans(sr *tracetest.SpanRecorder, table string) int {
	n := 0
	for _, span := range sr.Ended() {
		for _, kv := range span.Attributes() {
			if strings.Contains(kv.Value.Emit(), table) {
				n++
				break
			}
		}
	}
	return n
}

func TestTraceDatabase(t *testing.T) {
	t.Run("statements run in spans", func(t *testing.T) {
		sr := setupTestTracer(t)
		db := openTracedSQLite(t, telemetry.DBTracingConfig{Enabled: true})

		require.NoError(t, db.WithContext(context.Background()).Create(&punchRow{ID: "p-1", EmployeeID: "emp-1"}).Error)
		var rows []punchRow
		require.NoError(t, db.Where("employee_id = ?", "emp-1").Find(&rows).Error)

		assert.GreaterOrEqual(t, statementSpans(sr, "punch_records"), 2)
	})

	t.Run("bound values are hidden by default", func(t *testing.T) {
		sr := setupTestTracer(t)
		db := openTracedSQLite(t, telemetry.DBTracingConfig{Enabled: true})

		var rows []punchRow
		require.NoError(t, db.Where("employee_id = ?", "emp-secret").Find(&rows).Error)

		assert.Zero(t, statementSpans(sr, "emp-secret"))
	})

	t.Run("disabled registers nothing", func(t *testing.T) {
		sr := setupTestTracer(t)
		db := openTracedSQLite(t, telemetry.DBTracingConfig{})

		var rows []punchRow
		require.NoError(t, db.Find(&rows).Error)

		assert.Empty(t, sr.Ended())
	})
}
