package models

import (
	"time"
)

// Timestamps provides the audit columns shared by every table
type Timestamps struct {
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// All returns one zero value of every model, in dependency order.
// Used for AutoMigrate in SQLite-backed tests; PostgreSQL uses the SQL migrations.
func All() []any {
	return []any{
		&AttendanceRuleModel{},
		&WorkShiftModel{},
		&EmployeeShiftModel{},
		&PunchRecordModel{},
		&AttendanceResultModel{},
	}
}
