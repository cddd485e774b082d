package models

import (
	"time"

	"github.com/erp/attendance/internal/domain/worktime"
)

// PunchRecordModel is the persistence model for worktime.PunchRecord.
// PunchedAt is stored in UTC.
type PunchRecordModel struct {
	ID         string             `gorm:"type:varchar(64);primaryKey"`
	EmployeeID string             `gorm:"type:varchar(64);not null;index:idx_punch_employee_time,priority:1"`
	DeviceID   string             `gorm:"type:varchar(64);not null;default:''"`
	PunchedAt  time.Time          `gorm:"not null;index:idx_punch_employee_time,priority:2"`
	Type       worktime.PunchType `gorm:"type:varchar(8);not null"`
	CreatedAt  time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PunchRecordModel) TableName() string {
	return "punch_records"
}

// ToDomain converts the model to a punch record
func (m *PunchRecordModel) ToDomain() worktime.PunchRecord {
	return worktime.PunchRecord{
		ID:         m.ID,
		EmployeeID: m.EmployeeID,
		DeviceID:   m.DeviceID,
		Timestamp:  m.PunchedAt,
		Type:       m.Type,
	}
}

// PunchRecordModelFromDomain converts a punch record to its model
func PunchRecordModelFromDomain(r *worktime.PunchRecord) *PunchRecordModel {
	return &PunchRecordModel{
		ID:         r.ID,
		EmployeeID: r.EmployeeID,
		DeviceID:   r.DeviceID,
		PunchedAt:  r.Timestamp.UTC(),
		Type:       r.Type,
	}
}

// AttendanceResultModel stores one processed punch, whatever its outcome.
// The calculation and rule verdicts are kept as JSON documents.
type AttendanceResultModel struct {
	ID              string          `gorm:"type:varchar(64);primaryKey"`
	EventID         string          `gorm:"type:varchar(64);not null;default:'';index"`
	DeviceID        string          `gorm:"type:varchar(64);not null;default:''"`
	EmployeeID      string          `gorm:"type:varchar(64);not null;default:'';index"`
	PunchID         string          `gorm:"type:varchar(64);not null;default:''"`
	Outcome         string          `gorm:"type:varchar(20);not null;index"`
	Message         string          `gorm:"type:text;not null;default:''"`
	WorkDate        string          `gorm:"type:varchar(10);not null;default:''"`
	ShiftID         string          `gorm:"type:varchar(64);not null;default:''"`
	Status          worktime.Status `gorm:"type:varchar(32);not null;default:''"`
	CalculationJSON *string         `gorm:"column:calculation;type:jsonb"`
	RulesJSON       *string         `gorm:"column:rules;type:jsonb"`
	ProcessedAt     time.Time       `gorm:"not null"`
	CreatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AttendanceResultModel) TableName() string {
	return "attendance_results"
}
