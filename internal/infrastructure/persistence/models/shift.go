package models

import (
	"fmt"

	"github.com/erp/attendance/internal/domain/worktime"
)

// WorkShiftModel is the persistence model for worktime.WorkShift.
// Clock times are stored as "HH:MM".
type WorkShiftModel struct {
	ID                 string               `gorm:"type:varchar(64);primaryKey"`
	Name               string               `gorm:"type:varchar(200);not null;default:''"`
	Family             worktime.ShiftFamily `gorm:"type:varchar(20);not null"`
	StartTime          string               `gorm:"type:varchar(5);not null"`
	EndTime            string               `gorm:"type:varchar(5);not null"`
	FlexStartEarliest  *string              `gorm:"type:varchar(5)"`
	FlexStartLatest    *string              `gorm:"type:varchar(5)"`
	BreakMinutes       int                  `gorm:"not null;default:0"`
	WorkMinutes        int                  `gorm:"not null;default:0"`
	CoreMinutes        int                  `gorm:"not null;default:0"`
	MinOvertimeMinutes int                  `gorm:"not null;default:0"`
	PunchWindowMinutes int                  `gorm:"not null;default:0"`
	FlexWindowMinutes  int                  `gorm:"not null;default:0"`
	Timestamps
}

// TableName returns the table name for GORM
func (WorkShiftModel) TableName() string {
	return "work_shifts"
}

// ToDomain converts the model to a shift definition
func (m *WorkShiftModel) ToDomain() (*worktime.WorkShift, error) {
	start, err := worktime.ParseClockTime(m.StartTime)
	if err != nil {
		return nil, fmt.Errorf("shift %s start: %w", m.ID, err)
	}
	end, err := worktime.ParseClockTime(m.EndTime)
	if err != nil {
		return nil, fmt.Errorf("shift %s end: %w", m.ID, err)
	}
	shift := &worktime.WorkShift{
		ID:                 m.ID,
		Name:               m.Name,
		Family:             m.Family,
		StartTime:          start,
		EndTime:            end,
		BreakMinutes:       m.BreakMinutes,
		WorkMinutes:        m.WorkMinutes,
		CoreMinutes:        m.CoreMinutes,
		MinOvertimeMinutes: m.MinOvertimeMinutes,
		PunchWindowMinutes: m.PunchWindowMinutes,
		FlexWindowMinutes:  m.FlexWindowMinutes,
	}
	if shift.FlexStartEarliest, err = parseOptionalClock(m.FlexStartEarliest); err != nil {
		return nil, fmt.Errorf("shift %s flex start: %w", m.ID, err)
	}
	if shift.FlexStartLatest, err = parseOptionalClock(m.FlexStartLatest); err != nil {
		return nil, fmt.Errorf("shift %s flex start: %w", m.ID, err)
	}
	return shift, nil
}

// WorkShiftModelFromDomain converts a shift definition to its model
func WorkShiftModelFromDomain(s *worktime.WorkShift) *WorkShiftModel {
	return &WorkShiftModel{
		ID:                 s.ID,
		Name:               s.Name,
		Family:             s.Family,
		StartTime:          s.StartTime.String(),
		EndTime:            s.EndTime.String(),
		FlexStartEarliest:  formatOptionalClock(s.FlexStartEarliest),
		FlexStartLatest:    formatOptionalClock(s.FlexStartLatest),
		BreakMinutes:       s.BreakMinutes,
		WorkMinutes:        s.WorkMinutes,
		CoreMinutes:        s.CoreMinutes,
		MinOvertimeMinutes: s.MinOvertimeMinutes,
		PunchWindowMinutes: s.PunchWindowMinutes,
		FlexWindowMinutes:  s.FlexWindowMinutes,
	}
}

func parseOptionalClock(s *string) (*worktime.ClockTime, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	c, err := worktime.ParseClockTime(*s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func formatOptionalClock(c *worktime.ClockTime) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

// EmployeeShiftModel assigns a shift to an employee for one calendar day
type EmployeeShiftModel struct {
	EmployeeID string `gorm:"type:varchar(64);primaryKey"`
	WorkDate   string `gorm:"type:varchar(10);primaryKey"` // YYYY-MM-DD
	ShiftID    string `gorm:"type:varchar(64);not null;index"`
	Timestamps
}

// TableName returns the table name for GORM
func (EmployeeShiftModel) TableName() string {
	return "employee_shifts"
}
