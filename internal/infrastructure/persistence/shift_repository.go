package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
	"github.com/erp/attendance/internal/infrastructure/persistence/models"
)

// GormShiftRepository stores shift definitions and the per-day roster
type GormShiftRepository struct {
	db *gorm.DB
}

// NewGormShiftRepository creates a new GormShiftRepository
func NewGormShiftRepository(db *gorm.DB) *GormShiftRepository {
	return &GormShiftRepository{db: db}
}

// Save inserts or replaces a shift definition
func (r *GormShiftRepository) Save(ctx context.Context, shift *worktime.WorkShift) error {
	if shift == nil || shift.ID == "" {
		return fmt.Errorf("%w: shift id is required", shared.ErrInvalidInput)
	}
	if !shift.Family.IsValid() {
		return fmt.Errorf("%w: shift %s has unknown family %q", shared.ErrInvalidInput, shift.ID, shift.Family)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(models.WorkShiftModelFromDomain(shift)).Error
}

// Get finds a shift definition by ID
func (r *GormShiftRepository) Get(ctx context.Context, id string) (*worktime.WorkShift, error) {
	var model models.WorkShiftModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: shift %s", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return model.ToDomain()
}

// Assign rosters the employee on shiftID for the calendar day of day,
// replacing any earlier assignment for that day
func (r *GormShiftRepository) Assign(ctx context.Context, employeeID string, day time.Time, shiftID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}, {Name: "work_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"shift_id", "updated_at"}),
		}).
		Create(&models.EmployeeShiftModel{
			EmployeeID: employeeID,
			WorkDate:   day.Format(time.DateOnly),
			ShiftID:    shiftID,
		}).Error
}

// ShiftFor implements attendance.ShiftSource. An employee without a roster
// entry for the day is off and gets ErrNotFound.
func (r *GormShiftRepository) ShiftFor(ctx context.Context, employeeID string, day time.Time) (*worktime.WorkShift, error) {
	var entry models.EmployeeShiftModel
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND work_date = ?", employeeID, day.Format(time.DateOnly)).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no shift for %s on %s", shared.ErrNotFound, employeeID, day.Format(time.DateOnly))
		}
		return nil, err
	}
	return r.Get(ctx, entry.ShiftID)
}
