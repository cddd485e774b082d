package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
	"github.com/erp/attendance/internal/infrastructure/persistence/models"
)

// GormPunchRepository implements attendance.PunchStore
type GormPunchRepository struct {
	db *gorm.DB
}

// NewGormPunchRepository creates a new GormPunchRepository
func NewGormPunchRepository(db *gorm.DB) *GormPunchRepository {
	return &GormPunchRepository{db: db}
}

// SavePunch inserts a punch record
func (r *GormPunchRepository) SavePunch(ctx context.Context, record *worktime.PunchRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("%w: punch id is required", shared.ErrInvalidInput)
	}
	return r.db.WithContext(ctx).Create(models.PunchRecordModelFromDomain(record)).Error
}

// ListBetween returns the employee's punches in [from, to], oldest first.
// Timestamps come back in UTC.
func (r *GormPunchRepository) ListBetween(ctx context.Context, employeeID string, from, to time.Time) ([]worktime.PunchRecord, error) {
	var rows []models.PunchRecordModel
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND punched_at >= ? AND punched_at <= ?", employeeID, from.UTC(), to.UTC()).
		Order("punched_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	records := make([]worktime.PunchRecord, 0, len(rows))
	for i := range rows {
		rec := rows[i].ToDomain()
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	return records, nil
}
