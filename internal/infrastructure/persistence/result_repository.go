package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/attendance/internal/application/attendance"
	"github.com/erp/attendance/internal/infrastructure/persistence/models"
)

// GormResultRepository implements attendance.ResultStore
type GormResultRepository struct {
	db *gorm.DB
}

// NewGormResultRepository creates a new GormResultRepository
func NewGormResultRepository(db *gorm.DB) *GormResultRepository {
	return &GormResultRepository{db: db}
}

// SaveResult stores the result under a new ID
func (r *GormResultRepository) SaveResult(ctx context.Context, result *attendance.ProcessResult) error {
	model, err := resultModel(result)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// ResultQuery selects an employee's stored results. SortBy and SortOrder
// go through ParseResultSort.
type ResultQuery struct {
	EmployeeID string
	Limit      int
	SortBy     string
	SortOrder  string
}

// ListForEmployee returns the employee's stored results, newest first unless
// the query asks otherwise
func (r *GormResultRepository) ListForEmployee(ctx context.Context, query ResultQuery) ([]models.AttendanceResultModel, error) {
	var rows []models.AttendanceResultModel
	q := r.db.WithContext(ctx).
		Where("employee_id = ?", query.EmployeeID).
		Order(ParseResultSort(query.SortBy, query.SortOrder).Clause()).
		Order("id ASC")
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func resultModel(result *attendance.ProcessResult) (*models.AttendanceResultModel, error) {
	m := &models.AttendanceResultModel{
		ID:          uuid.New().String(),
		EventID:     result.EventID,
		DeviceID:    result.DeviceID,
		EmployeeID:  result.EmployeeID,
		PunchID:     result.PunchID,
		Outcome:     string(result.Outcome),
		Message:     result.Message,
		ProcessedAt: result.ProcessedAt.UTC(),
	}
	calc := result.Calculation
	if calc == nil {
		return m, nil
	}

	m.WorkDate = calc.Date.Format(time.DateOnly)
	m.ShiftID = calc.ShiftID
	if calc.Result != nil {
		m.Status = calc.Result.Status
		doc, err := jsonDocument(calc.Result)
		if err != nil {
			return nil, fmt.Errorf("encode calculation: %w", err)
		}
		m.CalculationJSON = doc
	}
	if len(calc.Rules) > 0 {
		doc, err := jsonDocument(calc.Rules)
		if err != nil {
			return nil, fmt.Errorf("encode rule results: %w", err)
		}
		m.RulesJSON = doc
	}
	return m, nil
}

func jsonDocument(v any) (*string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

var (
	_ attendance.ResultStore = (*GormResultRepository)(nil)
	_ attendance.PunchStore  = (*GormPunchRepository)(nil)
	_ attendance.ShiftSource = (*GormShiftRepository)(nil)
)
