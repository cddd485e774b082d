package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/infrastructure/persistence/models"
)

// GormRuleRepository stores rule definitions and serves them to the engine
type GormRuleRepository struct {
	db *gorm.DB
}

// NewGormRuleRepository creates a new GormRuleRepository
func NewGormRuleRepository(db *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormRuleRepository) WithTx(tx *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: tx}
}

// Save inserts the definition or replaces the stored one with the same ID
func (r *GormRuleRepository) Save(ctx context.Context, def *rule.Definition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("%w: rule id is required", shared.ErrInvalidInput)
	}
	model, err := models.AttendanceRuleModelFromDomain(def)
	if err != nil {
		return fmt.Errorf("encode rule %s: %w", def.ID, err)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "type", "condition", "action", "category",
				"priority", "active", "scope", "updated_at",
			}),
		}).
		Create(model).Error
}

// Get finds a rule by ID
func (r *GormRuleRepository) Get(ctx context.Context, id string) (*rule.Definition, error) {
	var model models.AttendanceRuleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: rule %s", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListActive returns all active rules, highest precedence first
func (r *GormRuleRepository) ListActive(ctx context.Context) ([]*rule.Definition, error) {
	var rows []models.AttendanceRuleModel
	if err := r.active(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	defs := make([]*rule.Definition, 0, len(rows))
	for i := range rows {
		defs = append(defs, rows[i].ToDomain())
	}
	return defs, nil
}

// Delete removes a rule. Deleting a missing rule returns ErrNotFound.
func (r *GormRuleRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.AttendanceRuleModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: rule %s", shared.ErrNotFound, id)
	}
	return nil
}

// LoadRuleConfig implements rule.Source
func (r *GormRuleRepository) LoadRuleConfig(ctx context.Context, ruleID string) (*rule.Definition, error) {
	return r.Get(ctx, ruleID)
}

// GetRulesByCategory implements rule.Source; only active rules are listed
func (r *GormRuleRepository) GetRulesByCategory(ctx context.Context, category string) ([]string, error) {
	var ids []string
	if err := r.active(ctx).Where("category = ?", category).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// LoadAllActiveRules implements rule.Source
func (r *GormRuleRepository) LoadAllActiveRules(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.active(ctx).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormRuleRepository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.AttendanceRuleModel{}).
		Where("active = ?", true).
		Order("priority ASC").
		Order("id ASC")
}

var _ rule.Source = (*GormRuleRepository)(nil)
