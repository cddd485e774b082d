package models

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/rule"
)

// logger for model conversion errors (silent failures are logged for debugging)
var modelLogger = zap.L().Named("persistence.models")

// AttendanceRuleModel is the persistence model for rule.Definition
type AttendanceRuleModel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	Name      string    `gorm:"type:varchar(200);not null;default:''"`
	Type      rule.Type `gorm:"type:varchar(20);not null"`
	Condition string    `gorm:"type:text;not null"`
	Action    string    `gorm:"type:text;not null;default:''"`
	Category  string    `gorm:"type:varchar(64);not null;default:'';index"`
	Priority  int       `gorm:"not null;default:0"`
	Active    bool      `gorm:"not null;index"`
	ScopeJSON string    `gorm:"column:scope;type:jsonb;not null;default:'{}'"`
	Timestamps
}

// TableName returns the table name for GORM
func (AttendanceRuleModel) TableName() string {
	return "attendance_rules"
}

// ToDomain converts the model to a rule definition. An unreadable scope is
// logged and treated as empty.
func (m *AttendanceRuleModel) ToDomain() *rule.Definition {
	def := &rule.Definition{
		ID:        m.ID,
		Name:      m.Name,
		Type:      m.Type,
		Condition: m.Condition,
		Action:    m.Action,
		Category:  m.Category,
		Priority:  m.Priority,
		Active:    m.Active,
		UpdatedAt: m.UpdatedAt,
	}
	if m.ScopeJSON != "" && m.ScopeJSON != "{}" {
		if err := json.Unmarshal([]byte(m.ScopeJSON), &def.Scope); err != nil {
			modelLogger.Warn("failed to parse scope JSON",
				zap.String("rule_id", m.ID),
				zap.String("raw_json", m.ScopeJSON),
				zap.Error(err))
		}
	}
	return def
}

// AttendanceRuleModelFromDomain converts a rule definition to its model
func AttendanceRuleModelFromDomain(def *rule.Definition) (*AttendanceRuleModel, error) {
	scope, err := json.Marshal(def.Scope)
	if err != nil {
		return nil, err
	}
	m := &AttendanceRuleModel{
		ID:        def.ID,
		Name:      def.Name,
		Type:      def.Type,
		Condition: def.Condition,
		Action:    def.Action,
		Category:  def.Category,
		Priority:  def.Priority,
		Active:    def.Active,
		ScopeJSON: string(scope),
	}
	m.UpdatedAt = def.UpdatedAt
	return m, nil
}
