package rule

import (
	"slices"
	"time"
)

// Type tags the evaluator a rule is dispatched to.
type Type string

const (
	TypeCondition Type = "CONDITION"
	TypeCEL       Type = "CEL"
	TypeJSONLogic Type = "JSONLOGIC"
)

func (t Type) String() string {
	return string(t)
}

// Definition is a stored attendance rule. Lower Priority values take precedence.
type Definition struct {
	ID        string    `json:"id" yaml:"id" validate:"required"`
	Name      string    `json:"name" yaml:"name"`
	Type      Type      `json:"type" yaml:"type" validate:"required"`
	Condition string    `json:"condition" yaml:"condition" validate:"required"`
	Action    string    `json:"action" yaml:"action"`
	Category  string    `json:"category" yaml:"category"`
	Priority  int       `json:"priority" yaml:"priority"`
	Active    bool      `json:"active" yaml:"active"`
	Scope     Scope     `json:"scope" yaml:"scope"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Scope restricts which execution contexts a rule applies to.
// Empty fields do not restrict.
type Scope struct {
	Departments []string   `json:"departments,omitempty" yaml:"departments"`
	Employees   []string   `json:"employees,omitempty" yaml:"employees"`
	StartDate   *time.Time `json:"start_date,omitempty" yaml:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty" yaml:"end_date"`
}

// AppliesTo reports whether the scope covers the given context
func (s Scope) AppliesTo(ec ExecutionContext) bool {
	if len(s.Departments) > 0 && !slices.Contains(s.Departments, ec.DepartmentID) {
		return false
	}
	if len(s.Employees) > 0 && !slices.Contains(s.Employees, ec.EmployeeID) {
		return false
	}
	if ec.Date.IsZero() {
		return true
	}
	if s.StartDate != nil && ec.Date.Before(*s.StartDate) {
		return false
	}
	if s.EndDate != nil && ec.Date.After(*s.EndDate) {
		return false
	}
	return true
}

// Verdict is the outcome of a single rule evaluation
type Verdict string

const (
	VerdictMatched          Verdict = "MATCHED"
	VerdictNotMatched       Verdict = "NOT_MATCHED"
	VerdictValidationFailed Verdict = "VALIDATION_FAILED"
	VerdictNotFound         Verdict = "NOT_FOUND"
	VerdictError            Verdict = "ERROR"
)

// IsDecisive returns true when the rule produced a match decision
func (v Verdict) IsDecisive() bool {
	return v == VerdictMatched || v == VerdictNotMatched
}

// EvaluationResult is the outcome of evaluating one rule against one context.
type EvaluationResult struct {
	RuleID           string        `json:"rule_id"`
	Verdict          Verdict       `json:"verdict"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	Priority         int           `json:"priority"`
	Category         string        `json:"category,omitempty"`
	Duration         time.Duration `json:"duration"`
	EvaluatedAt      time.Time     `json:"evaluated_at"`
	Overridden       bool          `json:"overridden,omitempty"`
	OverridingRuleID string        `json:"overriding_rule_id,omitempty"`
}

// NewResult creates a result carrying the definition's priority and category
func NewResult(def *Definition, verdict Verdict) *EvaluationResult {
	return &EvaluationResult{
		RuleID:   def.ID,
		Verdict:  verdict,
		Priority: def.Priority,
		Category: def.Category,
	}
}

// NewFailure creates a result for a rule that failed before or during evaluation
func NewFailure(ruleID string, verdict Verdict, message string) *EvaluationResult {
	return &EvaluationResult{
		RuleID:       ruleID,
		Verdict:      verdict,
		ErrorMessage: message,
	}
}

// Matched is shorthand for Verdict == MATCHED
func (r *EvaluationResult) Matched() bool {
	return r.Verdict == VerdictMatched
}

// Clone returns a copy of the result
func (r *EvaluationResult) Clone() *EvaluationResult {
	c := *r
	return &c
}
