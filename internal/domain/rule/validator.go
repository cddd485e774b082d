package rule

import (
	"context"
	"fmt"
	"strings"
)

// DefinitionValidator checks that a rule is active and has a condition and a type.
// Rules that cannot be loaded pass validation so the load step can report them
// as NOT_FOUND or ERROR.
type DefinitionValidator struct {
	source Source
}

// NewDefinitionValidator creates a validator backed by a rule source
func NewDefinitionValidator(source Source) *DefinitionValidator {
	return &DefinitionValidator{source: source}
}

// ValidateRule implements Validator
func (v *DefinitionValidator) ValidateRule(ctx context.Context, ruleID string) ValidationResult {
	if strings.TrimSpace(ruleID) == "" {
		return invalid("rule id is empty")
	}

	def, err := v.source.LoadRuleConfig(ctx, ruleID)
	if err != nil || def == nil {
		return ValidationResult{Valid: true}
	}
	return ValidateDefinition(def)
}

// ValidateDefinition runs the static checks on a loaded definition
func ValidateDefinition(def *Definition) ValidationResult {
	if !def.Active {
		return invalid(fmt.Sprintf("rule %s is inactive", def.ID))
	}
	if strings.TrimSpace(def.Condition) == "" {
		return invalid(fmt.Sprintf("rule %s has no condition", def.ID))
	}
	if def.Type == "" {
		return invalid(fmt.Sprintf("rule %s has no type", def.ID))
	}
	return ValidationResult{Valid: true}
}

func invalid(msg string) ValidationResult {
	return ValidationResult{Valid: false, ErrorMessage: msg}
}
