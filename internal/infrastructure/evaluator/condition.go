package evaluator

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared/strategy"
)

// ConditionEvaluator evaluates the single-operator condition language
// produced by rule.Compiler.
type ConditionEvaluator struct {
	strategy.BaseStrategy
	compiler *rule.Compiler
}

// NewConditionEvaluator creates a ConditionEvaluator. A nil compiler uses the default one.
func NewConditionEvaluator(compiler *rule.Compiler) *ConditionEvaluator {
	if compiler == nil {
		compiler = rule.NewCompiler()
	}
	return &ConditionEvaluator{
		BaseStrategy: strategy.NewBaseStrategy(
			"condition",
			strategy.StrategyTypeRuleEvaluator,
			"Single-operator comparisons and references against the execution context",
		),
		compiler: compiler,
	}
}

// Evaluate implements rule.Evaluator
func (e *ConditionEvaluator) Evaluate(_ context.Context, _ string, def *rule.Definition, ec rule.ExecutionContext) *rule.EvaluationResult {
	compiled := e.compiler.CompileCondition(def.Condition)
	if !compiled.IsCompiled() {
		return failed(def, rule.VerdictValidationFailed, compiled.ErrorMessage())
	}
	cond, _ := compiled.Condition()

	matched, err := evalCondition(cond, ec)
	if err != nil {
		return failed(def, rule.VerdictError, err.Error())
	}
	return decided(def, matched)
}

func evalCondition(cond rule.CompiledCondition, ec rule.ExecutionContext) (bool, error) {
	left := resolveOperand(cond.Left(), ec)
	if cond.Operator() == rule.OpRef {
		return truthy(left), nil
	}
	rightToken, _ := cond.Right()
	right := resolveOperand(rightToken, ec)

	switch op := cond.Operator(); op {
	case rule.OpEqual:
		return equal(left, right), nil
	case rule.OpNotEqual:
		return !equal(left, right), nil
	case rule.OpAnd:
		return truthy(left) && truthy(right), nil
	case rule.OpOr:
		return truthy(left) || truthy(right), nil
	case rule.OpGreaterOrEqual, rule.OpLessOrEqual, rule.OpGreater, rule.OpLess:
		l, lok := toDecimal(left)
		r, rok := toDecimal(right)
		if !lok || !rok {
			return false, fmt.Errorf("operator %s requires numeric operands, got %q and %q", op, fmt.Sprint(left), fmt.Sprint(right))
		}
		cmp := l.Cmp(r)
		switch op {
		case rule.OpGreaterOrEqual:
			return cmp >= 0, nil
		case rule.OpLessOrEqual:
			return cmp <= 0, nil
		case rule.OpGreater:
			return cmp > 0, nil
		default:
			return cmp < 0, nil
		}
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

// resolveOperand turns a raw token into a value. Quoted tokens are string
// literals; tokens naming a context key resolve to its value; anything else
// is taken literally.
func resolveOperand(token string, ec rule.ExecutionContext) any {
	token = strings.TrimSpace(token)
	if unquoted, ok := unquote(token); ok {
		return unquoted
	}
	if v, ok := ec.Lookup(token); ok {
		return v
	}
	return token
}

func unquote(token string) (string, bool) {
	if len(token) < 2 {
		return "", false
	}
	first, last := token[0], token[len(token)-1]
	if (first == '"' || first == '\'') && first == last {
		return token[1 : len(token)-1], true
	}
	return "", false
}

// equal compares numerically when both sides are numbers, else as strings
func equal(a, b any) bool {
	if l, ok := toDecimal(a); ok {
		if r, ok := toDecimal(b); ok {
			return l.Equal(r)
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
