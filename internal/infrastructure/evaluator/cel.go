package evaluator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared/strategy"
)

// celCostLimit bounds the work a single expression may do
const celCostLimit = 1000000

// CELEvaluator evaluates rule conditions written in CEL. Expressions see the
// flattened context as ctx plus the employeeId, departmentId and date strings.
type CELEvaluator struct {
	strategy.BaseStrategy
	env    *cel.Env
	logger *zap.Logger

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCELEvaluator creates a CELEvaluator
func NewCELEvaluator(logger *zap.Logger) (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable(rule.KeyEmployeeID, cel.StringType),
		cel.Variable(rule.KeyDepartmentID, cel.StringType),
		cel.Variable(rule.KeyDate, cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CELEvaluator{
		BaseStrategy: strategy.NewBaseStrategy("cel", strategy.StrategyTypeRuleEvaluator, "Common Expression Language conditions"),
		env:          env,
		logger:       logger,
		programs:     make(map[string]cel.Program),
	}, nil
}

// Evaluate implements rule.Evaluator
func (e *CELEvaluator) Evaluate(_ context.Context, ruleID string, def *rule.Definition, ec rule.ExecutionContext) *rule.EvaluationResult {
	prg, err := e.program(def.Condition)
	if err != nil {
		e.logger.Debug("CEL compile failed", zap.String("rule_id", ruleID), zap.Error(err))
		return failed(def, rule.VerdictValidationFailed, err.Error())
	}

	date, _ := ec.Lookup(rule.KeyDate)
	dateStr, _ := date.(string)
	out, _, err := prg.Eval(map[string]any{
		"ctx":                ec.Values(),
		rule.KeyEmployeeID:   ec.EmployeeID,
		rule.KeyDepartmentID: ec.DepartmentID,
		rule.KeyDate:         dateStr,
	})
	if err != nil {
		return failed(def, rule.VerdictError, err.Error())
	}

	// Non-boolean output never matches
	matched, _ := out.Value().(bool)
	return decided(def, matched)
}

// Compile checks an expression without evaluating it
func (e *CELEvaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *CELEvaluator) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := e.env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	e.mu.Lock()
	e.programs[expression] = prg
	e.mu.Unlock()
	return prg, nil
}
