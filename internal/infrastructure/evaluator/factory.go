// Package evaluator provides the rule evaluators keyed by rule type.
package evaluator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/shared/strategy"
)

// Factory maps rule types to evaluators
type Factory struct {
	mu         sync.RWMutex
	evaluators map[rule.Type]rule.Evaluator
}

// NewFactory creates an empty factory
func NewFactory() *Factory {
	return &Factory{
		evaluators: make(map[rule.Type]rule.Evaluator),
	}
}

// NewFactoryWithDefaults registers the CONDITION, CEL and JSONLOGIC evaluators
func NewFactoryWithDefaults(compiler *rule.Compiler, logger *zap.Logger) (*Factory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	celEval, err := NewCELEvaluator(logger)
	if err != nil {
		return nil, err
	}

	f := NewFactory()
	for ruleType, e := range map[rule.Type]rule.Evaluator{
		rule.TypeCondition: NewConditionEvaluator(compiler),
		rule.TypeCEL:       celEval,
		rule.TypeJSONLogic: NewJSONLogicEvaluator(),
	} {
		if err := f.Register(ruleType, e); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Register adds an evaluator for a rule type
func (f *Factory) Register(ruleType rule.Type, e rule.Evaluator) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.evaluators[ruleType]; exists {
		return fmt.Errorf("%w: evaluator for rule type '%s' already registered", shared.ErrAlreadyExists, ruleType)
	}
	f.evaluators[ruleType] = e
	return nil
}

// Unregister removes the evaluator for a rule type
func (f *Factory) Unregister(ruleType rule.Type) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.evaluators[ruleType]; !exists {
		return fmt.Errorf("%w: evaluator for rule type '%s' not found", shared.ErrNotFound, ruleType)
	}
	delete(f.evaluators, ruleType)
	return nil
}

// Has reports whether an evaluator is registered for ruleType
func (f *Factory) Has(ruleType rule.Type) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.evaluators[ruleType]
	return exists
}

// Types returns the registered rule types, sorted
func (f *Factory) Types() []rule.Type {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]rule.Type, 0, len(f.evaluators))
	for t := range f.evaluators {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// CreateEvaluator returns the evaluator for ruleType. Unknown types get an
// evaluator that reports NOT_FOUND for every rule.
func (f *Factory) CreateEvaluator(ruleType rule.Type) rule.Evaluator {
	f.mu.RLock()
	e, exists := f.evaluators[ruleType]
	f.mu.RUnlock()

	if !exists {
		return &notFoundEvaluator{
			BaseStrategy: strategy.NewBaseStrategy("not_found", strategy.StrategyTypeRuleEvaluator, "Placeholder for unregistered rule types"),
			ruleType:     ruleType,
		}
	}
	return e
}

type notFoundEvaluator struct {
	strategy.BaseStrategy
	ruleType rule.Type
}

func (e *notFoundEvaluator) Evaluate(_ context.Context, ruleID string, def *rule.Definition, _ rule.ExecutionContext) *rule.EvaluationResult {
	msg := fmt.Sprintf("no evaluator registered for rule type '%s'", e.ruleType)
	if def == nil {
		return rule.NewFailure(ruleID, rule.VerdictNotFound, msg)
	}
	return failed(def, rule.VerdictNotFound, msg)
}

// failed builds a non-decisive result that still carries the definition's priority
func failed(def *rule.Definition, verdict rule.Verdict, msg string) *rule.EvaluationResult {
	result := rule.NewResult(def, verdict)
	result.ErrorMessage = msg
	return result
}

// decided builds a MATCHED or NOT_MATCHED result
func decided(def *rule.Definition, matched bool) *rule.EvaluationResult {
	if matched {
		return rule.NewResult(def, rule.VerdictMatched)
	}
	return rule.NewResult(def, rule.VerdictNotMatched)
}

var _ rule.EvaluatorProvider = (*Factory)(nil)
