// Package strategy holds what every pluggable algorithm shares: work-time
// calculators and rule evaluators are both looked up by name at runtime.
package strategy

// StrategyType groups strategies by what they compute
type StrategyType string

const (
	// StrategyTypeWorkTime turns a shift and its punches into worked minutes
	StrategyTypeWorkTime StrategyType = "worktime"
	// StrategyTypeRuleEvaluator decides a rule against an execution context
	StrategyTypeRuleEvaluator StrategyType = "rule_evaluator"
)

// Strategy identifies a pluggable algorithm
type Strategy interface {
	Name() string
	Type() StrategyType
	Description() string
}

// BaseStrategy is embedded by concrete strategies to satisfy Strategy
type BaseStrategy struct {
	name         string
	strategyType StrategyType
	description  string
}

// NewBaseStrategy creates a new BaseStrategy
func NewBaseStrategy(name string, strategyType StrategyType, description string) BaseStrategy {
	return BaseStrategy{name: name, strategyType: strategyType, description: description}
}

func (s BaseStrategy) Name() string        { return s.name }
func (s BaseStrategy) Type() StrategyType  { return s.strategyType }
func (s BaseStrategy) Description() string { return s.description }
