package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared/strategy"
)

// JSONLogicEvaluator applies JSONLogic documents to the flattened context
type JSONLogicEvaluator struct {
	strategy.BaseStrategy
}

// NewJSONLogicEvaluator creates a JSONLogicEvaluator
func NewJSONLogicEvaluator() *JSONLogicEvaluator {
	return &JSONLogicEvaluator{
		BaseStrategy: strategy.NewBaseStrategy("jsonlogic", strategy.StrategyTypeRuleEvaluator, "JSONLogic documents"),
	}
}

// Evaluate implements rule.Evaluator
func (e *JSONLogicEvaluator) Evaluate(_ context.Context, _ string, def *rule.Definition, ec rule.ExecutionContext) *rule.EvaluationResult {
	if !json.Valid([]byte(def.Condition)) {
		return failed(def, rule.VerdictValidationFailed, "condition is not a valid JSONLogic document")
	}
	data, err := json.Marshal(ec.Values())
	if err != nil {
		return failed(def, rule.VerdictError, fmt.Sprintf("encode context: %v", err))
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(def.Condition), bytes.NewReader(data), &out); err != nil {
		return failed(def, rule.VerdictError, err.Error())
	}

	var result any
	if raw := bytes.TrimSpace(out.Bytes()); len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return failed(def, rule.VerdictError, fmt.Sprintf("decode result: %v", err))
		}
	}
	return decided(def, truthy(result))
}
