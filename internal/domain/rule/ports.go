package rule

import (
	"context"
	"time"

	"github.com/erp/attendance/internal/domain/shared/strategy"
)

// Evaluator executes one rule definition against a context.
// Implementations never return an error; failures are expressed as verdicts.
type Evaluator interface {
	strategy.Strategy
	Evaluate(ctx context.Context, ruleID string, def *Definition, ec ExecutionContext) *EvaluationResult
}

// EvaluatorProvider resolves the evaluator for a rule type.
// Unknown types yield an evaluator that reports NOT_FOUND.
type EvaluatorProvider interface {
	CreateEvaluator(ruleType Type) Evaluator
	Has(ruleType Type) bool
}

// Source supplies rule definitions. LoadRuleConfig returns an error wrapping
// shared.ErrNotFound when the rule does not exist.
type Source interface {
	LoadRuleConfig(ctx context.Context, ruleID string) (*Definition, error)
	GetRulesByCategory(ctx context.Context, category string) ([]string, error)
	LoadAllActiveRules(ctx context.Context) ([]string, error)
}

// ValidationResult is the outcome of Validator.ValidateRule
type ValidationResult struct {
	Valid        bool
	ErrorMessage string
}

// Validator decides whether a rule may be evaluated
type Validator interface {
	ValidateRule(ctx context.Context, ruleID string) ValidationResult
}

// ResultCache memoizes evaluation results per (rule, context fingerprint).
// It does not serialize concurrent compute-then-store sequences; two callers
// racing on the same key may both evaluate.
type ResultCache interface {
	// Get returns a cached result, or nil, false on a miss
	Get(ctx context.Context, ruleID string, ec ExecutionContext) (*EvaluationResult, bool)
	// Set stores a result for the default TTL
	Set(ctx context.Context, ruleID string, ec ExecutionContext, result *EvaluationResult)
	// Invalidate drops every entry for a rule; call it after editing the rule
	Invalidate(ctx context.Context, ruleID string)
	// Clear drops every entry
	Clear(ctx context.Context)
	// Stats returns hit/miss counters
	Stats() CacheStats
}

// CacheStats holds cache counters
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// HitRate returns hits / (hits + misses), or 0 when there were no lookups
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CacheConfig holds rule cache configuration
type CacheConfig struct {
	TTL                 time.Duration
	L1TTL               time.Duration
	CleanupInterval     time.Duration
	KeyPrefix           string
	InvalidationChannel string
}

// DefaultCacheConfig returns the default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:                 5 * time.Minute,
		L1TTL:               30 * time.Second,
		CleanupInterval:     30 * time.Second,
		KeyPrefix:           "attendance:rule",
		InvalidationChannel: "attendance:rule-cache:invalidate",
	}
}
