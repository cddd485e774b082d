// Package ruleengine orchestrates attendance rule evaluation: validation,
// result caching, definition loading, evaluator dispatch and batch ordering.
package ruleengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/infrastructure/telemetry"
)

// DefaultParallelism bounds the number of concurrent evaluations in a batch.
const DefaultParallelism = 8

// Engine evaluates rules from a Source. It never returns errors to callers;
// every failure becomes a verdict on the result.
type Engine struct {
	source      rule.Source
	evaluators  rule.EvaluatorProvider
	cache       rule.ResultCache
	validator   rule.Validator
	logger      *zap.Logger
	metrics     *telemetry.EngineMetrics
	parallelism int
	now         func() time.Time
	stats       counters
}

// Option configures an Engine
type Option func(*Engine)

// WithCache enables result caching
func WithCache(cache rule.ResultCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// WithValidator replaces the default DefinitionValidator
func WithValidator(v rule.Validator) Option {
	return func(e *Engine) {
		if v != nil {
			e.validator = v
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records evaluation metrics
func WithMetrics(m *telemetry.EngineMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithParallelism sets the batch worker count. Values below 1 are ignored.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithClock overrides the time source used for stamping
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine over a rule source and an evaluator provider
func New(source rule.Source, evaluators rule.EvaluatorProvider, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		evaluators:  evaluators,
		validator:   rule.NewDefinitionValidator(source),
		logger:      zap.NewNop(),
		parallelism: DefaultParallelism,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateRule runs one rule against ec:
// validate, cache lookup, load, evaluate, stamp, cache store.
func (e *Engine) EvaluateRule(ctx context.Context, ruleID string, ec rule.ExecutionContext) *rule.EvaluationResult {
	ctx, span := telemetry.StartSpan(ctx, "ruleengine.evaluate",
		telemetry.WithAttribute(telemetry.SpanAttrRuleID, ruleID),
		telemetry.WithAttribute(telemetry.SpanAttrEmployeeID, ec.EmployeeID),
	)
	defer span.End()

	start := e.now()
	result, ruleType, cached := e.evaluate(ctx, ruleID, ec, start)

	e.stats.record(result, cached)
	e.metrics.RecordEvaluation(ctx, string(ruleType), string(result.Verdict), result.Duration)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrVerdict, string(result.Verdict),
		telemetry.SpanAttrCacheHit, cached,
	)
	if result.Verdict == rule.VerdictError {
		telemetry.RecordError(span, errors.New(result.ErrorMessage))
	}
	return result
}

// evaluate is the single-rule state machine. A panic anywhere in it becomes
// an ERROR verdict.
func (e *Engine) evaluate(ctx context.Context, ruleID string, ec rule.ExecutionContext, start time.Time) (result *rule.EvaluationResult, ruleType rule.Type, cached bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic during rule evaluation",
				zap.String("rule_id", ruleID),
				zap.Any("panic", r),
			)
			result = e.stamp(rule.NewFailure(ruleID, rule.VerdictError, fmt.Sprintf("panic during evaluation: %v", r)), start)
			cached = false
		}
	}()

	if err := ctx.Err(); err != nil {
		return e.stamp(rule.NewFailure(ruleID, rule.VerdictError, err.Error()), start), "", false
	}

	if v := e.validator.ValidateRule(ctx, ruleID); !v.Valid {
		e.logger.Debug("Rule failed validation",
			zap.String("rule_id", ruleID),
			zap.String("reason", v.ErrorMessage),
		)
		return e.stamp(rule.NewFailure(ruleID, rule.VerdictValidationFailed, v.ErrorMessage), start), "", false
	}

	if e.cache != nil {
		hit, ok := e.cache.Get(ctx, ruleID, ec)
		e.metrics.RecordCacheLookup(ctx, ok)
		if ok {
			e.logger.Debug("Rule cache hit", zap.String("rule_id", ruleID))
			return hit, "", true
		}
		e.logger.Debug("Rule cache miss", zap.String("rule_id", ruleID))
	}

	def, err := e.source.LoadRuleConfig(ctx, ruleID)
	switch {
	case err != nil && errors.Is(err, shared.ErrNotFound), err == nil && def == nil:
		return e.stamp(rule.NewFailure(ruleID, rule.VerdictNotFound, fmt.Sprintf("rule '%s' not found", ruleID)), start), "", false
	case err != nil:
		e.logger.Error("Failed to load rule", zap.String("rule_id", ruleID), zap.Error(err))
		return e.stamp(rule.NewFailure(ruleID, rule.VerdictError, err.Error()), start), "", false
	}

	result = e.evaluators.CreateEvaluator(def.Type).Evaluate(ctx, ruleID, def, ec)
	if result == nil {
		result = rule.NewFailure(ruleID, rule.VerdictError, "evaluator returned no result")
	}
	result.RuleID = ruleID
	result.Priority = def.Priority
	result.Category = def.Category
	e.stamp(result, start)

	if result.Verdict == rule.VerdictError {
		e.logger.Error("Rule evaluation failed",
			zap.String("rule_id", ruleID),
			zap.String("type", def.Type.String()),
			zap.String("error", result.ErrorMessage),
		)
	}

	// Only decisive verdicts are cached; errors may be transient.
	if e.cache != nil && result.Verdict.IsDecisive() {
		e.cache.Set(ctx, ruleID, ec, result)
	}
	return result, def.Type, false
}

func (e *Engine) stamp(r *rule.EvaluationResult, start time.Time) *rule.EvaluationResult {
	now := e.now()
	r.Duration = now.Sub(start)
	r.EvaluatedAt = now
	return r
}

// InvalidateRule drops cached results for a rule. Call it after the rule changes.
func (e *Engine) InvalidateRule(ctx context.Context, ruleID string) {
	if e.cache == nil {
		return
	}
	e.cache.Invalidate(ctx, ruleID)
	e.logger.Info("Rule cache invalidated", zap.String("rule_id", ruleID))
}

// ClearCache drops every cached result
func (e *Engine) ClearCache(ctx context.Context) {
	if e.cache == nil {
		return
	}
	e.cache.Clear(ctx)
	e.logger.Info("Rule cache cleared")
}

// CacheStats returns the cache counters, or zero values without a cache
func (e *Engine) CacheStats() rule.CacheStats {
	if e.cache == nil {
		return rule.CacheStats{}
	}
	return e.cache.Stats()
}
