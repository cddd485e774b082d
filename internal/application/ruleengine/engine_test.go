package ruleengine_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/attendance/internal/application/ruleengine"
	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/shared/strategy"
	"github.com/erp/attendance/internal/infrastructure/cache"
	"github.com/erp/attendance/internal/infrastructure/evaluator"
	"github.com/erp/attendance/internal/infrastructure/telemetry"
)

// memSource is an ordered in-memory rule.Source
type memSource struct {
	order   []string
	defs    map[string]*rule.Definition
	loadErr error
	listErr error
}

func newMemSource(defs ...*rule.Definition) *memSource {
	s := &memSource{defs: make(map[string]*rule.Definition)}
	for _, d := range defs {
		s.order = append(s.order, d.ID)
		s.defs[d.ID] = d
	}
	return s
}

func (s *memSource) LoadRuleConfig(_ context.Context, ruleID string) (*rule.Definition, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	def, ok := s.defs[ruleID]
	if !ok {
		return nil, fmt.Errorf("%w: rule '%s'", shared.ErrNotFound, ruleID)
	}
	return def, nil
}

func (s *memSource) GetRulesByCategory(_ context.Context, category string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var ids []string
	for _, id := range s.order {
		if s.defs[id].Category == category {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memSource) LoadAllActiveRules(_ context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var ids []string
	for _, id := range s.order {
		if s.defs[id].Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// funcEvaluator evaluates rules of type "FUNC" with a test-supplied function
type funcEvaluator struct {
	strategy.BaseStrategy
	calls atomic.Int32
	fn    func(def *rule.Definition, ec rule.ExecutionContext) *rule.EvaluationResult
}

const typeFunc rule.Type = "FUNC"

func newFuncEvaluator(fn func(def *rule.Definition, ec rule.ExecutionContext) *rule.EvaluationResult) *funcEvaluator {
	return &funcEvaluator{
		BaseStrategy: strategy.NewBaseStrategy("func", strategy.StrategyTypeRuleEvaluator, "test evaluator"),
		fn:           fn,
	}
}

func (f *funcEvaluator) Evaluate(_ context.Context, _ string, def *rule.Definition, ec rule.ExecutionContext) *rule.EvaluationResult {
	f.calls.Add(1)
	return f.fn(def, ec)
}

func condition(id, expr string, priority int) *rule.Definition {
	return &rule.Definition{
		ID:        id,
		Type:      rule.TypeCondition,
		Condition: expr,
		Category:  "attendance",
		Priority:  priority,
		Active:    true,
	}
}

func newFactory(t *testing.T, extra ...rule.Evaluator) *evaluator.Factory {
	t.Helper()
	f, err := evaluator.NewFactoryWithDefaults(rule.NewCompiler(), zap.NewNop())
	require.NoError(t, err)
	for _, e := range extra {
		require.NoError(t, f.Register(typeFunc, e))
	}
	return f
}

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func ids(results []*rule.EvaluationResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.RuleID
	}
	return out
}

func lateContext(minutes int) rule.ExecutionContext {
	return rule.NewExecutionContext("E001").
		WithDepartment("D10").
		WithAttribute("lateMinutes", minutes)
}

func TestEvaluateRule_Verdicts(t *testing.T) {
	inactive := condition("inactive", "lateMinutes > 5", 2)
	inactive.Active = false
	source := newMemSource(
		condition("late", "lateMinutes > 5", 3),
		condition("punctual", "lateMinutes <= 0", 4),
		condition("bad-operand", "lateMinutes > abc", 1),
		inactive,
	)
	engine := ruleengine.New(source, newFactory(t), ruleengine.WithClock(fixedClock()))
	ctx := context.Background()

	tests := []struct {
		ruleID   string
		verdict  rule.Verdict
		priority int
	}{
		{"late", rule.VerdictMatched, 3},
		{"punctual", rule.VerdictNotMatched, 4},
		{"bad-operand", rule.VerdictError, 1},
		{"inactive", rule.VerdictValidationFailed, 0},
		{"missing", rule.VerdictNotFound, 0},
		{"", rule.VerdictValidationFailed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.ruleID, func(t *testing.T) {
			r := engine.EvaluateRule(ctx, tt.ruleID, lateContext(12))
			require.NotNil(t, r)
			assert.Equal(t, tt.ruleID, r.RuleID)
			assert.Equal(t, tt.verdict, r.Verdict)
			assert.Equal(t, tt.priority, r.Priority)
			assert.False(t, r.EvaluatedAt.IsZero())
			if !tt.verdict.IsDecisive() {
				assert.NotEmpty(t, r.ErrorMessage)
			}
		})
	}
}

func TestEvaluateRule_LoadErrorIsError(t *testing.T) {
	source := newMemSource(condition("late", "lateMinutes > 5", 1))
	source.loadErr = errors.New("connection refused")
	engine := ruleengine.New(source, newFactory(t))

	r := engine.EvaluateRule(context.Background(), "late", lateContext(10))
	assert.Equal(t, rule.VerdictError, r.Verdict)
	assert.Contains(t, r.ErrorMessage, "connection refused")
}

func TestEvaluateRule_PanicBecomesError(t *testing.T) {
	panicky := newFuncEvaluator(func(*rule.Definition, rule.ExecutionContext) *rule.EvaluationResult {
		panic("boom")
	})
	source := newMemSource(&rule.Definition{ID: "p", Type: typeFunc, Condition: "x", Active: true})

	core, logs := observer.New(zapcore.ErrorLevel)
	engine := ruleengine.New(source, newFactory(t, panicky), ruleengine.WithLogger(zap.New(core)))

	var r *rule.EvaluationResult
	require.NotPanics(t, func() {
		r = engine.EvaluateRule(context.Background(), "p", lateContext(0))
	})
	assert.Equal(t, rule.VerdictError, r.Verdict)
	assert.Contains(t, r.ErrorMessage, "boom")
	assert.Equal(t, 1, logs.FilterMessage("Panic during rule evaluation").Len())
}

func TestEvaluateRule_NilEvaluatorResult(t *testing.T) {
	empty := newFuncEvaluator(func(*rule.Definition, rule.ExecutionContext) *rule.EvaluationResult { return nil })
	source := newMemSource(&rule.Definition{ID: "n", Type: typeFunc, Condition: "x", Active: true, Priority: 7})
	engine := ruleengine.New(source, newFactory(t, empty))

	r := engine.EvaluateRule(context.Background(), "n", lateContext(0))
	assert.Equal(t, rule.VerdictError, r.Verdict)
	assert.Equal(t, 7, r.Priority)
}

func TestEvaluateRule_UnknownTypeIsNotFound(t *testing.T) {
	source := newMemSource(&rule.Definition{ID: "u", Type: "XPATH", Condition: "x", Active: true})
	engine := ruleengine.New(source, newFactory(t))

	r := engine.EvaluateRule(context.Background(), "u", lateContext(0))
	assert.Equal(t, rule.VerdictNotFound, r.Verdict)
	assert.Contains(t, r.ErrorMessage, "XPATH")
}

func TestEvaluateRule_CancelledContext(t *testing.T) {
	engine := ruleengine.New(newMemSource(condition("late", "lateMinutes > 5", 1)), newFactory(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := engine.EvaluateRule(ctx, "late", lateContext(10))
	assert.Equal(t, rule.VerdictError, r.Verdict)
	assert.Contains(t, r.ErrorMessage, context.Canceled.Error())
}

func TestEvaluateRule_CacheIdempotence(t *testing.T) {
	counter := newFuncEvaluator(func(def *rule.Definition, _ rule.ExecutionContext) *rule.EvaluationResult {
		return rule.NewResult(def, rule.VerdictMatched)
	})
	source := newMemSource(&rule.Definition{ID: "c", Type: typeFunc, Condition: "x", Active: true, Priority: 2, Category: "attendance"})
	resultCache := cache.NewInMemoryRuleCache()
	defer resultCache.Close()

	clock := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	engine := ruleengine.New(source, newFactory(t, counter),
		ruleengine.WithCache(resultCache),
		ruleengine.WithClock(func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		}),
	)
	ctx := context.Background()
	ec := lateContext(3)

	first := engine.EvaluateRule(ctx, "c", ec)
	second := engine.EvaluateRule(ctx, "c", ec)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 1, counter.calls.Load())

	// A different context is a different key.
	engine.EvaluateRule(ctx, "c", lateContext(4))
	assert.EqualValues(t, 2, counter.calls.Load())

	stats := engine.Stats()
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.CacheHits)
	assert.Equal(t, time.Millisecond, stats.AverageDuration)

	engine.InvalidateRule(ctx, "c")
	engine.EvaluateRule(ctx, "c", ec)
	assert.EqualValues(t, 3, counter.calls.Load())

	engine.ClearCache(ctx)
	assert.Zero(t, engine.CacheStats().Entries)

	engine.ResetStats()
	assert.Equal(t, ruleengine.Stats{}, engine.Stats())
}

func TestEvaluateRule_ErrorsAreNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	flaky := newFuncEvaluator(func(def *rule.Definition, _ rule.ExecutionContext) *rule.EvaluationResult {
		if fail.Load() {
			return rule.NewFailure(def.ID, rule.VerdictError, "temporary")
		}
		return rule.NewResult(def, rule.VerdictNotMatched)
	})
	source := newMemSource(&rule.Definition{ID: "f", Type: typeFunc, Condition: "x", Active: true})
	resultCache := cache.NewInMemoryRuleCache()
	defer resultCache.Close()
	engine := ruleengine.New(source, newFactory(t, flaky), ruleengine.WithCache(resultCache))

	ctx := context.Background()
	assert.Equal(t, rule.VerdictError, engine.EvaluateRule(ctx, "f", lateContext(1)).Verdict)
	fail.Store(false)
	assert.Equal(t, rule.VerdictNotMatched, engine.EvaluateRule(ctx, "f", lateContext(1)).Verdict)
	assert.EqualValues(t, 2, flaky.calls.Load())
}

func TestEvaluateRules_SortedByPriority(t *testing.T) {
	// Lower priorities sleep longer so they finish last.
	slow := newFuncEvaluator(func(def *rule.Definition, _ rule.ExecutionContext) *rule.EvaluationResult {
		time.Sleep(time.Duration(10-def.Priority) * 5 * time.Millisecond)
		return rule.NewResult(def, rule.VerdictNotMatched)
	})
	source := newMemSource(
		&rule.Definition{ID: "r1", Type: typeFunc, Condition: "x", Active: true, Priority: 5},
		&rule.Definition{ID: "r2", Type: typeFunc, Condition: "x", Active: true, Priority: 1},
		&rule.Definition{ID: "r3", Type: typeFunc, Condition: "x", Active: true, Priority: 3},
	)
	engine := ruleengine.New(source, newFactory(t, slow), ruleengine.WithParallelism(3))

	results := engine.EvaluateRules(context.Background(), []string{"r1", "r2", "r3"}, lateContext(0))
	assert.Equal(t, []string{"r2", "r3", "r1"}, ids(results))
}

func TestEvaluateRules_ExtremePriorities(t *testing.T) {
	source := newMemSource(
		condition("big", "lateMinutes > 5", math.MaxInt),
		condition("small", "lateMinutes > 5", -10),
		condition("zero", "lateMinutes > 5", 0),
		condition("min", "lateMinutes > 5", math.MinInt),
	)
	engine := ruleengine.New(source, newFactory(t))

	results := engine.EvaluateRules(context.Background(), []string{"big", "small", "zero", "min"}, lateContext(10))
	assert.Equal(t, []string{"min", "small", "zero", "big"}, ids(results))

	assert.False(t, results[0].Overridden)
	for _, r := range results[1:] {
		assert.True(t, r.Overridden, r.RuleID)
		assert.Equal(t, "min", r.OverridingRuleID)
	}
}

func TestEvaluateRules_StableTiesAndFailuresFirst(t *testing.T) {
	source := newMemSource(
		condition("a", "lateMinutes > 5", 2),
		condition("b", "lateMinutes > 50", 2),
		condition("c", "lateMinutes > 1", 1),
	)
	engine := ruleengine.New(source, newFactory(t), ruleengine.WithParallelism(2))

	results := engine.EvaluateRules(context.Background(), []string{"b", "missing", "a", "c"}, lateContext(10))
	require.Len(t, results, 4)
	// missing carries priority 0, then c (1), then b and a in input order.
	assert.Equal(t, []string{"missing", "c", "b", "a"}, ids(results))
	assert.Equal(t, rule.VerdictNotFound, results[0].Verdict)
}

func TestEvaluateRules_OverrideMarking(t *testing.T) {
	source := newMemSource(
		condition("late-severe", "lateMinutes > 30", 1),
		condition("late-mild", "lateMinutes > 5", 2),
		condition("not-matching", "lateMinutes > 500", 0),
		&rule.Definition{ID: "other", Type: rule.TypeCondition, Condition: "lateMinutes > 5", Category: "payroll", Priority: 3, Active: true},
	)
	engine := ruleengine.New(source, newFactory(t))

	results := engine.EvaluateRules(context.Background(),
		[]string{"late-mild", "other", "late-severe", "not-matching"}, lateContext(45))
	require.Equal(t, []string{"not-matching", "late-severe", "late-mild", "other"}, ids(results))

	assert.False(t, results[0].Overridden)
	assert.False(t, results[1].Overridden)
	assert.True(t, results[2].Overridden)
	assert.Equal(t, "late-severe", results[2].OverridingRuleID)
	assert.Equal(t, rule.VerdictMatched, results[2].Verdict)
	assert.False(t, results[3].Overridden, "different category")
}

func TestEvaluateRules_Empty(t *testing.T) {
	engine := ruleengine.New(newMemSource(), newFactory(t))
	assert.Empty(t, engine.EvaluateRules(context.Background(), nil, lateContext(0)))
}

func TestEvaluateRulesByCategory(t *testing.T) {
	source := newMemSource(
		condition("late", "lateMinutes > 5", 2),
		condition("very-late", "lateMinutes > 60", 1),
		&rule.Definition{ID: "ot", Type: rule.TypeCondition, Condition: "overtime > 0", Category: "overtime", Active: true},
	)
	engine := ruleengine.New(source, newFactory(t))

	results := engine.EvaluateRulesByCategory(context.Background(), "attendance", lateContext(10))
	assert.Equal(t, []string{"very-late", "late"}, ids(results))
	assert.Equal(t, rule.VerdictNotMatched, results[0].Verdict)
	assert.Equal(t, rule.VerdictMatched, results[1].Verdict)

	assert.Empty(t, engine.EvaluateRulesByCategory(context.Background(), "unknown", lateContext(10)))
}

func TestEvaluateRulesByCategory_SourceFailure(t *testing.T) {
	source := newMemSource()
	source.listErr = errors.New("db down")
	engine := ruleengine.New(source, newFactory(t))

	results := engine.EvaluateRulesByCategory(context.Background(), "attendance", lateContext(10))
	require.Len(t, results, 1)
	assert.Equal(t, rule.VerdictError, results[0].Verdict)
	assert.Equal(t, "attendance", results[0].Category)
	assert.Contains(t, results[0].ErrorMessage, "db down")
}

func TestBatchEvaluateRules(t *testing.T) {
	salesOnly := condition("sales-late", "lateMinutes > 0", 1)
	salesOnly.Scope = rule.Scope{Departments: []string{"SALES"}}
	inactive := condition("inactive", "lateMinutes > 0", 0)
	inactive.Active = false
	source := newMemSource(
		condition("late", "lateMinutes > 5", 3),
		salesOnly,
		condition("punctual", "lateMinutes <= 0", 2),
		inactive,
	)
	engine := ruleengine.New(source, newFactory(t), ruleengine.WithParallelism(4))

	contexts := []rule.ExecutionContext{
		lateContext(10).WithDepartment("SALES"),
		lateContext(0).WithDepartment("OPS"),
	}
	results := engine.BatchEvaluateRules(context.Background(), contexts)

	// Sorted within each context, concatenated in context order.
	require.Equal(t, []string{"sales-late", "punctual", "late", "punctual", "late"}, ids(results))
	assert.Equal(t, rule.VerdictMatched, results[0].Verdict)
	assert.Equal(t, rule.VerdictNotMatched, results[1].Verdict)
	assert.Equal(t, rule.VerdictMatched, results[3].Verdict)
	assert.Equal(t, rule.VerdictNotMatched, results[4].Verdict)
}

func TestBatchEvaluateRules_SourceFailure(t *testing.T) {
	source := newMemSource()
	source.listErr = errors.New("db down")
	engine := ruleengine.New(source, newFactory(t))

	results := engine.BatchEvaluateRules(context.Background(), []rule.ExecutionContext{lateContext(1)})
	require.Len(t, results, 1)
	assert.Equal(t, rule.VerdictError, results[0].Verdict)
}

func TestWarmUp(t *testing.T) {
	source := newMemSource(
		condition("late", "lateMinutes > 5", 1),
		condition("broken", "lateMinutes > x", 2),
	)
	resultCache := cache.NewInMemoryRuleCache()
	defer resultCache.Close()
	engine := ruleengine.New(source, newFactory(t), ruleengine.WithCache(resultCache))

	n := engine.WarmUp(context.Background(), []rule.ExecutionContext{lateContext(1), lateContext(9)})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, engine.CacheStats().Entries)
}

func TestEngine_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	metrics, err := telemetry.NewEngineMetrics(provider.Meter("test"))
	require.NoError(t, err)
	resultCache := cache.NewInMemoryRuleCache()
	defer resultCache.Close()

	engine := ruleengine.New(newMemSource(condition("late", "lateMinutes > 5", 1)), newFactory(t),
		ruleengine.WithCache(resultCache),
		ruleengine.WithMetrics(metrics),
	)
	engine.EvaluateRule(context.Background(), "late", lateContext(10))
	engine.EvaluateRule(context.Background(), "late", lateContext(10))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	assert.EqualValues(t, 2, totals["attendance_rule_evaluations_total"])
	assert.EqualValues(t, 1, totals["attendance_rule_cache_hits_total"])
	assert.EqualValues(t, 1, totals["attendance_rule_cache_misses_total"])
}
