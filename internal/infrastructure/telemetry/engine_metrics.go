package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics holds the instruments recorded by the rule engine and the
// attendance processor.
type EngineMetrics struct {
	evaluations        *Counter
	evaluationDuration *Histogram
	cacheHits          *Counter
	cacheMisses        *Counter
	processed          *Counter
	processDuration    *Histogram
	conflicts          *Counter
}

// NewEngineMetrics creates the engine instruments on meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &EngineMetrics{}
	var err error

	if m.evaluations, err = NewCounter(meter,
		"attendance_rule_evaluations_total",
		"Total number of rule evaluations by verdict",
		"{evaluation}",
	); err != nil {
		return nil, err
	}
	if m.evaluationDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "attendance_rule_evaluation_duration_seconds",
		Description: "Duration of single rule evaluations",
		Unit:        "s",
		Boundaries:  EvaluationDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.cacheHits, err = NewCounter(meter,
		"attendance_rule_cache_hits_total",
		"Rule result cache hits",
		"{hit}",
	); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = NewCounter(meter,
		"attendance_rule_cache_misses_total",
		"Rule result cache misses",
		"{miss}",
	); err != nil {
		return nil, err
	}
	if m.processed, err = NewCounter(meter,
		"attendance_punches_processed_total",
		"Punch events processed by outcome",
		"{punch}",
	); err != nil {
		return nil, err
	}
	if m.processDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "attendance_process_duration_seconds",
		Description: "End-to-end duration of punch processing",
		Unit:        "s",
		Boundaries:  ProcessDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.conflicts, err = NewCounter(meter,
		"attendance_schedule_conflicts_total",
		"Schedule conflicts detected by type",
		"{conflict}",
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordEvaluation records one evaluation outcome. A nil receiver is a no-op.
func (m *EngineMetrics) RecordEvaluation(ctx context.Context, ruleType, verdict string, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.Inc(ctx, AttrRuleType.String(ruleType), AttrVerdict.String(verdict))
	m.evaluationDuration.RecordDuration(ctx, d, AttrRuleType.String(ruleType))
}

// RecordCacheLookup counts a cache hit or miss.
func (m *EngineMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc(ctx)
		return
	}
	m.cacheMisses.Inc(ctx)
}

// RecordProcess records the final status of a punch and how long it took.
func (m *EngineMetrics) RecordProcess(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.processed.Inc(ctx, AttrProcStatus.String(status))
	m.processDuration.RecordDuration(ctx, d, AttrProcStatus.String(status))
}

// RecordConflicts counts detected conflicts of one type.
func (m *EngineMetrics) RecordConflicts(ctx context.Context, conflictType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.conflicts.Add(ctx, int64(n), AttrOperation.String(conflictType))
}
