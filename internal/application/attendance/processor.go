package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/infrastructure/logger"
	"github.com/erp/attendance/internal/infrastructure/telemetry"
)

// DefaultDedupTTL is how long a punch is remembered for duplicate suppression
const DefaultDedupTTL = 10 * time.Minute

// denial is an expected refusal; it becomes a DENIED result
type denial struct {
	reason string
}

func (d *denial) Error() string { return d.reason }

func deny(format string, args ...any) error {
	return &denial{reason: fmt.Sprintf(format, args...)}
}

// noopHook is the default NotificationHook
type noopHook struct{}

func (noopHook) Notify(context.Context, *ProcessResult) error { return nil }

// Processor runs the fixed punch pipeline: validate, check the device,
// identify, record, calculate, persist, notify. Every failure becomes a
// DENIED or SYSTEM_ERROR result; Process never returns an error or panics.
type Processor struct {
	devices  DeviceRegistry
	steps    Steps
	results  ResultStore
	hook     NotificationHook
	validate *validator.Validate
	dedup    shared.IdempotencyStore
	dedupTTL time.Duration
	logger   *zap.Logger
	metrics  *telemetry.EngineMetrics
	now      func() time.Time
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithNotificationHook replaces the no-op notification hook
func WithNotificationHook(hook NotificationHook) ProcessorOption {
	return func(p *Processor) {
		if hook != nil {
			p.hook = hook
		}
	}
}

// WithDeduplicator denies punches already seen within ttl. A non-positive
// ttl uses DefaultDedupTTL.
func WithDeduplicator(store shared.IdempotencyStore, ttl time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.dedup = store
		if ttl > 0 {
			p.dedupTTL = ttl
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records outcomes and durations
func WithMetrics(m *telemetry.EngineMetrics) ProcessorOption {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor creates a Processor
func NewProcessor(devices DeviceRegistry, steps Steps, results ResultStore, opts ...ProcessorOption) *Processor {
	p := &Processor{
		devices:  devices,
		steps:    steps,
		results:  results,
		hook:     noopHook{},
		validate: newValidator(),
		dedupTTL: DefaultDedupTTL,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is the state of one Process call
type run struct {
	ctx   context.Context
	log   *zap.Logger
	span  trace.Span
	step  string
	saved bool // the result reached the ResultStore
}

// Process handles one punch event
func (p *Processor) Process(ctx context.Context, event PunchEvent) (result *ProcessResult) {
	started := p.now()
	ctx, span := telemetry.StartSpan(ctx, "attendance.process",
		telemetry.WithAttribute(telemetry.SpanAttrDeviceID, event.DeviceID),
	)
	r := &run{ctx: ctx, log: p.logger, span: span, step: "validate"}
	if event.EventID != "" {
		r.ctx, r.log = logger.WithEventID(r.ctx, r.log, event.EventID)
	}

	result = &ProcessResult{EventID: event.EventID, DeviceID: event.DeviceID}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Panic during attendance processing", zap.String("step", r.step), zap.Any("panic", rec))
			p.fail(result, OutcomeSystemError, fmt.Sprintf("%s: panic: %v", r.step, rec))
		}
		result.ProcessedAt = p.now()
		p.persistOutcome(r, result)
		telemetry.SetAttributes(span, telemetry.SpanAttrProcStatus, string(result.Outcome))
		span.End()
		p.metrics.RecordProcess(ctx, string(result.Outcome), p.now().Sub(started))
	}()

	err := p.pipeline(r, event, result)
	if err == nil {
		r.log.Info("Punch processed",
			zap.String("punch_id", result.PunchID),
			zap.String("device_id", event.DeviceID),
		)
		return result
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrProcStep, r.step)
	var d *denial
	if errors.As(err, &d) {
		r.log.Warn("Punch denied", zap.String("step", r.step), zap.String("reason", d.reason))
		p.fail(result, OutcomeDenied, d.reason)
		return result
	}
	telemetry.RecordError(span, err)
	r.log.Error("Punch processing failed", zap.String("step", r.step), zap.Error(err))
	p.fail(result, OutcomeSystemError, fmt.Sprintf("%s: %v", r.step, err))
	return result
}

// persistOutcome stores DENIED and SYSTEM_ERROR results for the audit
// trail. A failed persist step is not retried.
func (p *Processor) persistOutcome(r *run, result *ProcessResult) {
	if r.saved || r.step == "persist" {
		return
	}
	if err := p.results.SaveResult(r.ctx, result); err != nil {
		r.log.Error("Failed to persist punch outcome",
			zap.String("outcome", string(result.Outcome)),
			zap.Error(err),
		)
	}
}

func (p *Processor) fail(result *ProcessResult, outcome Outcome, message string) {
	result.Outcome = outcome
	result.Message = message
}

// pipeline runs the steps in order, keeping r.step at the running stage
func (p *Processor) pipeline(r *run, event PunchEvent, result *ProcessResult) error {
	if err := p.validate.Struct(event); err != nil {
		return deny("invalid punch: %s", describeValidation(err))
	}

	r.step = "device"
	if err := p.checkDevice(r.ctx, event.DeviceID); err != nil {
		return err
	}

	if p.dedup != nil {
		r.step = "dedup"
		fresh, err := p.dedup.MarkProcessed(r.ctx, event.dedupKey(), p.dedupTTL)
		if err != nil {
			// Processing twice beats dropping a punch
			r.log.Warn("Duplicate check failed, continuing", zap.Error(err))
		} else if !fresh {
			return deny("duplicate punch")
		}
	}

	r.step = "identify"
	employeeID, err := p.steps.Identify(r.ctx, event)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrUnauthorized) {
			return deny("credential not recognized")
		}
		return err
	}
	result.EmployeeID = employeeID
	r.ctx, r.log = logger.WithEmployeeID(r.ctx, r.log, employeeID)
	telemetry.SetAttributes(r.span, telemetry.SpanAttrEmployeeID, employeeID)

	r.step = "record"
	record, err := p.steps.Record(r.ctx, employeeID, event)
	if err != nil {
		return err
	}
	result.PunchID = record.ID

	r.step = "calculate"
	calc, err := p.steps.Calculate(r.ctx, record)
	if err != nil {
		return err
	}
	result.Calculation = calc

	r.step = "persist"
	result.Outcome = OutcomeSuccess
	result.ProcessedAt = p.now()
	if err := p.results.SaveResult(r.ctx, result); err != nil {
		return err
	}
	r.saved = true

	r.step = "notify"
	if err := p.hook.Notify(r.ctx, result); err != nil {
		r.log.Warn("Notification hook failed", zap.Error(err))
	}
	return nil
}

func (p *Processor) checkDevice(ctx context.Context, deviceID string) error {
	device, err := p.devices.Device(ctx, deviceID)
	switch {
	case errors.Is(err, shared.ErrNotFound), err == nil && device == nil:
		return deny("unknown device %s", deviceID)
	case err != nil:
		return err
	case !device.Enabled:
		return deny("%s: %s", shared.ErrDeviceDisabled.Message, deviceID)
	}
	return nil
}
