package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func bufferLogger() (*zap.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(&buf), zapcore.DebugLevel)
	return zap.New(core), &buf
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	base, _ := bufferLogger()
	ctx := WithContext(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))
}

func TestWithEmployeeAndEventID(t *testing.T) {
	base, buf := bufferLogger()

	ctx, _ := WithEmployeeID(context.Background(), base, "E001")
	ctx, l := WithEventID(ctx, FromContext(ctx), "punch-1")

	assert.Equal(t, "E001", GetEmployeeID(ctx))
	assert.Equal(t, "punch-1", GetEventID(ctx))

	l.Info("stored")
	out := buf.String()
	assert.Contains(t, out, `"employee_id":"E001"`)
	assert.Contains(t, out, `"event_id":"punch-1"`)
}

func TestGetters_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetEmployeeID(ctx))
	assert.Empty(t, GetEventID(ctx))
}

func TestWithTraceContext(t *testing.T) {
	base, buf := bufferLogger()

	assert.Same(t, base, WithTraceContext(context.Background(), base))

	WithTraceContext(spanContext(t), base).Info("traced")
	out := buf.String()
	assert.Contains(t, out, `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`)
	assert.Contains(t, out, `"span_id":"00f067aa0ba902b7"`)
}

func TestContextLogger_FromContextDoesNotRepeatFields(t *testing.T) {
	base, buf := bufferLogger()

	ctx, _ := WithEmployeeID(spanContext(t), base, "E001")
	L(ctx).With(zap.String("step", "evaluate")).Info("message")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `"employee_id"`))
	assert.Contains(t, out, `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`)
	assert.Contains(t, out, `"step":"evaluate"`)
}

func TestContextLogger_ExplicitLoggerAddsContextFields(t *testing.T) {
	base, buf := bufferLogger()

	ctx, _ := WithEmployeeID(context.Background(), zap.NewNop(), "E002")
	ctx, _ = WithEventID(ctx, zap.NewNop(), "punch-9")
	WithLogger(ctx, base).Warn("explicit")

	out := buf.String()
	assert.Contains(t, out, `"employee_id":"E002"`)
	assert.Contains(t, out, `"event_id":"punch-9"`)
	assert.NotContains(t, out, `"trace_id"`)
}

func TestContextLogger_Levels(t *testing.T) {
	base, buf := bufferLogger()
	cl := WithLogger(context.Background(), base)

	cl.Debug("d")
	cl.Info("i")
	cl.Warn("w")
	cl.Error("e")

	out := buf.String()
	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.Contains(t, out, `"level":"`+level+`"`)
	}
	assert.NotNil(t, cl.Zap())
}

func TestContextLogger_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		WithLogger(context.Background(), nil).Info("test")
	})
}
