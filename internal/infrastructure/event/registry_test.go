package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erp/attendance/internal/domain/shared"
)

func TestHandlerRegistry_Register(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newTestHandler()

	registry.Register(handler, "attendance.processed", "attendance.denied")

	assert.Equal(t, []*testHandler{handler}, asTestHandlers(registry.GetHandlers("attendance.processed")))
	assert.Len(t, registry.GetHandlers("attendance.denied"), 1)
	assert.Empty(t, registry.GetHandlers("schedule.resolved"))
}

func TestHandlerRegistry_WildcardComesLast(t *testing.T) {
	registry := NewHandlerRegistry()
	typed := newTestHandler()
	wildcard := newTestHandler()

	registry.Register(wildcard)
	registry.Register(typed, "attendance.processed")

	assert.Equal(t, []*testHandler{typed, wildcard}, asTestHandlers(registry.GetHandlers("attendance.processed")))
	assert.Equal(t, []*testHandler{wildcard}, asTestHandlers(registry.GetHandlers("other")))
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	h1 := newTestHandler()
	h2 := newTestHandler()
	wildcard := newTestHandler()
	registry.Register(h1, "attendance.processed")
	registry.Register(h2, "attendance.processed")
	registry.Register(wildcard)

	registry.Unregister(h1)
	registry.Unregister(wildcard)

	assert.Equal(t, []*testHandler{h2}, asTestHandlers(registry.GetHandlers("attendance.processed")))

	registry.Unregister(h2)
	assert.Empty(t, registry.GetHandlers("attendance.processed"))
	assert.Empty(t, registry.handlers)
}

func TestHandlerRegistry_GetAllHandlersDeduplicates(t *testing.T) {
	registry := NewHandlerRegistry()
	multi := newTestHandler()
	other := newTestHandler()
	wildcard := newTestHandler()

	registry.Register(multi, "attendance.processed", "attendance.denied")
	registry.Register(other, "schedule.resolved")
	registry.Register(wildcard)

	assert.Len(t, registry.GetAllHandlers(), 3)
}

func asTestHandlers(hs []shared.EventHandler) []*testHandler {
	out := make([]*testHandler, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.(*testHandler))
	}
	return out
}
