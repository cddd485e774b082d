package attendance

import (
	"context"

	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/domain/worktime"
)

// EventTypeProcessed is published once per successfully persisted punch
const EventTypeProcessed = "attendance.processed"

// ProcessedEvent carries a persisted result to subscribers
type ProcessedEvent struct {
	shared.BaseDomainEvent
	EmployeeID string          `json:"employee_id"`
	DeviceID   string          `json:"device_id"`
	ShiftID    string          `json:"shift_id,omitempty"`
	Status     worktime.Status `json:"status,omitempty"`
	Result     *ProcessResult  `json:"result"`
}

// NewProcessedEvent builds the event for result, keyed by its punch ID
func NewProcessedEvent(result *ProcessResult) *ProcessedEvent {
	e := &ProcessedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProcessed, "PunchRecord", result.PunchID),
		EmployeeID:      result.EmployeeID,
		DeviceID:        result.DeviceID,
		Result:          result,
	}
	if c := result.Calculation; c != nil {
		e.ShiftID = c.ShiftID
		if c.Result != nil {
			e.Status = c.Result.Status
		}
	}
	return e
}

// EventNotifier is a NotificationHook that publishes ProcessedEvent
type EventNotifier struct {
	publisher shared.EventPublisher
}

// NewEventNotifier creates a notifier publishing to publisher
func NewEventNotifier(publisher shared.EventPublisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

// Notify publishes the result
func (n *EventNotifier) Notify(ctx context.Context, result *ProcessResult) error {
	return n.publisher.Publish(ctx, NewProcessedEvent(result))
}

var _ NotificationHook = (*EventNotifier)(nil)
