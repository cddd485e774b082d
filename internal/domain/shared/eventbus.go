package shared

import "context"

// EventHandler reacts to published events, e.g. logging or forwarding
// processed punches
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types to receive; empty means all
	EventTypes() []string
}

// EventPublisher is the side of the bus the attendance processor sees
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus delivers published events to subscribed handlers. Start and
// Stop bracket its lifetime.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
