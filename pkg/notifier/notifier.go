// Package notifier implements the notification sink contract on top of the
// event bus, with a log-only fallback for tests and development.
package notifier

import (
	"context"
	"log/slog"

	"github.com/storekit/automation/pkg/eventbus"
	"github.com/storekit/automation/pkg/events"
)

// EventBusNotifier publishes notifications for the storefront's messaging
// channel to deliver.
type EventBusNotifier struct {
	bus eventbus.EventBus
}

func NewEventBusNotifier(bus eventbus.EventBus) *EventBusNotifier {
	return &EventBusNotifier{bus: bus}
}

func (n *EventBusNotifier) Notify(ctx context.Context, audience, title, message string) error {
	event := events.Notification{
		BaseEvent: events.NewBaseEvent(events.NotificationEvent),
		Audience:  audience,
		Title:     title,
		Message:   message,
	}

	return n.bus.Publish(ctx, audience, event)
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notifier")}
}

func (n *LogNotifier) Notify(_ context.Context, audience, title, message string) error {
	n.logger.Info("Notification", "audience", audience, "title", title, "message", message)

	return nil
}
