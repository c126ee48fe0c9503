// Package eventbus moves automation lifecycle events out and storefront
// domain events in, over a watermill transport.
package eventbus

import (
	"context"

	"github.com/storekit/automation/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	GenerateID() string
	Publish(ctx context.Context, key string, event Event) error
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
	Close() error
}
