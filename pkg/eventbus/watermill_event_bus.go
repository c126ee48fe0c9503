package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/storekit/automation/pkg/events"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	topic := events.Topic
	if event.GetType() == events.DomainEventType {
		topic = events.DomainTopic
	}

	return eb.publisher.Publish(topic, msg)
}

// Subscribe consumes both the automation topic and the storefront domain
// topic, routing each message to the handler registered for its type.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	for _, topic := range []string{events.Topic, events.DomainTopic} {
		messages, err := eb.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return err
		}

		go eb.consume(ctx, messages)
	}

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

		handler, exists := eb.subscriptions[eventType]
		if !exists {
			msg.Ack()

			continue
		}

		event := newEvent(eventType)
		if event == nil {
			msg.Nack()

			continue
		}

		err := json.Unmarshal(msg.Payload, event)
		if err != nil {
			msg.Nack()

			continue
		}

		err = handler(ctx, event)
		if err != nil {
			msg.Nack()

			continue
		}

		msg.Ack()
	}
}

func newEvent(eventType events.EventType) any {
	switch eventType {
	case events.RuleExecutedEvent:
		return &events.RuleExecuted{}
	case events.RuleFailedEvent:
		return &events.RuleFailed{}
	case events.BulkCompletedEvent:
		return &events.BulkCompleted{}
	case events.BulkFailedEvent:
		return &events.BulkFailed{}
	case events.TaskExecutedEvent:
		return &events.TaskExecuted{}
	case events.NotificationEvent:
		return &events.Notification{}
	case events.DomainEventType:
		return &events.DomainEvent{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
