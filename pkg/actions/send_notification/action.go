// Package send_notification delivers a rule-driven message to a user-facing
// audience through the notification sink.
package send_notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/template"
)

var ErrMessageRequired = errors.New("send_notification requires a message parameter")

type Action struct {
	notifier protocol.Notifier
}

func NewAction(notifier protocol.Notifier) *Action {
	return &Action{notifier: notifier}
}

func (a *Action) Execute(ctx context.Context, params map[string]any, logger *slog.Logger) (any, error) {
	message := template.Stringify(params["message"])
	if message == "" {
		return nil, ErrMessageRequired
	}

	audience := template.Stringify(params["audience"])
	if audience == "" {
		audience = "customers"
	}

	title := template.Stringify(params["title"])

	if err := a.notifier.Notify(ctx, audience, title, message); err != nil {
		return nil, err
	}

	logger.Info("Notification sent", "audience", audience, "title", title)

	return map[string]any{"audience": audience, "delivered": true}, nil
}
