// Package notify_admin raises an operator-facing alert through the
// notification sink.
package notify_admin

import (
	"context"
	"errors"
	"log/slog"

	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/template"
)

const adminAudience = "admins"

var ErrMessageRequired = errors.New("notify_admin requires a message parameter")

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

	title := template.Stringify(params["title"])
	if title == "" {
		title = "Automation alert"
	}

	if err := a.notifier.Notify(ctx, adminAudience, title, message); err != nil {
		return nil, err
	}

	logger.Info("Admin alert sent", "title", title)

	return map[string]any{"audience": adminAudience, "delivered": true}, nil
}
