// Package create_discount grants a personal discount code to a user and
// tells them about it.
package create_discount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/template"
)

const userKind = "users"

var (
	ErrUserIDRequired = errors.New("create_discount requires a user_id parameter")
	ErrCodeRequired   = errors.New("create_discount requires a code parameter")
)

type Action struct {
	repository protocol.EntityRepository
	notifier   protocol.Notifier
}

func NewAction(repository protocol.EntityRepository, notifier protocol.Notifier) *Action {
	return &Action{repository: repository, notifier: notifier}
}

func (a *Action) Execute(ctx context.Context, params map[string]any, logger *slog.Logger) (any, error) {
	userID := template.Stringify(params["user_id"])
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	code := template.Stringify(params["code"])
	if code == "" {
		return nil, ErrCodeRequired
	}

	percent := template.Stringify(params["percent"])
	if percent == "" {
		percent = "10"
	}

	patch := map[string]any{
		"discount_code":    code,
		"discount_percent": percent,
	}

	if err := a.repository.UpdateByID(ctx, userKind, userID, patch); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Your %s%% discount code %s is ready to use.", percent, code)
	if err := a.notifier.Notify(ctx, userID, "A discount for you", message); err != nil {
		return nil, err
	}

	logger.Info("Discount created", "user_id", userID, "code", code, "percent", percent)

	return map[string]any{"user_id": userID, "code": code, "percent": percent}, nil
}
