// Package update_order_status transitions an order through the entity
// repository.
package update_order_status

import (
	"context"
	"errors"
	"log/slog"

	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/template"
)

const orderKind = "orders"

var (
	ErrOrderIDRequired = errors.New("update_order_status requires an order_id parameter")
	ErrStatusRequired  = errors.New("update_order_status requires a status parameter")
)

type Action struct {
	repository protocol.EntityRepository
}

func NewAction(repository protocol.EntityRepository) *Action {
	return &Action{repository: repository}
}

func (a *Action) Execute(ctx context.Context, params map[string]any, logger *slog.Logger) (any, error) {
	orderID := template.Stringify(params["order_id"])
	if orderID == "" {
		return nil, ErrOrderIDRequired
	}

	status := template.Stringify(params["status"])
	if status == "" {
		return nil, ErrStatusRequired
	}

	if err := a.repository.UpdateByID(ctx, orderKind, orderID, map[string]any{"status": status}); err != nil {
		return nil, err
	}

	logger.Info("Order status updated", "order_id", orderID, "status", status)

	return map[string]any{"order_id": orderID, "status": status}, nil
}
