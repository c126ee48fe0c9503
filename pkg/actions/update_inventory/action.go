// Package update_inventory patches a product's stock level through the
// entity repository.
package update_inventory

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/template"
)

const productKind = "products"

var (
	ErrProductIDRequired = errors.New("update_inventory requires a product_id parameter")
	ErrQuantityRequired  = errors.New("update_inventory requires a numeric quantity parameter")
)

type Action struct {
	repository protocol.EntityRepository
}

func NewAction(repository protocol.EntityRepository) *Action {
	return &Action{repository: repository}
}

func (a *Action) Execute(ctx context.Context, params map[string]any, logger *slog.Logger) (any, error) {
	productID := template.Stringify(params["product_id"])
	if productID == "" {
		return nil, ErrProductIDRequired
	}

	quantity, ok := numeric(params["quantity"])
	if !ok {
		return nil, ErrQuantityRequired
	}

	patch := map[string]any{"stock_quantity": quantity}

	if err := a.repository.UpdateByID(ctx, productKind, productID, patch); err != nil {
		return nil, err
	}

	logger.Info("Inventory updated", "product_id", productID, "quantity", quantity)

	return map[string]any{"product_id": productID, "stock_quantity": quantity}, nil
}

// numeric accepts native numbers and interpolated numeric strings.
func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)

		return f, err == nil
	default:
		return 0, false
	}
}
