// Package generate_report counts a filtered entity set and delivers the
// summary to the admin audience.
package generate_report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/template"
)

const adminAudience = "admins"

var ErrEntityKindRequired = errors.New("generate_report requires an entity_kind parameter")

type Action struct {
	repository protocol.EntityRepository
	notifier   protocol.Notifier
}

func NewAction(repository protocol.EntityRepository, notifier protocol.Notifier) *Action {
	return &Action{repository: repository, notifier: notifier}
}

func (a *Action) Execute(ctx context.Context, params map[string]any, logger *slog.Logger) (any, error) {
	entityKind := template.Stringify(params["entity_kind"])
	if entityKind == "" {
		return nil, ErrEntityKindRequired
	}

	filter, _ := params["filter"].(map[string]any)

	items, err := a.repository.SelectByFilter(ctx, entityKind, filter)
	if err != nil {
		return nil, err
	}

	reportName := template.Stringify(params["name"])
	if reportName == "" {
		reportName = entityKind + " report"
	}

	generatedAt := time.Now().UTC()
	message := fmt.Sprintf("%s: %d %s matched at %s", reportName, len(items), entityKind, generatedAt.Format(time.RFC3339))

	if err := a.notifier.Notify(ctx, adminAudience, reportName, message); err != nil {
		return nil, err
	}

	logger.Info("Report generated", "report", reportName, "entity_kind", entityKind, "count", len(items))

	return map[string]any{
		"report":       reportName,
		"entity_kind":  entityKind,
		"count":        len(items),
		"generated_at": generatedAt.Format(time.RFC3339),
	}, nil
}
