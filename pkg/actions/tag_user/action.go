// Package tag_user appends a segmentation tag to a user record.
package tag_user

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/template"
)

const userKind = "users"

var (
	ErrUserIDRequired = errors.New("tag_user requires a user_id parameter")
	ErrTagRequired    = errors.New("tag_user requires a tag parameter")
	ErrUserNotFound   = errors.New("user not found")
)

type Action struct {
	repository protocol.EntityRepository
}

func NewAction(repository protocol.EntityRepository) *Action {
	return &Action{repository: repository}
}

func (a *Action) Execute(ctx context.Context, params map[string]any, logger *slog.Logger) (any, error) {
	userID := template.Stringify(params["user_id"])
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	tag := template.Stringify(params["tag"])
	if tag == "" {
		return nil, ErrTagRequired
	}

	users, err := a.repository.SelectByFilter(ctx, userKind, map[string]any{"id": userID})
	if err != nil {
		return nil, err
	}

	if len(users) == 0 {
		return nil, ErrUserNotFound
	}

	tags := existingTags(users[0])
	if !slices.Contains(tags, tag) {
		tags = append(tags, tag)
	}

	if err := a.repository.UpdateByID(ctx, userKind, userID, map[string]any{"tags": tags}); err != nil {
		return nil, err
	}

	logger.Info("User tagged", "user_id", userID, "tag", tag)

	return map[string]any{"user_id": userID, "tags": tags}, nil
}

func existingTags(user protocol.Entity) []string {
	raw, ok := user.Data["tags"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			tags = append(tags, template.Stringify(item))
		}

		return tags
	default:
		return nil
	}
}
