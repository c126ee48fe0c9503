// Package registry holds the named action handler factories. New action
// types are registered additively; the engines never switch on type tags.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"strings"

	"github.com/storekit/automation/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[string]protocol.ActionFactory),
	}
}

func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.factories[factory.ID()] = factory
}

// CreateAction builds a handler for the given type tag. Unknown tags are the
// caller's "unsupported action" failure.
func (r *Registry) CreateAction(actionType string, deps protocol.Dependencies) (protocol.ActionHandler, error) {
	factory, ok := r.factories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", actionType)
	}

	return factory.Create(deps)
}

// ActionTypes returns the registered type tags.
func (r *Registry) ActionTypes() []string {
	types := make([]string, 0, len(r.factories))
	for actionType := range r.factories {
		types = append(types, actionType)
	}

	return types
}

// LoadActionPlugins loads out-of-tree action factories from .so files under
// <pluginsPath>/actions.
func (r *Registry) LoadActionPlugins(pluginsPath string) ([]protocol.ActionFactory, error) {
	rootPath := pluginsPath + "/actions"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return nil, err
	}

	l := r.logger.With(slog.String("path", pluginsPath))
	l.Info("Loading action plugins")

	factories := make([]protocol.ActionFactory, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		symbol, err := plg.Lookup("Action")
		if err != nil {
			return nil, fmt.Errorf("plugin %s has no Action symbol: %w", p, err)
		}

		factory, ok := symbol.(protocol.ActionFactory)
		if !ok {
			return nil, fmt.Errorf("plugin %s Action symbol is not an ActionFactory", p)
		}

		factories = append(factories, factory)

		l.Info("Loaded action plugin", slog.String("plugin", strings.TrimSuffix(p, ".so")))
	}

	return factories, nil
}
