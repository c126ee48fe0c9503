// Package cmd provides common initialization functions for the command-line
// binaries.
package cmd

import (
	"log/slog"

	"github.com/storekit/automation/pkg/actions/create_discount"
	"github.com/storekit/automation/pkg/actions/generate_report"
	"github.com/storekit/automation/pkg/actions/notify_admin"
	"github.com/storekit/automation/pkg/actions/send_notification"
	"github.com/storekit/automation/pkg/actions/tag_user"
	"github.com/storekit/automation/pkg/actions/update_inventory"
	"github.com/storekit/automation/pkg/actions/update_order_status"
	"github.com/storekit/automation/pkg/registry"
)

// NewRegistry builds the action registry with every built-in handler, plus
// any .so plugins found under pluginsPath.
func NewRegistry(logger *slog.Logger, pluginsPath string) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterAction(send_notification.NewFactory())
	reg.RegisterAction(notify_admin.NewFactory())
	reg.RegisterAction(update_inventory.NewFactory())
	reg.RegisterAction(update_order_status.NewFactory())
	reg.RegisterAction(create_discount.NewFactory())
	reg.RegisterAction(tag_user.NewFactory())
	reg.RegisterAction(generate_report.NewFactory())

	if pluginsPath != "" {
		registerActionPlugins(reg, pluginsPath)
	}

	return reg
}

func registerActionPlugins(reg *registry.Registry, pluginsPath string) {
	plugins, err := reg.LoadActionPlugins(pluginsPath)
	if err != nil {
		panic(err)
	}

	for _, plugin := range plugins {
		reg.RegisterAction(plugin)
	}
}
