package create_discount

import "github.com/storekit/automation/pkg/protocol"

func NewFactory() *Factory {
	return &Factory{}
}

type Factory struct{}

func (*Factory) ID() string {
	return "create_discount"
}

func (*Factory) Create(deps protocol.Dependencies) (protocol.ActionHandler, error) {
	return NewAction(deps.Repository, deps.Notifier), nil
}
