package tag_user

import "github.com/storekit/automation/pkg/protocol"

func NewFactory() *Factory {
	return &Factory{}
}

type Factory struct{}

func (*Factory) ID() string {
	return "tag_user"
}

func (*Factory) Create(deps protocol.Dependencies) (protocol.ActionHandler, error) {
	return NewAction(deps.Repository), nil
}
