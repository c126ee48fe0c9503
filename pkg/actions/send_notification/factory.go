package send_notification

import "github.com/storekit/automation/pkg/protocol"

func NewFactory() *Factory {
	return &Factory{}
}

type Factory struct{}

func (*Factory) ID() string {
	return "send_notification"
}

func (*Factory) Create(deps protocol.Dependencies) (protocol.ActionHandler, error) {
	return NewAction(deps.Notifier), nil
}
