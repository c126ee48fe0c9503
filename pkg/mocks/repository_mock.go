package mocks

import (
	"context"

	"github.com/storekit/automation/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockEntityRepository is a mock implementation of protocol.EntityRepository.
type MockEntityRepository struct {
	mock.Mock
}

func (m *MockEntityRepository) SelectByFilter(ctx context.Context, kind string, filter map[string]any) ([]protocol.Entity, error) {
	args := m.Called(ctx, kind, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]protocol.Entity), args.Error(1)
}

func (m *MockEntityRepository) UpdateByID(ctx context.Context, kind, id string, patch map[string]any) error {
	args := m.Called(ctx, kind, id, patch)

	return args.Error(0)
}

func (m *MockEntityRepository) DeleteByID(ctx context.Context, kind, id string) error {
	args := m.Called(ctx, kind, id)

	return args.Error(0)
}

// MockNotifier is a mock implementation of protocol.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, audience, title, message string) error {
	args := m.Called(ctx, audience, title, message)

	return args.Error(0)
}
