package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"arena-server/internal/models"
)

// MockClientUpdatePublisher is a mock type for the ClientUpdatePublisher type
type MockClientUpdatePublisher struct {
	mock.Mock
}

func (_m *MockClientUpdatePublisher) PublishTurnUpdate(ctx context.Context, payload models.TurnUpdate) error {
	ret := _m.Called(ctx, payload)
	return ret.Error(0)
}
