package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"arena-server/internal/models"
)

// MockGameRepository is a mock type for the GameRepository type
type MockGameRepository struct {
	mock.Mock
}

func (_m *MockGameRepository) CreateGame(ctx context.Context, session *models.GameSession) error {
	ret := _m.Called(ctx, session)
	return ret.Error(0)
}

func (_m *MockGameRepository) GetGameByID(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	ret := _m.Called(ctx, id)
	var r0 *models.GameSession
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.GameSession)
	}
	return r0, ret.Error(1)
}

func (_m *MockGameRepository) ListGames(ctx context.Context, limit, offset int) ([]models.GameSession, error) {
	ret := _m.Called(ctx, limit, offset)
	var r0 []models.GameSession
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.GameSession)
	}
	return r0, ret.Error(1)
}

func (_m *MockGameRepository) UpdateOutcome(ctx context.Context, id uuid.UUID, status models.GameStatus, winnerUID, gameOverReason, errorDetails *string) error {
	ret := _m.Called(ctx, id, status, winnerUID, gameOverReason, errorDetails)
	return ret.Error(0)
}

// MockTurnRepository is a mock type for the TurnRepository type
type MockTurnRepository struct {
	mock.Mock
}

func (_m *MockTurnRepository) SaveTurn(ctx context.Context, turn *models.Turn) (int64, error) {
	ret := _m.Called(ctx, turn)
	return ret.Get(0).(int64), ret.Error(1)
}

func (_m *MockTurnRepository) GetTurnsByGame(ctx context.Context, gameID uuid.UUID) ([]models.Turn, error) {
	ret := _m.Called(ctx, gameID)
	var r0 []models.Turn
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Turn)
	}
	return r0, ret.Error(1)
}

func (_m *MockTurnRepository) GetLatestTurn(ctx context.Context, gameID uuid.UUID) (*models.Turn, error) {
	ret := _m.Called(ctx, gameID)
	var r0 *models.Turn
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Turn)
	}
	return r0, ret.Error(1)
}

func (_m *MockTurnRepository) DeleteTurnsAfter(ctx context.Context, gameID uuid.UUID, turnNumber int) (int64, error) {
	ret := _m.Called(ctx, gameID, turnNumber)
	return ret.Get(0).(int64), ret.Error(1)
}

// MockSnapshotCache is a mock type for the SnapshotCache type
type MockSnapshotCache struct {
	mock.Mock
}

func (_m *MockSnapshotCache) GetLatestTurn(ctx context.Context, gameID uuid.UUID) (*models.Turn, error) {
	ret := _m.Called(ctx, gameID)
	var r0 *models.Turn
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Turn)
	}
	return r0, ret.Error(1)
}

func (_m *MockSnapshotCache) SetLatestTurn(ctx context.Context, turn *models.Turn, ttl time.Duration) error {
	ret := _m.Called(ctx, turn, ttl)
	return ret.Error(0)
}

func (_m *MockSnapshotCache) InvalidateLatestTurn(ctx context.Context, gameID uuid.UUID) error {
	ret := _m.Called(ctx, gameID)
	return ret.Error(0)
}
