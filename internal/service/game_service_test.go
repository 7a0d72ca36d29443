package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arena-server/internal/arbiter"
	"arena-server/internal/config"
	dbmocks "arena-server/internal/database/mocks"
	msgmocks "arena-server/internal/messaging/mocks"
	"arena-server/internal/models"
)

type serviceFixture struct {
	games     *dbmocks.MockGameRepository
	turns     *dbmocks.MockTurnRepository
	cache     *dbmocks.MockSnapshotCache
	publisher *msgmocks.MockClientUpdatePublisher
	svc       GameService
}

func newServiceFixture(t *testing.T, client arbiter.AIClient) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		games:     new(dbmocks.MockGameRepository),
		turns:     new(dbmocks.MockTurnRepository),
		cache:     new(dbmocks.MockSnapshotCache),
		publisher: new(msgmocks.MockClientUpdatePublisher),
	}
	cfg := &config.Config{
		SnapshotCacheTTL:     time.Hour,
		AIModel:              "mock-model",
		AIMaxAttempts:        1,
		WorldSize:            2,
		CurrencyTarget:       1000,
		MaxTurns:             10,
		NumResponses:         1,
		NumNegotiationRounds: 0,
		PlayerVision:         1,
		StartingHealth:       100,
		StartingWealth:       0,
	}
	f.svc = NewGameService(f.games, f.turns, f.cache, f.publisher, client, cfg, zap.NewNop())
	return f
}

func (f *serviceFixture) assertExpectations(t *testing.T) {
	f.games.AssertExpectations(t)
	f.turns.AssertExpectations(t)
	f.cache.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func twoPlayerRoster() []models.PlayerConfig {
	return []models.PlayerConfig{
		{Name: "alice", StartingHealth: 100},
		{Name: "bob", StartingHealth: 100},
	}
}

// failingAIClient satisfies arbiter.AIClient and always fails, standing in
// for an unreachable AI backend.
type failingAIClient struct{}

func (failingAIClient) GenerateText(context.Context, string, string, string, arbiter.GenerationParams) (string, arbiter.UsageInfo, error) {
	return "", arbiter.UsageInfo{}, errors.New("backend down")
}

func TestCreateGame_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty roster rejected", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		_, err := f.svc.CreateGame(ctx, CreateGameParams{Name: "empty"})
		assert.ErrorIs(t, err, ErrInvalidRoster)
	})

	t.Run("duplicate names rejected", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		_, err := f.svc.CreateGame(ctx, CreateGameParams{
			Players: []models.PlayerConfig{{Name: "alice"}, {Name: "alice"}},
		})
		assert.ErrorIs(t, err, models.ErrDuplicateUID)
	})

	t.Run("unnamed player rejected", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		_, err := f.svc.CreateGame(ctx, CreateGameParams{
			Players: []models.PlayerConfig{{Name: ""}},
		})
		assert.ErrorIs(t, err, ErrInvalidRoster)
	})

	t.Run("oversized roster rejected", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		roster := make([]models.PlayerConfig, maxRosterSize+1)
		for i := range roster {
			roster[i] = models.PlayerConfig{Name: string(rune('a' + i))}
		}
		_, err := f.svc.CreateGame(ctx, CreateGameParams{Players: roster})
		assert.ErrorIs(t, err, ErrInvalidRoster)
	})
}

func TestCreateGame_AppliesDefaults(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, arbiter.NewMockClient())

	var created *models.GameSession
	f.games.On("CreateGame", mock.Anything, mock.AnythingOfType("*models.GameSession")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.GameSession) }).
		Return(nil).Once()

	session, err := f.svc.CreateGame(ctx, CreateGameParams{
		Name:    "defaults",
		Players: []models.PlayerConfig{{Name: "alice"}},
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, created, session)

	assert.Equal(t, models.StatusPending, session.Status)
	assert.Equal(t, "mock-model", session.ModelMode)
	assert.Equal(t, 2, session.WorldSize)
	assert.Equal(t, 1000, session.CurrencyTarget)
	assert.Equal(t, 10, session.MaxTurns)
	assert.Equal(t, 100, session.Players[0].StartingHealth)
	assert.NotEqual(t, uuid.Nil, session.ID)
	f.assertExpectations(t)
}

func TestStepGame_FullLifecycle(t *testing.T) {
	// The mock AI backend awards every player 10 currency per verdict round,
	// so a target of 20 finishes the game on the second step.
	ctx := context.Background()
	f := newServiceFixture(t, arbiter.NewMockClient())

	gameID := uuid.New()
	session := &models.GameSession{
		ID:             gameID,
		Status:         models.StatusPending,
		ModelMode:      "mock-model",
		WorldSize:      2,
		CurrencyTarget: 20,
		MaxTurns:       10,
		Players:        twoPlayerRoster(),
	}

	f.games.On("GetGameByID", mock.Anything, gameID).Return(session, nil).Once()
	f.cache.On("GetLatestTurn", mock.Anything, gameID).Return(nil, models.ErrNotFound).Once()
	f.turns.On("GetLatestTurn", mock.Anything, gameID).Return(nil, models.ErrTurnNotFound).Once()

	f.turns.On("SaveTurn", mock.Anything, mock.AnythingOfType("*models.Turn")).Return(int64(1), nil).Once()
	f.turns.On("SaveTurn", mock.Anything, mock.AnythingOfType("*models.Turn")).Return(int64(2), nil).Once()
	f.cache.On("SetLatestTurn", mock.Anything, mock.AnythingOfType("*models.Turn"), time.Hour).Return(nil).Twice()
	f.publisher.On("PublishTurnUpdate", mock.Anything, mock.AnythingOfType("models.TurnUpdate")).Return(nil).Twice()

	f.games.On("UpdateOutcome", mock.Anything, gameID, models.StatusActive,
		(*string)(nil), (*string)(nil), (*string)(nil)).Return(nil).Once()
	f.games.On("UpdateOutcome", mock.Anything, gameID, models.StatusCompleted,
		mock.AnythingOfType("*string"), mock.AnythingOfType("*string"), (*string)(nil)).
		Run(func(args mock.Arguments) {
			session.Status = models.StatusCompleted
			session.WinnerUID = args.Get(3).(*string)
		}).
		Return(nil).Once()

	turn1, err := f.svc.StepGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 1, turn1.TurnNumber)
	assert.Equal(t, int64(1), turn1.ID)
	assert.Equal(t, 10, turn1.State.Players["alice"].Money)
	assert.False(t, turn1.State.GameOver)

	turn2, err := f.svc.StepGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 2, turn2.TurnNumber)
	assert.True(t, turn2.State.GameOver)
	assert.Equal(t, "alice", turn2.State.WinnerUID)

	// The finished game is out of the registry and its session is terminal.
	f.games.On("GetGameByID", mock.Anything, gameID).Return(session, nil).Once()
	_, err = f.svc.StepGame(ctx, gameID)
	assert.ErrorIs(t, err, models.ErrGameOver)

	f.assertExpectations(t)
}

func TestStepGame_RestoresFromSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, arbiter.NewMockClient())

	gameID := uuid.New()
	session := &models.GameSession{
		ID:             gameID,
		Status:         models.StatusActive,
		WorldSize:      2,
		CurrencyTarget: 1000,
		MaxTurns:       10,
		Players:        twoPlayerRoster(),
	}
	cached := &models.Turn{
		GameID:     gameID,
		TurnNumber: 3,
		State: models.StateSnapshot{
			Players: map[string]models.PlayerSnapshot{
				"alice": {UID: "alice", Money: 30, Health: 100},
				"bob":   {UID: "bob", Money: 30, Health: 100},
			},
		},
	}

	f.games.On("GetGameByID", mock.Anything, gameID).Return(session, nil).Once()
	f.cache.On("GetLatestTurn", mock.Anything, gameID).Return(cached, nil).Once()
	f.turns.On("SaveTurn", mock.Anything, mock.AnythingOfType("*models.Turn")).Return(int64(4), nil).Once()
	f.cache.On("SetLatestTurn", mock.Anything, mock.AnythingOfType("*models.Turn"), time.Hour).Return(nil).Once()
	f.publisher.On("PublishTurnUpdate", mock.Anything, mock.AnythingOfType("models.TurnUpdate")).Return(nil).Once()

	turn, err := f.svc.StepGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 4, turn.TurnNumber)
	assert.Equal(t, 40, turn.State.Players["alice"].Money)

	f.assertExpectations(t)
}

func TestStepGame_TerminalSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("completed game", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		gameID := uuid.New()
		f.games.On("GetGameByID", mock.Anything, gameID).
			Return(&models.GameSession{ID: gameID, Status: models.StatusCompleted}, nil).Once()
		_, err := f.svc.StepGame(ctx, gameID)
		assert.ErrorIs(t, err, models.ErrGameOver)
		f.assertExpectations(t)
	})

	t.Run("errored game", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		gameID := uuid.New()
		f.games.On("GetGameByID", mock.Anything, gameID).
			Return(&models.GameSession{ID: gameID, Status: models.StatusErrored}, nil).Once()
		_, err := f.svc.StepGame(ctx, gameID)
		assert.ErrorIs(t, err, models.ErrGameNotActive)
		f.assertExpectations(t)
	})

	t.Run("unknown game", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		gameID := uuid.New()
		f.games.On("GetGameByID", mock.Anything, gameID).Return(nil, models.ErrGameNotFound).Once()
		_, err := f.svc.StepGame(ctx, gameID)
		assert.ErrorIs(t, err, models.ErrGameNotFound)
		f.assertExpectations(t)
	})
}

func TestStepGame_BackendFailureMarksErrored(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, failingAIClient{})

	gameID := uuid.New()
	session := &models.GameSession{
		ID:             gameID,
		Status:         models.StatusPending,
		WorldSize:      2,
		CurrencyTarget: 1000,
		MaxTurns:       10,
		Players:        twoPlayerRoster(),
	}

	f.games.On("GetGameByID", mock.Anything, gameID).Return(session, nil).Once()
	f.cache.On("GetLatestTurn", mock.Anything, gameID).Return(nil, models.ErrNotFound).Once()
	f.turns.On("GetLatestTurn", mock.Anything, gameID).Return(nil, models.ErrTurnNotFound).Once()
	f.games.On("UpdateOutcome", mock.Anything, gameID, models.StatusErrored,
		(*string)(nil), (*string)(nil), mock.AnythingOfType("*string")).Return(nil).Once()

	_, err := f.svc.StepGame(ctx, gameID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrGameOver)

	f.assertExpectations(t)
}

func TestGetLatestTurn(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()
	turn := &models.Turn{GameID: gameID, TurnNumber: 7}

	t.Run("cache hit", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		f.cache.On("GetLatestTurn", mock.Anything, gameID).Return(turn, nil).Once()
		got, err := f.svc.GetLatestTurn(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, turn, got)
		f.assertExpectations(t)
	})

	t.Run("cache miss refills from database", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		f.cache.On("GetLatestTurn", mock.Anything, gameID).Return(nil, models.ErrNotFound).Once()
		f.turns.On("GetLatestTurn", mock.Anything, gameID).Return(turn, nil).Once()
		f.cache.On("SetLatestTurn", mock.Anything, turn, time.Hour).Return(nil).Once()
		got, err := f.svc.GetLatestTurn(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, turn, got)
		f.assertExpectations(t)
	})

	t.Run("no turns yet", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		f.cache.On("GetLatestTurn", mock.Anything, gameID).Return(nil, models.ErrNotFound).Once()
		f.turns.On("GetLatestTurn", mock.Anything, gameID).Return(nil, models.ErrTurnNotFound).Once()
		_, err := f.svc.GetLatestTurn(ctx, gameID)
		assert.ErrorIs(t, err, models.ErrTurnNotFound)
		f.assertExpectations(t)
	})
}

func TestRollbackGame(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()

	t.Run("negative turn rejected", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		_, err := f.svc.RollbackGame(ctx, gameID, -1)
		assert.Error(t, err)
		f.assertExpectations(t)
	})

	t.Run("rollback to mid game reopens as active", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		f.games.On("GetGameByID", mock.Anything, gameID).
			Return(&models.GameSession{ID: gameID, Status: models.StatusCompleted}, nil).Once()
		f.turns.On("DeleteTurnsAfter", mock.Anything, gameID, 2).Return(int64(3), nil).Once()
		f.cache.On("InvalidateLatestTurn", mock.Anything, gameID).Return(nil).Once()
		f.games.On("UpdateOutcome", mock.Anything, gameID, models.StatusActive,
			(*string)(nil), (*string)(nil), (*string)(nil)).Return(nil).Once()

		deleted, err := f.svc.RollbackGame(ctx, gameID, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)
		f.assertExpectations(t)
	})

	t.Run("rollback to zero resets to pending", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		f.games.On("GetGameByID", mock.Anything, gameID).
			Return(&models.GameSession{ID: gameID, Status: models.StatusActive}, nil).Once()
		f.turns.On("DeleteTurnsAfter", mock.Anything, gameID, 0).Return(int64(5), nil).Once()
		f.cache.On("InvalidateLatestTurn", mock.Anything, gameID).Return(nil).Once()
		f.games.On("UpdateOutcome", mock.Anything, gameID, models.StatusPending,
			(*string)(nil), (*string)(nil), (*string)(nil)).Return(nil).Once()

		deleted, err := f.svc.RollbackGame(ctx, gameID, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), deleted)
		f.assertExpectations(t)
	})

	t.Run("unknown game", func(t *testing.T) {
		f := newServiceFixture(t, arbiter.NewMockClient())
		f.games.On("GetGameByID", mock.Anything, gameID).Return(nil, models.ErrGameNotFound).Once()
		_, err := f.svc.RollbackGame(ctx, gameID, 1)
		assert.ErrorIs(t, err, models.ErrGameNotFound)
		f.assertExpectations(t)
	})
}
