package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arena-server/internal/models"
)

// countingStepper finishes the game after a fixed number of steps.
type countingStepper struct {
	mu        sync.Mutex
	steps     int
	finishAt  int
	failAt    int
	failError error
}

func (s *countingStepper) StepGame(_ context.Context, id uuid.UUID) (*models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps++
	if s.failAt > 0 && s.steps >= s.failAt {
		return nil, s.failError
	}
	if s.steps > s.finishAt {
		return nil, models.ErrGameOver
	}
	return &models.Turn{
		GameID:     id,
		TurnNumber: s.steps,
		State:      models.StateSnapshot{GameOver: s.steps == s.finishAt},
	}, nil
}

func (s *countingStepper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

func TestRunner_RunsToCompletion(t *testing.T) {
	stepper := &countingStepper{finishAt: 3}
	runner := NewRunner(stepper, zap.NewNop())

	require.True(t, runner.Start(context.Background(), uuid.New()))
	runner.Wait()

	// The run stops on the turn that carries the game-over flag.
	assert.Equal(t, 3, stepper.count())
}

func TestRunner_StopsOnStepError(t *testing.T) {
	stepper := &countingStepper{finishAt: 100, failAt: 2, failError: errors.New("arbiter down")}
	runner := NewRunner(stepper, zap.NewNop())

	require.True(t, runner.Start(context.Background(), uuid.New()))
	runner.Wait()

	assert.Equal(t, 2, stepper.count())
}

func TestRunner_RejectsConcurrentRuns(t *testing.T) {
	gameID := uuid.New()
	release := make(chan struct{})
	stepper := &blockingStepper{release: release}
	runner := NewRunner(stepper, zap.NewNop())

	require.True(t, runner.Start(context.Background(), gameID))
	assert.False(t, runner.Start(context.Background(), gameID), "second start for the same game must be refused")
	assert.True(t, runner.IsRunning(gameID))

	close(release)
	runner.Wait()
	assert.False(t, runner.IsRunning(gameID))

	// A fresh run is allowed once the previous one finished.
	require.True(t, runner.Start(context.Background(), gameID))
	runner.Wait()
}

func TestRunner_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stepper := &countingStepper{finishAt: 100}
	runner := NewRunner(stepper, zap.NewNop())

	require.True(t, runner.Start(ctx, uuid.New()))
	runner.Wait()

	assert.Equal(t, 0, stepper.count())
}

// blockingStepper blocks its first step until released, then ends the game.
type blockingStepper struct {
	release <-chan struct{}
}

func (s *blockingStepper) StepGame(context.Context, uuid.UUID) (*models.Turn, error) {
	select {
	case <-s.release:
	case <-time.After(5 * time.Second):
	}
	return nil, models.ErrGameOver
}
