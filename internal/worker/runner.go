package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"arena-server/internal/models"
)

// stepLimit caps a single run so a game whose terminal conditions somehow
// never fire cannot spin forever.
const stepLimit = 1000

// Stepper is the slice of the game service the runner needs.
type Stepper interface {
	StepGame(ctx context.Context, id uuid.UUID) (*models.Turn, error)
}

// Runner drives games to completion in the background, one goroutine per
// game. The service already persists errored/completed status per step; the
// runner only sequences the steps.
type Runner struct {
	service Stepper
	logger  *zap.Logger

	mu      sync.Mutex
	running map[uuid.UUID]struct{}
	wg      sync.WaitGroup
}

func NewRunner(service Stepper, logger *zap.Logger) *Runner {
	return &Runner{
		service: service,
		logger:  logger.Named("runner"),
		running: make(map[uuid.UUID]struct{}),
	}
}

// Start launches a background run for the game. Returns false if a run for
// this game is already in flight.
func (r *Runner) Start(ctx context.Context, id uuid.UUID) bool {
	r.mu.Lock()
	if _, busy := r.running[id]; busy {
		r.mu.Unlock()
		return false
	}
	r.running[id] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.running, id)
			r.mu.Unlock()
		}()
		if err := r.run(ctx, id); err != nil {
			r.logger.Error("Background run aborted", zap.String("gameID", id.String()), zap.Error(err))
		}
	}()
	return true
}

// IsRunning reports whether a background run for the game is in flight.
func (r *Runner) IsRunning(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.running[id]
	return busy
}

// Wait blocks until every in-flight run finishes. Used during shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, id uuid.UUID) error {
	r.logger.Info("Background run started", zap.String("gameID", id.String()))
	for steps := 0; steps < stepLimit; steps++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		turn, err := r.service.StepGame(ctx, id)
		if errors.Is(err, models.ErrGameOver) {
			r.logger.Info("Background run finished",
				zap.String("gameID", id.String()), zap.Int("steps", steps))
			return nil
		}
		if err != nil {
			return err
		}
		if turn.State.GameOver {
			r.logger.Info("Background run finished",
				zap.String("gameID", id.String()), zap.Int("turns", turn.TurnNumber))
			return nil
		}
	}
	return errors.New("step limit reached")
}
