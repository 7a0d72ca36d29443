package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"arena-server/internal/models"
)

// GameRepository persists game session headers.
type GameRepository interface {
	CreateGame(ctx context.Context, session *models.GameSession) error
	GetGameByID(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	ListGames(ctx context.Context, limit, offset int) ([]models.GameSession, error)
	// UpdateOutcome records a lifecycle transition: status plus the optional
	// winner, game-over reason and error details.
	UpdateOutcome(ctx context.Context, id uuid.UUID, status models.GameStatus, winnerUID, gameOverReason, errorDetails *string) error
}

// TurnRepository persists per-turn state snapshots.
type TurnRepository interface {
	SaveTurn(ctx context.Context, turn *models.Turn) (int64, error)
	GetTurnsByGame(ctx context.Context, gameID uuid.UUID) ([]models.Turn, error)
	GetLatestTurn(ctx context.Context, gameID uuid.UUID) (*models.Turn, error)
	// DeleteTurnsAfter removes every turn with a number greater than
	// turnNumber and reports how many rows went away.
	DeleteTurnsAfter(ctx context.Context, gameID uuid.UUID, turnNumber int) (int64, error)
}

// SnapshotCache is the hot-path cache for each game's latest turn.
type SnapshotCache interface {
	GetLatestTurn(ctx context.Context, gameID uuid.UUID) (*models.Turn, error)
	SetLatestTurn(ctx context.Context, turn *models.Turn, ttl time.Duration) error
	InvalidateLatestTurn(ctx context.Context, gameID uuid.UUID) error
}
