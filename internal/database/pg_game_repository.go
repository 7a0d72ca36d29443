package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"arena-server/internal/models"
)

type pgGameRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgGameRepository creates the PostgreSQL-backed game session repository.
func NewPgGameRepository(pool *pgxpool.Pool, logger *zap.Logger) GameRepository {
	return &pgGameRepository{
		pool:   pool,
		logger: logger.Named("GameRepository"),
	}
}

func (r *pgGameRepository) CreateGame(ctx context.Context, session *models.GameSession) error {
	query := `INSERT INTO games (id, name, status, model_mode, world_size, currency_target, max_turns, players, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
              RETURNING created_at, updated_at`

	playersJSON, err := json.Marshal(session.Players)
	if err != nil {
		return fmt.Errorf("failed to marshal player roster: %w", err)
	}

	err = r.pool.QueryRow(ctx, query,
		session.ID,
		session.Name,
		session.Status,
		session.ModelMode,
		session.WorldSize,
		session.CurrencyTarget,
		session.MaxTurns,
		playersJSON,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		r.logger.Error("Error creating game", zap.String("gameID", session.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrInternalServer, err)
	}

	r.logger.Info("Game created", zap.String("gameID", session.ID.String()), zap.Int("players", len(session.Players)))
	return nil
}

const gameColumns = `id, name, status, model_mode, world_size, currency_target, max_turns, players, winner_uid, game_over_reason, error_details, created_at, updated_at`

func (r *pgGameRepository) GetGameByID(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	session := &models.GameSession{}
	var playersJSON []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.Name,
		&session.Status,
		&session.ModelMode,
		&session.WorldSize,
		&session.CurrencyTarget,
		&session.MaxTurns,
		&playersJSON,
		&session.WinnerUID,
		&session.GameOverReason,
		&session.ErrorDetails,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Game not found", zap.String("gameID", id.String()))
			return nil, models.ErrGameNotFound
		}
		r.logger.Error("Error getting game", zap.String("gameID", id.String()), zap.Error(err))
		return nil, err
	}
	if err := json.Unmarshal(playersJSON, &session.Players); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player roster: %w", err)
	}
	return session, nil
}

// gameRow mirrors the games table for scany; the roster needs a JSON hop.
type gameRow struct {
	ID             uuid.UUID         `db:"id"`
	Name           string            `db:"name"`
	Status         models.GameStatus `db:"status"`
	ModelMode      string            `db:"model_mode"`
	WorldSize      int               `db:"world_size"`
	CurrencyTarget int               `db:"currency_target"`
	MaxTurns       int               `db:"max_turns"`
	Players        []byte            `db:"players"`
	WinnerUID      *string           `db:"winner_uid"`
	GameOverReason *string           `db:"game_over_reason"`
	ErrorDetails   *string           `db:"error_details"`
	CreatedAt      time.Time         `db:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at"`
}

func (r *pgGameRepository) ListGames(ctx context.Context, limit, offset int) ([]models.GameSession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + gameColumns + ` FROM games ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	var rows []gameRow
	if err := pgxscan.Select(ctx, r.pool, &rows, query, limit, offset); err != nil {
		r.logger.Error("Error listing games", zap.Error(err))
		return nil, err
	}

	sessions := make([]models.GameSession, 0, len(rows))
	for _, row := range rows {
		session := models.GameSession{
			ID:             row.ID,
			Name:           row.Name,
			Status:         row.Status,
			ModelMode:      row.ModelMode,
			WorldSize:      row.WorldSize,
			CurrencyTarget: row.CurrencyTarget,
			MaxTurns:       row.MaxTurns,
			WinnerUID:      row.WinnerUID,
			GameOverReason: row.GameOverReason,
			ErrorDetails:   row.ErrorDetails,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		}
		if err := json.Unmarshal(row.Players, &session.Players); err != nil {
			return nil, fmt.Errorf("failed to unmarshal player roster: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (r *pgGameRepository) UpdateOutcome(ctx context.Context, id uuid.UUID, status models.GameStatus, winnerUID, gameOverReason, errorDetails *string) error {
	query := `UPDATE games
              SET status = $2, winner_uid = $3, game_over_reason = $4, error_details = $5, updated_at = NOW()
              WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, status, winnerUID, gameOverReason, errorDetails)
	if err != nil {
		r.logger.Error("Error updating game outcome", zap.String("gameID", id.String()), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrGameNotFound
	}
	r.logger.Debug("Game outcome updated", zap.String("gameID", id.String()), zap.String("status", string(status)))
	return nil
}
