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

type pgTurnRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgTurnRepository creates the PostgreSQL-backed turn snapshot repository.
func NewPgTurnRepository(pool *pgxpool.Pool, logger *zap.Logger) TurnRepository {
	return &pgTurnRepository{
		pool:   pool,
		logger: logger.Named("TurnRepository"),
	}
}

// SaveTurn inserts a turn snapshot. A retried step overwrites the snapshot
// already stored for that turn number instead of failing on the unique index.
func (r *pgTurnRepository) SaveTurn(ctx context.Context, turn *models.Turn) (int64, error) {
	query := `INSERT INTO game_turns (game_id, turn_number, state, created_at)
              VALUES ($1, $2, $3, NOW())
              ON CONFLICT (game_id, turn_number) DO UPDATE SET state = EXCLUDED.state
              RETURNING id`

	stateJSON, err := json.Marshal(turn.State)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal turn state: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx, query, turn.GameID, turn.TurnNumber, stateJSON).Scan(&id)
	if err != nil {
		r.logger.Error("Error saving turn",
			zap.String("gameID", turn.GameID.String()),
			zap.Int("turnNumber", turn.TurnNumber),
			zap.Error(err))
		return 0, err
	}
	return id, nil
}

type turnRow struct {
	ID         int64     `db:"id"`
	GameID     uuid.UUID `db:"game_id"`
	TurnNumber int       `db:"turn_number"`
	State      []byte    `db:"state"`
	CreatedAt  time.Time `db:"created_at"`
}

func (row turnRow) toTurn() (models.Turn, error) {
	turn := models.Turn{
		ID:         row.ID,
		GameID:     row.GameID,
		TurnNumber: row.TurnNumber,
		CreatedAt:  row.CreatedAt,
	}
	if err := json.Unmarshal(row.State, &turn.State); err != nil {
		return models.Turn{}, fmt.Errorf("failed to unmarshal turn %d state: %w", row.TurnNumber, err)
	}
	return turn, nil
}

func (r *pgTurnRepository) GetTurnsByGame(ctx context.Context, gameID uuid.UUID) ([]models.Turn, error) {
	query := `SELECT id, game_id, turn_number, state, created_at
              FROM game_turns WHERE game_id = $1 ORDER BY turn_number ASC`

	var rows []turnRow
	if err := pgxscan.Select(ctx, r.pool, &rows, query, gameID); err != nil {
		r.logger.Error("Error listing turns", zap.String("gameID", gameID.String()), zap.Error(err))
		return nil, err
	}

	turns := make([]models.Turn, 0, len(rows))
	for _, row := range rows {
		turn, err := row.toTurn()
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (r *pgTurnRepository) GetLatestTurn(ctx context.Context, gameID uuid.UUID) (*models.Turn, error) {
	query := `SELECT id, game_id, turn_number, state, created_at
              FROM game_turns WHERE game_id = $1 ORDER BY turn_number DESC LIMIT 1`

	var row turnRow
	err := pgxscan.Get(ctx, r.pool, &row, query, gameID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTurnNotFound
		}
		r.logger.Error("Error getting latest turn", zap.String("gameID", gameID.String()), zap.Error(err))
		return nil, err
	}

	turn, err := row.toTurn()
	if err != nil {
		return nil, err
	}
	return &turn, nil
}

func (r *pgTurnRepository) DeleteTurnsAfter(ctx context.Context, gameID uuid.UUID, turnNumber int) (int64, error) {
	query := `DELETE FROM game_turns WHERE game_id = $1 AND turn_number > $2`

	tag, err := r.pool.Exec(ctx, query, gameID, turnNumber)
	if err != nil {
		r.logger.Error("Error deleting turns",
			zap.String("gameID", gameID.String()),
			zap.Int("afterTurn", turnNumber),
			zap.Error(err))
		return 0, err
	}
	deleted := tag.RowsAffected()
	r.logger.Info("Turns deleted",
		zap.String("gameID", gameID.String()),
		zap.Int("afterTurn", turnNumber),
		zap.Int64("deleted", deleted))
	return deleted, nil
}
