package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"arena-server/internal/models"
)

const latestTurnKeyPrefix = "game_latest_turn:"

type redisSnapshotCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSnapshotCache creates the Redis-backed latest-turn cache. The cache
// is strictly an accelerator: every miss falls through to PostgreSQL.
func NewRedisSnapshotCache(client *redis.Client, logger *zap.Logger) SnapshotCache {
	return &redisSnapshotCache{
		client: client,
		logger: logger.Named("SnapshotCache"),
	}
}

func latestTurnKey(gameID uuid.UUID) string {
	return latestTurnKeyPrefix + gameID.String()
}

func (c *redisSnapshotCache) GetLatestTurn(ctx context.Context, gameID uuid.UUID) (*models.Turn, error) {
	data, err := c.client.Get(ctx, latestTurnKey(gameID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		c.logger.Error("Error reading cached turn", zap.String("gameID", gameID.String()), zap.Error(err))
		return nil, err
	}

	var turn models.Turn
	if err := json.Unmarshal(data, &turn); err != nil {
		// A corrupt entry must not poison the game; drop it and miss.
		c.logger.Warn("Corrupt cached turn, invalidating", zap.String("gameID", gameID.String()), zap.Error(err))
		_ = c.client.Del(ctx, latestTurnKey(gameID)).Err()
		return nil, models.ErrNotFound
	}
	return &turn, nil
}

func (c *redisSnapshotCache) SetLatestTurn(ctx context.Context, turn *models.Turn, ttl time.Duration) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn for cache: %w", err)
	}
	if err := c.client.Set(ctx, latestTurnKey(turn.GameID), data, ttl).Err(); err != nil {
		c.logger.Error("Error caching turn", zap.String("gameID", turn.GameID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (c *redisSnapshotCache) InvalidateLatestTurn(ctx context.Context, gameID uuid.UUID) error {
	if err := c.client.Del(ctx, latestTurnKey(gameID)).Err(); err != nil {
		c.logger.Error("Error invalidating cached turn", zap.String("gameID", gameID.String()), zap.Error(err))
		return err
	}
	return nil
}
