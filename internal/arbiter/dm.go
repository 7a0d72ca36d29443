package arbiter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"arena-server/internal/config"
	"arena-server/internal/models"
)

const (
	callerArbiter = "arbiter"
	callerTiles   = "arbiter_tiles"
)

// DungeonMaster is the production arbiter: it renders game context into
// prompts, calls the AI backend with retries, and hands the extracted JSON
// back untouched. Interpreting the verdict is the game core's job; the
// DungeonMaster only guarantees there is *a* JSON object to interpret.
type DungeonMaster struct {
	client      AIClient
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger

	temperature float64
	maxTokens   int
}

func NewDungeonMaster(client AIClient, cfg *config.Config, logger *zap.Logger) *DungeonMaster {
	maxAttempts := cfg.AIMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &DungeonMaster{
		client:      client,
		maxAttempts: maxAttempts,
		retryDelay:  cfg.AIBaseRetryDelay,
		logger:      logger.Named("dungeon_master"),
		temperature: 0.7,
		maxTokens:   1000,
	}
}

func (dm *DungeonMaster) params() GenerationParams {
	temperature := dm.temperature
	maxTokens := dm.maxTokens
	return GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens}
}

// GenerateTile asks the backend to describe the tile at pos.
func (dm *DungeonMaster) GenerateTile(ctx context.Context, pos models.Position) (*models.Tile, error) {
	input, err := FormatContext(map[string]models.Position{"position": pos})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= dm.maxAttempts; attempt++ {
		if err := dm.backoff(ctx, attempt); err != nil {
			return nil, err
		}
		text, _, err := dm.client.GenerateText(ctx, callerTiles, TileSystemPrompt(), input, dm.params())
		if err != nil {
			lastErr = err
			dm.logger.Warn("Tile generation attempt failed",
				zap.Int("attempt", attempt), zap.String("pos", pos.String()), zap.Error(err))
			continue
		}
		raw, err := ExtractJSON(text)
		if err != nil {
			lastErr = err
			dm.logger.Warn("Tile response carried no JSON", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		tile, err := ParseTile(raw, pos)
		if err != nil {
			lastErr = err
			dm.logger.Warn("Tile response failed to parse", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return tile, nil
	}
	return nil, fmt.Errorf("%w: tile generation at %s failed after %d attempts: %v",
		models.ErrArbiterUnavailable, pos, dm.maxAttempts, lastErr)
}

// RespondToActions asks the backend to rule on a round of actions and returns
// the raw JSON object it produced.
func (dm *DungeonMaster) RespondToActions(ctx context.Context, tc models.TurnContext) ([]byte, error) {
	input, err := FormatContext(tc)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= dm.maxAttempts; attempt++ {
		if err := dm.backoff(ctx, attempt); err != nil {
			return nil, err
		}
		text, usage, err := dm.client.GenerateText(ctx, callerArbiter, DMSystemPrompt(), input, dm.params())
		if err != nil {
			lastErr = err
			dm.logger.Warn("Verdict attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		raw, err := ExtractJSON(text)
		if err != nil {
			lastErr = err
			dm.logger.Warn("Verdict response carried no JSON", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		dm.logger.Debug("Verdict received",
			zap.Int("attempt", attempt),
			zap.Int("total_tokens", usage.TotalTokens),
			zap.Int("bytes", len(raw)))
		return raw, nil
	}
	return nil, fmt.Errorf("%w: verdict failed after %d attempts: %v",
		models.ErrArbiterUnavailable, dm.maxAttempts, lastErr)
}

// backoff sleeps before retry attempts (attempt 1 runs immediately), scaling
// the delay linearly and honoring context cancellation.
func (dm *DungeonMaster) backoff(ctx context.Context, attempt int) error {
	if attempt <= 1 || dm.retryDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(dm.retryDelay * time.Duration(attempt-1))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
