package game

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arena-server/internal/models"
)

type stubGenerator struct {
	calls int
	err   error
}

func (s *stubGenerator) GenerateTile(_ context.Context, pos models.Position) (*models.Tile, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.Tile{
		Position:    models.Position{X: 99, Y: 99}, // the grid must override this
		Description: fmt.Sprintf("tile at %s", pos),
		TerrainType: "plains",
	}, nil
}

func TestWorldGrid_GetTile(t *testing.T) {
	ctx := context.Background()

	t.Run("generates lazily and caches", func(t *testing.T) {
		gen := &stubGenerator{}
		world := NewWorldGrid(2, gen, zap.NewNop())

		tile, err := world.GetTile(ctx, models.Position{X: 1, Y: -1})
		require.NoError(t, err)
		assert.Equal(t, models.Position{X: 1, Y: -1}, tile.Position)
		assert.Equal(t, 1, gen.calls)

		again, err := world.GetTile(ctx, models.Position{X: 1, Y: -1})
		require.NoError(t, err)
		assert.Same(t, tile, again)
		assert.Equal(t, 1, gen.calls, "second access must hit the cache")
	})

	t.Run("out of bounds returns sentinel without generating", func(t *testing.T) {
		gen := &stubGenerator{}
		world := NewWorldGrid(2, gen, zap.NewNop())

		tile, err := world.GetTile(ctx, models.Position{X: 3, Y: 0})
		require.NoError(t, err)
		assert.Equal(t, InvalidTileDescription, tile.Description)
		assert.Equal(t, 0, gen.calls)
		assert.Empty(t, world.Tiles(), "sentinel tiles must not be stored")
	})

	t.Run("generation failure propagates", func(t *testing.T) {
		gen := &stubGenerator{err: errors.New("model offline")}
		world := NewWorldGrid(2, gen, zap.NewNop())

		_, err := world.GetTile(ctx, models.Position{})
		require.Error(t, err)
		assert.ErrorContains(t, err, "model offline")
		assert.Empty(t, world.Tiles())
	})
}

func TestWorldGrid_ViewableTiles(t *testing.T) {
	ctx := context.Background()

	t.Run("diamond shape", func(t *testing.T) {
		world := NewWorldGrid(5, &stubGenerator{}, zap.NewNop())

		tiles, err := world.ViewableTiles(ctx, models.Position{}, 1)
		require.NoError(t, err)
		require.Len(t, tiles, 5)

		tiles, err = world.ViewableTiles(ctx, models.Position{}, 2)
		require.NoError(t, err)
		require.Len(t, tiles, 13)
		for _, tile := range tiles {
			dist := abs(tile.Position.X) + abs(tile.Position.Y)
			assert.LessOrEqual(t, dist, 2)
		}
	})

	t.Run("zero vision sees own tile only", func(t *testing.T) {
		world := NewWorldGrid(2, &stubGenerator{}, zap.NewNop())

		tiles, err := world.ViewableTiles(ctx, models.Position{X: 1, Y: 1}, 0)
		require.NoError(t, err)
		require.Len(t, tiles, 1)
		assert.Equal(t, models.Position{X: 1, Y: 1}, tiles[0].Position)
	})

	t.Run("edge vision includes sentinel tiles", func(t *testing.T) {
		world := NewWorldGrid(1, &stubGenerator{}, zap.NewNop())

		tiles, err := world.ViewableTiles(ctx, models.Position{X: 1, Y: 0}, 1)
		require.NoError(t, err)
		require.Len(t, tiles, 5)

		sentinels := 0
		for _, tile := range tiles {
			if tile.Description == InvalidTileDescription {
				sentinels++
			}
		}
		assert.Equal(t, 1, sentinels, "(2,0) lies off a size-1 grid")
	})
}

func TestWorldGrid_ApplyDescriptionUpdate(t *testing.T) {
	ctx := context.Background()
	world := NewWorldGrid(2, &stubGenerator{}, zap.NewNop())

	_, err := world.GetTile(ctx, models.Position{X: 0, Y: 1})
	require.NoError(t, err)

	t.Run("replaces tracked tile", func(t *testing.T) {
		applied := world.ApplyDescriptionUpdate(models.Tile{
			Position:    models.Position{X: 0, Y: 1},
			Description: "a smoking crater",
			Secrets:     []models.Secret{{Key: "shard", Value: 25}},
		})
		assert.True(t, applied)

		tile, err := world.GetTile(ctx, models.Position{X: 0, Y: 1})
		require.NoError(t, err)
		assert.Equal(t, "a smoking crater", tile.Description)
		assert.Equal(t, []models.Secret{{Key: "shard", Value: 25}}, tile.Secrets)
	})

	t.Run("ignores untracked coordinates", func(t *testing.T) {
		applied := world.ApplyDescriptionUpdate(models.Tile{
			Position:    models.Position{X: -2, Y: -2},
			Description: "should not exist",
		})
		assert.False(t, applied)
		assert.Len(t, world.Tiles(), 1, "updates must never create tiles")
	})

	t.Run("leaves terrain untouched", func(t *testing.T) {
		applied := world.ApplyDescriptionUpdate(models.Tile{
			Position:     models.Position{X: 0, Y: 1},
			Description:  "the crater floods",
			TerrainType:  "swamp",
			TerrainEmoji: "🌊",
		})
		assert.True(t, applied)

		tile, err := world.GetTile(ctx, models.Position{X: 0, Y: 1})
		require.NoError(t, err)
		assert.Equal(t, "the crater floods", tile.Description)
		assert.Equal(t, "plains", tile.TerrainType)
		assert.Empty(t, tile.TerrainEmoji)
	})
}
