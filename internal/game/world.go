package game

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"arena-server/internal/models"
)

// InvalidTileDescription is returned for coordinates outside the grid. The
// sentinel tile is never stored, so it can never be mutated by a verdict.
const InvalidTileDescription = "This is an invalid tile. You cannot interact with or enter this tile."

// WorldGrid is the square grid of tiles, spanning -size..+size on both axes.
// Tiles are generated lazily the first time a coordinate is observed.
type WorldGrid struct {
	size      int
	tiles     map[models.Position]*models.Tile
	generator TileGenerator
	logger    *zap.Logger
}

func NewWorldGrid(size int, generator TileGenerator, logger *zap.Logger) *WorldGrid {
	return &WorldGrid{
		size:      size,
		tiles:     make(map[models.Position]*models.Tile),
		generator: generator,
		logger:    logger.Named("world"),
	}
}

func (w *WorldGrid) Size() int { return w.size }

// InBounds reports whether the coordinate lies on the grid.
func (w *WorldGrid) InBounds(pos models.Position) bool {
	return abs(pos.X) <= w.size && abs(pos.Y) <= w.size
}

// GetTile returns the tile at pos, generating it on first access. Coordinates
// off the grid get the impassable sentinel tile. Generation failures
// propagate: a half-generated world must not keep playing silently.
func (w *WorldGrid) GetTile(ctx context.Context, pos models.Position) (*models.Tile, error) {
	if !w.InBounds(pos) {
		return &models.Tile{Position: pos, Description: InvalidTileDescription}, nil
	}
	if tile, ok := w.tiles[pos]; ok {
		return tile, nil
	}
	tile, err := w.generator.GenerateTile(ctx, pos)
	if err != nil {
		return nil, fmt.Errorf("generate tile %s: %w", pos, err)
	}
	// The generator does not get a say in where the tile goes.
	tile.Position = pos
	w.tiles[pos] = tile
	w.logger.Debug("Tile generated", zap.Int("x", pos.X), zap.Int("y", pos.Y))
	return tile, nil
}

// ViewableTiles returns the tiles within the diamond |dx|+|dy| <= vision
// around center, sorted by coordinate. Off-grid coordinates contribute the
// sentinel tile so players can see the world's edge.
func (w *WorldGrid) ViewableTiles(ctx context.Context, center models.Position, vision int) ([]models.Tile, error) {
	var tiles []models.Tile
	for dx := -vision; dx <= vision; dx++ {
		for dy := -vision + abs(dx); dy <= vision-abs(dx); dy++ {
			tile, err := w.GetTile(ctx, center.Add(models.Position{X: dx, Y: dy}))
			if err != nil {
				return nil, err
			}
			tiles = append(tiles, *tile)
		}
	}
	return tiles, nil
}

// ApplyDescriptionUpdate replaces the description (and secrets, when
// provided) of an already tracked tile. Terrain is fixed at generation time
// and never touched. Updates to untracked or off-grid coordinates are
// dropped; tile positions never move.
func (w *WorldGrid) ApplyDescriptionUpdate(update models.Tile) bool {
	tile, ok := w.tiles[update.Position]
	if !ok {
		w.logger.Debug("Ignoring update for untracked tile",
			zap.Int("x", update.Position.X), zap.Int("y", update.Position.Y))
		return false
	}
	tile.Description = update.Description
	if update.Secrets != nil {
		tile.Secrets = update.Secrets
	}
	return true
}

// Tiles returns every generated tile, sorted by coordinate for deterministic
// payloads and snapshots.
func (w *WorldGrid) Tiles() []models.Tile {
	tiles := make([]models.Tile, 0, len(w.tiles))
	for _, tile := range w.tiles {
		tiles = append(tiles, *tile)
	}
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Position.X != tiles[j].Position.X {
			return tiles[i].Position.X < tiles[j].Position.X
		}
		return tiles[i].Position.Y < tiles[j].Position.Y
	})
	return tiles
}

// RestoreTiles loads previously generated tiles from a snapshot.
func (w *WorldGrid) RestoreTiles(tiles []models.Tile) {
	for _, tile := range tiles {
		t := tile
		w.tiles[t.Position] = &t
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
