package game

import (
	"context"

	"arena-server/internal/models"
)

// TileGenerator produces a tile for a coordinate that has never been visited.
// The arbiter implements it.
type TileGenerator interface {
	GenerateTile(ctx context.Context, pos models.Position) (*models.Tile, error)
}

// Arbiter is the collaborator that rules on a round of player actions. The
// raw bytes it returns are untrusted and go through tolerant verdict parsing.
type Arbiter interface {
	TileGenerator
	RespondToActions(ctx context.Context, tc models.TurnContext) ([]byte, error)
}

// ActionSource supplies a player's behavior: an AI agent in production, a
// scripted source in tests.
type ActionSource interface {
	RequestAction(ctx context.Context, pc models.PlayerContext) (string, error)
	RequestNegotiation(ctx context.Context, pc models.PlayerContext) (string, error)
}

// TurnStore persists the snapshot produced at the end of each step.
type TurnStore interface {
	SaveTurn(ctx context.Context, turn *models.Turn) (int64, error)
}
