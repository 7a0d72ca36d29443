package models

// Secret is a hidden reward on a tile: a hint keyword and the payout a player
// earns by uncovering it. Values are clamped to be non-negative.
type Secret struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// Tile is one cell of the world grid. Secrets are visible to the arbiter and
// in persisted snapshots but are stripped from player-facing payloads.
type Tile struct {
	Position     Position `json:"position"`
	Description  string   `json:"description"`
	Secrets      []Secret `json:"secrets,omitempty"`
	TerrainType  string   `json:"terrainType,omitempty"`
	TerrainEmoji string   `json:"terrainEmoji,omitempty"`
}

// TilePayload is the player-visible projection of a Tile.
type TilePayload struct {
	Position     Position `json:"position"`
	Description  string   `json:"description"`
	TerrainType  string   `json:"terrainType,omitempty"`
	TerrainEmoji string   `json:"terrainEmoji,omitempty"`
}

// CleanPayload strips the secrets from a tile before it is shown to players.
func (t Tile) CleanPayload() TilePayload {
	return TilePayload{
		Position:     t.Position,
		Description:  t.Description,
		TerrainType:  t.TerrainType,
		TerrainEmoji: t.TerrainEmoji,
	}
}
