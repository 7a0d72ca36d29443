package handler

import (
	"arena-server/internal/models"
)

// APIError is the standardized error response body.
type APIError struct {
	Message string `json:"message"`
}

// GameConfigRequest carries the optional per-game rule overrides. Zero
// values fall back to the server defaults.
type GameConfigRequest struct {
	WorldSize      int    `json:"world_size"`
	ModelMode      string `json:"model_mode"`
	CurrencyTarget int    `json:"currency_target"`
	MaxTurns       int    `json:"max_turns"`
}

// CreateGameRequest is the body of POST /games.
type CreateGameRequest struct {
	Name       string                `json:"name"`
	GameConfig GameConfigRequest     `json:"game_config"`
	Players    []models.PlayerConfig `json:"players"`
}

// RollbackRequest is the body of POST /games/:id/rollback.
type RollbackRequest struct {
	TurnNumber int `json:"turn_number"`
}

// RollbackResponse reports the result of a rollback.
type RollbackResponse struct {
	TurnNumber   int   `json:"turn_number"`
	DeletedTurns int64 `json:"deleted_turns"`
}

// RunResponse acknowledges a background run request.
type RunResponse struct {
	GameID  string `json:"game_id"`
	Started bool   `json:"started"`
	Message string `json:"message,omitempty"`
}

// ListGamesResponse is the paginated game list.
type ListGamesResponse struct {
	Data    []models.GameSession `json:"data"`
	HasMore bool                 `json:"has_more"`
}
