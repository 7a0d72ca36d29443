package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is the lifecycle state of a game session.
type GameStatus string

const (
	StatusPending   GameStatus = "pending"
	StatusActive    GameStatus = "active"
	StatusCompleted GameStatus = "completed"
	StatusErrored   GameStatus = "errored"
)

// IsTerminal reports whether no further turns may be taken.
func (s GameStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusErrored
}

// GameSession is the persisted header of a game: configuration plus lifecycle
// state. The actual world state lives in per-turn snapshots.
type GameSession struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Status         GameStatus     `json:"status" db:"status"`
	ModelMode      string         `json:"model_mode" db:"model_mode"`
	WorldSize      int            `json:"world_size" db:"world_size"`
	CurrencyTarget int            `json:"currency_target" db:"currency_target"`
	MaxTurns       int            `json:"max_turns" db:"max_turns"`
	Players        []PlayerConfig `json:"players" db:"players"`
	WinnerUID      *string        `json:"winner_uid,omitempty" db:"winner_uid"`
	GameOverReason *string        `json:"game_over_reason,omitempty" db:"game_over_reason"`
	ErrorDetails   *string        `json:"error_details,omitempty" db:"error_details"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// StateSnapshot is the full replayable world state after a turn, stored as
// JSONB alongside the decomposed components of the last applied verdict.
type StateSnapshot struct {
	Players         map[string]PlayerSnapshot `json:"players"`
	Tiles           []Tile                    `json:"tiles"`
	PlayerResponses map[string]string         `json:"player_responses,omitempty"`
	CharacterDeltas []CharacterDelta          `json:"character_state_change,omitempty"`
	WorldDelta      *WorldDelta               `json:"world_state_change,omitempty"`
	Narrative       string                    `json:"narrative_result"`
	GameOver        bool                      `json:"is_game_over"`
	GameOverReason  string                    `json:"game_over_reason,omitempty"`
	WinnerUID       string                    `json:"winner_uid,omitempty"`
}

// Turn is one persisted step of a game.
type Turn struct {
	ID         int64         `json:"id" db:"id"`
	GameID     uuid.UUID     `json:"game_id" db:"game_id"`
	TurnNumber int           `json:"turn_number" db:"turn_number"`
	State      StateSnapshot `json:"state" db:"state"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

// TurnContext is everything the arbiter sees when ruling on a round of
// actions: full player states, their proposed actions, the previous ruling,
// and every tile generated so far, secrets included.
type TurnContext struct {
	Players     map[string]PlayerSnapshot `json:"players"`
	Responses   map[string]string         `json:"responses"`
	PastVerdict string                    `json:"past_verdict,omitempty"`
	Tiles       []Tile                    `json:"tiles"`
}

// WinnerInfo summarizes who satisfied a terminal condition.
type WinnerInfo struct {
	WinnerUIDs     []string `json:"winner_uids"`
	TopWinnerUID   string   `json:"top_winner_uid"`
	TopWinnerMoney int      `json:"top_winner_money"`
}

// TurnUpdate is the compact payload published to clients after each turn.
type TurnUpdate struct {
	GameID     uuid.UUID               `json:"game_id"`
	TurnNumber int                     `json:"turn_number"`
	Status     GameStatus              `json:"status"`
	Narrative  string                  `json:"narrative_result"`
	Players    map[string]PlayerVitals `json:"players"`
	WinnerUID  string                  `json:"winner_uid,omitempty"`
}

// PlayerVitals is the per-player slice of a TurnUpdate.
type PlayerVitals struct {
	Position Position `json:"position"`
	Money    int      `json:"money"`
	Health   int      `json:"health"`
	Dead     bool     `json:"dead"`
}
