package models

import "errors"

// Sentinel errors shared across layers. Callers match them with errors.Is.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrGameNotFound  = errors.New("game not found")
	ErrTurnNotFound  = errors.New("turn not found")
	ErrGameOver      = errors.New("game is already over")
	ErrGameNotActive = errors.New("game is not in a steppable state")
	ErrDuplicateUID  = errors.New("duplicate player uid")
	ErrNoPlayers     = errors.New("game requires at least one player")

	// ErrInvalidVerdictPayload marks a verdict whose top-level shape could not
	// be coerced into an object. Anything less broken is degraded per-entry
	// instead of failing the turn.
	ErrInvalidVerdictPayload = errors.New("invalid verdict payload")

	ErrArbiterUnavailable = errors.New("arbiter unavailable")
	ErrEmptyAIResponse    = errors.New("AI returned an empty response")
	ErrInternalServer     = errors.New("internal server error")
)
