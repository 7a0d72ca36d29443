package models

// PlayerConfig is the per-player part of a game creation request.
type PlayerConfig struct {
	Name             string `json:"name"`
	StartingHealth   int    `json:"starting_health"`
	StartingCurrency int    `json:"starting_currency"`
	CharacterClass   string `json:"character_class,omitempty"`
	AgentPrompt      string `json:"agent_prompt,omitempty"`
}

// PlayerSnapshot is the serializable state of a player, used both in
// persisted turn snapshots and in arbiter/agent payloads.
type PlayerSnapshot struct {
	UID            string   `json:"uid"`
	Position       Position `json:"position"`
	Money          int      `json:"money"`
	Health         int      `json:"health"`
	Inventory      []string `json:"inventory"`
	Dead           bool     `json:"dead"`
	CharacterClass string   `json:"character_class,omitempty"`
	AgentPrompt    string   `json:"agent_prompt,omitempty"`
	LastResponse   string   `json:"last_response,omitempty"`
}

// PlayerContext is what a single player (or its agent) is allowed to see when
// asked for an action: its own full state, everyone's public state, and the
// secret-free tiles within its vision.
type PlayerContext struct {
	UID                string                    `json:"uid"`
	Self               PlayerSnapshot            `json:"self"`
	Players            map[string]PlayerSnapshot `json:"players"`
	Tiles              []TilePayload             `json:"tiles"`
	NegotiationHistory [][]string                `json:"negotiation_history,omitempty"`
	PreviousNarrative  string                    `json:"previous_turn_narrative,omitempty"`
}
