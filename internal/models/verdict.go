package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// InvalidUIDPlaceholder is what the arbiter is instructed to emit when it
// wants to pad the delta list without targeting anyone.
const InvalidUIDPlaceholder = "INVALID"

// DeltaStatus classifies a character delta entry after tolerant parsing.
type DeltaStatus string

const (
	// DeltaApplicable entries target a concrete uid and should be applied.
	DeltaApplicable DeltaStatus = "applicable"
	// DeltaNoSubject entries carry no usable uid (missing, empty, or the
	// placeholder) and are skipped.
	DeltaNoSubject DeltaStatus = "no_subject"
	// DeltaMalformed entries could not be coerced into an object at all.
	DeltaMalformed DeltaStatus = "malformed"
)

// CharacterDelta is one per-player state change from a verdict. All numeric
// fields are relative deltas, never absolute values.
type CharacterDelta struct {
	UID             string   `json:"uid"`
	MoneyChange     int      `json:"money_change"`
	HealthChange    int      `json:"health_change"`
	PositionChange  Position `json:"position_change"`
	InventoryAdd    []string `json:"inventory_add,omitempty"`
	InventoryRemove []string `json:"inventory_remove,omitempty"`
}

// CharacterDeltaEntry is a parsed delta plus its applicability classification.
// Keeping the classification on the entry lets the applier log skips without
// re-deriving why an entry was rejected.
type CharacterDeltaEntry struct {
	Delta  CharacterDelta
	Status DeltaStatus
}

// WorldDelta is the world portion of a verdict: tiles whose descriptions (and
// secrets) the arbiter wants replaced.
type WorldDelta struct {
	Tiles []Tile `json:"tiles"`
}

// Verdict is the arbiter's ruling for one round, after tolerant parsing.
type Verdict struct {
	CharacterDeltas []CharacterDeltaEntry
	// HasCharacterDeltas distinguishes an empty delta list from a missing or
	// non-list one; the latter makes application a silent no-op.
	HasCharacterDeltas bool
	World              *WorldDelta
	// MalformedTiles counts world delta entries dropped during parsing.
	MalformedTiles int
	Narrative      string
}

// ParseVerdict coerces raw arbiter output into a Verdict. Only an input whose
// top-level shape is not a JSON object fails; every narrower defect degrades
// field-by-field: unreadable numbers become 0, an unreadable position becomes
// (0, 0), unreadable inventory lists vanish, and entries without a usable uid
// or object shape are kept but tagged unapplicable.
//
// A nil or JSON-null input yields (nil, nil): no ruling, nothing to apply.
func ParseVerdict(data []byte) (*Verdict, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var raw struct {
		CharacterStateChange json.RawMessage `json:"character_state_change"`
		WorldStateChange     json.RawMessage `json:"world_state_change"`
		NarrativeResult      json.RawMessage `json:"narrative_result"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerdictPayload, err)
	}

	v := &Verdict{Narrative: lenientString(raw.NarrativeResult)}

	var entries []json.RawMessage
	if raw.CharacterStateChange != nil {
		if err := json.Unmarshal(raw.CharacterStateChange, &entries); err == nil {
			v.HasCharacterDeltas = true
		}
	}
	for _, entry := range entries {
		v.CharacterDeltas = append(v.CharacterDeltas, parseCharacterDelta(entry))
	}

	if raw.WorldStateChange != nil {
		v.World, v.MalformedTiles = parseWorldDelta(raw.WorldStateChange)
	}
	return v, nil
}

func parseCharacterDelta(data json.RawMessage) CharacterDeltaEntry {
	var fields struct {
		UID             json.RawMessage `json:"uid"`
		MoneyChange     json.RawMessage `json:"money_change"`
		HealthChange    json.RawMessage `json:"health_change"`
		PositionChange  json.RawMessage `json:"position_change"`
		InventoryAdd    json.RawMessage `json:"inventory_add"`
		InventoryRemove json.RawMessage `json:"inventory_remove"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return CharacterDeltaEntry{Status: DeltaMalformed}
	}

	entry := CharacterDeltaEntry{
		Delta: CharacterDelta{
			UID:             lenientString(fields.UID),
			MoneyChange:     lenientInt(fields.MoneyChange),
			HealthChange:    lenientInt(fields.HealthChange),
			PositionChange:  lenientPosition(fields.PositionChange),
			InventoryAdd:    lenientStringList(fields.InventoryAdd),
			InventoryRemove: lenientStringList(fields.InventoryRemove),
		},
		Status: DeltaApplicable,
	}
	if entry.Delta.UID == "" || entry.Delta.UID == InvalidUIDPlaceholder {
		entry.Status = DeltaNoSubject
	}
	return entry
}

func parseWorldDelta(data json.RawMessage) (*WorldDelta, int) {
	var raw struct {
		Tiles []json.RawMessage `json:"tiles"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0
	}
	world := &WorldDelta{}
	malformed := 0
	for _, rawTile := range raw.Tiles {
		// Position and description are mandatory: an entry without a position
		// would otherwise decode to (0, 0) and overwrite the origin tile.
		var fields struct {
			Position     *Position `json:"position"`
			Description  *string   `json:"description"`
			Secrets      []Secret  `json:"secrets"`
			TerrainType  string    `json:"terrainType"`
			TerrainEmoji string    `json:"terrainEmoji"`
		}
		if err := json.Unmarshal(rawTile, &fields); err != nil || fields.Position == nil || fields.Description == nil {
			malformed++
			continue
		}
		tile := Tile{
			Position:     *fields.Position,
			Description:  *fields.Description,
			Secrets:      fields.Secrets,
			TerrainType:  fields.TerrainType,
			TerrainEmoji: fields.TerrainEmoji,
		}
		for i, s := range tile.Secrets {
			if s.Value < 0 {
				tile.Secrets[i].Value = 0
			}
		}
		world.Tiles = append(world.Tiles, tile)
	}
	return world, malformed
}

func lenientString(data json.RawMessage) string {
	if data == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ""
	}
	return s
}

func lenientInt(data json.RawMessage) int {
	if data == nil {
		return 0
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		return n
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return 0
}

// lenientPosition defaults to a zero move: a delta whose position cannot be
// read still gets its money and health applied.
func lenientPosition(data json.RawMessage) Position {
	if data == nil {
		return Position{}
	}
	var p Position
	if err := json.Unmarshal(data, &p); err != nil {
		return Position{}
	}
	return p
}

func lenientStringList(data json.RawMessage) []string {
	if data == nil {
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		return items
	}
	var anything []any
	if err := json.Unmarshal(data, &anything); err != nil {
		return nil
	}
	var kept []string
	for _, item := range anything {
		if s, ok := item.(string); ok {
			kept = append(kept, s)
		}
	}
	return kept
}
