package arbiter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"arena-server/internal/models"
)

// mockClient is a deterministic AIClient for tests and offline runs. It
// recognizes which prompt it was given and answers with well-formed canned
// output, so a full game can run without any AI backend.
type mockClient struct{}

// NewMockClient returns the deterministic offline client.
func NewMockClient() AIClient {
	return &mockClient{}
}

func (m *mockClient) GenerateText(_ context.Context, _ string, systemPrompt string, userInput string, _ GenerationParams) (string, UsageInfo, error) {
	usage := UsageInfo{PromptTokens: len(systemPrompt) / 4, CompletionTokens: 32}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	switch {
	case strings.Contains(systemPrompt, "omniscient arbiter"):
		return m.mockVerdict(userInput), usage, nil
	case strings.Contains(systemPrompt, "tile-based fantasy world"):
		return m.mockTile(userInput), usage, nil
	case strings.Contains(systemPrompt, "negotiation phase"):
		return "I suggest we each take a different corner of the map and stay out of each other's way.", usage, nil
	default:
		return "I search the area carefully for anything of value.", usage, nil
	}
}

// mockVerdict grants every player a small income so mock games still converge
// on the currency goal.
func (m *mockClient) mockVerdict(userInput string) string {
	var tc struct {
		Players map[string]models.PlayerSnapshot `json:"players"`
	}
	_ = json.Unmarshal([]byte(userInput), &tc)

	uids := make([]string, 0, len(tc.Players))
	for uid := range tc.Players {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	deltas := make([]models.CharacterDelta, 0, len(uids))
	for _, uid := range uids {
		deltas = append(deltas, models.CharacterDelta{UID: uid, MoneyChange: 10})
	}
	if len(deltas) == 0 {
		deltas = append(deltas, models.CharacterDelta{UID: models.InvalidUIDPlaceholder})
	}

	verdict := map[string]any{
		"character_state_change": deltas,
		"world_state_change":     map[string]any{"tiles": []any{}},
		"narrative_result":       "The dungeon master nods. Everyone scrapes together a few coins.",
	}
	data, _ := json.Marshal(verdict)
	return string(data)
}

func (m *mockClient) mockTile(userInput string) string {
	var req struct {
		Position models.Position `json:"position"`
	}
	_ = json.Unmarshal([]byte(userInput), &req)

	tile := models.Tile{
		Position:     req.Position,
		Description:  fmt.Sprintf("A quiet stretch of windswept plains near %s, dotted with loose stones.", req.Position),
		TerrainType:  "plains",
		TerrainEmoji: "🌾",
		Secrets:      []models.Secret{{Key: "buried coin pouch", Value: 200}},
	}
	data, _ := json.Marshal(tile)
	return string(data)
}
