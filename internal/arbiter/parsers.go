package arbiter

import (
	"encoding/json"
	"fmt"
	"strings"

	"arena-server/internal/models"
)

// ExtractJSON pulls the first top-level JSON object out of model output.
// Models wrap JSON in prose or markdown fences often enough that this cannot
// be an error path; a reply with no object in it is.
func ExtractJSON(text string) ([]byte, error) {
	cleaned := strings.TrimSpace(text)
	if after, found := strings.CutPrefix(cleaned, "```json"); found {
		cleaned = after
	} else if after, found := strings.CutPrefix(cleaned, "```"); found {
		cleaned = after
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object found in AI response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		c := cleaned[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return []byte(cleaned[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("unbalanced JSON object in AI response")
}

// ParseTile parses a tile generation response. The tile's position is pinned
// to the requested coordinate regardless of what the model claims.
func ParseTile(data []byte, pos models.Position) (*models.Tile, error) {
	var tile models.Tile
	if err := json.Unmarshal(data, &tile); err != nil {
		return nil, fmt.Errorf("failed to parse tile: %w", err)
	}
	if strings.TrimSpace(tile.Description) == "" {
		return nil, fmt.Errorf("tile description is empty")
	}
	tile.Position = pos
	if tile.TerrainType == "" {
		tile.TerrainType = "plains"
	}
	for i, s := range tile.Secrets {
		if s.Value < 0 {
			tile.Secrets[i].Value = 0
		}
	}
	return &tile, nil
}
