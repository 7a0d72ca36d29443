package models

import (
	"encoding/json"
	"fmt"
)

// Position is a grid coordinate. On the wire it is a two-element [x, y]
// array, matching the verdict and tile payload formats.
type Position struct {
	X int
	Y int
}

func (p Position) Add(delta Position) Position {
	return Position{X: p.X + delta.X, Y: p.Y + delta.Y}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var coords []int
	if err := json.Unmarshal(data, &coords); err != nil {
		return fmt.Errorf("position must be an [x, y] array: %w", err)
	}
	if len(coords) < 2 {
		return fmt.Errorf("position needs 2 coordinates, got %d", len(coords))
	}
	p.X, p.Y = coords[0], coords[1]
	return nil
}
