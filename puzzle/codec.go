package puzzle

import (
	"encoding/json"
	"fmt"
)

const (
	cellTypeBlocked  = "blocked"
	cellTypeSolution = "solution"
)

type cellJSON struct {
	Position Position `json:"position"`
	CellType string   `json:"cellType"`
	Letter   *string  `json:"letter,omitempty"`
	Number   int      `json:"number,omitempty"`
}

func (g *Grid) MarshalJSON() ([]byte, error) {
	out := make([][]cellJSON, g.rows)
	for r, row := range g.cells {
		out[r] = make([]cellJSON, len(row))
		for c, cell := range row {
			switch cell := cell.(type) {
			case Blocked:
				out[r][c] = cellJSON{Position: cell.Position, CellType: cellTypeBlocked}
			case Solution:
				letter := cell.Letter
				out[r][c] = cellJSON{
					Position: cell.Position,
					CellType: cellTypeSolution,
					Letter:   &letter,
					Number:   cell.Number,
				}
			}
		}
	}
	return json.Marshal(out)
}

func (g *Grid) UnmarshalJSON(data []byte) error {
	var raw [][]cellJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cells := make([][]Cell, len(raw))
	for r, row := range raw {
		cells[r] = make([]Cell, len(row))
		for c, cj := range row {
			switch cj.CellType {
			case cellTypeBlocked:
				cells[r][c] = Blocked{Position: cj.Position}
			case cellTypeSolution:
				letter := Blank
				if cj.Letter != nil && *cj.Letter != "" {
					letter = *cj.Letter
				}
				cells[r][c] = Solution{Position: cj.Position, Letter: letter, Number: cj.Number}
			default:
				return fmt.Errorf("cell (%d,%d): unknown cellType %q", r, c, cj.CellType)
			}
		}
	}
	parsed, err := NewGrid(cells)
	if err != nil {
		return err
	}
	*g = *parsed
	return nil
}
