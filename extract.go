package main

import (
	"fmt"
	"strings"

	"github.com/bodul/kryssord/puzzle"
)

// Shapes returned by the photo analysis. They are deliberately loose; the
// conversions below turn them into validated puzzle documents.

// extractedDefinition is a clue printed in a definition cell.
type extractedDefinition struct {
	Text      string `json:"text"`
	Direction string `json:"direction"` // "right" or "down"
}

// extractedCell is either a definition cell (Black=true, with Definitions)
// or a letter cell.
type extractedCell struct {
	Black       bool                  `json:"black"`
	Definitions []extractedDefinition `json:"definitions,omitempty"`
}

type extractedArrowWord struct {
	Title string            `json:"title"`
	Rows  int               `json:"rows"`
	Cols  int               `json:"cols"`
	Cells [][]extractedCell `json:"cells"`
}

type extractedTraditional struct {
	Title string       `json:"title"`
	Rows  int          `json:"rows"`
	Cols  int          `json:"cols"`
	Grid  []string     `json:"grid"`
	Clues puzzle.Clues `json:"clues"`
}

// toArrowCells maps definition cells to clue cells whose answers start on the
// neighbour the arrow points at. A definition cell without definitions is an
// empty square.
func (e *extractedArrowWord) toArrowCells() ([][]puzzle.ArrowCell, error) {
	if e.Rows == 0 || e.Cols == 0 || len(e.Cells) != e.Rows {
		return nil, fmt.Errorf("invalid grid: %dx%d with %d cell rows", e.Rows, e.Cols, len(e.Cells))
	}
	cells := make([][]puzzle.ArrowCell, e.Rows)
	for r, row := range e.Cells {
		if len(row) != e.Cols {
			return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(row), e.Cols)
		}
		cells[r] = make([]puzzle.ArrowCell, e.Cols)
		for c, ec := range row {
			pos := puzzle.Position{Row: r, Col: c}
			switch {
			case !ec.Black:
				cells[r][c] = puzzle.ArrowCell{Position: pos, CellType: puzzle.ArrowSolution}
			case len(ec.Definitions) == 0:
				cells[r][c] = puzzle.ArrowCell{Position: pos, CellType: puzzle.ArrowEmpty}
			default:
				clues := make([]puzzle.ClueData, 0, len(ec.Definitions))
				for _, def := range ec.Definitions {
					clue := puzzle.ClueData{Text: strings.Fields(def.Text)}
					switch strings.ToLower(def.Direction) {
					case "right", "across":
						clue.Direction = puzzle.Across
						clue.StartCell = puzzle.Position{Row: r, Col: c + 1}
					case "down":
						clue.Direction = puzzle.Down
						clue.StartCell = puzzle.Position{Row: r + 1, Col: c}
					default:
						return nil, fmt.Errorf("cell (%d,%d): unknown direction %q", r, c, def.Direction)
					}
					clues = append(clues, clue)
				}
				cells[r][c] = puzzle.ArrowCell{Position: pos, CellType: puzzle.ArrowClue, Clues: clues}
			}
		}
	}
	return cells, nil
}

func (e *extractedTraditional) toGrid() (*puzzle.Grid, error) {
	if e.Rows == 0 || e.Cols == 0 || len(e.Grid) != e.Rows {
		return nil, fmt.Errorf("invalid grid: %dx%d with %d rows", e.Rows, e.Cols, len(e.Grid))
	}
	return puzzle.ParseGrid(e.Grid)
}
