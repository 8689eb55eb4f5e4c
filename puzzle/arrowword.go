package puzzle

import (
	"errors"
	"fmt"
)

// ArrowCellType is the kind of a square in an arrow-word puzzle.
type ArrowCellType string

const (
	ArrowEmpty    ArrowCellType = "empty"
	ArrowSolution ArrowCellType = "solution"
	ArrowClue     ArrowCellType = "clue"
)

var ErrClueCell = errors.New("cell holds a clue")

// ClueData is a clue printed inside a clue cell. Its answer starts at
// StartCell and runs in Direction. Long clues are split over several lines.
type ClueData struct {
	StartCell Position  `json:"startCell"`
	Direction Direction `json:"direction"`
	Text      []string  `json:"text"`
}

// ArrowCell is one square of an arrow-word grid. Letter is set on solution
// cells, Clues on clue cells (one or two of them).
type ArrowCell struct {
	Position Position      `json:"position"`
	CellType ArrowCellType `json:"cellType"`
	Letter   string        `json:"letter,omitempty"`
	Clues    []ClueData    `json:"clues,omitempty"`
}

// ArrowWord is a Scandinavian-style puzzle with clues embedded in the grid.
type ArrowWord struct {
	PuzzleType string        `json:"puzzleType"`
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Rows       int           `json:"rows"`
	Cols       int           `json:"cols"`
	CellSize   int           `json:"cellSize"`
	Cells      [][]ArrowCell `json:"cells"`
}

// NewArrowWord checks the cell table and wraps it in a puzzle document.
func NewArrowWord(id, title string, cells [][]ArrowCell) (*ArrowWord, error) {
	a := &ArrowWord{
		PuzzleType: TypeArrowWord,
		ID:         id,
		Title:      title,
		CellSize:   DefaultCellSize,
		Cells:      cells,
	}
	if len(cells) > 0 {
		a.Rows, a.Cols = len(cells), len(cells[0])
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *ArrowWord) inBounds(p Position) bool {
	return p.Row >= 0 && p.Row < a.Rows && p.Col >= 0 && p.Col < a.Cols
}

// Validate checks the table shape, cell positions and that every clue
// starts on a solution cell.
func (a *ArrowWord) Validate() error {
	if a.Rows == 0 || a.Cols == 0 || len(a.Cells) != a.Rows {
		return ErrNotRectangular
	}
	for r, row := range a.Cells {
		if len(row) != a.Cols {
			return fmt.Errorf("row %d has %d cells, want %d: %w", r, len(row), a.Cols, ErrNotRectangular)
		}
		for c, cell := range row {
			if cell.Position != (Position{r, c}) {
				return fmt.Errorf("cell at (%d,%d) claims %v: %w", r, c, cell.Position, ErrPositionMismatch)
			}
			if cell.CellType != ArrowClue {
				continue
			}
			for _, clue := range cell.Clues {
				if !clue.Direction.Valid() {
					return fmt.Errorf("clue in %v: unknown direction %q", cell.Position, clue.Direction)
				}
				if !a.inBounds(clue.StartCell) || a.Cells[clue.StartCell.Row][clue.StartCell.Col].CellType != ArrowSolution {
					return fmt.Errorf("clue in %v starts at %v, which is not a solution cell", cell.Position, clue.StartCell)
				}
			}
		}
	}
	return nil
}

// SetLetter returns a copy of the puzzle with a letter written at (row, col).
func (a *ArrowWord) SetLetter(row, col int, input string) (*ArrowWord, error) {
	if !a.inBounds(Position{row, col}) {
		return nil, fmt.Errorf("set letter (%d,%d): %w", row, col, ErrOutOfBounds)
	}
	switch a.Cells[row][col].CellType {
	case ArrowClue:
		return nil, fmt.Errorf("set letter (%d,%d): %w", row, col, ErrClueCell)
	case ArrowEmpty:
		return nil, fmt.Errorf("set letter (%d,%d): %w", row, col, ErrBlockedCell)
	}
	letter, err := NormalizeLetter(input)
	if err != nil {
		return nil, err
	}
	cp := *a
	cp.Cells = append([][]ArrowCell(nil), a.Cells...)
	cp.Cells[row] = append([]ArrowCell(nil), a.Cells[row]...)
	cp.Cells[row][col].Letter = letter
	return &cp, nil
}
