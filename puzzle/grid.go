// Package puzzle holds the crossword grid model and the pure functions that
// edit, number and navigate it. Every operation takes a grid snapshot and
// returns a new one; nothing in this package mutates a grid in place.
package puzzle

import (
	"errors"
	"fmt"
	"strings"
)

// Blank is the letter stored in a solution cell that has not been filled.
const Blank = " "

var (
	ErrOutOfBounds      = errors.New("position is outside the grid")
	ErrNotRectangular   = errors.New("grid rows must all have the same, non-zero length")
	ErrPositionMismatch = errors.New("cell position does not match its index in the grid")
	ErrBlockedCell      = errors.New("cell is blocked")
	ErrInvalidLetter    = errors.New("letter must be a single character A-Z, Æ, Ø, Å or blank")
)

// Position is a zero-based row/column coordinate.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Direction is the orientation of a word.
type Direction string

const (
	Across Direction = "across"
	Down   Direction = "down"
)

// Valid reports whether d is one of Across or Down.
func (d Direction) Valid() bool {
	return d == Across || d == Down
}

// ParseDirection converts a string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Across, Down:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction: %q", s)
	}
}

// step returns the row and column increment of moving forward in d.
func (d Direction) step() (dr, dc int) {
	if d == Down {
		return 1, 0
	}
	return 0, 1
}

// Cell is one square of a traditional grid. It is either Blocked or Solution.
type Cell interface {
	Pos() Position
	cell()
}

// Blocked is an unfillable cell.
type Blocked struct {
	Position Position
}

// Solution is a fillable cell. Number is zero when the cell starts no word.
type Solution struct {
	Position Position
	Letter   string
	Number   int
}

func (b Blocked) Pos() Position  { return b.Position }
func (s Solution) Pos() Position { return s.Position }

func (Blocked) cell()  {}
func (Solution) cell() {}

// Filled reports whether the cell holds a letter other than the placeholder.
func (s Solution) Filled() bool {
	return strings.TrimSpace(s.Letter) != ""
}

// Grid is an immutable Rows x Cols table of cells indexed [row][col].
// Edits copy only the rows they touch; untouched rows are shared between
// snapshots.
type Grid struct {
	rows, cols int
	cells      [][]Cell
}

// NewGrid validates cells and wraps them in a Grid. The table must be
// rectangular and every cell must carry its own index as position.
func NewGrid(cells [][]Cell) (*Grid, error) {
	if len(cells) == 0 || len(cells[0]) == 0 {
		return nil, ErrNotRectangular
	}
	cols := len(cells[0])
	cp := make([][]Cell, len(cells))
	for r, row := range cells {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", r, len(row), cols, ErrNotRectangular)
		}
		for c, cell := range row {
			if cell == nil {
				return nil, fmt.Errorf("cell (%d,%d) is nil: %w", r, c, ErrNotRectangular)
			}
			if p := cell.Pos(); p.Row != r || p.Col != c {
				return nil, fmt.Errorf("cell at (%d,%d) claims %v: %w", r, c, p, ErrPositionMismatch)
			}
		}
		cp[r] = append([]Cell(nil), row...)
	}
	return &Grid{rows: len(cells), cols: cols, cells: cp}, nil
}

// BlankGrid returns a rows x cols grid of empty solution cells.
func BlankGrid(rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrNotRectangular
	}
	cells := make([][]Cell, rows)
	for r := range cells {
		cells[r] = make([]Cell, cols)
		for c := range cells[r] {
			cells[r][c] = Solution{Position: Position{r, c}, Letter: Blank}
		}
	}
	return &Grid{rows: rows, cols: cols, cells: cells}, nil
}

// ParseGrid builds a grid from text rows. '.' and '#' are blocked cells,
// '_' and ' ' are blank solution cells, and any other rune is a filled
// solution cell holding that letter. The result is not numbered.
func ParseGrid(lines []string) (*Grid, error) {
	cells := make([][]Cell, len(lines))
	for r, line := range lines {
		runes := []rune(line)
		cells[r] = make([]Cell, len(runes))
		for c, ch := range runes {
			pos := Position{r, c}
			switch ch {
			case '.', '#':
				cells[r][c] = Blocked{Position: pos}
			case '_', ' ':
				cells[r][c] = Solution{Position: pos, Letter: Blank}
			default:
				cells[r][c] = Solution{Position: pos, Letter: string(ch)}
			}
		}
	}
	return NewGrid(cells)
}

// Lines renders the grid in the ParseGrid notation.
func (g *Grid) Lines() []string {
	lines := make([]string, g.rows)
	var sb strings.Builder
	for r, row := range g.cells {
		sb.Reset()
		for _, cell := range row {
			switch cell := cell.(type) {
			case Blocked:
				sb.WriteByte('.')
			case Solution:
				if cell.Filled() {
					sb.WriteString(strings.TrimSpace(cell.Letter))
				} else {
					sb.WriteByte('_')
				}
			}
		}
		lines[r] = sb.String()
	}
	return lines
}

func (g *Grid) String() string {
	return strings.Join(g.Lines(), "\n")
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

// InBounds reports whether (row, col) addresses a cell of g.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

// At returns the cell at (row, col). It panics when out of bounds, like a
// slice index; callers at the package boundary check InBounds first.
func (g *Grid) At(row, col int) Cell {
	return g.cells[row][col]
}

// Cells returns a copy of the cell table.
func (g *Grid) Cells() [][]Cell {
	cp := make([][]Cell, g.rows)
	for r, row := range g.cells {
		cp[r] = append([]Cell(nil), row...)
	}
	return cp
}

func (g *Grid) isBlocked(row, col int) bool {
	_, ok := g.cells[row][col].(Blocked)
	return ok
}

func (g *Grid) isSolution(row, col int) bool {
	_, ok := g.cells[row][col].(Solution)
	return ok
}

func (g *Grid) hasLetter(row, col int) bool {
	s, ok := g.cells[row][col].(Solution)
	return ok && s.Filled()
}

// with returns a copy of g with the given cells replaced at their own
// positions. Only the touched rows are copied.
func (g *Grid) with(replacements ...Cell) *Grid {
	next := &Grid{rows: g.rows, cols: g.cols, cells: append([][]Cell(nil), g.cells...)}
	copied := make(map[int]bool, len(replacements))
	for _, cell := range replacements {
		p := cell.Pos()
		if !copied[p.Row] {
			next.cells[p.Row] = append([]Cell(nil), g.cells[p.Row]...)
			copied[p.Row] = true
		}
		next.cells[p.Row][p.Col] = cell
	}
	return next
}

// SymmetricPosition returns the 180-degree rotational partner of (row, col)
// in a rows x cols grid.
func SymmetricPosition(row, col, rows, cols int) Position {
	return Position{Row: rows - 1 - row, Col: cols - 1 - col}
}

// Symmetric returns the partner of (row, col) in g.
func (g *Grid) Symmetric(row, col int) Position {
	return SymmetricPosition(row, col, g.rows, g.cols)
}

// IsSymmetric reports whether the blocked pattern of g is invariant under
// 180-degree rotation.
func (g *Grid) IsSymmetric() bool {
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			p := g.Symmetric(r, c)
			if g.isBlocked(r, c) != g.isBlocked(p.Row, p.Col) {
				return false
			}
		}
	}
	return true
}
