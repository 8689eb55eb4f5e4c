package puzzle

import "strings"

// IsWordStart reports whether the cell at (row, col) begins a word of at
// least two cells in direction d: its leading neighbour is the grid edge or a
// blocked cell, and its trailing neighbour is a solution cell.
func IsWordStart(g *Grid, row, col int, d Direction) bool {
	if !g.InBounds(row, col) || !g.isSolution(row, col) {
		return false
	}
	dr, dc := d.step()
	pr, pc := row-dr, col-dc
	if g.InBounds(pr, pc) && !g.isBlocked(pr, pc) {
		return false
	}
	nr, nc := row+dr, col+dc
	return g.InBounds(nr, nc) && g.isSolution(nr, nc)
}

// NumberCells assigns word-start numbers in row-major order starting at 1.
// A cell that starts both an across and a down word gets a single number.
// Every other solution cell has its number cleared; blocked cells are shared
// unchanged.
func NumberCells(g *Grid) *Grid {
	next := &Grid{rows: g.rows, cols: g.cols, cells: make([][]Cell, g.rows)}
	n := 1
	for r, row := range g.cells {
		next.cells[r] = make([]Cell, len(row))
		for c, cell := range row {
			s, ok := cell.(Solution)
			if !ok {
				next.cells[r][c] = cell
				continue
			}
			s.Number = 0
			if IsWordStart(g, r, c, Across) || IsWordStart(g, r, c, Down) {
				s.Number = n
				n++
			}
			next.cells[r][c] = s
		}
	}
	return next
}

// Word is a numbered slot in the grid.
type Word struct {
	Number    int        `json:"number"`
	Direction Direction  `json:"direction"`
	Start     Position   `json:"start"`
	Cells     []Position `json:"cells"`
	Letters   string     `json:"letters"`
}

// Len is the number of cells in the word.
func (w Word) Len() int { return len(w.Cells) }

// Complete reports whether every cell of the word is filled.
func (w Word) Complete() bool {
	for _, r := range w.Letters {
		if r == ' ' {
			return false
		}
	}
	return true
}

// WordFrom returns the run of solution cells starting at (row, col) and
// extending forward in d up to the next blocked cell or edge. It is empty
// when (row, col) is blocked or out of bounds.
func WordFrom(g *Grid, row, col int, d Direction) []Position {
	var cells []Position
	dr, dc := d.step()
	for r, c := row, col; g.InBounds(r, c) && g.isSolution(r, c); r, c = r+dr, c+dc {
		cells = append(cells, Position{r, c})
	}
	return cells
}

// Words lists the words of a numbered grid per direction, in number order.
func Words(g *Grid) (across, down []Word) {
	for r, row := range g.cells {
		for c, cell := range row {
			s, ok := cell.(Solution)
			if !ok || s.Number == 0 {
				continue
			}
			if IsWordStart(g, r, c, Across) {
				across = append(across, g.word(s, Across))
			}
			if IsWordStart(g, r, c, Down) {
				down = append(down, g.word(s, Down))
			}
		}
	}
	return across, down
}

func (g *Grid) word(start Solution, d Direction) Word {
	cells := WordFrom(g, start.Position.Row, start.Position.Col, d)
	letters := make([]rune, 0, len(cells))
	for _, p := range cells {
		s := g.cells[p.Row][p.Col].(Solution)
		if s.Filled() {
			letters = append(letters, []rune(strings.TrimSpace(s.Letter))[0])
		} else {
			letters = append(letters, ' ')
		}
	}
	return Word{
		Number:    start.Number,
		Direction: d,
		Start:     start.Position,
		Cells:     cells,
		Letters:   string(letters),
	}
}
