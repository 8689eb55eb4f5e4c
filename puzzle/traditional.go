package puzzle

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	TypeTraditional = "traditional"
	TypeArrowWord   = "arrowword"

	DefaultCellSize = 50
)

// Clue is an externally authored clue. Number must match the number of a
// word start in the clue's direction.
type Clue struct {
	Number int    `json:"number" yaml:"number"`
	Text   string `json:"text" yaml:"text"`
	Answer string `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// Clues groups clues by direction, each list in ascending number order.
type Clues struct {
	Across []Clue `json:"across" yaml:"across"`
	Down   []Clue `json:"down" yaml:"down"`
}

// Sorted returns a copy with both lists ordered by number.
func (c Clues) Sorted() Clues {
	out := Clues{
		Across: append([]Clue{}, c.Across...),
		Down:   append([]Clue{}, c.Down...),
	}
	byNumber := func(list []Clue) func(i, j int) bool {
		return func(i, j int) bool { return list[i].Number < list[j].Number }
	}
	sort.SliceStable(out.Across, byNumber(out.Across))
	sort.SliceStable(out.Down, byNumber(out.Down))
	return out
}

// Traditional is a blocked-cell crossword with separate clue lists.
type Traditional struct {
	PuzzleType string `json:"puzzleType"`
	ID         string `json:"id"`
	Title      string `json:"title"`
	Rows       int    `json:"rows"`
	Cols       int    `json:"cols"`
	CellSize   int    `json:"cellSize"`
	Cells      *Grid  `json:"cells"`
	Clues      Clues  `json:"clues"`
}

// NewTraditional numbers grid and wraps it in a puzzle document.
func NewTraditional(id, title string, grid *Grid, clues Clues) *Traditional {
	return &Traditional{
		PuzzleType: TypeTraditional,
		ID:         id,
		Title:      title,
		Rows:       grid.Rows(),
		Cols:       grid.Cols(),
		CellSize:   DefaultCellSize,
		Cells:      NumberCells(grid),
		Clues:      clues.Sorted(),
	}
}

// WithGrid returns a shallow copy of the puzzle holding grid.
func (t *Traditional) WithGrid(grid *Grid) *Traditional {
	cp := *t
	cp.Cells = grid
	return &cp
}

// WithClues returns a shallow copy of the puzzle holding clues.
func (t *Traditional) WithClues(clues Clues) *Traditional {
	cp := *t
	cp.Clues = clues.Sorted()
	return &cp
}

// ClueIssue describes a clue that does not fit the current grid.
type ClueIssue struct {
	Direction Direction `json:"direction"`
	Number    int       `json:"number"`
	Problem   string    `json:"problem"`
}

func (i ClueIssue) String() string {
	return fmt.Sprintf("%d %s: %s", i.Number, i.Direction, i.Problem)
}

// ClueIssues checks every clue against the numbered words of the grid.
func (t *Traditional) ClueIssues() []ClueIssue {
	across, down := Words(t.Cells)
	var issues []ClueIssue
	issues = append(issues, checkClues(Across, t.Clues.Across, across)...)
	issues = append(issues, checkClues(Down, t.Clues.Down, down)...)
	return issues
}

func checkClues(d Direction, clues []Clue, words []Word) []ClueIssue {
	byNumber := make(map[int]Word, len(words))
	for _, w := range words {
		byNumber[w.Number] = w
	}
	var issues []ClueIssue
	seen := make(map[int]bool, len(clues))
	for _, clue := range clues {
		if seen[clue.Number] {
			issues = append(issues, ClueIssue{d, clue.Number, "duplicate clue number"})
			continue
		}
		seen[clue.Number] = true
		w, ok := byNumber[clue.Number]
		if !ok {
			issues = append(issues, ClueIssue{d, clue.Number, "no word starts at this number"})
			continue
		}
		answer := strings.TrimSpace(clue.Answer)
		if answer != "" && utf8.RuneCountInString(answer) != w.Len() {
			issues = append(issues, ClueIssue{d, clue.Number,
				fmt.Sprintf("answer has %d letters, word has %d", utf8.RuneCountInString(answer), w.Len())})
		}
	}
	return issues
}
