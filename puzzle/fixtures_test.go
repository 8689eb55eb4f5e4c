package puzzle

import (
	"math/rand"
	"testing"
)

// The two sample grids shipped with the editor.
var (
	sampleFilled = []string{
		"MATER..",
		"ODDER..",
		"TEGNI..",
		"ERTESKE",
		"..LAKEN",
		"..ETTER",
		"..SEGNE",
	}

	sampleEmpty = []string{
		"___..",
		"___..",
		"_____",
		"..___",
		"..___",
	}
)

func mustParse(t testing.TB, lines ...string) *Grid {
	t.Helper()
	g, err := ParseGrid(lines)
	if err != nil {
		t.Fatalf("parse grid: %v", err)
	}
	return g
}

// numbersOf returns the assigned numbers keyed by position.
func numbersOf(g *Grid) map[Position]int {
	nums := make(map[Position]int)
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if s, ok := g.At(r, c).(Solution); ok && s.Number != 0 {
				nums[s.Position] = s.Number
			}
		}
	}
	return nums
}

// randomSymmetricGrid builds a grid with a symmetric block pattern and a
// sprinkling of letters.
func randomSymmetricGrid(rng *rand.Rand, rows, cols int) *Grid {
	cells := make([][]Cell, rows)
	for r := range cells {
		cells[r] = make([]Cell, cols)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if cells[r][c] != nil {
				continue
			}
			sym := SymmetricPosition(r, c, rows, cols)
			if rng.Intn(4) == 0 {
				cells[r][c] = Blocked{Position: Position{r, c}}
				cells[sym.Row][sym.Col] = Blocked{Position: sym}
				continue
			}
			for _, p := range []Position{{r, c}, sym} {
				letter := Blank
				if rng.Intn(3) == 0 {
					letter = string(Alphabet[rng.Intn(26)])
				}
				cells[p.Row][p.Col] = Solution{Position: p, Letter: letter}
			}
		}
	}
	g, err := NewGrid(cells)
	if err != nil {
		panic(err)
	}
	return g
}
