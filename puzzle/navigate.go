package puzzle

// FindNextSolutionCell scans forward from (row, col), exclusive, along d and
// returns the first solution cell. Blocked cells are skipped rather than
// ending the scan. ok is false when the edge is reached first or the start is
// out of bounds.
func FindNextSolutionCell(g *Grid, row, col int, d Direction) (Position, bool) {
	dr, dc := d.step()
	return scan(g, row, col, dr, dc)
}

// FindPrevSolutionCell is FindNextSolutionCell moving backward along d.
func FindPrevSolutionCell(g *Grid, row, col int, d Direction) (Position, bool) {
	dr, dc := d.step()
	return scan(g, row, col, -dr, -dc)
}

func scan(g *Grid, row, col, dr, dc int) (Position, bool) {
	if !g.InBounds(row, col) {
		return Position{}, false
	}
	for r, c := row+dr, col+dc; g.InBounds(r, c); r, c = r+dr, c+dc {
		if g.isSolution(r, c) {
			return Position{r, c}, true
		}
	}
	return Position{}, false
}
