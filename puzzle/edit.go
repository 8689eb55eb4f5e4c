package puzzle

import "fmt"

// Reason identifies the rule that rejected a structure toggle.
type Reason string

const (
	ReasonOutOfBounds          Reason = "out-of-bounds"
	ReasonLetterPresent        Reason = "letter-present"
	ReasonSymmetricLetter      Reason = "symmetric-letter-present"
	ReasonAcrossBreak          Reason = "across-break"
	ReasonDownBreak            Reason = "down-break"
	ReasonSymmetricAcrossBreak Reason = "symmetric-across-break"
	ReasonSymmetricDownBreak   Reason = "symmetric-down-break"
)

var reasonMessages = map[Reason]string{
	ReasonOutOfBounds:          "Cellen ligger utenfor rutenettet",
	ReasonLetterPresent:        "Kan ikke blokkere en celle med en bokstav",
	ReasonSymmetricLetter:      "Kan ikke blokkere: symmetrisk celle har en bokstav",
	ReasonAcrossBreak:          "Kan ikke blokkere: vil bryte et vannrett ord med bokstaver",
	ReasonDownBreak:            "Kan ikke blokkere: vil bryte et loddrett ord med bokstaver",
	ReasonSymmetricAcrossBreak: "Kan ikke blokkere: symmetrisk celle vil bryte et vannrett ord",
	ReasonSymmetricDownBreak:   "Kan ikke blokkere: symmetrisk celle vil bryte et loddrett ord",
}

// Message is the user-facing text for the reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return "Kan ikke endre celle"
}

// Validation is the outcome of ValidateToggle. Reason is empty when Allowed.
type Validation struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

func reject(r Reason) Validation {
	return Validation{Reason: r}
}

// ToggleError is returned by ApplyToggle when validation fails.
type ToggleError struct {
	Pos    Position
	Reason Reason
}

func (e *ToggleError) Error() string {
	return fmt.Sprintf("toggle %v rejected: %s", e.Pos, e.Reason)
}

// ValidateToggle decides whether the cell at (row, col) and its symmetric
// partner may switch between blocked and solution. Rules are checked in a
// fixed order and the first failure is reported. Unblocking is always
// allowed.
func ValidateToggle(g *Grid, row, col int) Validation {
	if !g.InBounds(row, col) {
		return reject(ReasonOutOfBounds)
	}
	target, ok := g.At(row, col).(Solution)
	if !ok {
		return Validation{Allowed: true}
	}

	sym := g.Symmetric(row, col)
	self := sym.Row == row && sym.Col == col
	partner, partnerIsSolution := g.At(sym.Row, sym.Col).(Solution)
	checkPartner := !self && partnerIsSolution

	if target.Filled() {
		return reject(ReasonLetterPresent)
	}
	if checkPartner && partner.Filled() {
		return reject(ReasonSymmetricLetter)
	}
	if wouldBreakWord(g, row, col, Across) {
		return reject(ReasonAcrossBreak)
	}
	if wouldBreakWord(g, row, col, Down) {
		return reject(ReasonDownBreak)
	}
	if checkPartner {
		simulated := g.with(Blocked{Position: target.Position})
		if wouldBreakWord(simulated, sym.Row, sym.Col, Across) {
			return reject(ReasonSymmetricAcrossBreak)
		}
		if wouldBreakWord(simulated, sym.Row, sym.Col, Down) {
			return reject(ReasonSymmetricDownBreak)
		}
	}
	return Validation{Allowed: true}
}

// ApplyToggle validates and performs the toggle at (row, col), replacing both
// the cell and its symmetric partner. A solution cell becomes blocked; a
// blocked cell becomes a blank, unnumbered solution cell. The input grid is
// left untouched and the result is not renumbered.
func ApplyToggle(g *Grid, row, col int) (*Grid, error) {
	v := ValidateToggle(g, row, col)
	if !v.Allowed {
		if v.Reason == ReasonOutOfBounds {
			return nil, fmt.Errorf("toggle (%d,%d): %w", row, col, ErrOutOfBounds)
		}
		return nil, &ToggleError{Pos: Position{row, col}, Reason: v.Reason}
	}

	pos := Position{row, col}
	sym := g.Symmetric(row, col)
	if _, blocking := g.At(row, col).(Solution); blocking {
		if sym == pos {
			return g.with(Blocked{Position: pos}), nil
		}
		return g.with(Blocked{Position: pos}, Blocked{Position: sym}), nil
	}
	// A partner that is already a solution cell keeps its letter; that only
	// happens on grids that were not symmetric to begin with.
	if _, ok := g.At(sym.Row, sym.Col).(Solution); ok || sym == pos {
		return g.with(Solution{Position: pos, Letter: Blank}), nil
	}
	return g.with(
		Solution{Position: pos, Letter: Blank},
		Solution{Position: sym, Letter: Blank},
	), nil
}

// wouldBreakWord reports whether blocking (row, col) would leave filled
// letters on both sides of it within the same run in direction d. Each side
// is scanned up to the first blocked cell or grid edge.
func wouldBreakWord(g *Grid, row, col int, d Direction) bool {
	dr, dc := d.step()
	return letterBefore(g, row, col, -dr, -dc) && letterBefore(g, row, col, dr, dc)
}

func letterBefore(g *Grid, row, col, dr, dc int) bool {
	for r, c := row+dr, col+dc; g.InBounds(r, c); r, c = r+dr, c+dc {
		if g.isBlocked(r, c) {
			return false
		}
		if g.hasLetter(r, c) {
			return true
		}
	}
	return false
}
