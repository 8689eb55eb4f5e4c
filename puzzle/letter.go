package puzzle

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Alphabet is the set of letters accepted in a solution cell.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZÆØÅ"

var upper = cases.Upper(language.Norwegian)

// NormalizeLetter turns user input into a cell letter. Input is composed
// (NFC) and upper-cased; empty or whitespace input yields Blank.
func NormalizeLetter(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Blank, nil
	}
	s = upper.String(norm.NFC.String(s))
	if utf8.RuneCountInString(s) != 1 || !strings.Contains(Alphabet, s) {
		return "", fmt.Errorf("%q: %w", input, ErrInvalidLetter)
	}
	return s, nil
}

// SetLetter writes a letter into the solution cell at (row, col). The number
// of the cell is kept; structure and numbering are not touched.
func SetLetter(g *Grid, row, col int, input string) (*Grid, error) {
	if !g.InBounds(row, col) {
		return nil, fmt.Errorf("set letter (%d,%d): %w", row, col, ErrOutOfBounds)
	}
	s, ok := g.At(row, col).(Solution)
	if !ok {
		return nil, fmt.Errorf("set letter (%d,%d): %w", row, col, ErrBlockedCell)
	}
	letter, err := NormalizeLetter(input)
	if err != nil {
		return nil, err
	}
	s.Letter = letter
	return g.with(s), nil
}
