package main

import (
	"sync"
	"time"

	"github.com/bodul/kryssord/puzzle"
)

// PuzzleSession holds the current state of one traditional puzzle being
// edited. The puzzle engine is pure; the session only serializes edits and
// adopts each returned snapshot.
type PuzzleSession struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	current   *puzzle.Traditional
	version   int
	updatedAt time.Time
	editing   bool
}

// PuzzleState is an immutable view of a session, safe to encode.
type PuzzleState struct {
	*puzzle.Traditional
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newPuzzleSession(p *puzzle.Traditional) *PuzzleSession {
	now := time.Now()
	return &PuzzleSession{
		ID:        p.ID,
		CreatedAt: now,
		current:   p,
		updatedAt: now,
	}
}

// State returns the current snapshot.
func (s *PuzzleSession) State() PuzzleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *PuzzleSession) stateLocked() PuzzleState {
	return PuzzleState{
		Traditional: s.current,
		Version:     s.version,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.updatedAt,
	}
}

func (s *PuzzleSession) adoptLocked(p *puzzle.Traditional) PuzzleState {
	s.current = p
	s.version++
	s.updatedAt = time.Now()
	return s.stateLocked()
}

// ClaimEditor makes the caller the session's single socket editor. It
// returns false if another editor holds the session.
func (s *PuzzleSession) ClaimEditor() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing {
		return false
	}
	s.editing = true
	return true
}

// ReleaseEditor gives up a claim made with ClaimEditor.
func (s *PuzzleSession) ReleaseEditor() {
	s.mu.Lock()
	s.editing = false
	s.mu.Unlock()
}

// ValidateToggle reports whether a structure toggle at (row, col) would be
// accepted, without performing it.
func (s *PuzzleSession) ValidateToggle(row, col int) puzzle.Validation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return puzzle.ValidateToggle(s.current.Cells, row, col)
}

// Toggle flips (row, col) and its symmetric partner between blocked and
// solution, then renumbers the grid.
func (s *PuzzleSession) Toggle(row, col int) (PuzzleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grid, err := puzzle.ApplyToggle(s.current.Cells, row, col)
	if err != nil {
		return PuzzleState{}, err
	}
	return s.adoptLocked(s.current.WithGrid(puzzle.NumberCells(grid))), nil
}

// SetLetter writes a letter into a solution cell. Numbering is unaffected.
func (s *PuzzleSession) SetLetter(row, col int, value string) (PuzzleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grid, err := puzzle.SetLetter(s.current.Cells, row, col, value)
	if err != nil {
		return PuzzleState{}, err
	}
	return s.adoptLocked(s.current.WithGrid(grid)), nil
}

// SetClues replaces the clue lists and reports clues that do not fit the
// current numbering. The clues are stored either way.
func (s *PuzzleSession) SetClues(clues puzzle.Clues) (PuzzleState, []puzzle.ClueIssue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.adoptLocked(s.current.WithClues(clues))
	return state, state.ClueIssues()
}

// Next finds the next solution cell from (row, col) in direction d.
func (s *PuzzleSession) Next(row, col int, d puzzle.Direction) (puzzle.Position, bool) {
	return puzzle.FindNextSolutionCell(s.State().Cells, row, col, d)
}

// Prev finds the previous solution cell from (row, col) in direction d.
func (s *PuzzleSession) Prev(row, col int, d puzzle.Direction) (puzzle.Position, bool) {
	return puzzle.FindPrevSolutionCell(s.State().Cells, row, col, d)
}

// ArrowWordSession holds an imported arrow-word puzzle and its letters.
type ArrowWordSession struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	current *puzzle.ArrowWord
}

// ArrowWordState is an immutable view of an arrow-word session.
type ArrowWordState struct {
	*puzzle.ArrowWord
	CreatedAt time.Time `json:"created_at"`
}

// State returns the current snapshot.
func (s *ArrowWordSession) State() ArrowWordState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ArrowWordState{ArrowWord: s.current, CreatedAt: s.CreatedAt}
}

// SetLetter writes a letter into a solution cell. Clue cells are refused.
func (s *ArrowWordSession) SetLetter(row, col int, value string) (ArrowWordState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.current.SetLetter(row, col, value)
	if err != nil {
		return ArrowWordState{}, err
	}
	s.current = next
	return ArrowWordState{ArrowWord: s.current, CreatedAt: s.CreatedAt}, nil
}
