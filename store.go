package main

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bodul/kryssord/puzzle"
)

// Store holds the editing sessions in memory. Nothing outlives the process.
type Store struct {
	mu         sync.RWMutex
	puzzles    map[string]*PuzzleSession
	arrowWords map[string]*ArrowWordSession
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		puzzles:    make(map[string]*PuzzleSession),
		arrowWords: make(map[string]*ArrowWordSession),
	}
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// AddPuzzle registers a traditional puzzle and returns its session. The
// puzzle's ID must be unique; use NewID.
func (s *Store) AddPuzzle(p *puzzle.Traditional) *PuzzleSession {
	sess := newPuzzleSession(p)

	s.mu.Lock()
	s.puzzles[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// GetPuzzle returns a session by ID, or nil if not found.
func (s *Store) GetPuzzle(id string) *PuzzleSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puzzles[id]
}

// ListPuzzles returns all puzzle sessions, most recent first.
func (s *Store) ListPuzzles() []*PuzzleSession {
	s.mu.RLock()
	list := make([]*PuzzleSession, 0, len(s.puzzles))
	for _, p := range s.puzzles {
		list = append(list, p)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return newer(list[i].CreatedAt, list[j].CreatedAt, list[i].ID, list[j].ID) })
	return list
}

// AddArrowWord registers an imported arrow-word puzzle.
func (s *Store) AddArrowWord(a *puzzle.ArrowWord) *ArrowWordSession {
	sess := &ArrowWordSession{ID: a.ID, CreatedAt: time.Now(), current: a}

	s.mu.Lock()
	s.arrowWords[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// GetArrowWord returns an arrow-word session by ID, or nil if not found.
func (s *Store) GetArrowWord(id string) *ArrowWordSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.arrowWords[id]
}

// ListArrowWords returns all arrow-word sessions, most recent first.
func (s *Store) ListArrowWords() []*ArrowWordSession {
	s.mu.RLock()
	list := make([]*ArrowWordSession, 0, len(s.arrowWords))
	for _, a := range s.arrowWords {
		list = append(list, a)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return newer(list[i].CreatedAt, list[j].CreatedAt, list[i].ID, list[j].ID) })
	return list
}

// newer orders by creation time descending, then by ID for a stable order.
func newer(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA < idB
}
