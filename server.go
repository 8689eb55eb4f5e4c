package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bodul/kryssord/puzzle"
)

const maxUploadSize = 10 << 20 // 10 MB

const defaultTitle = "Uten tittel"

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Server is the main HTTP server.
type Server struct {
	mux       *http.ServeMux
	store     *Store
	templates Templates
	analyzer  Analyzer
	sse       *Broadcaster
	uploadRL  *rateLimiter
	editRL    *rateLimiter
	log       *slog.Logger
	maxSize   int
}

// NewServer creates a configured HTTP server. analyzer may be nil, which
// disables photo import.
func NewServer(cfg *Config, store *Store, templates Templates, analyzer Analyzer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mux:       http.NewServeMux(),
		store:     store,
		templates: templates,
		analyzer:  analyzer,
		sse:       NewBroadcaster(),
		uploadRL:  newRateLimiter(cfg.Limits.UploadsPerMinute, time.Minute),
		editRL:    newRateLimiter(cfg.Limits.EditsPerSecond, time.Second),
		log:       logger,
		maxSize:   cfg.MaxSize,
	}
	s.routes()
	return s
}

// Close stops the background work of the server.
func (s *Server) Close() {
	s.uploadRL.stop()
	s.editRL.stop()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/templates", s.handleListTemplates)

	// Traditional puzzles
	s.mux.HandleFunc("POST /api/puzzles", s.handleCreatePuzzle)
	s.mux.HandleFunc("GET /api/puzzles", s.handleListPuzzles)
	s.mux.HandleFunc("POST /api/puzzles/import", s.handleImportPuzzle)
	s.mux.HandleFunc("GET /api/puzzles/{id}", s.handleGetPuzzle)
	s.mux.HandleFunc("POST /api/puzzles/{id}/validate", s.handleValidate)
	s.mux.HandleFunc("POST /api/puzzles/{id}/toggle", s.handleToggle)
	s.mux.HandleFunc("POST /api/puzzles/{id}/letter", s.handleLetter)
	s.mux.HandleFunc("GET /api/puzzles/{id}/next", s.handleNavigate(true))
	s.mux.HandleFunc("GET /api/puzzles/{id}/prev", s.handleNavigate(false))
	s.mux.HandleFunc("PUT /api/puzzles/{id}/clues", s.handleClues)
	s.mux.HandleFunc("GET /api/puzzles/{id}/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/puzzles/{id}/ws", s.handleSocket)

	// Arrow-word puzzles
	s.mux.HandleFunc("POST /api/arrowwords", s.handleCreateArrowWord)
	s.mux.HandleFunc("GET /api/arrowwords", s.handleListArrowWords)
	s.mux.HandleFunc("GET /api/arrowwords/{id}", s.handleGetArrowWord)
	s.mux.HandleFunc("POST /api/arrowwords/{id}/letter", s.handleArrowWordLetter)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
	s.mux.ServeHTTP(w, r)
}

// --- Template and puzzle handlers ---

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.templates.List())
}

// POST /api/puzzles: start a session from a template or a blank grid.
func (s *Server) handleCreatePuzzle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template string `json:"template"`
		Title    string `json:"title"`
		Rows     int    `json:"rows"`
		Cols     int    `json:"cols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Ugyldig forespørsel", http.StatusBadRequest)
		return
	}

	var p *puzzle.Traditional
	if req.Template != "" {
		t, ok := s.templates[req.Template]
		if !ok {
			jsonError(w, "Ukjent mal", http.StatusNotFound)
			return
		}
		var err error
		if p, err = t.Puzzle(NewID()); err != nil {
			s.log.Error("build template", "template", req.Template, "err", err)
			jsonError(w, "Ukjent mal", http.StatusInternalServerError)
			return
		}
		if title := strings.TrimSpace(req.Title); title != "" {
			p.Title = title
		}
	} else {
		if req.Rows < 1 || req.Cols < 1 || req.Rows > s.maxSize || req.Cols > s.maxSize {
			jsonError(w, "Ugyldig størrelse på rutenettet", http.StatusBadRequest)
			return
		}
		grid, err := puzzle.BlankGrid(req.Rows, req.Cols)
		if err != nil {
			jsonError(w, "Ugyldig størrelse på rutenettet", http.StatusBadRequest)
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = defaultTitle
		}
		p = puzzle.NewTraditional(NewID(), title, grid, puzzle.Clues{})
	}

	sess := s.store.AddPuzzle(p)
	s.log.Info("puzzle created", "puzzle", sess.ID, "template", req.Template, "rows", p.Rows, "cols", p.Cols)
	writeJSON(w, http.StatusCreated, sess.State())
}

type puzzleSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) handleListPuzzles(w http.ResponseWriter, _ *http.Request) {
	sessions := s.store.ListPuzzles()
	list := make([]puzzleSummary, 0, len(sessions))
	for _, sess := range sessions {
		st := sess.State()
		list = append(list, puzzleSummary{
			ID:        st.ID,
			Title:     st.Title,
			Rows:      st.Rows,
			Cols:      st.Cols,
			Version:   st.Version,
			CreatedAt: st.CreatedAt,
			UpdatedAt: st.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetPuzzle(w http.ResponseWriter, r *http.Request) {
	sess := s.puzzleOr404(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

type cellRequest struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value,omitempty"`
}

type validationResponse struct {
	Allowed bool          `json:"allowed"`
	Reason  puzzle.Reason `json:"reason,omitempty"`
	Message string        `json:"message,omitempty"`
}

func newValidationResponse(v puzzle.Validation) validationResponse {
	resp := validationResponse{Allowed: v.Allowed, Reason: v.Reason}
	if !v.Allowed {
		resp.Message = v.Reason.Message()
	}
	return resp
}

// POST /api/puzzles/{id}/validate: dry run of a toggle.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess := s.puzzleOr404(w, r)
	if sess == nil {
		return
	}
	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Ugyldig forespørsel", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, newValidationResponse(sess.ValidateToggle(req.Row, req.Col)))
}

// POST /api/puzzles/{id}/toggle: flip a cell and its partner, then renumber.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !s.editRL.allow(clientIP(r)) {
		jsonError(w, "For mange forespørsler, prøv igjen senere", http.StatusTooManyRequests)
		return
	}
	sess := s.puzzleOr404(w, r)
	if sess == nil {
		return
	}
	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Ugyldig forespørsel", http.StatusBadRequest)
		return
	}

	state, err := s.toggle(sess, req.Row, req.Col)
	if err != nil {
		writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// POST /api/puzzles/{id}/letter: write or erase a letter.
func (s *Server) handleLetter(w http.ResponseWriter, r *http.Request) {
	if !s.editRL.allow(clientIP(r)) {
		jsonError(w, "For mange forespørsler, prøv igjen senere", http.StatusTooManyRequests)
		return
	}
	sess := s.puzzleOr404(w, r)
	if sess == nil {
		return
	}
	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Ugyldig forespørsel", http.StatusBadRequest)
		return
	}

	if _, err := s.setLetter(sess, req.Row, req.Col, req.Value); err != nil {
		writeEditError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type navigationResponse struct {
	Found    bool             `json:"found"`
	Position *puzzle.Position `json:"position,omitempty"`
}

func newNavigationResponse(pos puzzle.Position, ok bool) navigationResponse {
	if !ok {
		return navigationResponse{}
	}
	return navigationResponse{Found: true, Position: &pos}
}

// GET /api/puzzles/{id}/next and /prev: cursor movement.
func (s *Server) handleNavigate(forward bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.puzzleOr404(w, r)
		if sess == nil {
			return
		}
		q := r.URL.Query()
		row, errRow := strconv.Atoi(q.Get("row"))
		col, errCol := strconv.Atoi(q.Get("col"))
		if errRow != nil || errCol != nil {
			jsonError(w, "Ugyldig posisjon", http.StatusBadRequest)
			return
		}
		d, err := puzzle.ParseDirection(q.Get("direction"))
		if err != nil {
			jsonError(w, "Ugyldig retning", http.StatusBadRequest)
			return
		}

		var pos puzzle.Position
		var ok bool
		if forward {
			pos, ok = sess.Next(row, col, d)
		} else {
			pos, ok = sess.Prev(row, col, d)
		}
		writeJSON(w, http.StatusOK, newNavigationResponse(pos, ok))
	}
}

type cluesResponse struct {
	PuzzleState
	Issues []puzzle.ClueIssue `json:"issues"`
}

// PUT /api/puzzles/{id}/clues: replace both clue lists.
func (s *Server) handleClues(w http.ResponseWriter, r *http.Request) {
	sess := s.puzzleOr404(w, r)
	if sess == nil {
		return
	}
	var clues puzzle.Clues
	if err := json.NewDecoder(r.Body).Decode(&clues); err != nil {
		jsonError(w, "Ugyldig forespørsel", http.StatusBadRequest)
		return
	}

	state, issues := s.setClues(sess, clues)
	if issues == nil {
		issues = []puzzle.ClueIssue{}
	}
	writeJSON(w, http.StatusOK, cluesResponse{PuzzleState: state, Issues: issues})
}

// POST /api/puzzles/import: photo of a traditional puzzle to a new session.
func (s *Server) handleImportPuzzle(w http.ResponseWriter, r *http.Request) {
	imageData, mimeType, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	extracted, err := s.analyzer.AnalyzeTraditional(r.Context(), imageData, mimeType)
	if err != nil {
		s.log.Error("analyze traditional", "err", err)
		jsonError(w, "Feil under analyse av rutenettet", http.StatusInternalServerError)
		return
	}
	grid, err := extracted.toGrid()
	if err != nil || grid.Rows() > s.maxSize || grid.Cols() > s.maxSize {
		s.log.Warn("unusable traditional grid", "rows", extracted.Rows, "cols", extracted.Cols, "err", err)
		jsonError(w, "Feil under analyse av rutenettet", http.StatusUnprocessableEntity)
		return
	}
	title := strings.TrimSpace(extracted.Title)
	if title == "" {
		title = defaultTitle
	}

	sess := s.store.AddPuzzle(puzzle.NewTraditional(NewID(), title, grid, extracted.Clues))
	state := sess.State()
	if !grid.IsSymmetric() {
		s.log.Info("imported grid is not symmetric", "puzzle", sess.ID)
	}
	s.log.Info("puzzle imported", "puzzle", sess.ID, "rows", state.Rows, "cols", state.Cols, "issues", len(state.ClueIssues()))
	writeJSON(w, http.StatusCreated, state)
}

// GET /api/puzzles/{id}/events: SSE stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess := s.puzzleOr404(w, r)
	if sess == nil {
		return
	}
	s.sse.ServeSSE(w, r, sess.ID, func(sub *subscriber) {
		// Send initial puzzle state on connect.
		sub.ch <- encodeEvent(map[string]any{
			"type":   "puzzle_state",
			"puzzle": sess.State(),
		})
	})
}

// --- Arrow-word handlers ---

// POST /api/arrowwords: upload image, analyze with Gemini, save puzzle.
func (s *Server) handleCreateArrowWord(w http.ResponseWriter, r *http.Request) {
	imageData, mimeType, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	extracted, err := s.analyzer.AnalyzeArrowWord(r.Context(), imageData, mimeType)
	if err != nil {
		s.log.Error("analyze arrow word", "err", err)
		jsonError(w, "Feil under analyse av rutenettet", http.StatusInternalServerError)
		return
	}
	cells, err := extracted.toArrowCells()
	if err == nil && (extracted.Rows > s.maxSize || extracted.Cols > s.maxSize) {
		err = fmt.Errorf("grid %dx%d exceeds %d", extracted.Rows, extracted.Cols, s.maxSize)
	}
	var aw *puzzle.ArrowWord
	if err == nil {
		aw, err = puzzle.NewArrowWord(NewID(), strings.TrimSpace(extracted.Title), cells)
	}
	if err != nil {
		s.log.Warn("unusable arrow word grid", "rows", extracted.Rows, "cols", extracted.Cols, "err", err)
		jsonError(w, "Feil under analyse av rutenettet", http.StatusUnprocessableEntity)
		return
	}

	sess := s.store.AddArrowWord(aw)
	s.log.Info("arrow word imported", "arrowword", sess.ID, "rows", aw.Rows, "cols", aw.Cols)
	writeJSON(w, http.StatusCreated, sess.State())
}

func (s *Server) handleListArrowWords(w http.ResponseWriter, _ *http.Request) {
	sessions := s.store.ListArrowWords()
	list := make([]ArrowWordState, 0, len(sessions))
	for _, sess := range sessions {
		list = append(list, sess.State())
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetArrowWord(w http.ResponseWriter, r *http.Request) {
	sess := s.store.GetArrowWord(r.PathValue("id"))
	if sess == nil {
		jsonError(w, "Fant ikke kryssordet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleArrowWordLetter(w http.ResponseWriter, r *http.Request) {
	if !s.editRL.allow(clientIP(r)) {
		jsonError(w, "For mange forespørsler, prøv igjen senere", http.StatusTooManyRequests)
		return
	}
	sess := s.store.GetArrowWord(r.PathValue("id"))
	if sess == nil {
		jsonError(w, "Fant ikke kryssordet", http.StatusNotFound)
		return
	}
	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Ugyldig forespørsel", http.StatusBadRequest)
		return
	}
	if _, err := sess.SetLetter(req.Row, req.Col, req.Value); err != nil {
		writeEditError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Edits shared by HTTP and the socket ---

func (s *Server) toggle(sess *PuzzleSession, row, col int) (PuzzleState, error) {
	state, err := sess.Toggle(row, col)
	if err != nil {
		var te *puzzle.ToggleError
		if errors.As(err, &te) {
			s.log.Debug("toggle rejected", "puzzle", sess.ID, "row", row, "col", col, "reason", te.Reason)
		}
		return PuzzleState{}, err
	}
	s.sse.Broadcast(sess.ID, encodeEvent(map[string]any{
		"type":     "structure_changed",
		"position": puzzle.Position{Row: row, Col: col},
		"puzzle":   state,
	}))
	return state, nil
}

func (s *Server) setLetter(sess *PuzzleSession, row, col int, value string) (PuzzleState, error) {
	state, err := sess.SetLetter(row, col, value)
	if err != nil {
		return PuzzleState{}, err
	}
	cell := state.Cells.At(row, col).(puzzle.Solution)
	s.sse.Broadcast(sess.ID, encodeEvent(map[string]any{
		"type":     "letter_changed",
		"position": cell.Position,
		"letter":   cell.Letter,
		"version":  state.Version,
	}))
	return state, nil
}

func (s *Server) setClues(sess *PuzzleSession, clues puzzle.Clues) (PuzzleState, []puzzle.ClueIssue) {
	state, issues := sess.SetClues(clues)
	s.sse.Broadcast(sess.ID, encodeEvent(map[string]any{
		"type":    "clues_changed",
		"clues":   state.Clues,
		"issues":  issues,
		"version": state.Version,
	}))
	return state, issues
}

// --- Helpers ---

func (s *Server) puzzleOr404(w http.ResponseWriter, r *http.Request) *PuzzleSession {
	sess := s.store.GetPuzzle(r.PathValue("id"))
	if sess == nil {
		jsonError(w, "Fant ikke kryssordet", http.StatusNotFound)
	}
	return sess
}

// readUpload enforces the upload rate limit and returns the posted image.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	if !s.uploadRL.allow(clientIP(r)) {
		jsonError(w, "For mange forespørsler, prøv igjen senere", http.StatusTooManyRequests)
		return nil, "", false
	}

	if s.analyzer == nil {
		jsonError(w, "Bildeanalyse er ikke konfigurert", http.StatusServiceUnavailable)
		return nil, "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		jsonError(w, "Bildet er for stort (maks 10 MB)", http.StatusRequestEntityTooLarge)
		return nil, "", false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		jsonError(w, "Feltet 'image' er påkrevd", http.StatusBadRequest)
		return nil, "", false
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !allowedMIME[mimeType] {
		jsonError(w, "Godkjente formater: JPEG eller PNG", http.StatusBadRequest)
		return nil, "", false
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "Feil ved lesing av bildet", http.StatusInternalServerError)
		return nil, "", false
	}
	return imageData, mimeType, true
}

// editFailure maps an edit error to a status, a user-facing message and, for
// toggles, the rule that refused it.
func editFailure(err error) (int, string, puzzle.Reason) {
	var te *puzzle.ToggleError
	switch {
	case errors.As(err, &te):
		return http.StatusConflict, te.Reason.Message(), te.Reason
	case errors.Is(err, puzzle.ErrOutOfBounds):
		return http.StatusBadRequest, "Posisjon utenfor rutenettet", puzzle.ReasonOutOfBounds
	case errors.Is(err, puzzle.ErrInvalidLetter):
		return http.StatusBadRequest, "Ugyldig bokstav", ""
	case errors.Is(err, puzzle.ErrClueCell):
		return http.StatusBadRequest, "Cellen inneholder en ledetekst", ""
	case errors.Is(err, puzzle.ErrBlockedCell):
		return http.StatusBadRequest, "Cellen er sperret", ""
	default:
		return http.StatusInternalServerError, "Kan ikke endre celle", ""
	}
}

func writeEditError(w http.ResponseWriter, err error) {
	code, msg, reason := editFailure(err)
	body := map[string]string{"error": msg}
	if reason != "" {
		body["reason"] = string(reason)
	}
	writeJSON(w, code, body)
}

func encodeEvent(evt map[string]any) string {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("encode event", "type", evt["type"], "err", err)
		return `{"type":"error"}`
	}
	return string(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
