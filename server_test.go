package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bodul/kryssord/puzzle"
)

type fakeAnalyzer struct {
	arrow *extractedArrowWord
	trad  *extractedTraditional
	err   error
}

func (f *fakeAnalyzer) AnalyzeArrowWord(context.Context, []byte, string) (*extractedArrowWord, error) {
	return f.arrow, f.err
}

func (f *fakeAnalyzer) AnalyzeTraditional(context.Context, []byte, string) (*extractedTraditional, error) {
	return f.trad, f.err
}

func testConfig() *Config {
	return &Config{
		Port:    "0",
		MaxSize: 25,
		Limits:  LimitsConfig{UploadsPerMinute: 100, EditsPerSecond: 1000},
	}
}

func newTestServer(t *testing.T, analyzer Analyzer) *Server {
	t.Helper()
	templates, err := BuiltinTemplates()
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(testConfig(), NewStore(), templates, analyzer, logger)
	t.Cleanup(srv.Close)
	return srv
}

func do(srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) PuzzleState {
	t.Helper()
	var st PuzzleState
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

func createFromTemplate(t *testing.T, srv *Server, template string) PuzzleState {
	t.Helper()
	w := do(srv, "POST", "/api/puzzles", `{"template":"`+template+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create puzzle: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decodeState(t, w)
}

func uploadImage(t *testing.T, srv http.Handler, path, mimeType string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="grid.png"`)
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("\x89PNG fake"))
	mw.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestListTemplates(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(srv, "GET", "/api/templates", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list []Template
	json.NewDecoder(w.Body).Decode(&list)

	var ids []string
	for _, tpl := range list {
		ids = append(ids, tpl.ID)
	}
	if diff := cmp.Diff([]string{"sample-traditional-01", "sample-traditional-empty"}, ids); diff != "" {
		t.Fatalf("template ids (-want +got):\n%s", diff)
	}
}

func TestCreatePuzzle(t *testing.T) {
	srv := newTestServer(t, nil)

	st := createFromTemplate(t, srv, "sample-traditional-empty")
	if st.ID == "" {
		t.Fatal("puzzle ID is empty")
	}
	if st.Rows != 5 || st.Cols != 5 || st.PuzzleType != puzzle.TypeTraditional {
		t.Fatalf("unexpected puzzle %dx%d %q", st.Rows, st.Cols, st.PuzzleType)
	}
	if s := st.Cells.At(2, 3).(puzzle.Solution); s.Number != 6 {
		t.Fatalf("expected (2,3) numbered 6, got %d", s.Number)
	}

	// Blank grid.
	w := do(srv, "POST", "/api/puzzles", `{"rows":3,"cols":4}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("blank puzzle: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	blank := decodeState(t, w)
	if blank.Title != defaultTitle || blank.Rows != 3 || blank.Cols != 4 {
		t.Fatalf("unexpected blank puzzle %q %dx%d", blank.Title, blank.Rows, blank.Cols)
	}

	for name, body := range map[string]string{
		"too large": `{"rows":26,"cols":5}`,
		"zero":      `{"rows":0,"cols":5}`,
		"bad json":  `{"rows":`,
	} {
		if w := do(srv, "POST", "/api/puzzles", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, w.Code)
		}
	}

	if w := do(srv, "POST", "/api/puzzles", `{"template":"nope"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown template: expected 404, got %d", w.Code)
	}
}

func TestListAndGetPuzzle(t *testing.T) {
	srv := newTestServer(t, nil)
	first := createFromTemplate(t, srv, "sample-traditional-empty")
	time.Sleep(time.Millisecond)
	second := createFromTemplate(t, srv, "sample-traditional-01")

	w := do(srv, "GET", "/api/puzzles", "")
	var list []puzzleSummary
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 2 {
		t.Fatalf("expected 2 puzzles, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatal("expected puzzles sorted most recent first")
	}

	w = do(srv, "GET", "/api/puzzles/"+first.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get puzzle: expected 200, got %d", w.Code)
	}
	if got := decodeState(t, w); got.Cells.String() != first.Cells.String() {
		t.Fatalf("grid mismatch:\n%s\nvs\n%s", got.Cells, first.Cells)
	}

	if w := do(srv, "GET", "/api/puzzles/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestFullEditFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	st := createFromTemplate(t, srv, "sample-traditional-empty")
	base := "/api/puzzles/" + st.ID

	// Block the left end of the middle row; its partner follows.
	w := do(srv, "POST", base+"/toggle", `{"row":2,"col":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	st = decodeState(t, w)
	if st.Version != 1 {
		t.Fatalf("expected version 1, got %d", st.Version)
	}
	for _, p := range []puzzle.Position{{Row: 2, Col: 0}, {Row: 2, Col: 4}} {
		if _, ok := st.Cells.At(p.Row, p.Col).(puzzle.Blocked); !ok {
			t.Fatalf("expected %v blocked", p)
		}
	}
	if s := st.Cells.At(2, 1).(puzzle.Solution); s.Number != 5 {
		t.Fatalf("expected (2,1) renumbered 5, got %d", s.Number)
	}

	// Write a letter.
	if w := do(srv, "POST", base+"/letter", `{"row":0,"col":0,"value":"a"}`); w.Code != http.StatusNoContent {
		t.Fatalf("letter: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	// The lettered cell can no longer be blocked.
	w = do(srv, "POST", base+"/toggle", `{"row":0,"col":0}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("toggle lettered cell: expected 409, got %d", w.Code)
	}
	var rejected map[string]string
	json.NewDecoder(w.Body).Decode(&rejected)
	if rejected["reason"] != string(puzzle.ReasonLetterPresent) || rejected["error"] == "" {
		t.Fatalf("unexpected rejection %v", rejected)
	}

	// Dry run agrees.
	w = do(srv, "POST", base+"/validate", `{"row":0,"col":0}`)
	var v validationResponse
	json.NewDecoder(w.Body).Decode(&v)
	if v.Allowed || v.Reason != puzzle.ReasonLetterPresent || v.Message == "" {
		t.Fatalf("unexpected validation %+v", v)
	}

	w = do(srv, "GET", base, "")
	st = decodeState(t, w)
	if s := st.Cells.At(0, 0).(puzzle.Solution); s.Letter != "A" || s.Number != 1 {
		t.Fatalf("expected (0,0) = A numbered 1, got %q %d", s.Letter, s.Number)
	}
	if st.Version != 2 {
		t.Fatalf("expected version 2, got %d", st.Version)
	}
}

func TestToggleRejections(t *testing.T) {
	srv := newTestServer(t, nil)
	st := createFromTemplate(t, srv, "sample-traditional-01")
	base := "/api/puzzles/" + st.ID

	w := do(srv, "POST", base+"/toggle", `{"row":3,"col":3}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	w = do(srv, "POST", base+"/toggle", `{"row":7,"col":0}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out of bounds: expected 400, got %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["reason"] != string(puzzle.ReasonOutOfBounds) {
		t.Fatalf("expected out-of-bounds reason, got %v", body)
	}

	w = do(srv, "POST", base+"/validate", `{"row":-1,"col":0}`)
	var v validationResponse
	json.NewDecoder(w.Body).Decode(&v)
	if v.Allowed || v.Reason != puzzle.ReasonOutOfBounds {
		t.Fatalf("unexpected validation %+v", v)
	}

	// Unblocking is always allowed and renumbers.
	w = do(srv, "POST", base+"/toggle", `{"row":0,"col":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unblock: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	st = decodeState(t, w)
	if s := st.Cells.At(6, 1).(puzzle.Solution); s.Number != 13 || s.Letter != puzzle.Blank {
		t.Fatalf("expected blank (6,1) numbered 13, got %q %d", s.Letter, s.Number)
	}
}

func TestLetterValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	st := createFromTemplate(t, srv, "sample-traditional-empty")
	base := "/api/puzzles/" + st.ID

	cases := map[string]struct {
		body string
		code int
	}{
		"digit":         {`{"row":0,"col":0,"value":"5"}`, http.StatusBadRequest},
		"two letters":   {`{"row":0,"col":0,"value":"AB"}`, http.StatusBadRequest},
		"blocked cell":  {`{"row":0,"col":4,"value":"A"}`, http.StatusBadRequest},
		"out of bounds": {`{"row":10,"col":10,"value":"A"}`, http.StatusBadRequest},
		"norwegian":     {`{"row":0,"col":0,"value":"ø"}`, http.StatusNoContent},
		"erase":         {`{"row":2,"col":2,"value":""}`, http.StatusNoContent},
	}
	for name, tc := range cases {
		if w := do(srv, "POST", base+"/letter", tc.body); w.Code != tc.code {
			t.Errorf("%s: expected %d, got %d: %s", name, tc.code, w.Code, w.Body.String())
		}
	}
}

func TestNavigate(t *testing.T) {
	srv := newTestServer(t, nil)
	st := createFromTemplate(t, srv, "sample-traditional-empty")
	base := "/api/puzzles/" + st.ID

	cases := []struct {
		path string
		want navigationResponse
	}{
		{"/next?row=2&col=0&direction=across", navigationResponse{Found: true, Position: &puzzle.Position{Row: 2, Col: 1}}},
		{"/next?row=0&col=2&direction=across", navigationResponse{}},
		{"/next?row=1&col=2&direction=down", navigationResponse{Found: true, Position: &puzzle.Position{Row: 2, Col: 2}}},
		{"/prev?row=4&col=2&direction=across", navigationResponse{}},
		{"/prev?row=3&col=4&direction=down", navigationResponse{Found: true, Position: &puzzle.Position{Row: 2, Col: 4}}},
		{"/next?row=9&col=9&direction=down", navigationResponse{}},
	}
	for _, tc := range cases {
		w := do(srv, "GET", base+tc.path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.path, w.Code)
		}
		var got navigationResponse
		json.NewDecoder(w.Body).Decode(&got)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", tc.path, diff)
		}
	}

	if w := do(srv, "GET", base+"/next?row=0&col=0&direction=diagonal", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad direction: expected 400, got %d", w.Code)
	}
	if w := do(srv, "GET", base+"/next?row=x&col=0&direction=down", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad row: expected 400, got %d", w.Code)
	}
}

func TestUpdateClues(t *testing.T) {
	srv := newTestServer(t, nil)
	st := createFromTemplate(t, srv, "sample-traditional-empty")

	body := `{"across":[{"number":1,"text":"Dyr","answer":"ELG"},{"number":2,"text":"Feil"}],"down":[]}`
	w := do(srv, "PUT", "/api/puzzles/"+st.ID+"/clues", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Clues  puzzle.Clues       `json:"clues"`
		Issues []puzzle.ClueIssue `json:"issues"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Clues.Across) != 2 {
		t.Fatalf("expected 2 across clues, got %d", len(resp.Clues.Across))
	}
	if len(resp.Issues) != 1 || resp.Issues[0].Number != 2 || resp.Issues[0].Direction != puzzle.Across {
		t.Fatalf("expected one issue for 2 across, got %+v", resp.Issues)
	}
}

func TestImportDisabled(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/api/puzzles/import", "/api/arrowwords"} {
		if w := uploadImage(t, srv, path, "image/png"); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}
}

func TestImportTraditional(t *testing.T) {
	srv := newTestServer(t, &fakeAnalyzer{trad: &extractedTraditional{
		Rows: 3,
		Cols: 3,
		Grid: []string{"___", "_#_", "___"},
		Clues: puzzle.Clues{
			Across: []puzzle.Clue{{Number: 1, Text: "Topp"}},
		},
	}})

	if w := uploadImage(t, srv, "/api/puzzles/import", "image/gif"); w.Code != http.StatusBadRequest {
		t.Fatalf("gif: expected 400, got %d", w.Code)
	}

	w := uploadImage(t, srv, "/api/puzzles/import", "image/png")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	st := decodeState(t, w)
	if st.Title != defaultTitle {
		t.Fatalf("expected default title, got %q", st.Title)
	}
	if s := st.Cells.At(0, 2).(puzzle.Solution); s.Number != 2 {
		t.Fatalf("expected (0,2) numbered 2, got %d", s.Number)
	}
	if srv.store.GetPuzzle(st.ID) == nil {
		t.Fatal("imported puzzle was not stored")
	}
}

func TestImportAnalyzerFailure(t *testing.T) {
	srv := newTestServer(t, &fakeAnalyzer{err: errors.New("quota")})

	if w := uploadImage(t, srv, "/api/puzzles/import", "image/png"); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestArrowWordFlow(t *testing.T) {
	srv := newTestServer(t, &fakeAnalyzer{arrow: &extractedArrowWord{
		Title: "Lite",
		Rows:  2,
		Cols:  3,
		Cells: [][]extractedCell{
			{{Black: true, Definitions: []extractedDefinition{{Text: "Fugl", Direction: "right"}}}, {}, {}},
			{{Black: true, Definitions: []extractedDefinition{{Text: "Elv", Direction: "right"}}}, {}, {}},
		},
	}})

	w := uploadImage(t, srv, "/api/arrowwords", "image/jpeg")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var aw ArrowWordState
	json.NewDecoder(w.Body).Decode(&aw)
	if aw.PuzzleType != puzzle.TypeArrowWord || aw.Cells[0][0].CellType != puzzle.ArrowClue {
		t.Fatalf("unexpected arrow word %+v", aw.ArrowWord)
	}
	base := "/api/arrowwords/" + aw.ID

	if w := do(srv, "POST", base+"/letter", `{"row":0,"col":0,"value":"A"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("clue cell: expected 400, got %d", w.Code)
	}
	if w := do(srv, "POST", base+"/letter", `{"row":0,"col":1,"value":"å"}`); w.Code != http.StatusNoContent {
		t.Fatalf("letter: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = do(srv, "GET", base, "")
	json.NewDecoder(w.Body).Decode(&aw)
	if aw.Cells[0][1].Letter != "Å" {
		t.Fatalf("expected Å at (0,1), got %q", aw.Cells[0][1].Letter)
	}

	w = do(srv, "GET", "/api/arrowwords", "")
	var list []ArrowWordState
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 1 {
		t.Fatalf("expected 1 arrow word, got %d", len(list))
	}

	if w := do(srv, "GET", "/api/arrowwords/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestEditsAreBroadcast(t *testing.T) {
	srv := newTestServer(t, nil)
	st := createFromTemplate(t, srv, "sample-traditional-empty")
	sub := srv.sse.Register(st.ID)
	defer srv.sse.Unregister(sub)

	do(srv, "POST", "/api/puzzles/"+st.ID+"/letter", `{"row":0,"col":0,"value":"B"}`)
	do(srv, "POST", "/api/puzzles/"+st.ID+"/toggle", `{"row":2,"col":0}`)
	do(srv, "PUT", "/api/puzzles/"+st.ID+"/clues", `{"across":[],"down":[]}`)

	var types []string
	for range 3 {
		select {
		case msg := <-sub.ch:
			var evt struct {
				Type string `json:"type"`
			}
			json.Unmarshal([]byte(msg), &evt)
			types = append(types, evt.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	want := []string{"letter_changed", "structure_changed", "clues_changed"}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(srv, "GET", "/api/templates", "")

	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}

	for key, expected := range headers {
		if got := w.Header().Get(key); got != expected {
			t.Errorf("header %s: expected %q, got %q", key, expected, got)
		}
	}

	csp := w.Header().Get("Content-Security-Policy")
	if csp == "" {
		t.Error("Content-Security-Policy header missing")
	}
}

func TestEditRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.EditsPerSecond = 2
	templates, _ := BuiltinTemplates()
	srv := NewServer(cfg, NewStore(), templates, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer srv.Close()

	w := do(srv, "POST", "/api/puzzles", `{"template":"sample-traditional-empty"}`)
	st := decodeState(t, w)

	body := `{"row":0,"col":0,"value":"A"}`
	for i := range 2 {
		if w := do(srv, "POST", "/api/puzzles/"+st.ID+"/letter", body); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, w.Code)
		}
	}
	if w := do(srv, "POST", "/api/puzzles/"+st.ID+"/letter", body); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
