package main

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBroadcasterRegisterUnregister(t *testing.T) {
	b := NewBroadcaster()

	s1 := b.Register("puzzle1")
	s2 := b.Register("puzzle1")
	s3 := b.Register("puzzle2")

	if b.SubscriberCount("puzzle1") != 2 {
		t.Fatalf("expected 2 subscribers for puzzle1, got %d", b.SubscriberCount("puzzle1"))
	}
	if b.SubscriberCount("puzzle2") != 1 {
		t.Fatalf("expected 1 subscriber for puzzle2, got %d", b.SubscriberCount("puzzle2"))
	}

	b.Unregister(s1)
	if b.SubscriberCount("puzzle1") != 1 {
		t.Fatalf("expected 1 subscriber for puzzle1 after unregister, got %d", b.SubscriberCount("puzzle1"))
	}

	b.Unregister(s2)
	b.Unregister(s3)
	if b.SubscriberCount("puzzle1") != 0 || b.SubscriberCount("puzzle2") != 0 {
		t.Fatal("expected 0 subscribers after full unregister")
	}
}

func TestBroadcasterDoubleUnregister(t *testing.T) {
	b := NewBroadcaster()
	s := b.Register("puzzle1")
	b.Unregister(s)
	b.Unregister(s) // should not panic
}

func TestBroadcast(t *testing.T) {
	b := NewBroadcaster()

	s1 := b.Register("puzzle1")
	s2 := b.Register("puzzle1")
	s3 := b.Register("puzzle2")
	defer func() {
		b.Unregister(s1)
		b.Unregister(s2)
		b.Unregister(s3)
	}()

	b.Broadcast("puzzle1", "hello")

	for name, s := range map[string]*subscriber{"s1": s1, "s2": s2} {
		select {
		case msg := <-s.ch:
			if msg != "hello" {
				t.Fatalf("%s expected 'hello', got %q", name, msg)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s did not receive message", name)
		}
	}

	// s3 is on puzzle2, should not receive.
	select {
	case <-s3.ch:
		t.Fatal("s3 should not receive puzzle1 message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastSkipsFullChannel(t *testing.T) {
	b := NewBroadcaster()
	s := b.Register("puzzle1")
	defer b.Unregister(s)

	for range sseChannelBuffer {
		b.Broadcast("puzzle1", "fill")
	}

	// This should not block.
	b.Broadcast("puzzle1", "overflow")

	if len(s.ch) != sseChannelBuffer {
		t.Fatalf("expected a full buffer, got %d", len(s.ch))
	}
}

func TestBroadcasterConcurrent(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			puzzleID := "puzzle1"
			if i%2 == 0 {
				puzzleID = "puzzle2"
			}
			s := b.Register(puzzleID)
			b.Broadcast(puzzleID, "msg")
			b.SubscriberCount(puzzleID)
			b.Unregister(s)
		}(i)
	}
	wg.Wait()

	if b.SubscriberCount("puzzle1") != 0 || b.SubscriberCount("puzzle2") != 0 {
		t.Fatal("expected 0 subscribers after concurrent test")
	}
}

func TestServeSSE(t *testing.T) {
	b := NewBroadcaster()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.ServeSSE(w, r, "puzzle1", func(s *subscriber) {
			s.ch <- `{"type":"puzzle_state"}`
		})
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if line := lines.Text(); strings.HasPrefix(line, "data: ") {
				return strings.TrimPrefix(line, "data: ")
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	if got := next(); got != `{"type":"puzzle_state"}` {
		t.Fatalf("unexpected first event %q", got)
	}

	b.Broadcast("puzzle1", `{"type":"letter_changed"}`)
	if got := next(); got != `{"type":"letter_changed"}` {
		t.Fatalf("unexpected event %q", got)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for b.SubscriberCount("puzzle1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
