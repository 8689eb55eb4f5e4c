package main

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
)

const (
	sseChannelBuffer = 16
	sseHeartbeat     = 30 * time.Second
)

// subscriber is one listener on a puzzle's event stream, either an SSE
// connection or an edit socket.
type subscriber struct {
	ch       chan string
	puzzleID string
}

// Broadcaster fans puzzle events out to subscribers grouped by puzzle.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[*subscriber]struct{}),
	}
}

// Register adds a subscriber for a puzzle and returns it.
func (b *Broadcaster) Register(puzzleID string) *subscriber {
	sub := &subscriber{
		ch:       make(chan string, sseChannelBuffer),
		puzzleID: puzzleID,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unregister removes a subscriber and closes its channel.
func (b *Broadcaster) Unregister(sub *subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// Broadcast sends a message to all subscribers of a puzzle. Subscribers
// whose buffer is full miss the message.
func (b *Broadcaster) Broadcast(puzzleID, data string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.puzzleID != puzzleID {
			continue
		}
		select {
		case sub.ch <- data:
		default:
		}
	}
}

// SubscriberCount returns the number of subscribers for a puzzle.
func (b *Broadcaster) SubscriberCount(puzzleID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for sub := range b.subs {
		if sub.puzzleID == puzzleID {
			n++
		}
	}
	return n
}

// ServeSSE streams a puzzle's events until the client goes away.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, puzzleID string, onConnect func(sub *subscriber)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Strømming støttes ikke", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := b.Register(puzzleID)
	defer b.Unregister(sub)

	if onConnect != nil {
		onConnect(sub)
	}

	heartbeat := channerics.NewTicker(r.Context().Done(), sseHeartbeat)
	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case _, ok := <-heartbeat:
			if !ok {
				return
			}
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
