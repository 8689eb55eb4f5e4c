package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/bodul/kryssord/puzzle"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
	// Pings are sent at pingPeriod; a peer silent for pongWait is gone.
	pingPeriod = 20 * time.Second
	pongWait   = 3 * pingPeriod

	socketReplyBuffer = 8
)

var upgrader = websocket.Upgrader{}

// errSocketClosed ends a socket session without being reported as a failure.
var errSocketClosed = errors.New("socket closed")

// socketCommand is a message sent by a client on the edit socket.
type socketCommand struct {
	Type      string `json:"type"` // toggle, validate, letter, next, prev
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Value     string `json:"value,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// socketReply answers exactly one socketCommand.
type socketReply struct {
	Type       string              `json:"type"`
	Command    string              `json:"command"`
	OK         bool                `json:"ok"`
	Error      string              `json:"error,omitempty"`
	Reason     puzzle.Reason       `json:"reason,omitempty"`
	Validation *validationResponse `json:"validation,omitempty"`
	Navigation *navigationResponse `json:"navigation,omitempty"`
	Puzzle     *PuzzleState        `json:"puzzle,omitempty"`
}

// GET /api/puzzles/{id}/ws: the first socket on a session edits, later ones
// observe. Every socket also receives the session's broadcast events.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	sess := s.puzzleOr404(w, r)
	if sess == nil {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "puzzle", sess.ID, "err", err)
		return
	}

	editor := sess.ClaimEditor()
	if editor {
		defer sess.ReleaseEditor()
	}
	sub := s.sse.Register(sess.ID)
	defer s.sse.Unregister(sub)

	log := s.log.With("puzzle", sess.ID, "editor", editor)
	log.Debug("socket connected")

	err = s.serveSocket(r.Context(), conn, sess, sub, editor, clientIP(r))
	if err != nil && !errors.Is(err, errSocketClosed) && !isClosure(err) {
		log.Warn("socket ended", "err", err)
		return
	}
	log.Debug("socket disconnected")
}

// serveSocket runs the read, write and close routines of one connection until
// any of them stops.
func (s *Server) serveSocket(
	parent context.Context,
	conn *websocket.Conn,
	sess *PuzzleSession,
	sub *subscriber,
	editor bool,
	ip string,
) error {
	group, ctx := errgroup.WithContext(parent)
	replies := make(chan socketReply, socketReplyBuffer)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	group.Go(func() error {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if isClosure(err) {
					return errSocketClosed
				}
				return err
			}
			var reply socketReply
			var cmd socketCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				reply = socketReply{Type: "reply", Error: "Ugyldig forespørsel"}
			} else {
				reply = s.runCommand(sess, cmd, editor, ip)
			}
			select {
			case replies <- reply:
			case <-ctx.Done():
				return nil
			}
		}
	})

	group.Go(func() error {
		state := sess.State()
		if err := writeSocketJSON(conn, map[string]any{
			"type":   "puzzle_state",
			"puzzle": state,
			"editor": editor,
		}); err != nil {
			return err
		}

		pinger := channerics.NewTicker(ctx.Done(), pingPeriod)
		for {
			select {
			case <-ctx.Done():
				return nil
			case reply := <-replies:
				if err := writeSocketJSON(conn, reply); err != nil {
					return err
				}
			case msg, ok := <-sub.ch:
				if !ok {
					return errSocketClosed
				}
				if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return err
				}
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					return err
				}
			case <-pinger:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return err
				}
			}
		}
	})

	group.Go(func() error {
		<-ctx.Done()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		return conn.Close()
	})

	return group.Wait()
}

// runCommand performs one socket command. Observers may validate and
// navigate but not edit.
func (s *Server) runCommand(sess *PuzzleSession, cmd socketCommand, editor bool, ip string) socketReply {
	reply := socketReply{Type: "reply", Command: cmd.Type}

	switch cmd.Type {
	case "validate":
		v := newValidationResponse(sess.ValidateToggle(cmd.Row, cmd.Col))
		reply.OK, reply.Validation = true, &v

	case "next", "prev":
		d, err := puzzle.ParseDirection(cmd.Direction)
		if err != nil {
			reply.Error = "Ugyldig retning"
			return reply
		}
		var pos puzzle.Position
		var found bool
		if cmd.Type == "next" {
			pos, found = sess.Next(cmd.Row, cmd.Col, d)
		} else {
			pos, found = sess.Prev(cmd.Row, cmd.Col, d)
		}
		nav := newNavigationResponse(pos, found)
		reply.OK, reply.Navigation = true, &nav

	case "toggle", "letter":
		if !editor {
			reply.Error = "Kryssordet redigeres av en annen"
			return reply
		}
		if !s.editRL.allow(ip) {
			reply.Error = "For mange forespørsler, prøv igjen senere"
			return reply
		}
		var state PuzzleState
		var err error
		if cmd.Type == "toggle" {
			state, err = s.toggle(sess, cmd.Row, cmd.Col)
		} else {
			state, err = s.setLetter(sess, cmd.Row, cmd.Col, cmd.Value)
		}
		if err != nil {
			_, reply.Error, reply.Reason = editFailure(err)
			return reply
		}
		reply.OK, reply.Puzzle = true, &state

	default:
		reply.Error = "Ukjent kommando"
	}
	return reply
}

func writeSocketJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}
