package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ghdquddnr/Termix-sub002/internal/config"
	"github.com/ghdquddnr/Termix-sub002/internal/hoststore"
	"github.com/ghdquddnr/Termix-sub002/internal/logutil"
	"github.com/ghdquddnr/Termix-sub002/internal/sshtail"
	"github.com/ghdquddnr/Termix-sub002/internal/tailsession"
)

// Sessions tracks every live tail across all websocket clients.
// It is assigned once from main before the server starts listening.
var Sessions *tailsession.Registry

// controlMsg is a client-to-server frame. InitialLines is kept raw so a
// missing, string or negative value can fall back to the default instead
// of failing the whole message.
type controlMsg struct {
	Type         string          `json:"type"`
	HostID       string          `json:"hostId"`
	File         string          `json:"file"`
	InitialLines json.RawMessage `json:"initialLines"`
}

type logFrame struct {
	Type   string `json:"type"`
	HostID string `json:"hostId"`
	File   string `json:"file"`
	Data   string `json:"data"`
	T      int64  `json:"t"`
}

type eofFrame struct {
	Type   string `json:"type"`
	HostID string `json:"hostId"`
	File   string `json:"file"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type pongFrame struct {
	Type string `json:"type"`
	T    int64  `json:"t"`
}

// frameWriter serializes writes to a websocket connection. The websocket
// library allows only one writer at a time and frames arrive from the read
// loop and from every stream pump concurrently.
type frameWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (fw *frameWriter) send(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.conn.Write(ctx, websocket.MessageText, data)
}

// TailWS upgrades the request to a websocket and serves the tail control
// protocol until the client goes away. Each connection gets a fresh client
// id; sessions are keyed by (clientId, hostId, file) so two connections
// tailing the same file never interfere.
func TailWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[tailws] upgrade failed: %v", err)
		return
	}
	defer conn.CloseNow()

	clientID := uuid.New().String()
	log.Printf("[tailws] client %s connected from %s", clientID, r.RemoteAddr)

	// RemoveClient must run after cancel so that a subscribe racing with
	// the disconnect either lands in the registry before the sweep or
	// sees the cancelled context and removes itself.
	defer func() {
		n := Sessions.RemoveClient(clientID)
		log.Printf("[tailws] client %s disconnected, closed %d session(s)", clientID, n)
	}()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(128 * 1024)
	fw := &frameWriter{conn: conn}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg controlMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			fw.send(ctx, errorFrame{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			if msg.HostID == "" || msg.File == "" {
				fw.send(ctx, errorFrame{Type: "error", Error: "subscribe requires hostId and file"})
				continue
			}
			lines := clampInitialLines(msg.InitialLines)
			go runTail(ctx, fw, clientID, msg.HostID, msg.File, lines)

		case "unsubscribe":
			if msg.HostID == "" || msg.File == "" {
				fw.send(ctx, errorFrame{Type: "error", Error: "unsubscribe requires hostId and file"})
				continue
			}
			key := tailsession.Key{ClientID: clientID, HostID: msg.HostID, FilePath: msg.File}
			if Sessions.Remove(key) {
				log.Printf("[tailws] client %s unsubscribed from %s:%s",
					clientID, logutil.Sanitize(msg.HostID), logutil.Sanitize(msg.File))
			}

		case "ping":
			fw.send(ctx, pongFrame{Type: "pong", T: time.Now().UnixMilli()})

		default:
			fw.send(ctx, errorFrame{Type: "error", Error: "unknown message type"})
		}
	}
}

// runTail owns the whole life of one subscription: resolve credentials,
// open the remote tail, register the session and pump chunks to the client
// until the remote side ends, the session is replaced or the client leaves.
func runTail(ctx context.Context, fw *frameWriter, clientID, hostID, file string, lines int) {
	key := tailsession.Key{ClientID: clientID, HostID: hostID, FilePath: file}
	sess := tailsession.New(key)
	hostLabel := logutil.Sanitize(hostID)
	fileLabel := logutil.Sanitize(file)

	// Install before connecting so an unsubscribe or disconnect that lands
	// while the dial is still in flight has a session to close.
	if Sessions.Install(sess) {
		log.Printf("[tailws] replaced session %s:%s for client %s", hostLabel, fileLabel, clientID)
	}
	if ctx.Err() != nil {
		// Client vanished between the read loop exiting and this goroutine
		// starting. The bulk sweep may have already run, so clean up after
		// ourselves.
		if sess.Close() {
			Sessions.Drop(sess)
		}
		return
	}

	creds, err := hoststore.Lookup(hostID)
	if err != nil {
		if !sess.Close() {
			return
		}
		Sessions.Drop(sess)
		if errors.Is(err, hoststore.ErrHostNotFound) {
			fw.send(ctx, errorFrame{Type: "error", Error: "unknown host: " + hostID})
		} else {
			log.Printf("[tailws] host lookup %s: %v", hostLabel, err)
			fw.send(ctx, errorFrame{Type: "error", Error: "host lookup failed"})
		}
		return
	}

	sess.SetState(tailsession.StateConnecting)
	stream, err := sshtail.Open(creds, file, lines, sshtail.StreamOptions{})
	if err != nil {
		if !sess.Close() {
			return
		}
		Sessions.Drop(sess)
		log.Printf("[tailws] open %s:%s for client %s: %v", hostLabel, fileLabel, clientID, err)
		fw.send(ctx, errorFrame{Type: "error", Error: "tail failed: " + err.Error()})
		return
	}

	if !sess.AttachStream(stream) {
		// Unsubscribed or replaced while the dial was in flight. The stream
		// never reached the session, so it is released here and no frames
		// for this key go out.
		stream.Close()
		Sessions.Drop(sess)
		return
	}
	log.Printf("[tailws] streaming %s:%s to client %s (last %d lines)", hostLabel, fileLabel, clientID, lines)

	for chunk := range stream.Chunks {
		if sess.State() == tailsession.StateClosed {
			return
		}
		frame := logFrame{
			Type:   "log",
			HostID: hostID,
			File:   file,
			Data:   string(chunk),
			T:      time.Now().UnixMilli(),
		}
		if err := fw.send(ctx, frame); err != nil {
			if sess.Close() {
				Sessions.Drop(sess)
			}
			return
		}
	}

	// Chunks drained. If nobody closed the session yet this is a genuine
	// remote EOF and the client gets told; otherwise an unsubscribe or a
	// replacement already won the race and owes no frame.
	if sess.Close() {
		Sessions.Drop(sess)
		fw.send(ctx, eofFrame{Type: "eof", HostID: hostID, File: file})
		log.Printf("[tailws] remote eof on %s:%s for client %s", hostLabel, fileLabel, clientID)
	}
}

// clampInitialLines resolves the requested history size. Absent, non-numeric
// or negative values fall back to the default; oversized requests are capped.
func clampInitialLines(raw json.RawMessage) int {
	def := config.Cfg.DefaultTailLines
	if def <= 0 {
		def = 200
	}
	max := config.Cfg.MaxTailLines
	if max <= 0 {
		max = 2000
	}

	if len(raw) == 0 || string(raw) == "null" {
		return def
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return def
	}
	if n < 0 {
		return def
	}
	if int(n) > max {
		return max
	}
	return int(n)
}
