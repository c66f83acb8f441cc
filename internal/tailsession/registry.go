// Package tailsession tracks live tail sessions. The Registry is the single
// source of truth for what is currently streaming: a session is reachable
// from it exactly while its remote process is expected to produce output.
package tailsession

import (
	"log"
	"sync"
	"time"

	"github.com/ghdquddnr/Termix-sub002/internal/sshtail"
)

// State is the lifecycle phase of a tail session.
type State string

const (
	// StatePending means the credential lookup is in flight.
	StatePending State = "pending"
	// StateConnecting means the SSH handshake or exec request is in flight.
	StateConnecting State = "connecting"
	// StateStreaming means chunks are flowing.
	StateStreaming State = "streaming"
	// StateClosed is terminal: handles released, key removed.
	StateClosed State = "closed"
)

// Key identifies a session: one per client connection, host, and file.
type Key struct {
	ClientID string
	HostID   string
	FilePath string
}

// Session is one active remote tail. Immutable after creation apart from its
// lifecycle state; it is either streaming or gone.
type Session struct {
	Key       Key
	CreatedAt time.Time

	mu     sync.Mutex
	state  State
	stream *sshtail.Stream
}

// New returns a session in StatePending for the given key.
func New(key Key) *Session {
	return &Session{
		Key:       key,
		CreatedAt: time.Now(),
		state:     StatePending,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState records a lifecycle transition. Closed is terminal; use Close.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = state
}

// AttachStream hands the opened stream to the session and moves it to
// StateStreaming. Returns false if the session was closed while the stream
// was being opened (unsubscribe or client disconnect mid-connect); the
// caller keeps ownership of the stream in that case and must release it.
func (s *Session) AttachStream(st *sshtail.Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.stream = st
	s.state = StateStreaming
	return true
}

// Close transitions the session to StateClosed and releases its stream
// (remote process handle first, then transport). Returns true for the one
// caller that performed the transition, so EOF notification and teardown
// happen exactly once even when a remote EOF races an unsubscribe.
func (s *Session) Close() bool {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.state = StateClosed
	st := s.stream
	s.mu.Unlock()

	if st != nil {
		st.Close()
	}
	return true
}

// Registry is the in-memory map from key to live session. All mutation is
// serialized by a single mutex, so a bulk removal cannot race an insert for
// a key it is removing.
type Registry struct {
	mu       sync.Mutex
	sessions map[Key]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Key]*Session)}
}

// Install registers a session under its key, typically before its stream is
// attached so that teardown requests can reach a session that is still
// connecting. If a session is already present for the key it is closed
// before the new one is installed; the replacement is atomic with respect
// to the key.
func (r *Registry) Install(s *Session) (replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[s.Key]; ok {
		old.Close()
		replaced = true
		log.Printf("[tailsess] replaced session for client=%s host=%s file=%s",
			s.Key.ClientID, s.Key.HostID, s.Key.FilePath)
	}
	r.sessions[s.Key] = s
	return replaced
}

// Get returns the session for a key, or nil.
func (r *Registry) Get(key Key) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key]
}

// Remove removes and closes the session for a key. Returns false if the key
// is absent (not an error: unsubscribe for a dead key is a no-op).
func (r *Registry) Remove(key Key) bool {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	return true
}

// Drop removes a specific session instance, but only if it is still the one
// registered under its key. This keeps a late remote EOF from tearing down a
// replacement session that was installed in the meantime.
func (r *Registry) Drop(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.Key]; ok && cur == s {
		delete(r.sessions, s.Key)
		return true
	}
	return false
}

// RemoveClient removes and closes every session owned by the given client
// connection. Sessions of other clients are untouched.
func (r *Registry) RemoveClient(clientID string) int {
	r.mu.Lock()
	var toClose []*Session
	for key, s := range r.sessions {
		if key.ClientID == clientID {
			delete(r.sessions, key)
			toClose = append(toClose, s)
		}
	}
	r.mu.Unlock()

	for _, s := range toClose {
		s.Close()
	}
	if len(toClose) > 0 {
		log.Printf("[tailsess] removed %d session(s) for client %s", len(toClose), clientID)
	}
	return len(toClose)
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every session and empties the registry. Called on shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[Key]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	return len(sessions)
}
