// Package executor drives the data-plane side of one transfer: the
// per-session state machine, worker pool, bandwidth limiting, staging
// directory lifecycle, and download cache that sit underneath the wire
// protocol and the control plane.
package executor

import (
	"fmt"
	"sync"
)

// SessionState is one state in a transfer session's lifecycle. A session
// either reads a request (HeadRead, then BodyRead) or writes one
// (HeadWrite, then BodyWrite); both paths converge on Done or Error.
type SessionState int

const (
	StateHeadRead SessionState = iota
	StateBodyRead
	StateHeadWrite
	StateBodyWrite
	StateDone
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateHeadRead:
		return "head_read"
	case StateBodyRead:
		return "body_read"
	case StateHeadWrite:
		return "head_write"
	case StateBodyWrite:
		return "body_write"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// validTransitions enumerates the legal next-states for every state; a
// transition not listed here is rejected by Session.Transition.
var validTransitions = map[SessionState][]SessionState{
	StateHeadRead:  {StateBodyRead, StateError},
	StateBodyRead:  {StateDone, StateError},
	StateHeadWrite: {StateBodyWrite, StateError},
	StateBodyWrite: {StateDone, StateError},
	StateDone:      {},
	StateError:     {},
}

// Event is delivered on a Session's Events channel as the session
// progresses or terminates. There is deliberately no back-pointer from
// Session to whatever owns it (a Task, in the control plane); the owner
// learns everything it needs from the channel.
type Event struct {
	State         SessionState
	BytesTransferred int64
	Err           error
}

// Session is one in-flight transfer: a bounded state machine whose
// transitions are reported on Events. The zero value is not usable; call
// NewSession.
type Session struct {
	TreeUUID       string
	RemoteTreeUUID string

	mu    sync.Mutex
	state SessionState

	Events chan Event
}

// NewSession creates a session in its initial state, starting a read
// session if isRead is true (HeadRead) or a write session otherwise
// (HeadWrite). The Events channel is unbuffered per spec.md's message-
// passing design: the owning Task must read it promptly.
func NewSession(treeUUID, remoteTreeUUID string, isRead bool) *Session {
	initial := StateHeadWrite
	if isRead {
		initial = StateHeadRead
	}
	return &Session{
		TreeUUID:       treeUUID,
		RemoteTreeUUID: remoteTreeUUID,
		state:          initial,
		Events:         make(chan Event),
	}
}

// State returns the session's current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next, rejecting any transition not in
// validTransitions. On success it emits an Event on Events; callers
// typically run this from the goroutine driving the session's I/O, with
// the owning Task receiving on Events concurrently.
func (s *Session) Transition(next SessionState, bytesTransferred int64, err error) error {
	s.mu.Lock()
	cur := s.state
	allowed := false
	for _, c := range validTransitions[cur] {
		if c == next {
			allowed = true
			break
		}
	}
	if !allowed {
		s.mu.Unlock()
		return fmt.Errorf("executor: invalid session transition %s -> %s", cur, next)
	}
	s.state = next
	s.mu.Unlock()

	s.Events <- Event{State: next, BytesTransferred: bytesTransferred, Err: err}
	return nil
}

// Fail transitions the session directly to StateError from whatever
// state it is in, bypassing the validTransitions table — a terminal
// error is always a legal move regardless of where the session stalled.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	s.state = StateError
	s.mu.Unlock()
	s.Events <- Event{State: StateError, Err: err}
}

// Close releases the Events channel. Callers must have stopped writing
// to the session (reached Done or Error) before calling Close.
func (s *Session) Close() {
	close(s.Events)
}
