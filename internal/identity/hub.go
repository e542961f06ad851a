package identity

import (
	"context"
	"sync"
)

// AuthEvent is one auth-state change. An empty UserID means the session is
// no longer authenticated.
type AuthEvent struct {
	UserID string
}

// Authenticated reports whether the event carries a signed-in user.
func (e AuthEvent) Authenticated() bool {
	return e.UserID != ""
}

// Hub fans sign-out out to every auth-state stream of a session.
type Hub struct {
	mu      sync.Mutex
	streams map[string]map[*authStream]struct{}
}

type authStream struct {
	mu     sync.Mutex
	ch     chan AuthEvent
	closed bool
}

func (s *authStream) send(ev AuthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
	}
}

func (s *authStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{streams: make(map[string]map[*authStream]struct{})}
}

// Stream emits "authenticated as id.UID" immediately, then
// "unauthenticated" once the session signs out. The channel is closed
// after sign-out or when ctx ends.
func (h *Hub) Stream(ctx context.Context, id Identity) <-chan AuthEvent {
	s := &authStream{ch: make(chan AuthEvent, 2)}
	s.ch <- AuthEvent{UserID: id.UID}

	h.mu.Lock()
	if h.streams[id.SessionID] == nil {
		h.streams[id.SessionID] = make(map[*authStream]struct{})
	}
	h.streams[id.SessionID][s] = struct{}{}
	h.mu.Unlock()

	context.AfterFunc(ctx, func() {
		h.mu.Lock()
		h.removeLocked(id.SessionID, s)
		h.mu.Unlock()
		s.close()
	})
	return s.ch
}

// SignedOut ends every stream of the session.
func (h *Hub) SignedOut(sessionID string) {
	h.mu.Lock()
	streams := h.streams[sessionID]
	delete(h.streams, sessionID)
	h.mu.Unlock()

	for s := range streams {
		s.send(AuthEvent{})
		s.close()
	}
}

func (h *Hub) removeLocked(sessionID string, s *authStream) {
	delete(h.streams[sessionID], s)
	if len(h.streams[sessionID]) == 0 {
		delete(h.streams, sessionID)
	}
}
