/*
Package handler provides the HTTP surface of the matching server.

This file tracks live sessions so shutdown can close their connections and
wait, bounded, for each one to finish cleanup. http.Server.Shutdown does not
cover hijacked WebSocket connections.
*/
package handler

import (
	"context"
	"sync"

	"mediamatch/internal/app/match"
	"mediamatch/internal/pkg/logx"
)

// SessionTracker is the set of sessions currently running.
type SessionTracker struct {
	mu       sync.Mutex
	sessions map[*match.Session]struct{}
}

// NewSessionTracker returns an empty tracker.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{sessions: make(map[*match.Session]struct{})}
}

func (t *SessionTracker) add(s *match.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[s] = struct{}{}
}

func (t *SessionTracker) remove(s *match.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.sessions, s)
}

// Count returns the number of live sessions.
func (t *SessionTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.sessions)
}

// Shutdown closes every live session and waits for each to finish its
// cleanup, giving up when ctx expires.
func (t *SessionTracker) Shutdown(ctx context.Context) {
	t.mu.Lock()
	open := make([]*match.Session, 0, len(t.sessions))
	for s := range t.sessions {
		open = append(open, s)
	}
	t.mu.Unlock()

	if len(open) == 0 {
		return
	}
	logx.Info("Closing live sessions", "count", len(open))

	for _, s := range open {
		s.Close()
	}

	for _, s := range open {
		select {
		case <-s.Finished():
		case <-ctx.Done():
			logx.Warn("Shutdown deadline reached with sessions still closing")
			return
		}
	}
}
