// Package session tracks one synchronizer and one checkout coordinator per
// authenticated shopper.  Both are stateful — the synchronizer owns a live
// stream subscription, the coordinator may have a saga parked — so they must
// survive across requests and be torn down together.
package session

import (
	"sync"
	"time"

	"github.com/ticketchief/checkout-gateway/internal/checkout"
	"github.com/ticketchief/checkout-gateway/internal/seatmap"
)

// Session bundles the per-shopper stateful pieces.
type Session struct {
	UserID string
	Sync   *seatmap.Synchronizer
	Coord  *checkout.Coordinator

	mu        sync.Mutex
	selection []string
	lastSeen  time.Time
}

// SetSelection replaces the shopper's current seat selection.
func (s *Session) SetSelection(seatIDs []string) {
	s.mu.Lock()
	s.selection = seatmap.Normalize(seatIDs)
	s.mu.Unlock()
}

// Selection returns a copy of the current seat selection.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selection...)
}

// Factory builds the stateful pieces for a new shopper session.
type Factory func(userID string) (*seatmap.Synchronizer, *checkout.Coordinator)

// Manager hands out sessions keyed by user id, creating them on first use
// and evicting them after an idle TTL.  Eviction closes the synchronizer so
// no stream subscription outlives its shopper.
type Manager struct {
	factory Factory
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a Manager with the given session factory and idle TTL.
func NewManager(factory Factory, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Manager{
		factory:  factory,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for userID, creating it when absent.  Each call
// refreshes the session's idle clock and sweeps expired sessions.
func (m *Manager) Get(userID string) *Session {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(now)

	s, ok := m.sessions[userID]
	if !ok {
		syncer, coord := m.factory(userID)
		s = &Session{UserID: userID, Sync: syncer, Coord: coord}
		m.sessions[userID] = s
	}
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
	return s
}

// sweepLocked evicts sessions idle past the TTL.  A session with a saga in
// flight is never evicted mid-run: Status reports a non-idle parked state
// only between requests, and parked sagas are resumable, so eviction drops
// them deliberately along with their stream.
func (m *Manager) sweepLocked(now time.Time) {
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastSeen)
		s.mu.Unlock()
		if idle > m.idleTTL {
			s.Sync.Close()
			delete(m.sessions, id)
		}
	}
}

// Close tears down every session; used on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Sync.Close()
		delete(m.sessions, id)
	}
}
