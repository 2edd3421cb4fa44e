package seatmap

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/ticketchief/checkout-gateway/internal/model"
)

// StreamState is the lifecycle of the push-event subscription.
type StreamState string

const (
	StreamDisconnected StreamState = "disconnected"
	StreamConnecting   StreamState = "connecting"
	StreamStreaming    StreamState = "streaming"
)

// Source provides the two ways seat state reaches the synchronizer: a full
// fetch of the map and a long-lived server-sent-event stream of updates.
// Implemented by client.EventsClient.
type Source interface {
	SeatMap(ctx context.Context, eventID string) (*model.SeatMap, error)
	OpenStream(ctx context.Context, eventID string) (io.ReadCloser, error)
}

// ErrNoEvent is returned by Reload when no event has been loaded yet.
var ErrNoEvent = errors.New("seatmap: no event loaded")

// Synchronizer owns the local seat-status view for exactly one event at a
// time.  The view is replaced wholesale on Load and on snapshot events, and
// mutated seat-by-seat on incremental events.  At most one subscription is
// live at any time; subscribing to a different event tears the previous one
// down first.  Reconnection is deliberately not handled here: when the
// stream ends the state drops to disconnected and callers decide whether to
// resubscribe.
type Synchronizer struct {
	src Source

	// subMu serializes subscription changes end to end, so a teardown and
	// the registration that follows are atomic with respect to concurrent
	// Subscribe, Load and Close calls.  Always acquired before mu; the
	// consume goroutine takes only mu.
	subMu sync.Mutex

	mu      sync.Mutex
	eventID string
	view    *model.SeatMap
	state   StreamState
	cancel  context.CancelFunc
	done    chan struct{}
	dropped int
}

// NewSynchronizer returns a disconnected synchronizer with no view.
func NewSynchronizer(src Source) *Synchronizer {
	return &Synchronizer{src: src, state: StreamDisconnected}
}

// Load fetches the full seat map for eventID and replaces the view.  Loading
// a different event than the current subscription's tears the subscription
// down; the caller resubscribes if it still wants push updates.
func (s *Synchronizer) Load(ctx context.Context, eventID string) error {
	view, err := s.src.SeatMap(ctx, eventID)
	if err != nil {
		return err
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.mu.Lock()
	if s.eventID != "" && s.eventID != eventID {
		s.teardownLocked()
	}
	s.eventID = eventID
	s.view = view
	s.mu.Unlock()
	return nil
}

// Reload re-fetches the current event.  The coordinator calls this after any
// step that may have changed authoritative seat state, so the local view is
// never trusted stale across such a boundary.
func (s *Synchronizer) Reload(ctx context.Context) error {
	s.mu.Lock()
	eventID := s.eventID
	s.mu.Unlock()
	if eventID == "" {
		return ErrNoEvent
	}
	return s.Load(ctx, eventID)
}

// Subscribe opens the push-event stream for eventID and starts consuming it
// in the background.  Any existing subscription, for this event or another,
// is closed first so at most one stream is ever live; concurrent Subscribe
// calls are serialized so the teardown-then-open sequence never interleaves.
func (s *Synchronizer) Subscribe(ctx context.Context, eventID string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.mu.Lock()
	s.teardownLocked()
	s.eventID = eventID
	s.state = StreamConnecting
	s.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	body, err := s.src.OpenStream(streamCtx, eventID)
	if err != nil {
		cancel()
		s.mu.Lock()
		s.state = StreamDisconnected
		s.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.state = StreamStreaming
	s.mu.Unlock()

	go s.consume(body, done)
	return nil
}

// consume reads server-sent events until the stream ends.  One bad message
// never terminates the stream: decode failures are logged, counted and
// dropped.
func (s *Synchronizer) consume(body io.ReadCloser, done chan struct{}) {
	defer close(done)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		evt, err := ParseSeatEvent([]byte(payload))
		if err != nil {
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
			log.Printf("sync: dropping malformed stream event: %v", err)
			continue
		}
		s.ApplyEvent(evt)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("sync: update stream ended: %v", err)
	}
	s.mu.Lock()
	s.state = StreamDisconnected
	s.mu.Unlock()
}

// ApplyEvent folds one stream event into the view.  Incremental events set
// seat status absolutely rather than toggling, so redelivery of the same
// event is a no-op.  Events arriving before any view is loaded, or naming
// seats the view does not know, are ignored.
func (s *Synchronizer) ApplyEvent(evt SeatEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		if evt.Type != EventSnapshot {
			return
		}
		s.view = &model.SeatMap{EventID: s.eventID}
	}

	switch evt.Type {
	case EventSnapshot:
		// Full replacement: seats absent from the snapshot are not carried
		// over.  Per-seat price overrides are static per event, so they are
		// preserved for seats that survive.
		seats := make(map[string]model.Seat, len(evt.Snapshot))
		for id, status := range evt.Snapshot {
			seat := model.Seat{ID: id, Status: status}
			if prev, ok := s.view.Seats[id]; ok {
				seat.PriceCents = prev.PriceCents
			}
			seats[id] = seat
		}
		s.view.Seats = seats
	case EventReserved:
		s.setStatusLocked(evt.SeatIDs, model.SeatReserved)
	case EventReleased:
		s.setStatusLocked(evt.SeatIDs, model.SeatAvailable)
	case EventConfirmed:
		s.setStatusLocked(evt.SeatIDs, model.SeatConfirmed)
	}
}

func (s *Synchronizer) setStatusLocked(seatIDs []string, status model.SeatStatus) {
	for _, id := range seatIDs {
		seat, ok := s.view.Seats[id]
		if !ok {
			continue
		}
		seat.Status = status
		s.view.Seats[id] = seat
	}
}

// View returns a copy of the current seat map, or nil when nothing is
// loaded.
func (s *Synchronizer) View() *model.SeatMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Clone()
}

// EventID returns the id of the currently loaded event, if any.
func (s *Synchronizer) EventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventID
}

// State reports the subscription lifecycle state.
func (s *Synchronizer) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dropped returns how many malformed stream messages were discarded.
func (s *Synchronizer) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close tears down the subscription, if any.  The view stays readable.
func (s *Synchronizer) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
}

// teardownLocked cancels the live stream and waits for the reader to exit.
// Callers hold s.mu; the lock is released while waiting so the reader can
// finish applying its last event.  Callers also hold subMu, which keeps the
// subscription slot claimed while mu is released.
func (s *Synchronizer) teardownLocked() {
	if s.cancel == nil {
		return
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.state = StreamDisconnected
	s.mu.Unlock()
	cancel()
	if done != nil {
		<-done
	}
	s.mu.Lock()
}
