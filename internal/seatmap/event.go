package seatmap

import (
	"encoding/json"
	"fmt"

	"github.com/ticketchief/checkout-gateway/internal/model"
)

// Event types pushed by the event service's update stream.
const (
	EventSnapshot  = "snapshot"
	EventReserved  = "reserved"
	EventReleased  = "released"
	EventConfirmed = "confirmed"
)

// SeatEvent is one decoded message from the per-event update stream.  A
// snapshot carries the full seat-status mapping; the incremental types carry
// the list of seat ids whose status changed.
type SeatEvent struct {
	Type     string
	Snapshot map[string]model.SeatStatus
	SeatIDs  []string
}

// ParseSeatEvent decodes a stream payload.  The "seats" field is a
// status map for snapshots and an id array otherwise, so decoding is done in
// two stages.  Unknown event types are returned as-is with no seat data;
// the synchronizer ignores them.
func ParseSeatEvent(data []byte) (SeatEvent, error) {
	var raw struct {
		Type  string          `json:"type"`
		Seats json.RawMessage `json:"seats"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return SeatEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if raw.Type == "" {
		return SeatEvent{}, fmt.Errorf("event has no type")
	}
	evt := SeatEvent{Type: raw.Type}
	switch raw.Type {
	case EventSnapshot:
		if err := json.Unmarshal(raw.Seats, &evt.Snapshot); err != nil {
			return SeatEvent{}, fmt.Errorf("decode snapshot seats: %w", err)
		}
	case EventReserved, EventReleased, EventConfirmed:
		if err := json.Unmarshal(raw.Seats, &evt.SeatIDs); err != nil {
			return SeatEvent{}, fmt.Errorf("decode %s seats: %w", raw.Type, err)
		}
	}
	return evt, nil
}
