package model

// SeatStatus is the lifecycle state of a single seat as reported by the
// event/seating service.  Legal transitions are available → reserved →
// confirmed, plus reserved → available when a hold is released or expires.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available" // seat can be selected and held
	SeatReserved  SeatStatus = "reserved"  // seat is held pending payment
	SeatConfirmed SeatStatus = "confirmed" // seat is sold
)

// Seat is one entry of a seat map.  The ID is a row letter followed by a
// column number ("A1", "C12").  PriceCents is a per-seat override in minor
// units; zero means no override and the event base price applies.
type Seat struct {
	ID         string     `json:"id"`
	Status     SeatStatus `json:"status"`
	PriceCents int64      `json:"priceCents,omitempty"`
}

// SeatMap is the local view of one event's seating, owned by the seat-state
// synchronizer.  It is replaced wholesale on snapshot events and mutated
// seat-by-seat on incremental ones.
type SeatMap struct {
	EventID        string          `json:"eventId"`
	Name           string          `json:"name,omitempty"`
	Rows           int             `json:"rows"`
	Cols           int             `json:"cols"`
	BasePriceCents int64           `json:"basePriceCents,omitempty"`
	Seats          map[string]Seat `json:"seats"`
}

// Status returns the status of a seat, or the empty string when the seat is
// not part of the map.
func (m *SeatMap) Status(seatID string) SeatStatus {
	if m == nil {
		return ""
	}
	return m.Seats[seatID].Status
}

// Clone returns a deep copy of the map so callers can read it without
// racing the synchronizer.
func (m *SeatMap) Clone() *SeatMap {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Seats = make(map[string]Seat, len(m.Seats))
	for id, s := range m.Seats {
		cp.Seats[id] = s
	}
	return &cp
}
