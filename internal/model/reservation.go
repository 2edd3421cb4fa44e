package model

import "time"

// Reservation is a provisional, time-bounded claim on a set of seats.  It is
// created by the event/seating service and referenced, never mutated, by the
// checkout coordinator.  The backend releases the hold when ExpiresAt passes
// without a completed payment.
type Reservation struct {
	ID        string    `json:"reservationId"`
	EventID   string    `json:"eventId"`
	SeatIDs   []string  `json:"seats"`
	HolderID  string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}
