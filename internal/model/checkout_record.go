package model

import "time"

// CheckoutRecord is one audit row describing how a checkout attempt ended.
// Rows are append-only; they exist for support and debugging, not for saga
// state, which lives in memory with the coordinator.
type CheckoutRecord struct {
	ID            string    // uuid assigned by the coordinator
	UserID        string    // shopper who ran the checkout
	EventID       string    // event the seats belong to
	SeatIDs       []string  // normalized seat ids
	OrderID       int64     // zero when the saga aborted before order creation
	CorrelationID string    // empty when no payment session was requested
	Outcome       string    // terminal saga state
	FailureCode   string    // empty on success
	Message       string    // most specific error message, empty on success
	CreatedAt     time.Time // UTC
}
