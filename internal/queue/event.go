// Package queue defines message payloads exchanged over the message broker.
package queue

// CheckoutCompletedEvent is published when a checkout saga succeeds.  It
// carries enough for downstream consumers — the notification service sends
// the confirmation email from it — without querying the backend services.
type CheckoutCompletedEvent struct {
	OrderID          int64    `json:"order_id"`
	UserID           string   `json:"user_id"`
	EventID          string   `json:"event_id"`
	CorrelationID    string   `json:"correlation_id"`
	SeatLabels       []string `json:"seats"`
	TotalAmountCents int64    `json:"total_amount_cents"`
	CompletedAt      string   `json:"completed_at"`
}
