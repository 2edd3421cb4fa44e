package model

// OrderItem is one line of an order: a single seat at a unit price resolved
// once, at order-build time, and frozen thereafter.  Every item carries the
// reservation id that authorized it so the order service can validate the
// hold before accepting the order.
type OrderItem struct {
	EventID        string `json:"eventId"`
	SeatID         string `json:"seatId"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	ReservationID  string `json:"reservationId"`
}

// Order mirrors the order service's resource.  Ids are numeric on the wire.
type Order struct {
	ID     int64       `json:"id"`
	UserID string      `json:"userId"`
	Status string      `json:"status"`
	Items  []OrderItem `json:"items"`
}

// TotalCents is the sum of the frozen line-item prices.  There is no
// re-pricing after the hold is taken.
func (o Order) TotalCents() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.UnitPriceCents
	}
	return total
}
