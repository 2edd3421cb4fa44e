// Package seatmap implements the seat-selection rules and the local
// seat-state view for one event.  The validator is pure: it never touches
// the network and never mutates the view it is given.
package seatmap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ticketchief/checkout-gateway/internal/model"
)

// MaxSeatsPerReservation caps how many seats a single hold may cover.
const MaxSeatsPerReservation = 8

// RejectReason classifies why a candidate selection was refused.
type RejectReason string

const (
	TooManySeats    RejectReason = "TOO_MANY_SEATS"
	SeatUnavailable RejectReason = "SEAT_UNAVAILABLE"
	MixedRows       RejectReason = "MIXED_ROWS"
	NonContiguous   RejectReason = "NON_CONTIGUOUS"
	MalformedSeatID RejectReason = "MALFORMED_SEAT_ID"
)

// Rejection is the error returned by Validate when a selection breaks one of
// the reservation rules.  Detail carries a human-readable message suitable
// for surfacing to the shopper as-is.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string { return r.Detail }

func reject(reason RejectReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Normalize trims and uppercases seat ids.  The result is what the validator
// checks and what must be sent to the event service, so both sides agree on
// the seat identity.
func Normalize(seatIDs []string) []string {
	out := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		out = append(out, strings.ToUpper(strings.TrimSpace(id)))
	}
	return out
}

// parseSeatID splits a normalized seat id into its row letter and column
// number.  Ids must be one ASCII letter followed by decimal digits.
func parseSeatID(id string) (row byte, col int, err error) {
	if len(id) < 2 {
		return 0, 0, fmt.Errorf("seat id %q too short", id)
	}
	row = id[0]
	if row < 'A' || row > 'Z' {
		return 0, 0, fmt.Errorf("seat id %q has no row letter", id)
	}
	col, convErr := strconv.Atoi(id[1:])
	if convErr != nil || col <= 0 {
		return 0, 0, fmt.Errorf("seat id %q has no column number", id)
	}
	return row, col, nil
}

// Validate checks a candidate seat selection against the reservation rules:
// at most MaxSeatsPerReservation seats, all available in view, all in a
// single row, with strictly consecutive column numbers.  It returns nil when
// the selection is acceptable and a *Rejection otherwise.  Ids are
// normalized before checking; duplicates count as non-contiguous because the
// column sequence must advance by exactly one.
func Validate(seatIDs []string, view *model.SeatMap) error {
	ids := Normalize(seatIDs)
	if len(ids) > MaxSeatsPerReservation {
		return reject(TooManySeats, "maximum %d seats per reservation", MaxSeatsPerReservation)
	}

	rows := make([]byte, 0, len(ids))
	cols := make([]int, 0, len(ids))
	for _, id := range ids {
		row, col, err := parseSeatID(id)
		if err != nil {
			return reject(MalformedSeatID, "invalid seat id %q", id)
		}
		rows = append(rows, row)
		cols = append(cols, col)
	}

	for _, id := range ids {
		if view.Status(id) != model.SeatAvailable {
			return reject(SeatUnavailable, "seat %s is not available", id)
		}
	}

	for _, row := range rows {
		if row != rows[0] {
			return reject(MixedRows, "seats must be in the same row")
		}
	}

	sort.Ints(cols)
	for i := 1; i < len(cols); i++ {
		if cols[i] != cols[i-1]+1 {
			return reject(NonContiguous, "seats must be contiguous")
		}
	}
	return nil
}

// Selectable answers the UI affordance question: would seatID be a legal
// addition to the current selection?  It evaluates the same rules against
// the hypothetical set with no side effects and no network access.  A seat
// already in the selection is reported against the set that results from
// picking it again, matching the rules a fresh toggle would face.
func Selectable(seatID string, selection []string, view *model.SeatMap) bool {
	candidate := make([]string, 0, len(selection)+1)
	norm := strings.ToUpper(strings.TrimSpace(seatID))
	for _, s := range Normalize(selection) {
		if s != norm {
			candidate = append(candidate, s)
		}
	}
	candidate = append(candidate, norm)
	return Validate(candidate, view) == nil
}
