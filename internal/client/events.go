package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ticketchief/checkout-gateway/internal/model"
)

// EventsClient talks to the event/seating service: seat maps, reservations
// and the per-event update stream.  It satisfies seatmap.Source.
type EventsClient struct {
	baseURL string
	hc      *http.Client
	// streamHC has no overall timeout; the update stream is long-lived and
	// is bounded by the request context instead.
	streamHC *http.Client
}

func NewEventsClient(baseURL string, timeout time.Duration) *EventsClient {
	return &EventsClient{
		baseURL:  baseURL,
		hc:       newHTTPClient(timeout),
		streamHC: &http.Client{},
	}
}

// eventView is the service's event payload.  Seats come as id → status;
// prices arrive separately as a base price plus optional per-seat values.
type eventView struct {
	ID             string                      `json:"id"`
	Name           string                      `json:"name"`
	Rows           int                         `json:"rows"`
	Cols           int                         `json:"cols"`
	Seats          map[string]model.SeatStatus `json:"seats"`
	BasePriceCents int64                       `json:"basePriceCents"`
	SeatPrices     map[string]int64            `json:"seatPrices"`
}

// SeatMap fetches the full seat map for an event.
func (c *EventsClient) SeatMap(ctx context.Context, eventID string) (*model.SeatMap, error) {
	var view eventView
	url := fmt.Sprintf("%s/api/events/%s", c.baseURL, eventID)
	if err := doJSON(ctx, c.hc, "GET", url, nil, &view); err != nil {
		return nil, err
	}
	m := &model.SeatMap{
		EventID:        view.ID,
		Name:           view.Name,
		Rows:           view.Rows,
		Cols:           view.Cols,
		BasePriceCents: view.BasePriceCents,
		Seats:          make(map[string]model.Seat, len(view.Seats)),
	}
	for id, status := range view.Seats {
		m.Seats[id] = model.Seat{ID: id, Status: status, PriceCents: view.SeatPrices[id]}
	}
	return m, nil
}

// Reserve asks the service to hold the given seats for the user.  The
// service enforces the reservation rules again and is the single authority
// on races between competing clients; a denial comes back as *APIError with
// the server's own conflict detail.
func (c *EventsClient) Reserve(ctx context.Context, eventID, userID string, seatIDs []string) (*model.Reservation, error) {
	req := struct {
		UserID string   `json:"userId"`
		Seats  []string `json:"seats"`
	}{UserID: userID, Seats: seatIDs}
	var resp struct {
		ReservationID string    `json:"reservationId"`
		Reserved      []string  `json:"reserved"`
		ExpiresAt     time.Time `json:"expiresAt"`
	}
	url := fmt.Sprintf("%s/api/events/%s/reservations", c.baseURL, eventID)
	if err := doJSON(ctx, c.hc, "POST", url, req, &resp); err != nil {
		return nil, err
	}
	return &model.Reservation{
		ID:        resp.ReservationID,
		EventID:   eventID,
		SeatIDs:   resp.Reserved,
		HolderID:  userID,
		ExpiresAt: resp.ExpiresAt,
	}, nil
}

// OpenStream opens the server-sent-event stream of seat updates for an
// event.  The caller owns the returned body and closes it, or cancels ctx,
// to end the subscription.
func (c *EventsClient) OpenStream(ctx context.Context, eventID string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/api/events/%s/updates", c.baseURL, eventID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.streamHC.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp.Body, nil
}
