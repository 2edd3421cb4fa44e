package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ticketchief/checkout-gateway/internal/client"
	"github.com/ticketchief/checkout-gateway/internal/seatmap"
)

// seatView is one seat in the response, enriched with the selectable
// affordance computed against the shopper's current selection.
type seatView struct {
	Status     string `json:"status"`
	PriceCents int64  `json:"priceCents,omitempty"`
	Selectable bool   `json:"selectable"`
}

// Seats handles GET /v1/events/:id/seats.  It loads the event into the
// session's synchronizer, subscribes to the event's update stream, and
// returns the current view with a per-seat "could this be added to the
// selection" flag.  The optional `selection` query parameter (comma-joined
// seat ids) overrides the stored selection for the affordance computation.
func (h *CheckoutHandler) Seats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID := c.Param("id")
	if eventID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	sess := h.Sessions.Get(userID)
	if err := sess.Sync.Load(c.Request().Context(), eventID); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "event service unavailable"})
	}

	// The subscription outlives this request, so it runs on the background
	// context; the session manager closes it on eviction.
	if sess.Sync.EventID() != eventID || sess.Sync.State() != seatmap.StreamStreaming {
		if err := sess.Sync.Subscribe(context.Background(), eventID); err != nil {
			log.Printf("sync: subscribe to event %s failed: %v", eventID, err)
		}
	}

	selection := sess.Selection()
	if raw := c.QueryParam("selection"); raw != "" {
		selection = seatmap.Normalize(strings.Split(raw, ","))
		sess.SetSelection(selection)
	}

	view := sess.Sync.View()
	seats := make(map[string]seatView, len(view.Seats))
	for id, seat := range view.Seats {
		seats[id] = seatView{
			Status:     string(seat.Status),
			PriceCents: seat.PriceCents,
			Selectable: seatmap.Selectable(id, selection, view),
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"eventId":        view.EventID,
		"name":           view.Name,
		"rows":           view.Rows,
		"cols":           view.Cols,
		"basePriceCents": view.BasePriceCents,
		"stream":         string(sess.Sync.State()),
		"seats":          seats,
	})
}

// ValidateSelection handles POST /v1/events/:id/selection.  It runs the
// seat-selection rules against the loaded view and stores the selection on
// the session when it passes.  Rejections never cause a network call.
func (h *CheckoutHandler) ValidateSelection(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID := c.Param("id")
	var body struct {
		Seats []string `json:"seats"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	sess := h.Sessions.Get(userID)
	view := sess.Sync.View()
	if view == nil || view.EventID != eventID {
		return c.JSON(http.StatusConflict, echo.Map{"error": "event not loaded"})
	}

	if err := seatmap.Validate(body.Seats, view); err != nil {
		var rej *seatmap.Rejection
		if errors.As(err, &rej) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"valid":  false,
				"reason": string(rej.Reason),
				"error":  rej.Detail,
			})
		}
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"valid": false, "error": err.Error()})
	}
	sess.SetSelection(body.Seats)
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "seats": seatmap.Normalize(body.Seats)})
}
