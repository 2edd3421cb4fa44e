package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// History handles GET /v1/checkouts: the shopper's recent checkout journal
// rows, newest first.  Returns 404 when the gateway runs without a journal
// database.
func (h *CheckoutHandler) History(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if h.Journal == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "checkout history is not enabled"})
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	records, err := h.Journal.ListByUser(c.Request().Context(), userID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	out := make([]echo.Map, 0, len(records))
	for _, rec := range records {
		out = append(out, echo.Map{
			"id":            rec.ID,
			"eventId":       rec.EventID,
			"seats":         rec.SeatIDs,
			"orderId":       rec.OrderID,
			"correlationId": rec.CorrelationID,
			"outcome":       rec.Outcome,
			"failureCode":   rec.FailureCode,
			"message":       rec.Message,
			"createdAt":     rec.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"checkouts": out})
}
