package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ticketchief/checkout-gateway/internal/checkout"
	"github.com/ticketchief/checkout-gateway/internal/model"
)

// cardBody is the card payload shared by checkout and resubmission.
type cardBody struct {
	Number string `json:"cardNumber"`
	CVV    string `json:"cardCvv"`
	Holder string `json:"cardHolder"`
}

func (b cardBody) details() model.CardDetails {
	return model.CardDetails{Number: b.Number, CVV: b.CVV, Holder: b.Holder}
}

// Checkout handles POST /v1/events/:id/checkout.  It runs the full
// reservation→order→payment saga for the posted seats and card.  At most
// one saga runs per session; concurrent attempts get 409.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID := c.Param("id")
	var body struct {
		Seats []string `json:"seats"`
		Card  cardBody `json:"card"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	sess := h.Sessions.Get(userID)
	view := sess.Sync.View()
	if view == nil || view.EventID != eventID {
		return c.JSON(http.StatusConflict, echo.Map{"error": "event not loaded"})
	}
	seats := body.Seats
	if len(seats) == 0 {
		seats = sess.Selection()
	}

	result, err := sess.Coord.Run(c.Request().Context(), seats, body.Card.details())
	if errors.Is(err, checkout.ErrBusy) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "checkout already in progress"})
	}
	if result != nil && result.State == checkout.StateSucceeded {
		sess.SetSelection(nil)
	}
	return writeResult(c, result, err)
}

// ResubmitCard handles POST /v1/checkout/card: one more card attempt against
// the retained order after a retryable failure, or resuming the session
// poll after a timeout.  Nothing upstream of the payment step is repeated.
func (h *CheckoutHandler) ResubmitCard(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Card cardBody `json:"card"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	sess := h.Sessions.Get(userID)
	var result *checkout.Result
	switch sess.Coord.Status() {
	case checkout.StatePaymentSessionPending:
		result, err = sess.Coord.Resume(c.Request().Context(), body.Card.details())
	default:
		result, err = sess.Coord.Resubmit(c.Request().Context(), body.Card.details())
	}
	if errors.Is(err, checkout.ErrBusy) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "checkout already in progress"})
	}
	if errors.Is(err, checkout.ErrNotRetryable) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "no retryable checkout to resume"})
	}
	if result != nil && result.State == checkout.StateSucceeded {
		sess.SetSelection(nil)
	}
	return writeResult(c, result, err)
}

// writeResult maps a saga outcome to an HTTP response.  The body always
// carries the result; failures add the taxonomy code and the most specific
// message available.
func writeResult(c echo.Context, result *checkout.Result, err error) error {
	if result == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed"})
	}
	if err == nil {
		return c.JSON(http.StatusOK, result)
	}

	var failure *checkout.Failure
	if !errors.As(err, &failure) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	status := http.StatusBadGateway
	switch failure.Code {
	case checkout.CodeValidation:
		status = http.StatusUnprocessableEntity
	case checkout.CodeReservationRejected:
		status = http.StatusConflict
	case checkout.CodePaymentSessionTimeout:
		status = http.StatusGatewayTimeout
	case checkout.CodePaymentFailedRetryable, checkout.CodePaymentFailedTerminal:
		status = http.StatusPaymentRequired
	}
	return c.JSON(status, echo.Map{
		"result": result,
		"code":   string(failure.Code),
		"error":  failure.Message,
	})
}
