package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ticketchief/checkout-gateway/internal/client"
)

// Login handles POST /v1/login.  The gateway never sees password storage:
// it forwards the credentials to the identity service and hands the signed
// session token back to the browser.  A 403 from the service means the email
// address is not verified yet and is surfaced with the service's own detail.
func (h *CheckoutHandler) Login(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Email == "" || body.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	creds, err := h.Identity.Login(c.Request().Context(), body.Email, body.Password)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			status := apiErr.StatusCode
			if status != http.StatusUnauthorized && status != http.StatusForbidden {
				status = http.StatusUnauthorized
			}
			return c.JSON(status, echo.Map{"error": apiErr.Detail})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "identity service unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"token": creds.Token, "userId": creds.UserID})
}
