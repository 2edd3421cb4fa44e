package handler // handler defines http handlers

import (
	"errors" // errors provides the sentinel used in getUserID

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/ticketchief/checkout-gateway/internal/client"     // client talks to the backend services
	"github.com/ticketchief/checkout-gateway/internal/repository" // repository holds the checkout journal
	"github.com/ticketchief/checkout-gateway/internal/session"    // session tracks per-shopper state
)

// CheckoutHandler bundles what the gateway's routes need: the per-shopper
// session registry, the identity client for login, and the optional journal
// for checkout history.
type CheckoutHandler struct {
	Sessions *session.Manager
	Identity *client.IdentityClient
	Journal  *repository.JournalRepo // nil disables /v1/checkouts
}

// NewCheckoutHandler constructs a CheckoutHandler.  Sessions and Identity
// must be non-nil; Journal may be nil.
func NewCheckoutHandler(sessions *session.Manager, identity *client.IdentityClient, journal *repository.JournalRepo) *CheckoutHandler {
	if sessions == nil || identity == nil {
		panic("nil dependency passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Sessions: sessions, Identity: identity, Journal: journal}
}

// getUserID extracts the authenticated user id placed in the context by the
// JWT middleware.
func getUserID(c echo.Context) (string, error) {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v, nil
	}
	return "", errors.New("invalid user_id in context")
}
