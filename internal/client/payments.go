package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ticketchief/checkout-gateway/internal/model"
)

// PaymentsClient talks to the payment service.
type PaymentsClient struct {
	baseURL string
	hc      *http.Client
}

func NewPaymentsClient(baseURL string, timeout time.Duration) *PaymentsClient {
	return &PaymentsClient{baseURL: baseURL, hc: newHTTPClient(timeout)}
}

// Session looks up a payment session by correlation id.  A 404 means the
// session has not materialized yet and is reported as ErrSessionNotReady so
// pollers can keep waiting; every other failure is returned as-is.
func (c *PaymentsClient) Session(ctx context.Context, correlationID string) (*model.PaymentSession, error) {
	url := fmt.Sprintf("%s/api/payment-sessions/%s", c.baseURL, correlationID)
	var session model.PaymentSession
	if err := doJSON(ctx, c.hc, "GET", url, nil, &session); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrSessionNotReady
		}
		return nil, err
	}
	return &session, nil
}

// SubmitCard submits one card attempt against a ready session.  The result
// carries the attempt status, how many attempts remain, and whether the
// session reached a terminal state.
func (c *PaymentsClient) SubmitCard(ctx context.Context, correlationID string, card model.CardDetails) (*model.CardAttemptResult, error) {
	url := fmt.Sprintf("%s/api/payment-sessions/%s/attempt", c.baseURL, correlationID)
	var result model.CardAttemptResult
	if err := doJSON(ctx, c.hc, "POST", url, card, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
