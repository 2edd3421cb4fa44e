// Package client holds the JSON-over-HTTP clients for the backend services
// the gateway coordinates: identity, event/seating, order and payment.  Each
// client is a thin wrapper that decodes the service's payloads into model
// types and surfaces server-reported error details verbatim.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrSessionNotReady is returned by PaymentsClient.Session when the session
// has not materialized yet (HTTP 404).  Pollers treat it as "not yet", not
// as a failure.
var ErrSessionNotReady = errors.New("payment session not ready")

// APIError is a non-2xx response from a backend service.  Detail carries the
// server's own message when the body had one, so conflicts such as a losing
// seat race surface to the shopper exactly as the backend phrased them.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// newHTTPClient builds the client used for request/response calls.  The
// timeout bounds a whole exchange; the SSE stream uses a separate client
// without one.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// decodeAPIError extracts the error detail from a response body.  The Python
// services use {"detail": ...}, the Java ones {"error": ...} or
// {"message": ...}; a non-JSON body is used raw.
func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(body) == 0 {
		return apiErr
	}
	var payload struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Detail != "":
			apiErr.Detail = payload.Detail
		case payload.Error != "":
			apiErr.Detail = payload.Error
		case payload.Message != "":
			apiErr.Detail = payload.Message
		}
	}
	if apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(string(body))
	}
	return apiErr
}

// doJSON issues a request with an optional JSON body and decodes a 2xx JSON
// response into out.  Non-2xx responses become *APIError.
func doJSON(ctx context.Context, hc *http.Client, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
