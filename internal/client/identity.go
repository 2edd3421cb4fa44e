package client

import (
	"context"
	"net/http"
	"time"
)

// Credentials is the identity service's login response: a signed session
// token and the shopper's user id.
type Credentials struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// IdentityClient exchanges credentials for a session with the identity
// service.  Registration and email verification stay with the service's own
// pages; the gateway only proxies login.
type IdentityClient struct {
	baseURL string
	hc      *http.Client
}

func NewIdentityClient(baseURL string, timeout time.Duration) *IdentityClient {
	return &IdentityClient{baseURL: baseURL, hc: newHTTPClient(timeout)}
}

// Login posts the shopper's credentials and returns the session.  A 403
// (unverified email) or 401 surfaces as *APIError with the service's detail.
func (c *IdentityClient) Login(ctx context.Context, email, password string) (Credentials, error) {
	req := map[string]string{"email": email, "password": password}
	var creds Credentials
	if err := doJSON(ctx, c.hc, "POST", c.baseURL+"/api/login", req, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}
