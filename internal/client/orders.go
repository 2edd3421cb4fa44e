package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ticketchief/checkout-gateway/internal/model"
)

// OrdersClient talks to the order service.
type OrdersClient struct {
	baseURL string
	hc      *http.Client
}

func NewOrdersClient(baseURL string, timeout time.Duration) *OrdersClient {
	return &OrdersClient{baseURL: baseURL, hc: newHTTPClient(timeout)}
}

// Create places a new in-cart order with one line item per seat and returns
// the order id assigned by the service.
func (c *OrdersClient) Create(ctx context.Context, userID string, items []model.OrderItem) (int64, error) {
	req := struct {
		UserID string            `json:"userId"`
		Status string            `json:"status"`
		Items  []model.OrderItem `json:"items"`
	}{UserID: userID, Status: "IN_CART", Items: items}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := doJSON(ctx, c.hc, "POST", c.baseURL+"/api/orders", req, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Finalize asks the order service to start payment for the order.  The
// returned correlation id links the order to the payment session that
// materializes asynchronously on the payment side.
func (c *OrdersClient) Finalize(ctx context.Context, orderID int64) (string, error) {
	url := fmt.Sprintf("%s/api/orders/finalize/%d", c.baseURL, orderID)
	var resp struct {
		CorrelationID string `json:"correlationId"`
	}
	if err := doJSON(ctx, c.hc, "POST", url, nil, &resp); err != nil {
		return "", err
	}
	return resp.CorrelationID, nil
}
