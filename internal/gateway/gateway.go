package gateway

import (
	"context"
	"fmt"
)

// Credentials is a merchant's resolved gateway API key pair.
type Credentials struct {
	KeyID     string
	KeySecret string
}

// Order is a gateway-side record representing an amount to be collected,
// created before customer checkout.
type Order struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// PaymentAttempt is one customer payment attempt against an order.
type PaymentAttempt struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Refund is the gateway's record of a refund request.
type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrderReq carries the fields of an order creation call.
type CreateOrderReq struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// APIError is a structured error returned by the gateway API.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: %s: %s", e.Code, e.Description)
}

// Client is the thin call wrapper around the gateway's REST API. All
// calls may fail with an *APIError carrying the gateway's machine code
// and human description.
type Client interface {
	CreateOrder(ctx context.Context, creds Credentials, req CreateOrderReq) (*Order, error)
	FetchPaymentsForOrder(ctx context.Context, creds Credentials, orderID string) ([]PaymentAttempt, error)
	CapturePayment(ctx context.Context, creds Credentials, paymentID string, amount int64, currency string) (*PaymentAttempt, error)
	CreateRefund(ctx context.Context, creds Credentials, paymentID string, amount int64) (*Refund, error)
}
