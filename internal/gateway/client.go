package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HTTPClient is the HTTP implementation of Client. Requests authenticate
// with the merchant's key pair via basic auth and speak JSON both ways.
type HTTPClient struct {
	http    *http.Client
	baseURL string
}

// NewHTTPClient creates a gateway client against baseURL. A zero timeout
// defaults to 30 seconds.
func NewHTTPClient(baseURL string, timeoutSec int) *HTTPClient {
	if timeoutSec == 0 {
		timeoutSec = 30
	}
	return &HTTPClient{
		http:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		baseURL: baseURL,
	}
}

func (c *HTTPClient) CreateOrder(ctx context.Context, creds Credentials, req CreateOrderReq) (*Order, error) {
	var out Order
	if err := c.do(ctx, creds, "POST", "/v1/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) FetchPaymentsForOrder(ctx context.Context, creds Credentials, orderID string) ([]PaymentAttempt, error) {
	var out struct {
		Count int              `json:"count"`
		Items []PaymentAttempt `json:"items"`
	}
	path := fmt.Sprintf("/v1/orders/%s/payments", orderID)
	if err := c.do(ctx, creds, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *HTTPClient) CapturePayment(ctx context.Context, creds Credentials, paymentID string, amount int64, currency string) (*PaymentAttempt, error) {
	body := map[string]any{"amount": amount, "currency": currency}
	var out PaymentAttempt
	path := fmt.Sprintf("/v1/payments/%s/capture", paymentID)
	if err := c.do(ctx, creds, "POST", path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateRefund(ctx context.Context, creds Credentials, paymentID string, amount int64) (*Refund, error) {
	body := map[string]any{"amount": amount}
	var out Refund
	path := fmt.Sprintf("/v1/payments/%s/refund", paymentID)
	if err := c.do(ctx, creds, "POST", path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do issues one JSON request and decodes either the success payload into
// out or the gateway's error envelope into an *APIError.
func (c *HTTPClient) do(ctx context.Context, creds Credentials, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(creds.KeyID, creds.KeySecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("path", path).Msg("gateway request")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}

	log.Debug().Str("path", path).Int("status_code", res.StatusCode).Msg("gateway response")

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var envelope struct {
			Error APIError `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
			return &APIError{
				Code:        "bad_gateway_response",
				Description: fmt.Sprintf("unexpected status %d", res.StatusCode),
			}
		}
		return &envelope.Error
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return nil
}
