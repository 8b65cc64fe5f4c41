package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

var testCreds = Credentials{KeyID: "key_test", KeySecret: "secret_test"}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key_test" || pass != "secret_test" {
			t.Error("missing or wrong basic auth")
		}
		var req CreateOrderReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Amount != 49900 || req.Currency != "INR" {
			t.Errorf("unexpected payload %+v", req)
		}
		json.NewEncoder(w).Encode(Order{ID: "order_1", Amount: req.Amount, Currency: req.Currency, Status: "created"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5)
	order, err := c.CreateOrder(context.Background(), testCreds, CreateOrderReq{Amount: 49900, Currency: "INR", Receipt: "rcpt_1"})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID != "order_1" || order.Status != "created" {
		t.Errorf("order = %+v", order)
	}
}

func TestFetchPaymentsForOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders/order_1/payments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"count": 1,
			"items": []PaymentAttempt{{ID: "pay_1", OrderID: "order_1", Status: "authorized", Amount: 49900, Currency: "INR"}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5)
	attempts, err := c.FetchPaymentsForOrder(context.Background(), testCreds, "order_1")
	if err != nil {
		t.Fatalf("FetchPaymentsForOrder: %v", err)
	}
	if len(attempts) != 1 || attempts[0].ID != "pay_1" || attempts[0].Status != "authorized" {
		t.Errorf("attempts = %+v", attempts)
	}
}

func TestCapturePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/pay_1/capture" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(PaymentAttempt{ID: "pay_1", Status: "captured", Amount: 49900, Currency: "INR"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5)
	p, err := c.CapturePayment(context.Background(), testCreds, "pay_1", 49900, "INR")
	if err != nil {
		t.Fatalf("CapturePayment: %v", err)
	}
	if p.Status != "captured" {
		t.Errorf("status = %s", p.Status)
	}
}

func TestCreateRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/pay_1/refund" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Refund{ID: "rfnd_1", Status: "processed"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5)
	rf, err := c.CreateRefund(context.Background(), testCreds, "pay_1", 49900)
	if err != nil {
		t.Fatalf("CreateRefund: %v", err)
	}
	if rf.ID != "rfnd_1" || rf.Status != "processed" {
		t.Errorf("refund = %+v", rf)
	}
}

func TestAPIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "BAD_REQUEST_ERROR", "description": "amount exceeds maximum"},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5)
	_, err := c.CreateOrder(context.Background(), testCreds, CreateOrderReq{Amount: 1 << 40, Currency: "INR"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != "BAD_REQUEST_ERROR" || apiErr.Description != "amount exceeds maximum" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5)
	_, err := c.FetchPaymentsForOrder(context.Background(), testCreds, "order_1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != "bad_gateway_response" {
		t.Errorf("code = %s", apiErr.Code)
	}
}
