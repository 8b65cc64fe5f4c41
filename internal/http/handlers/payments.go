package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"loopgate/internal/domain/payment"
	"loopgate/internal/services/reconcile"
	"loopgate/internal/store/repositories"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type createOrderReq struct {
	OrderID    string            `json:"orderId"`
	MerchantID string            `json:"merchantId"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// CreateOrder registers an order with the gateway and records the
// canonical outcome.
func CreateOrder(svc *reconcile.Service, payments repositories.PaymentRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in createOrderReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(in.MerchantID) == "" || in.Amount <= 0 || strings.TrimSpace(in.Currency) == "" {
			http.Error(w, "merchantId, amount and currency are required", http.StatusBadRequest)
			return
		}

		res := svc.CreateOrder(r.Context(), reconcile.CreateOrderParams{
			OrderID:    in.OrderID,
			MerchantID: in.MerchantID,
			Amount:     in.Amount,
			Currency:   in.Currency,
			Metadata:   in.Metadata,
		})
		recordResult(r.Context(), payments, in.MerchantID, res, in.Amount, in.Currency)
		writeJSON(w, res)
	}
}

type captureOrderReq struct {
	MerchantID string `json:"merchantId"`
	Amount     int64  `json:"amount"`
}

// CaptureOrder finalizes the payment attempt on an order.
func CaptureOrder(svc *reconcile.Service, payments repositories.PaymentRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		var in captureOrderReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(in.MerchantID) == "" {
			http.Error(w, "merchantId is required", http.StatusBadRequest)
			return
		}

		res := svc.CaptureOrder(r.Context(), in.MerchantID, orderID, in.Amount)
		recordResult(r.Context(), payments, in.MerchantID, res, in.Amount, "")
		writeJSON(w, res)
	}
}

type refundReq struct {
	MerchantID           string `json:"merchantId"`
	GatewayTransactionID string `json:"gatewayTransactionId"`
	Amount               int64  `json:"amount"`
}

// Refund requests a refund of a captured payment.
func Refund(svc *reconcile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in refundReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(in.MerchantID) == "" || strings.TrimSpace(in.GatewayTransactionID) == "" {
			http.Error(w, "merchantId and gatewayTransactionId are required", http.StatusBadRequest)
			return
		}

		writeJSON(w, svc.RefundPayment(r.Context(), in.MerchantID, in.GatewayTransactionID, in.Amount))
	}
}

// QueryStatus reads the current canonical status of an order.
func QueryStatus(svc *reconcile.Service, payments repositories.PaymentRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		merchantID := r.URL.Query().Get("merchantId")
		if merchantID == "" {
			http.Error(w, "merchantId query parameter is required", http.StatusBadRequest)
			return
		}

		res := svc.QueryStatus(r.Context(), merchantID, orderID)
		recordResult(r.Context(), payments, merchantID, res, 0, "")
		writeJSON(w, res)
	}
}

// ListPayments lists recorded canonical payment results for a merchant.
func ListPayments(payments repositories.PaymentRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID := r.URL.Query().Get("merchantId")
		if merchantID == "" {
			http.Error(w, "merchantId query parameter is required", http.StatusBadRequest)
			return
		}

		recs, err := payments.ListByMerchant(r.Context(), merchantID, 50, 0)
		if err != nil {
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []payment.Record{}
		}
		writeJSON(w, recs)
	}
}

// recordResult best-effort persists a canonical result; reconciliation
// answers must not fail because observability storage hiccuped.
func recordResult(ctx context.Context, payments repositories.PaymentRepository, merchantID string, res payment.Result, amount int64, currency string) {
	if payments == nil {
		return
	}
	if err := payments.UpsertResult(ctx, merchantID, res, amount, currency); err != nil {
		log.Error().Err(err).
			Str("merchant_id", merchantID).
			Str("gateway_order_id", res.GatewayOrderID).
			Msg("record payment result failed")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
