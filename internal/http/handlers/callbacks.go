package handlers

import (
	"encoding/json"
	"net/http"

	"loopgate/internal/services/delivery"
	"loopgate/internal/services/reconcile"
	"loopgate/internal/signature"
	"loopgate/internal/store/repositories"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type gatewayCallbackReq struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// GatewayCallback ingests the gateway's checkout confirmation: verify
// the inbound HMAC, run capture-and-verify, and announce the outcome to
// the merchant's webhook endpoint. A spoofed or tampered callback is
// rejected before any state changes.
func GatewayCallback(
	creds reconcile.CredentialResolver,
	svc *reconcile.Service,
	deliverer *delivery.Deliverer,
	payments repositories.PaymentRepository,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID := chi.URLParam(r, "merchantID")

		resolved, err := creds.Resolve(r.Context(), merchantID)
		if err != nil {
			http.Error(w, "unknown merchant", http.StatusNotFound)
			return
		}

		var in gatewayCallbackReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if in.OrderID == "" || in.PaymentID == "" {
			http.Error(w, "order_id and payment_id are required", http.StatusBadRequest)
			return
		}

		if !signature.VerifyInbound(in.OrderID, in.PaymentID, in.Signature, resolved.KeySecret) {
			log.Warn().
				Str("merchant_id", merchantID).
				Str("order_id", in.OrderID).
				Msg("gateway callback signature rejected")
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}

		res := svc.CaptureOrder(r.Context(), merchantID, in.OrderID, 0)
		recordResult(r.Context(), payments, merchantID, res, 0, "")

		if res.Success && resolved.WebhookDestination != "" {
			_, err := deliverer.Enqueue(r.Context(), merchantID, resolved.WebhookDestination, resolved.WebhookSecret, map[string]any{
				"event":                  "payment.captured",
				"gateway_order_id":       res.GatewayOrderID,
				"gateway_transaction_id": res.GatewayTransactionID,
				"status":                 string(res.Status),
			})
			if err != nil {
				log.Error().Err(err).
					Str("merchant_id", merchantID).
					Str("order_id", in.OrderID).
					Msg("enqueue merchant notification failed")
			}
		}

		writeJSON(w, res)
	}
}
