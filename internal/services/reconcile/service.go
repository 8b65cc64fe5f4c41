// Package reconcile drives the order create / capture / refund / query
// lifecycle against the gateway and translates every outcome, including
// gateway failures, into canonical result values.
package reconcile

import (
	"context"
	"errors"

	"loopgate/internal/domain/credential"
	"loopgate/internal/domain/payment"
	"loopgate/internal/gateway"

	"github.com/rs/zerolog/log"
)

// Error codes produced by this service itself, as opposed to codes
// passed through verbatim from the gateway.
const (
	ErrCodeNoCredentials = "no_credentials"
	ErrCodeNoPayment     = "no_payment"
	ErrCodeGatewayError  = "gateway_error"
)

// CredentialResolver looks up a merchant's decrypted gateway credentials.
type CredentialResolver interface {
	Resolve(ctx context.Context, merchantID string) (*credential.Resolved, error)
}

// Service reconciles payment state with the gateway. Stateless: every
// operation is an independent single-shot call and the returned result
// is created fresh per call.
type Service struct {
	gw    gateway.Client
	creds CredentialResolver
}

// NewService creates a reconciliation service.
func NewService(gw gateway.Client, creds CredentialResolver) *Service {
	return &Service{gw: gw, creds: creds}
}

// CreateOrderParams carries the fields of a canonical order creation.
type CreateOrderParams struct {
	OrderID    string
	MerchantID string
	Amount     int64
	Currency   string
	Metadata   map[string]string
}

// CreateOrder registers an order with the gateway. Creation never yields
// a captured result: settlement still requires an out-of-band client
// checkout step, so a successful call reports pending with the gateway
// order id the checkout needs.
func (s *Service) CreateOrder(ctx context.Context, p CreateOrderParams) payment.Result {
	resolved, res := s.resolve(ctx, p.MerchantID)
	if res != nil {
		return *res
	}

	order, err := s.gw.CreateOrder(ctx, apiCreds(resolved), gateway.CreateOrderReq{
		Amount:   p.Amount,
		Currency: p.Currency,
		Receipt:  p.OrderID,
		Notes:    p.Metadata,
	})
	if err != nil {
		return failedResult("", err)
	}

	log.Info().
		Str("merchant_id", p.MerchantID).
		Str("gateway_order_id", order.ID).
		Int64("amount", order.Amount).
		Msg("gateway order created")

	return payment.Result{
		Success:        false,
		Status:         payment.MapGatewayStatus(order.Status),
		GatewayOrderID: order.ID,
	}
}

// CaptureOrder finalizes the first payment attempt on an order. Already
// captured attempts return success without issuing a duplicate capture
// call; repeated capture requests are therefore idempotent.
func (s *Service) CaptureOrder(ctx context.Context, merchantID, gatewayOrderID string, amount int64) payment.Result {
	resolved, res := s.resolve(ctx, merchantID)
	if res != nil {
		return *res
	}
	creds := apiCreds(resolved)

	attempts, err := s.gw.FetchPaymentsForOrder(ctx, creds, gatewayOrderID)
	if err != nil {
		return failedResult(gatewayOrderID, err)
	}
	if len(attempts) == 0 {
		return payment.Result{
			Status:         payment.StatusFailed,
			GatewayOrderID: gatewayOrderID,
			ErrorCode:      ErrCodeNoPayment,
			ErrorMessage:   "no payment attempt found for order",
		}
	}

	attempt := attempts[0]
	switch attempt.Status {
	case "captured":
		// Idempotent replay: the money already moved.
		return payment.Result{
			Success:              true,
			Status:               payment.StatusCaptured,
			GatewayOrderID:       gatewayOrderID,
			GatewayTransactionID: attempt.ID,
		}
	case "authorized":
		if amount <= 0 {
			// Callers reacting to a gateway callback may not know the
			// amount; capture whatever was authorized.
			amount = attempt.Amount
		}
		captured, err := s.gw.CapturePayment(ctx, creds, attempt.ID, amount, attempt.Currency)
		if err != nil {
			return failedResult(gatewayOrderID, err)
		}
		log.Info().
			Str("merchant_id", merchantID).
			Str("gateway_order_id", gatewayOrderID).
			Str("gateway_payment_id", captured.ID).
			Msg("payment captured")
		return payment.Result{
			Success:              true,
			Status:               payment.StatusCaptured,
			GatewayOrderID:       gatewayOrderID,
			GatewayTransactionID: captured.ID,
		}
	default:
		return payment.Result{
			Status:               payment.MapGatewayStatus(attempt.Status),
			GatewayOrderID:       gatewayOrderID,
			GatewayTransactionID: attempt.ID,
			ErrorCode:            attempt.ErrorCode,
			ErrorMessage:         attempt.ErrorDescription,
		}
	}
}

// RefundPayment requests a refund of a captured payment. Success tracks
// request acceptance; only a gateway-reported processed refund is
// considered settled.
func (s *Service) RefundPayment(ctx context.Context, merchantID, gatewayTransactionID string, amount int64) payment.RefundResult {
	resolved, res := s.resolve(ctx, merchantID)
	if res != nil {
		return payment.RefundResult{
			Status:       payment.RefundFailed,
			ErrorCode:    res.ErrorCode,
			ErrorMessage: res.ErrorMessage,
		}
	}

	refund, err := s.gw.CreateRefund(ctx, apiCreds(resolved), gatewayTransactionID, amount)
	if err != nil {
		code, msg := errorDetail(err)
		return payment.RefundResult{
			Status:       payment.RefundFailed,
			ErrorCode:    code,
			ErrorMessage: msg,
		}
	}

	status := payment.RefundPending
	if refund.Status == "processed" {
		status = payment.RefundSuccess
	}
	return payment.RefundResult{
		Success:  true,
		RefundID: refund.ID,
		Status:   status,
	}
}

// QueryStatus reads the current canonical status of an order. Absence of
// a payment attempt is not an error: the customer may simply not have
// checked out yet, so the order reports pending with no transaction id.
func (s *Service) QueryStatus(ctx context.Context, merchantID, gatewayOrderID string) payment.Result {
	resolved, res := s.resolve(ctx, merchantID)
	if res != nil {
		return *res
	}

	attempts, err := s.gw.FetchPaymentsForOrder(ctx, apiCreds(resolved), gatewayOrderID)
	if err != nil {
		return failedResult(gatewayOrderID, err)
	}
	if len(attempts) == 0 {
		return payment.Result{
			Status:         payment.StatusPending,
			GatewayOrderID: gatewayOrderID,
		}
	}

	attempt := attempts[0]
	status := payment.MapGatewayStatus(attempt.Status)
	return payment.Result{
		Success:              status == payment.StatusCaptured,
		Status:               status,
		GatewayOrderID:       gatewayOrderID,
		GatewayTransactionID: attempt.ID,
		ErrorCode:            attempt.ErrorCode,
		ErrorMessage:         attempt.ErrorDescription,
	}
}

// resolve fetches merchant credentials, converting a missing or broken
// credential into an immediately-reported configuration failure.
func (s *Service) resolve(ctx context.Context, merchantID string) (*credential.Resolved, *payment.Result) {
	resolved, err := s.creds.Resolve(ctx, merchantID)
	if err != nil || resolved == nil {
		log.Warn().Str("merchant_id", merchantID).Msg("no usable gateway credentials")
		return nil, &payment.Result{
			Status:       payment.StatusFailed,
			ErrorCode:    ErrCodeNoCredentials,
			ErrorMessage: "no gateway credentials configured for merchant " + merchantID,
		}
	}
	return resolved, nil
}

// failedResult normalizes a gateway call error into a failed result,
// preserving the gateway's machine code and message when present.
func failedResult(gatewayOrderID string, err error) payment.Result {
	code, msg := errorDetail(err)
	return payment.Result{
		Status:         payment.StatusFailed,
		GatewayOrderID: gatewayOrderID,
		ErrorCode:      code,
		ErrorMessage:   msg,
	}
}

func errorDetail(err error) (code, msg string) {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Description
	}
	return ErrCodeGatewayError, err.Error()
}

func apiCreds(r *credential.Resolved) gateway.Credentials {
	return gateway.Credentials{KeyID: r.KeyID, KeySecret: r.KeySecret}
}
