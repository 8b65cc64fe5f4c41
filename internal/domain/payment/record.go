package payment

import "time"

// Record is the persisted canonical view of a payment, keyed by the
// gateway order id. Observability only; the gateway stays the source of
// truth for settlement.
type Record struct {
	ID                   int64      `json:"id"`
	MerchantID           string     `json:"merchantId"`
	GatewayOrderID       string     `json:"gatewayOrderId"`
	GatewayTransactionID string     `json:"gatewayTransactionId,omitempty"`
	Status               Status     `json:"status"`
	Amount               int64      `json:"amount"`
	Currency             string     `json:"currency"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            *time.Time `json:"updatedAt,omitempty"`
}
