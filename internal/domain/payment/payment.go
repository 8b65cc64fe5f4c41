package payment

// Status is the canonical, gateway-agnostic payment state vocabulary
// used by the orchestrator.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status can no longer change for the
// same payment identifier. Refunds create a new record rather than
// reopening a captured payment.
func (s Status) IsTerminal() bool {
	return s == StatusCaptured || s == StatusFailed
}

// MapGatewayStatus translates a raw gateway status token into a canonical
// status. The match is exact and case-sensitive; anything unrecognized
// maps to failed so that ambiguity about payment state is never
// interpreted optimistically.
func MapGatewayStatus(gatewayStatus string) Status {
	switch gatewayStatus {
	case "captured":
		return StatusCaptured
	case "authorized":
		return StatusAuthorized
	case "created":
		return StatusPending
	case "failed":
		return StatusFailed
	default:
		return StatusFailed
	}
}

// Result is the canonical outcome of a reconciliation operation.
// Success is true iff the payment reached captured state. A fresh value
// is produced per call and never mutated after return.
type Result struct {
	Success              bool   `json:"success"`
	Status               Status `json:"status"`
	GatewayOrderID       string `json:"gatewayOrderId,omitempty"`
	GatewayTransactionID string `json:"gatewayTransactionId,omitempty"`
	ErrorCode            string `json:"errorCode,omitempty"`
	ErrorMessage         string `json:"errorMessage,omitempty"`
}

// RefundStatus tracks settlement progress of a refund, separate from
// whether the gateway accepted the refund request at all.
type RefundStatus string

const (
	RefundSuccess RefundStatus = "success"
	RefundPending RefundStatus = "pending"
	RefundFailed  RefundStatus = "failed"
)

// RefundResult reports the outcome of a refund request. Success tracks
// request acceptance, not settlement: a refund the gateway accepted but
// has not settled yet is Success=true with Status=pending.
type RefundResult struct {
	Success      bool         `json:"success"`
	RefundID     string       `json:"refundId,omitempty"`
	Status       RefundStatus `json:"status"`
	ErrorCode    string       `json:"errorCode,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}
