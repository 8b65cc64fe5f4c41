package repositories

import (
	"context"
	"time"

	"loopgate/internal/domain/credential"
	"loopgate/internal/domain/payment"
	"loopgate/internal/domain/webhook"
)

// WebhookEventRepository defines durable access to outbound webhook events.
type WebhookEventRepository interface {
	Save(ctx context.Context, evt *webhook.Event) error
	FindByID(ctx context.Context, id string) (*webhook.Event, error)
	// FindDue returns pending events whose next attempt is due at or
	// before now, oldest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*webhook.Event, error)
	// Update persists the delivery bookkeeping fields after an attempt.
	Update(ctx context.Context, evt *webhook.Event) error
}

// CredentialRepository defines access to merchant gateway credentials.
type CredentialRepository interface {
	Save(ctx context.Context, cred *credential.MerchantCredential) error
	FindByMerchantID(ctx context.Context, merchantID string) (*credential.MerchantCredential, error)
	Deactivate(ctx context.Context, merchantID string) error
}

// PaymentRepository defines access to canonical payment records keyed by
// gateway order id.
type PaymentRepository interface {
	UpsertResult(ctx context.Context, merchantID string, res payment.Result, amount int64, currency string) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*payment.Record, error)
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]payment.Record, error)
}
