package postgres

import (
	"context"

	"loopgate/internal/domain/payment"

	"github.com/jackc/pgx/v5/pgxpool"
)

// paymentRepository implements repositories.PaymentRepository.
type paymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository creates a canonical payment record repository.
func NewPaymentRepository(db *pgxpool.Pool) *paymentRepository {
	return &paymentRepository{db: db}
}

// UpsertResult records the canonical outcome of a reconciliation call,
// keyed by gateway order id. A terminal status is never downgraded: the
// gateway may report stale reads after a capture has been observed.
func (r *paymentRepository) UpsertResult(ctx context.Context, merchantID string, res payment.Result, amount int64, currency string) error {
	if res.GatewayOrderID == "" {
		return nil // nothing addressable to record
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO payment_records
			(merchant_id, gateway_order_id, gateway_transaction_id, status, amount, currency)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (gateway_order_id) DO UPDATE
		  SET gateway_transaction_id = COALESCE(NULLIF(EXCLUDED.gateway_transaction_id,''), payment_records.gateway_transaction_id),
		      status = CASE WHEN payment_records.status IN ('captured','failed')
		                    THEN payment_records.status
		                    ELSE EXCLUDED.status END,
		      updated_at = now()`,
		merchantID, res.GatewayOrderID, res.GatewayTransactionID, string(res.Status), amount, currency,
	)
	return err
}

func (r *paymentRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*payment.Record, error) {
	var rec payment.Record
	var status string
	err := r.db.QueryRow(ctx, `
		SELECT id, merchant_id, gateway_order_id, COALESCE(gateway_transaction_id,''),
		       status, amount, currency, created_at, updated_at
		  FROM payment_records WHERE gateway_order_id=$1`, gatewayOrderID,
	).Scan(&rec.ID, &rec.MerchantID, &rec.GatewayOrderID, &rec.GatewayTransactionID,
		&status, &rec.Amount, &rec.Currency, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = payment.Status(status)
	return &rec, nil
}

func (r *paymentRepository) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]payment.Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, merchant_id, gateway_order_id, COALESCE(gateway_transaction_id,''),
		       status, amount, currency, created_at, updated_at
		  FROM payment_records
		 WHERE merchant_id=$1
		 ORDER BY id DESC
		 LIMIT $2 OFFSET $3`, merchantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payment.Record
	for rows.Next() {
		var rec payment.Record
		var status string
		if err := rows.Scan(&rec.ID, &rec.MerchantID, &rec.GatewayOrderID, &rec.GatewayTransactionID,
			&status, &rec.Amount, &rec.Currency, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Status = payment.Status(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
