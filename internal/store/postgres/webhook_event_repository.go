package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loopgate/internal/domain/credential"
	"loopgate/internal/domain/webhook"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// webhookEventRepository implements repositories.WebhookEventRepository.
// The delivery secret is encrypted at rest with the same AES key as the
// merchant credentials.
type webhookEventRepository struct {
	db     *pgxpool.Pool
	encKey []byte
}

// NewWebhookEventRepository creates a webhook event repository.
func NewWebhookEventRepository(db *pgxpool.Pool, encKey []byte) *webhookEventRepository {
	return &webhookEventRepository{db: db, encKey: encKey}
}

func (r *webhookEventRepository) Save(ctx context.Context, evt *webhook.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	secretEnc := ""
	if evt.Secret != "" {
		secretEnc, err = credential.Encrypt(evt.Secret, r.encKey)
		if err != nil {
			return fmt.Errorf("encrypt delivery secret: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO webhook_events
			(id, merchant_id, payload_json, destination_url, secret_enc,
			 status, attempts, last_attempt_at, next_retry_at, delivered_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		evt.ID, evt.MerchantID, payload, evt.DestinationURL, secretEnc,
		string(evt.Status), evt.Attempts, evt.LastAttemptAt, evt.NextRetryAt, evt.DeliveredAt, evt.CreatedAt,
	)
	return err
}

func (r *webhookEventRepository) FindByID(ctx context.Context, id string) (*webhook.Event, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, merchant_id, payload_json, destination_url, secret_enc,
		       status, attempts, last_attempt_at, next_retry_at, delivered_at, created_at
		  FROM webhook_events WHERE id=$1`, id)
	return r.scanEvent(row)
}

// FindDue returns pending events due at or before now, oldest schedule
// first, so the dispatch worker drains in order.
func (r *webhookEventRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*webhook.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, merchant_id, payload_json, destination_url, secret_enc,
		       status, attempts, last_attempt_at, next_retry_at, delivered_at, created_at
		  FROM webhook_events
		 WHERE status='pending' AND next_retry_at IS NOT NULL AND next_retry_at <= $1
		 ORDER BY next_retry_at
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*webhook.Event
	for rows.Next() {
		evt, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (r *webhookEventRepository) Update(ctx context.Context, evt *webhook.Event) error {
	_, err := r.db.Exec(ctx, `
		UPDATE webhook_events
		   SET status=$2, attempts=$3, last_attempt_at=$4, next_retry_at=$5, delivered_at=$6
		 WHERE id=$1`,
		evt.ID, string(evt.Status), evt.Attempts, evt.LastAttemptAt, evt.NextRetryAt, evt.DeliveredAt,
	)
	return err
}

func (r *webhookEventRepository) scanEvent(row pgx.Row) (*webhook.Event, error) {
	var evt webhook.Event
	var payload []byte
	var secretEnc, status string
	if err := row.Scan(&evt.ID, &evt.MerchantID, &payload, &evt.DestinationURL, &secretEnc,
		&status, &evt.Attempts, &evt.LastAttemptAt, &evt.NextRetryAt, &evt.DeliveredAt, &evt.CreatedAt); err != nil {
		return nil, err
	}
	evt.Status = webhook.Status(status)
	if err := json.Unmarshal(payload, &evt.Payload); err != nil {
		return nil, fmt.Errorf("decode payload for event %s: %w", evt.ID, err)
	}
	if secretEnc != "" {
		secret, err := credential.Decrypt(secretEnc, r.encKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt delivery secret for event %s: %w", evt.ID, err)
		}
		evt.Secret = secret
	}
	return &evt, nil
}
