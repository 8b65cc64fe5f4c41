package postgres

import (
	"context"
	"fmt"

	"loopgate/internal/domain/credential"

	"github.com/jackc/pgx/v5/pgxpool"
)

// credentialRepository implements repositories.CredentialRepository and
// doubles as the reconcile.CredentialResolver.
type credentialRepository struct {
	db     *pgxpool.Pool
	encKey []byte
}

// NewCredentialRepository creates a merchant credential repository.
func NewCredentialRepository(db *pgxpool.Pool, encKey []byte) *credentialRepository {
	return &credentialRepository{db: db, encKey: encKey}
}

// Save upserts by merchant id; re-onboarding a merchant replaces its keys.
func (r *credentialRepository) Save(ctx context.Context, cred *credential.MerchantCredential) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO merchant_credentials
			(merchant_id, key_id, key_secret_enc, webhook_secret_enc, webhook_destination, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (merchant_id) DO UPDATE
		  SET key_id             = EXCLUDED.key_id,
		      key_secret_enc     = EXCLUDED.key_secret_enc,
		      webhook_secret_enc = EXCLUDED.webhook_secret_enc,
		      webhook_destination = EXCLUDED.webhook_destination,
		      is_active          = EXCLUDED.is_active,
		      updated_at         = now()
		RETURNING id`,
		cred.MerchantID, cred.KeyID, cred.KeySecretEnc, cred.WebhookSecretEnc,
		cred.WebhookDestination, cred.IsActive,
	).Scan(&cred.ID)
}

func (r *credentialRepository) FindByMerchantID(ctx context.Context, merchantID string) (*credential.MerchantCredential, error) {
	var cred credential.MerchantCredential
	err := r.db.QueryRow(ctx, `
		SELECT id, merchant_id, key_id, key_secret_enc, webhook_secret_enc, webhook_destination, is_active
		  FROM merchant_credentials
		 WHERE merchant_id=$1 AND is_active`, merchantID,
	).Scan(&cred.ID, &cred.MerchantID, &cred.KeyID, &cred.KeySecretEnc,
		&cred.WebhookSecretEnc, &cred.WebhookDestination, &cred.IsActive)
	if err != nil {
		return nil, fmt.Errorf("find credential for merchant %s: %w", merchantID, err)
	}
	return &cred, nil
}

func (r *credentialRepository) Deactivate(ctx context.Context, merchantID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE merchant_credentials SET is_active=false, updated_at=now()
		 WHERE merchant_id=$1`, merchantID)
	return err
}

// Resolve loads and decrypts the active credential for a merchant.
func (r *credentialRepository) Resolve(ctx context.Context, merchantID string) (*credential.Resolved, error) {
	cred, err := r.FindByMerchantID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	return cred.Resolve(r.encKey)
}
