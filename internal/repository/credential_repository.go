package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// CredentialRepository resolves per-tenant channel provider configuration.
// Credential issuance and encryption are external; the engine reads the
// config blob opaquely and hands it to the matching dispatch adapter.
type CredentialRepository interface {
	GetActive(ctx context.Context, ownerID int64, channel string) (*models.Credential, error)
}

// credentialRepository implements CredentialRepository using PostgreSQL
type credentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *sql.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

// GetActive retrieves the active credential for an owner and channel
func (r *credentialRepository) GetActive(ctx context.Context, ownerID int64, channel string) (*models.Credential, error) {
	query := `
		SELECT id, owner_id, channel, config, active
		FROM channel_credentials
		WHERE owner_id = $1 AND channel = $2 AND active = TRUE
		ORDER BY id DESC
		LIMIT 1`

	cred := &models.Credential{}
	err := r.db.QueryRowContext(ctx, query, ownerID, channel).Scan(
		&cred.ID,
		&cred.OwnerID,
		&cred.Channel,
		&cred.Config,
		&cred.Active,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("no active %s credential for owner %d", channel, ownerID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return cred, nil
}
