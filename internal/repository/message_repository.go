package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	// Rematerialize purges a campaign's stale pending/queued rows and
	// inserts the fresh batch in one transaction, so a (re)start never
	// leaves the campaign with a partially replaced audience.
	Rematerialize(ctx context.Context, campaignID int64, messages []*models.Message) error
	GetByID(ctx context.Context, id int64) (*models.Message, error)
	GetByProviderID(ctx context.Context, providerMessageID string) (*models.Message, error)
	// ListSendable returns up to limit pending/queued messages for a
	// campaign in stable oldest-id-first order.
	ListSendable(ctx context.Context, campaignID int64, limit int) ([]*models.Message, error)
	MarkQueued(ctx context.Context, id int64) error
	// MarkSent/MarkFailed/MarkDelivered are status-guarded so duplicate job
	// executions and late webhooks stay idempotent. They report whether the
	// row actually transitioned.
	MarkSent(ctx context.Context, id int64, providerMessageID string) (bool, error)
	MarkFailed(ctx context.Context, id int64, errText string) (bool, error)
	MarkDelivered(ctx context.Context, id int64) (bool, error)
	CountByStatus(ctx context.Context, campaignID int64) (models.CampaignStats, error)
}

// messageRepository implements MessageRepository using PostgreSQL
type messageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *sql.DB) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, campaign_id, contact_id, channel, content, status,
	provider_message_id, last_error, queued_at, sent_at, delivered_at, failed_at, created_at`

func scanMessage(row interface {
	Scan(dest ...interface{}) error
}) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(
		&m.ID,
		&m.CampaignID,
		&m.ContactID,
		&m.Channel,
		&m.Content,
		&m.Status,
		&m.ProviderMessageID,
		&m.LastError,
		&m.QueuedAt,
		&m.SentAt,
		&m.DeliveredAt,
		&m.FailedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Rematerialize replaces the campaign's undispatched rows in a single
// transaction: purge stale pending/queued rows, then insert the new batch.
func (r *messageRepository) Rematerialize(ctx context.Context, campaignID int64, messages []*models.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // safe after Commit
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE campaign_id = $1 AND status IN ('pending', 'queued')`,
		campaignID,
	); err != nil {
		return fmt.Errorf("failed to delete stale messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (campaign_id, contact_id, channel, content, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, message := range messages {
		err := stmt.QueryRowContext(
			ctx,
			message.CampaignID,
			message.ContactID,
			message.Channel,
			message.Content,
			message.Status,
		).Scan(&message.ID, &message.CreatedAt)

		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a message by ID
func (r *messageRepository) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	message, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("message with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return message, nil
}

// GetByProviderID maps a provider callback back to its message row
func (r *messageRepository) GetByProviderID(ctx context.Context, providerMessageID string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE provider_message_id = $1`

	message, err := scanMessage(r.db.QueryRowContext(ctx, query, providerMessageID))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("message with provider ID %s not found", providerMessageID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message by provider ID: %w", err)
	}

	return message, nil
}

// ListSendable returns the next slice of dispatchable messages
func (r *messageRepository) ListSendable(ctx context.Context, campaignID int64, limit int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE campaign_id = $1 AND status IN ('pending', 'queued')
		ORDER BY id ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sendable messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// MarkQueued transitions a message to queued
func (r *messageRepository) MarkQueued(ctx context.Context, id int64) error {
	query := `
		UPDATE messages
		SET status = 'queued', queued_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark message queued: %w", err)
	}

	return requireRow(result, fmt.Sprintf("message with ID %d not found", id))
}

// MarkSent records a successful dispatch; no-op unless currently queued
func (r *messageRepository) MarkSent(ctx context.Context, id int64, providerMessageID string) (bool, error) {
	query := `
		UPDATE messages
		SET status = 'sent', provider_message_id = $1, sent_at = NOW(), last_error = NULL
		WHERE id = $2 AND status = 'queued'`

	result, err := r.db.ExecContext(ctx, query, providerMessageID, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark message sent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkFailed records a terminal dispatch failure with the error preserved
// for operator inspection; no-op unless currently queued
func (r *messageRepository) MarkFailed(ctx context.Context, id int64, errText string) (bool, error) {
	query := `
		UPDATE messages
		SET status = 'failed', last_error = $1, failed_at = NOW()
		WHERE id = $2 AND status = 'queued'`

	result, err := r.db.ExecContext(ctx, query, errText, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark message failed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkDelivered records a delivery receipt; no-op unless currently sent
func (r *messageRepository) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE messages
		SET status = 'delivered', delivered_at = NOW()
		WHERE id = $1 AND status = 'sent'`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark message delivered: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// CountByStatus returns per-status message counts for a campaign
func (r *messageRepository) CountByStatus(ctx context.Context, campaignID int64) (models.CampaignStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'queued') AS queued,
			COUNT(*) FILTER (WHERE status = 'sent') AS sent,
			COUNT(*) FILTER (WHERE status = 'delivered') AS delivered,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM messages
		WHERE campaign_id = $1`

	var stats models.CampaignStats
	err := r.db.QueryRowContext(ctx, query, campaignID).Scan(
		&stats.Pending,
		&stats.Queued,
		&stats.Sent,
		&stats.Delivered,
		&stats.Failed,
	)
	if err != nil {
		return models.CampaignStats{}, fmt.Errorf("failed to count messages: %w", err)
	}

	return stats, nil
}
