package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// ContactRepository is the engine's read-mostly view of the contact store.
// Contact CRUD and search live in an external service; the engine only
// resolves audiences and flips the subscription flag on opt-out.
type ContactRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Contact, error)
	// ListEligible returns subscribed contacts of the owner whose tag set
	// overlaps tags and who have the address field the channel requires.
	ListEligible(ctx context.Context, ownerID int64, tags []string, channel string) ([]*models.Contact, error)
	Unsubscribe(ctx context.Context, id int64) error
}

// contactRepository implements ContactRepository using PostgreSQL
type contactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *sql.DB) ContactRepository {
	return &contactRepository{db: db}
}

const contactColumns = `id, owner_id, name, phone, email, telegram_chat_id, tags, subscribed`

func scanContact(row interface {
	Scan(dest ...interface{}) error
}) (*models.Contact, error) {
	c := &models.Contact{}
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Name,
		&c.Phone,
		&c.Email,
		&c.TelegramChatID,
		pq.Array(&c.Tags),
		&c.Subscribed,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByID retrieves a contact by ID
func (r *contactRepository) GetByID(ctx context.Context, id int64) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`

	contact, err := scanContact(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("contact with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return contact, nil
}

// addressColumn maps a channel to the contact column its sends require
func addressColumn(channel string) string {
	switch channel {
	case models.ChannelEmail:
		return "email"
	case models.ChannelTelegram:
		return "telegram_chat_id"
	default:
		return "phone"
	}
}

// ListEligible resolves the campaign audience
func (r *contactRepository) ListEligible(ctx context.Context, ownerID int64, tags []string, channel string) ([]*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE owner_id = $1
		  AND subscribed = TRUE
		  AND ` + addressColumn(channel) + ` <> ''`
	args := []interface{}{ownerID}

	if len(tags) > 0 {
		query += ` AND tags && $2`
		args = append(args, pq.Array(tags))
	}

	query += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible contacts: %w", err)
	}
	defer rows.Close()

	contacts := []*models.Contact{}
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}

// Unsubscribe marks a contact as opted out so future materializations
// exclude them
func (r *contactRepository) Unsubscribe(ctx context.Context, id int64) error {
	query := `UPDATE contacts SET subscribed = FALSE WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe contact: %w", err)
	}

	return requireRow(result, fmt.Sprintf("contact with ID %d not found", id))
}
