package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// CampaignRepository defines the interface for campaign data access
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id int64) (*models.Campaign, error)
	List(ctx context.Context, ownerID int64, filter models.CampaignFilter) ([]*models.Campaign, int64, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	// TransitionStatus updates the status only when the current status
	// matches from, reporting whether the transition happened. Guarded
	// updates keep duplicate job executions idempotent.
	TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error)
	Delete(ctx context.Context, id int64) error
	// IncrementSentCount atomically adds n to sent_count_today, tolerating
	// concurrent batch executions.
	IncrementSentCount(ctx context.Context, id int64, n int) error
	// ResetDailyQuota zeroes sent_count_today and stamps the quota day.
	ResetDailyQuota(ctx context.Context, id int64, day string) error
	// ListRunningStalled returns running campaigns with pending messages,
	// or with queued messages old enough that their send jobs should have
	// finished. Feeds the recovery sweep.
	ListRunningStalled(ctx context.Context) ([]*models.Campaign, error)
}

// campaignRepository implements CampaignRepository using PostgreSQL
type campaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *sql.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

const campaignColumns = `id, owner_id, name, channel, template, tags, scheduled_at,
	daily_limit, min_delay_sec, max_delay_sec, sent_count_today, quota_day, status,
	created_at, updated_at`

func scanCampaign(row interface {
	Scan(dest ...interface{}) error
}) (*models.Campaign, error) {
	c := &models.Campaign{}
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Name,
		&c.Channel,
		&c.Template,
		pq.Array(&c.Tags),
		&c.ScheduledAt,
		&c.DailyLimit,
		&c.MinDelaySec,
		&c.MaxDelaySec,
		&c.SentCountToday,
		&c.QuotaDay,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new campaign
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	query := `
		INSERT INTO campaigns (owner_id, name, channel, template, tags, scheduled_at,
			daily_limit, min_delay_sec, max_delay_sec, sent_count_today, quota_day, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, '', $10)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		campaign.OwnerID,
		campaign.Name,
		campaign.Channel,
		campaign.Template,
		pq.Array(campaign.Tags),
		campaign.ScheduledAt,
		campaign.DailyLimit,
		campaign.MinDelaySec,
		campaign.MaxDelaySec,
		campaign.Status,
	).Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	campaign, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return campaign, nil
}

// List retrieves a tenant's campaigns with pagination and filtering
func (r *campaignRepository) List(ctx context.Context, ownerID int64, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	models.ClampPage(&filter.Page, &filter.PageSize)

	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE owner_id = $1`
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE owner_id = $1`
	args := []interface{}{ownerID}
	argPos := 2

	if filter.Channel != "" {
		query += fmt.Sprintf(" AND channel = $%d", argPos)
		countQuery += fmt.Sprintf(" AND channel = $%d", argPos)
		args = append(args, filter.Channel)
		argPos++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		countQuery += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	offset := models.PageOffset(filter.Page, filter.PageSize)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, totalCount, nil
}

// Update updates an existing campaign's definition fields
func (r *campaignRepository) Update(ctx context.Context, campaign *models.Campaign) error {
	query := `
		UPDATE campaigns
		SET name = $1, channel = $2, template = $3, tags = $4, scheduled_at = $5,
			daily_limit = $6, min_delay_sec = $7, max_delay_sec = $8, status = $9,
			updated_at = NOW()
		WHERE id = $10`

	result, err := r.db.ExecContext(
		ctx,
		query,
		campaign.Name,
		campaign.Channel,
		campaign.Template,
		pq.Array(campaign.Tags),
		campaign.ScheduledAt,
		campaign.DailyLimit,
		campaign.MinDelaySec,
		campaign.MaxDelaySec,
		campaign.Status,
		campaign.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	return requireRow(result, fmt.Sprintf("campaign with ID %d not found", campaign.ID))
}

// UpdateStatus updates only the status of a campaign
func (r *campaignRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}

	return requireRow(result, fmt.Sprintf("campaign with ID %d not found", id))
}

// TransitionStatus performs a status-guarded update
func (r *campaignRepository) TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	query := `UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition campaign status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Delete removes a campaign and its messages
func (r *campaignRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM campaigns WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	return requireRow(result, fmt.Sprintf("campaign with ID %d not found", id))
}

// IncrementSentCount atomically adds n to sent_count_today
func (r *campaignRepository) IncrementSentCount(ctx context.Context, id int64, n int) error {
	query := `
		UPDATE campaigns
		SET sent_count_today = sent_count_today + $1, updated_at = NOW()
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, n, id)
	if err != nil {
		return fmt.Errorf("failed to increment sent count: %w", err)
	}

	return requireRow(result, fmt.Sprintf("campaign with ID %d not found", id))
}

// ResetDailyQuota zeroes sent_count_today for a new quota day
func (r *campaignRepository) ResetDailyQuota(ctx context.Context, id int64, day string) error {
	query := `
		UPDATE campaigns
		SET sent_count_today = 0, quota_day = $1, updated_at = NOW()
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, day, id)
	if err != nil {
		return fmt.Errorf("failed to reset daily quota: %w", err)
	}

	return requireRow(result, fmt.Sprintf("campaign with ID %d not found", id))
}

// ListRunningStalled finds running campaigns with undispatched work. The
// one-hour threshold on queued rows keeps the sweep from racing send jobs
// that are merely waiting out their pacing offsets.
func (r *campaignRepository) ListRunningStalled(ctx context.Context) ([]*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns c
		WHERE c.status = 'running'
		  AND EXISTS (
			SELECT 1 FROM messages m
			WHERE m.campaign_id = c.id
			  AND (m.status = 'pending'
				OR (m.status = 'queued' AND m.queued_at < NOW() - INTERVAL '1 hour'))
		  )
		ORDER BY c.id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list running campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, nil
}

// requireRow converts a zero-row update into a not-found error
func requireRow(result sql.Result, msg string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(msg)
	}
	return nil
}
