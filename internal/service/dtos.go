package service

import (
	"time"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// CreateCampaignRequest represents a request to create or update a campaign
type CreateCampaignRequest struct {
	Name        string     `json:"name"`
	Channel     string     `json:"channel"`
	Template    string     `json:"template"`
	Tags        []string   `json:"tags"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	DailyLimit  int        `json:"daily_limit"`
	MinDelaySec int        `json:"min_delay_sec"`
	MaxDelaySec int        `json:"max_delay_sec"`
}

// StartCampaignResult summarizes a successful start
type StartCampaignResult struct {
	CampaignID   int64      `json:"campaign_id"`
	Status       string     `json:"status"`
	Materialized int        `json:"materialized"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
}

// CampaignListResult represents paginated campaign list results
type CampaignListResult struct {
	Data       []*models.Campaign `json:"data"`
	Pagination models.PageResult  `json:"pagination"`
}

// CampaignWithStats combines campaign details with message statistics
type CampaignWithStats struct {
	models.Campaign
	Stats models.CampaignStats `json:"stats"`
}
