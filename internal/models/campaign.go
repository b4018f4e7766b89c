package models

import (
	"fmt"
	"time"
)

// Campaign status constants
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusRunning   = "running"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
)

// Delivery channel constants
const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelTelegram = "telegram"
)

// DefaultCooldownWindow is the minimum interval between two sends to the
// same contact on the same channel, across campaigns.
const DefaultCooldownWindow = 5 * time.Minute

// Campaign represents an outbound messaging campaign owned by a tenant.
type Campaign struct {
	ID             int64      `json:"id"`
	OwnerID        int64      `json:"owner_id"`
	Name           string     `json:"name"`
	Channel        string     `json:"channel"`
	Template       string     `json:"template"`
	Tags           []string   `json:"tags"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	DailyLimit     int        `json:"daily_limit"`
	MinDelaySec    int        `json:"min_delay_sec"`
	MaxDelaySec    int        `json:"max_delay_sec"`
	SentCountToday int        `json:"sent_count_today"`
	QuotaDay       string     `json:"quota_day"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CampaignFilter holds filtering options for listing campaigns
type CampaignFilter struct {
	Channel  string
	Status   string
	Page     int
	PageSize int
}

// CampaignStats holds per-status message counts for a campaign
type CampaignStats struct {
	Pending   int64 `json:"pending"`
	Queued    int64 `json:"queued"`
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Open reports whether any messages are still awaiting dispatch.
func (s CampaignStats) Open() bool {
	return s.Pending > 0 || s.Queued > 0
}

// Validate performs validation on campaign data
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return ErrInvalidInput("name is required")
	}
	if !IsValidChannel(c.Channel) {
		return ErrInvalidInput(fmt.Sprintf("invalid channel: %q (must be one of whatsapp, email, sms, telegram)", c.Channel))
	}
	if c.Template == "" {
		return ErrInvalidInput("template is required")
	}
	if c.DailyLimit <= 0 {
		return ErrInvalidInput("daily_limit must be positive")
	}
	if c.MinDelaySec < 0 {
		return ErrInvalidInput("min_delay_sec cannot be negative")
	}
	if c.MaxDelaySec < c.MinDelaySec {
		return ErrInvalidInput("max_delay_sec must be >= min_delay_sec")
	}
	return nil
}

// IsValidChannel checks if the channel is valid
func IsValidChannel(channel string) bool {
	switch channel {
	case ChannelWhatsApp, ChannelEmail, ChannelSMS, ChannelTelegram:
		return true
	default:
		return false
	}
}

// CanStart reports whether the campaign may transition to running.
func (c *Campaign) CanStart() bool {
	switch c.Status {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusPaused:
		return true
	default:
		return false
	}
}

// IsMutable reports whether the campaign may be updated or deleted.
// Live campaigns are locked so audience, template and pacing cannot
// change mid-flight.
func (c *Campaign) IsMutable() bool {
	return c.Status != CampaignStatusRunning
}
