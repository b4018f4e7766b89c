package models

import "time"

// Message status constants
const (
	MessageStatusPending   = "pending"
	MessageStatusQueued    = "queued"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusFailed    = "failed"
)

// Message is one materialized outbound send for a (campaign, contact) pair.
type Message struct {
	ID                int64      `json:"id"`
	CampaignID        int64      `json:"campaign_id"`
	ContactID         int64      `json:"contact_id"`
	Channel           string     `json:"channel"`
	Content           string     `json:"content"`
	Status            string     `json:"status"`
	ProviderMessageID *string    `json:"provider_message_id,omitempty"`
	LastError         *string    `json:"last_error,omitempty"`
	QueuedAt          *time.Time `json:"queued_at,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// IsValidMessageStatus checks if the message status is valid
func IsValidMessageStatus(status string) bool {
	switch status {
	case MessageStatusPending, MessageStatusQueued, MessageStatusSent,
		MessageStatusDelivered, MessageStatusFailed:
		return true
	default:
		return false
	}
}
