package models

import "fmt"

// Queue names for the durable job scheduler
const (
	QueueCampaignBatch = "campaign-batch"
	QueueMessageSend   = "message-send"
	QueueWebhook       = "webhook"
)

// BatchJob asks the compliance batcher to schedule the next slice of a
// running campaign. Deduplicated on the campaign ID so two batch runs for
// the same campaign are never scheduled concurrently.
type BatchJob struct {
	CampaignID int64 `json:"campaign_id"`
	OwnerID    int64 `json:"owner_id"`
}

// BatchDedupKey is the dedup key for a campaign's batch jobs.
func BatchDedupKey(campaignID int64) string {
	return fmt.Sprintf("campaign-%d", campaignID)
}

// SendJob dispatches one queued message through its channel adapter.
type SendJob struct {
	MessageID  int64  `json:"message_id"`
	CampaignID int64  `json:"campaign_id"`
	ContactID  int64  `json:"contact_id"`
	Channel    string `json:"channel"`
	Content    string `json:"content"`
	OwnerID    int64  `json:"owner_id"`
}

// Webhook event types
const (
	WebhookEventDelivery = "delivery"
	WebhookEventReply    = "reply"
)

// WebhookJob carries a normalized provider callback (delivery receipt or
// inbound reply) for the reconciler.
type WebhookJob struct {
	Channel           string `json:"channel"`
	EventType         string `json:"event_type"`
	ProviderMessageID string `json:"provider_message_id"`
	Text              string `json:"text,omitempty"`
}
