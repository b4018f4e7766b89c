package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/outflowhq/outflow-backend/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCampaignRepo is an in-memory CampaignRepository
type fakeCampaignRepo struct {
	campaigns map[int64]*models.Campaign
	nextID    int64
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[int64]*models.Campaign)}
}

func (f *fakeCampaignRepo) add(c *models.Campaign) *models.Campaign {
	f.nextID++
	c.ID = f.nextID
	f.campaigns[c.ID] = c
	return c
}

func (f *fakeCampaignRepo) Create(ctx context.Context, campaign *models.Campaign) error {
	f.add(campaign)
	return nil
}

func (f *fakeCampaignRepo) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", id))
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCampaignRepo) List(ctx context.Context, ownerID int64, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	result := []*models.Campaign{}
	for _, c := range f.campaigns {
		if c.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Channel != "" && c.Channel != filter.Channel {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, int64(len(result)), nil
}

func (f *fakeCampaignRepo) Update(ctx context.Context, campaign *models.Campaign) error {
	existing, ok := f.campaigns[campaign.ID]
	if !ok {
		return models.ErrNotFoundWithMsg("campaign not found")
	}
	campaign.OwnerID = existing.OwnerID
	f.campaigns[campaign.ID] = campaign
	return nil
}

func (f *fakeCampaignRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	c, ok := f.campaigns[id]
	if !ok {
		return models.ErrNotFoundWithMsg("campaign not found")
	}
	c.Status = status
	return nil
}

func (f *fakeCampaignRepo) TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return false, nil
	}
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (f *fakeCampaignRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.campaigns[id]; !ok {
		return models.ErrNotFoundWithMsg("campaign not found")
	}
	delete(f.campaigns, id)
	return nil
}

func (f *fakeCampaignRepo) IncrementSentCount(ctx context.Context, id int64, n int) error {
	c, ok := f.campaigns[id]
	if !ok {
		return models.ErrNotFoundWithMsg("campaign not found")
	}
	c.SentCountToday += n
	return nil
}

func (f *fakeCampaignRepo) ResetDailyQuota(ctx context.Context, id int64, day string) error {
	c, ok := f.campaigns[id]
	if !ok {
		return models.ErrNotFoundWithMsg("campaign not found")
	}
	c.SentCountToday = 0
	c.QuotaDay = day
	return nil
}

func (f *fakeCampaignRepo) ListRunningStalled(ctx context.Context) ([]*models.Campaign, error) {
	return nil, nil
}

// fakeMessageRepo is an in-memory MessageRepository
type fakeMessageRepo struct {
	messages map[int64]*models.Message
	nextID   int64
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[int64]*models.Message)}
}

// CreateBatch seeds message rows directly; tests use it to arrange state.
func (f *fakeMessageRepo) CreateBatch(ctx context.Context, messages []*models.Message) error {
	for _, m := range messages {
		f.nextID++
		m.ID = f.nextID
		m.CreatedAt = time.Now()
		f.messages[m.ID] = m
	}
	return nil
}

func (f *fakeMessageRepo) Rematerialize(ctx context.Context, campaignID int64, messages []*models.Message) error {
	for id, m := range f.messages {
		if m.CampaignID == campaignID &&
			(m.Status == models.MessageStatusPending || m.Status == models.MessageStatusQueued) {
			delete(f.messages, id)
		}
	}
	return f.CreateBatch(ctx, messages)
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, models.ErrNotFoundWithMsg("message not found")
	}
	copied := *m
	return &copied, nil
}

func (f *fakeMessageRepo) GetByProviderID(ctx context.Context, providerMessageID string) (*models.Message, error) {
	for _, m := range f.messages {
		if m.ProviderMessageID != nil && *m.ProviderMessageID == providerMessageID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, models.ErrNotFoundWithMsg("message not found")
}

func (f *fakeMessageRepo) ListSendable(ctx context.Context, campaignID int64, limit int) ([]*models.Message, error) {
	result := []*models.Message{}
	for _, m := range f.messages {
		if m.CampaignID != campaignID {
			continue
		}
		if m.Status != models.MessageStatusPending && m.Status != models.MessageStatusQueued {
			continue
		}
		copied := *m
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeMessageRepo) MarkQueued(ctx context.Context, id int64) error {
	m, ok := f.messages[id]
	if !ok {
		return models.ErrNotFoundWithMsg("message not found")
	}
	now := time.Now()
	m.Status = models.MessageStatusQueued
	m.QueuedAt = &now
	return nil
}

func (f *fakeMessageRepo) MarkSent(ctx context.Context, id int64, providerMessageID string) (bool, error) {
	m, ok := f.messages[id]
	if !ok || m.Status != models.MessageStatusQueued {
		return false, nil
	}
	now := time.Now()
	m.Status = models.MessageStatusSent
	m.ProviderMessageID = &providerMessageID
	m.SentAt = &now
	return true, nil
}

func (f *fakeMessageRepo) MarkFailed(ctx context.Context, id int64, errText string) (bool, error) {
	m, ok := f.messages[id]
	if !ok || m.Status != models.MessageStatusQueued {
		return false, nil
	}
	now := time.Now()
	m.Status = models.MessageStatusFailed
	m.LastError = &errText
	m.FailedAt = &now
	return true, nil
}

func (f *fakeMessageRepo) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	m, ok := f.messages[id]
	if !ok || m.Status != models.MessageStatusSent {
		return false, nil
	}
	now := time.Now()
	m.Status = models.MessageStatusDelivered
	m.DeliveredAt = &now
	return true, nil
}

func (f *fakeMessageRepo) CountByStatus(ctx context.Context, campaignID int64) (models.CampaignStats, error) {
	var stats models.CampaignStats
	for _, m := range f.messages {
		if m.CampaignID != campaignID {
			continue
		}
		switch m.Status {
		case models.MessageStatusPending:
			stats.Pending++
		case models.MessageStatusQueued:
			stats.Queued++
		case models.MessageStatusSent:
			stats.Sent++
		case models.MessageStatusDelivered:
			stats.Delivered++
		case models.MessageStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// fakeContactRepo is an in-memory ContactRepository
type fakeContactRepo struct {
	contacts map[int64]*models.Contact
}

func newFakeContactRepo(contacts ...*models.Contact) *fakeContactRepo {
	f := &fakeContactRepo{contacts: make(map[int64]*models.Contact)}
	for _, c := range contacts {
		f.contacts[c.ID] = c
	}
	return f
}

func (f *fakeContactRepo) GetByID(ctx context.Context, id int64) (*models.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return nil, models.ErrNotFoundWithMsg("contact not found")
	}
	return c, nil
}

func (f *fakeContactRepo) ListEligible(ctx context.Context, ownerID int64, tags []string, channel string) ([]*models.Contact, error) {
	result := []*models.Contact{}
	for _, c := range f.contacts {
		if c.OwnerID != ownerID || !c.Subscribed {
			continue
		}
		if _, ok := c.AddressFor(channel); !ok {
			continue
		}
		if len(tags) > 0 && !tagsOverlap(c.Tags, tags) {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func tagsOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func (f *fakeContactRepo) Unsubscribe(ctx context.Context, id int64) error {
	c, ok := f.contacts[id]
	if !ok {
		return models.ErrNotFoundWithMsg("contact not found")
	}
	c.Subscribed = false
	return nil
}

// fakeCredentialRepo is an in-memory CredentialRepository
type fakeCredentialRepo struct {
	credentials map[string]*models.Credential
}

func newFakeCredentialRepo(creds ...*models.Credential) *fakeCredentialRepo {
	f := &fakeCredentialRepo{credentials: make(map[string]*models.Credential)}
	for _, c := range creds {
		f.credentials[fmt.Sprintf("%d/%s", c.OwnerID, c.Channel)] = c
	}
	return f
}

func (f *fakeCredentialRepo) GetActive(ctx context.Context, ownerID int64, channel string) (*models.Credential, error) {
	c, ok := f.credentials[fmt.Sprintf("%d/%s", ownerID, channel)]
	if !ok {
		return nil, models.ErrNotFoundWithMsg("credential not found")
	}
	return c, nil
}

// enqueuedJob records one scheduler enqueue
type enqueuedJob struct {
	queue    string
	payload  any
	delay    time.Duration
	dedupKey string
}

// fakeScheduler records every enqueue
type fakeScheduler struct {
	jobs []enqueuedJob
}

func (f *fakeScheduler) Enqueue(ctx context.Context, queue string, payload any, delay time.Duration, dedupKey string) error {
	f.jobs = append(f.jobs, enqueuedJob{queue: queue, payload: payload, delay: delay, dedupKey: dedupKey})
	return nil
}

func (f *fakeScheduler) byQueue(queue string) []enqueuedJob {
	result := []enqueuedJob{}
	for _, j := range f.jobs {
		if j.queue == queue {
			result = append(result, j)
		}
	}
	return result
}
