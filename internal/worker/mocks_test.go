package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/scheduler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJob(t *testing.T, payload any, attempt, maxAttempts int) *scheduler.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return &scheduler.Job{
		ID:          "job-1",
		Payload:     raw,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
	}
}

// fakeCampaignRepo is an in-memory CampaignRepository
type fakeCampaignRepo struct {
	campaigns map[int64]*models.Campaign
	running   []*models.Campaign
}

func newFakeCampaignRepo(campaigns ...*models.Campaign) *fakeCampaignRepo {
	f := &fakeCampaignRepo{campaigns: make(map[int64]*models.Campaign)}
	for _, c := range campaigns {
		f.campaigns[c.ID] = c
	}
	return f
}

func (f *fakeCampaignRepo) Create(ctx context.Context, campaign *models.Campaign) error { return nil }

func (f *fakeCampaignRepo) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, models.ErrNotFoundWithMsg("campaign not found")
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCampaignRepo) List(ctx context.Context, ownerID int64, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	return nil, 0, nil
}

func (f *fakeCampaignRepo) Update(ctx context.Context, campaign *models.Campaign) error { return nil }

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
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (f *fakeCampaignRepo) Delete(ctx context.Context, id int64) error { return nil }

func (f *fakeCampaignRepo) IncrementSentCount(ctx context.Context, id int64, n int) error {
	return nil
}

func (f *fakeCampaignRepo) ResetDailyQuota(ctx context.Context, id int64, day string) error {
	return nil
}

func (f *fakeCampaignRepo) ListRunningStalled(ctx context.Context) ([]*models.Campaign, error) {
	return f.running, nil
}

// fakeMessageRepo is an in-memory MessageRepository
type fakeMessageRepo struct {
	messages map[int64]*models.Message
}

func newFakeMessageRepo(messages ...*models.Message) *fakeMessageRepo {
	f := &fakeMessageRepo{messages: make(map[int64]*models.Message)}
	for _, m := range messages {
		f.messages[m.ID] = m
	}
	return f
}

func (f *fakeMessageRepo) Rematerialize(ctx context.Context, campaignID int64, messages []*models.Message) error {
	return nil
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
		if m.CampaignID == campaignID &&
			(m.Status == models.MessageStatusPending || m.Status == models.MessageStatusQueued) {
			copied := *m
			result = append(result, &copied)
		}
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
	m.Status = models.MessageStatusQueued
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
	return nil, nil
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

// fakeAdapter is a scripted channel adapter
type fakeAdapter struct {
	channel    string
	providerID string
	err        error
	calls      int
}

func (f *fakeAdapter) Channel() string { return f.channel }

func (f *fakeAdapter) Send(ctx context.Context, cred *models.Credential, address, content string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.providerID, nil
}

// enqueuedJob records one scheduler enqueue
type enqueuedJob struct {
	queue    string
	payload  any
	delay    time.Duration
	dedupKey string
}

// fakeScheduler records enqueues
type fakeScheduler struct {
	jobs []enqueuedJob
}

func (f *fakeScheduler) Enqueue(ctx context.Context, queue string, payload any, delay time.Duration, dedupKey string) error {
	f.jobs = append(f.jobs, enqueuedJob{queue: queue, payload: payload, delay: delay, dedupKey: dedupKey})
	return nil
}
