package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubCampaignService returns scripted results per call
type stubCampaignService struct {
	campaign    *models.Campaign
	withStats   *service.CampaignWithStats
	listResult  *service.CampaignListResult
	startResult *service.StartCampaignResult
	stats       models.CampaignStats
	err         error

	gotOwnerID int64
	gotID      int64
}

func (s *stubCampaignService) Create(ctx context.Context, ownerID int64, req *service.CreateCampaignRequest) (*models.Campaign, error) {
	s.gotOwnerID = ownerID
	return s.campaign, s.err
}

func (s *stubCampaignService) GetByID(ctx context.Context, ownerID, id int64) (*service.CampaignWithStats, error) {
	s.gotOwnerID = ownerID
	s.gotID = id
	return s.withStats, s.err
}

func (s *stubCampaignService) List(ctx context.Context, ownerID int64, filter models.CampaignFilter) (*service.CampaignListResult, error) {
	s.gotOwnerID = ownerID
	return s.listResult, s.err
}

func (s *stubCampaignService) Update(ctx context.Context, ownerID, id int64, req *service.CreateCampaignRequest) (*models.Campaign, error) {
	s.gotOwnerID = ownerID
	s.gotID = id
	return s.campaign, s.err
}

func (s *stubCampaignService) Delete(ctx context.Context, ownerID, id int64) error {
	s.gotOwnerID = ownerID
	s.gotID = id
	return s.err
}

func (s *stubCampaignService) Start(ctx context.Context, ownerID, id int64) (*service.StartCampaignResult, error) {
	s.gotOwnerID = ownerID
	s.gotID = id
	return s.startResult, s.err
}

func (s *stubCampaignService) Pause(ctx context.Context, ownerID, id int64) error {
	s.gotOwnerID = ownerID
	s.gotID = id
	return s.err
}

func (s *stubCampaignService) Resume(ctx context.Context, ownerID, id int64) error {
	s.gotOwnerID = ownerID
	s.gotID = id
	return s.err
}

func (s *stubCampaignService) Stats(ctx context.Context, ownerID, id int64) (models.CampaignStats, error) {
	s.gotOwnerID = ownerID
	s.gotID = id
	return s.stats, s.err
}

func campaignRouter(svc service.CampaignService) http.Handler {
	h := NewCampaignHandler(svc, testLogger())
	r := chi.NewRouter()
	r.Route("/campaigns", func(r chi.Router) {
		r.Use(OwnerMiddleware)
		h.Routes(r)
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string, ownerID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if ownerID != "" {
		req.Header.Set("X-Owner-ID", ownerID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestMissingOwnerHeaderRejected(t *testing.T) {
	router := campaignRouter(&stubCampaignService{})

	rec := doRequest(t, router, http.MethodGet, "/campaigns", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateCampaignResponds201(t *testing.T) {
	svc := &stubCampaignService{campaign: &models.Campaign{ID: 1, OwnerID: 7, Name: "Launch"}}
	router := campaignRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/campaigns",
		`{"name":"Launch","channel":"sms","template":"Hi {name}","daily_limit":100}`, "7")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	if svc.gotOwnerID != 7 {
		t.Errorf("owner id passed to service = %d, want 7", svc.gotOwnerID)
	}
}

func TestCreateCampaignInvalidJSON(t *testing.T) {
	router := campaignRouter(&stubCampaignService{})

	rec := doRequest(t, router, http.MethodPost, "/campaigns", `{not json`, "7")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStartCampaignConflictMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"already running", models.ErrAlreadyRunning(1), http.StatusBadRequest},
		{"already completed", models.ErrAlreadyCompleted(1), http.StatusBadRequest},
		{"no eligible contacts", models.ErrNoEligibleContacts(), http.StatusBadRequest},
		{"no integration", models.ErrNoActiveIntegration("sms"), http.StatusBadRequest},
		{"not found", models.ErrNotFoundWithMsg("campaign not found"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := campaignRouter(&stubCampaignService{err: tt.err})
			rec := doRequest(t, router, http.MethodPost, "/campaigns/1/start", "", "7")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestDeleteRunningCampaignConflict(t *testing.T) {
	router := campaignRouter(&stubCampaignService{err: models.ErrCampaignBusy(1)})

	rec := doRequest(t, router, http.MethodDelete, "/campaigns/1", "", "7")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestInvalidCampaignID(t *testing.T) {
	router := campaignRouter(&stubCampaignService{})

	rec := doRequest(t, router, http.MethodGet, "/campaigns/abc", "", "7")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPauseCampaignResponds200(t *testing.T) {
	svc := &stubCampaignService{}
	router := campaignRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/campaigns/3/pause", "", "7")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if svc.gotID != 3 {
		t.Errorf("id passed to service = %d, want 3", svc.gotID)
	}
	if svc.gotOwnerID != 7 {
		t.Errorf("owner id passed to service = %d, want 7", svc.gotOwnerID)
	}
}

func TestSingleCampaignRoutesCarryOwner(t *testing.T) {
	svc := &stubCampaignService{
		campaign:    &models.Campaign{ID: 3, OwnerID: 7},
		withStats:   &service.CampaignWithStats{},
		startResult: &service.StartCampaignResult{CampaignID: 3},
	}
	router := campaignRouter(svc)

	routes := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/campaigns/3", ""},
		{http.MethodPut, "/campaigns/3", `{"name":"Launch","channel":"sms","template":"Hi {name}","daily_limit":100}`},
		{http.MethodDelete, "/campaigns/3", ""},
		{http.MethodPost, "/campaigns/3/start", ""},
		{http.MethodPost, "/campaigns/3/resume", ""},
		{http.MethodGet, "/campaigns/3/stats", ""},
	}

	for _, rt := range routes {
		svc.gotOwnerID = 0
		rec := doRequest(t, router, rt.method, rt.path, rt.body, "7")
		if rec.Code >= http.StatusBadRequest {
			t.Errorf("%s %s: status = %d", rt.method, rt.path, rec.Code)
		}
		if svc.gotOwnerID != 7 {
			t.Errorf("%s %s: owner id passed to service = %d, want 7", rt.method, rt.path, svc.gotOwnerID)
		}
	}
}

func TestStatsResponds200(t *testing.T) {
	svc := &stubCampaignService{stats: models.CampaignStats{Sent: 4, Delivered: 2}}
	router := campaignRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/campaigns/3/stats", "", "7")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"sent":4`) {
		t.Errorf("body missing stats: %s", rec.Body.String())
	}
}
