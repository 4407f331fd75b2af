package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-engine/internal/campaign"
	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/mailer"
	"github.com/ignite/campaign-engine/internal/template"
	"github.com/ignite/campaign-engine/internal/webhook"
	"github.com/ignite/campaign-engine/internal/worker"
)

// memStore is a minimal in-memory campaign.Store for handler tests.
type memStore struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
}

func (s *memStore) Get(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) FindDueScheduled(context.Context, time.Time) ([]domain.Campaign, error) {
	return nil, nil
}

func (s *memStore) FindStalledActive(context.Context, time.Time) ([]domain.Campaign, error) {
	return nil, nil
}

func (s *memStore) ClaimScheduled(context.Context, string) (bool, error) { return false, nil }

func (s *memStore) BeginDispatch(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.Status.Terminal() {
		return false, nil
	}
	c.Status = domain.CampaignActive
	return true, nil
}

func (s *memStore) RecordSend(context.Context, string) error { return nil }

func (s *memStore) RecordFailure(context.Context, string, domain.SendFailure) error { return nil }

func (s *memStore) MarkCompleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[id].Status = domain.CampaignCompleted
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id string, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[id].Status = domain.CampaignFailed
	s.campaigns[id].Metadata.LastError = lastError
	return nil
}

type noLeads struct{}

func (noLeads) EmailableLeads(context.Context, string) ([]domain.Recipient, error) { return nil, nil }
func (noLeads) LeadsByStatus(context.Context, string, []string) ([]domain.Recipient, error) {
	return nil, nil
}

func newTestServer(cs ...*domain.Campaign) (*Server, *worker.Dispatcher) {
	store := &memStore{campaigns: make(map[string]*domain.Campaign)}
	for _, c := range cs {
		store.campaigns[c.ID] = c
	}
	d := worker.NewDispatcher(store, campaign.NewResolver(noLeads{}), mailer.LogSender{}, template.NewEngine())
	d.SetSendDelay(0)
	sched := worker.NewScheduler(store, webhook.NewNotifier(""))
	clean := worker.NewCleanup(store)
	return NewServer(store, d, sched, clean), d
}

func TestDispatchEndpointAccepted(t *testing.T) {
	srv, d := newTestServer(&domain.Campaign{
		ID:            "c1",
		Status:        domain.CampaignDraft,
		RecipientMode: domain.RecipientCustom,
		CustomEmails:  "a@x.com",
	})
	router := srv.Router()

	body := strings.NewReader(`{"from_email":"from@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/c1/dispatch", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	d.Wait()
}

func TestDispatchEndpointNotFound(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/missing/dispatch", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatchEndpointTerminalConflict(t *testing.T) {
	srv, _ := newTestServer(&domain.Campaign{
		ID:     "c1",
		Status: domain.CampaignCompleted,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/c1/dispatch", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetCampaignProgress(t *testing.T) {
	srv, _ := newTestServer(&domain.Campaign{
		ID:        "c1",
		Name:      "Launch",
		Status:    domain.CampaignActive,
		SentCount: 42,
	})
	req := httptest.NewRequest(http.MethodGet, "/api/campaigns/c1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 42, got.SentCount)
	assert.Equal(t, domain.CampaignActive, got.Status)
}

func TestSchedulerLifecycleEndpoints(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/workers/scheduler/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Second start conflicts.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/workers/scheduler/start", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workers/scheduler/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st worker.SchedulerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Running)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/workers/scheduler/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCleanupLifecycleEndpoints(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/workers/cleanup/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/workers/cleanup/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workers/cleanup/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st worker.CleanupStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.Running)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
