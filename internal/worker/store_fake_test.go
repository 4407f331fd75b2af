package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/campaign-engine/internal/campaign"
	"github.com/ignite/campaign-engine/internal/domain"
)

// fakeStore is an in-memory campaign.Store for worker tests.
type fakeStore struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign

	// Error injection
	recordSendErr    error
	recordFailureErr error
	claimErr         error
	findDueErr       error
	findStalledErr   error

	// Synchronization hooks for mid-tick tests
	findStalledEntered chan struct{} // closed when FindStalledActive is reached
	blockFindStalled   chan struct{} // FindStalledActive waits until closed
}

func newFakeStore(cs ...*domain.Campaign) *fakeStore {
	s := &fakeStore{campaigns: make(map[string]*domain.Campaign)}
	for _, c := range cs {
		s.campaigns[c.ID] = c
	}
	return s
}

func (s *fakeStore) get(id string) *domain.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaigns[id]
}

func (s *fakeStore) Get(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) FindDueScheduled(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	if s.findDueErr != nil {
		return nil, s.findDueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range s.campaigns {
		if c.Status == domain.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeStore) FindStalledActive(ctx context.Context, cutoff time.Time) ([]domain.Campaign, error) {
	if s.findStalledEntered != nil {
		close(s.findStalledEntered)
		s.findStalledEntered = nil
	}
	if s.blockFindStalled != nil {
		<-s.blockFindStalled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.findStalledErr != nil {
		return nil, s.findStalledErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range s.campaigns {
		if c.Status == domain.CampaignActive && c.StartedAt != nil &&
			c.StartedAt.Before(cutoff) && c.CompletedAt == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeStore) ClaimScheduled(_ context.Context, id string) (bool, error) {
	if s.claimErr != nil {
		return false, s.claimErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.Status != domain.CampaignScheduled {
		return false, nil
	}
	now := time.Now()
	c.Status = domain.CampaignActive
	c.StartedAt = &now
	return true, nil
}

func (s *fakeStore) BeginDispatch(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.Status.Terminal() {
		return false, nil
	}
	c.Status = domain.CampaignActive
	if c.StartedAt == nil {
		now := time.Now()
		c.StartedAt = &now
	}
	return true, nil
}

func (s *fakeStore) RecordSend(_ context.Context, id string) error {
	if s.recordSendErr != nil {
		return s.recordSendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.campaigns[id]
	c.SentCount++
	c.DeliveredCount++
	return nil
}

func (s *fakeStore) RecordFailure(_ context.Context, id string, f domain.SendFailure) error {
	if s.recordFailureErr != nil {
		return s.recordFailureErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.campaigns[id]
	c.FailedCount++
	c.Metadata.Failures = append(c.Metadata.Failures, f)
	return nil
}

func (s *fakeStore) MarkCompleted(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.campaigns[id]
	now := time.Now()
	c.Status = domain.CampaignCompleted
	c.CompletedAt = &now
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.campaigns[id]
	now := time.Now()
	c.Status = domain.CampaignFailed
	c.CompletedAt = &now
	c.Metadata.LastError = lastError
	return nil
}

// fakeLeads is an in-memory campaign.LeadSource.
type fakeLeads struct {
	all      []domain.Recipient
	byStatus map[string][]domain.Recipient
}

func (l *fakeLeads) EmailableLeads(_ context.Context, _ string) ([]domain.Recipient, error) {
	return l.all, nil
}

func (l *fakeLeads) LeadsByStatus(_ context.Context, _ string, statuses []string) ([]domain.Recipient, error) {
	var out []domain.Recipient
	for _, st := range statuses {
		out = append(out, l.byStatus[st]...)
	}
	return out, nil
}
