package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-engine/internal/campaign"
	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/metrics"
	"github.com/ignite/campaign-engine/internal/pkg/distlock"
	"github.com/ignite/campaign-engine/internal/webhook"
)

// DefaultSchedulerPollInterval is how often the scheduler checks for due
// campaigns. The first check runs immediately on Start.
const DefaultSchedulerPollInterval = 60 * time.Second

// Scheduler polls for scheduled campaigns whose time has arrived, claims
// them and hands them to the automation pipeline via webhook. The claim is a
// compare-and-set on the status column, so a campaign fires at most once
// even when ticks overlap.
type Scheduler struct {
	store       campaign.Store
	notifier    *webhook.Notifier
	db          *sql.DB       // optional; advisory-lock fallback
	redisClient *redis.Client // optional; preferred lock backend
	workerID    string

	pollInterval time.Duration

	// Stats
	campaignsActivated int64
	tickErrors         int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// SchedulerStatus is the externally visible loop state.
type SchedulerStatus struct {
	Running            bool  `json:"running"`
	CampaignsActivated int64 `json:"campaigns_activated"`
	Errors             int64 `json:"errors"`
}

// NewScheduler creates a scheduler over the given store and notifier.
func NewScheduler(store campaign.Store, notifier *webhook.Notifier) *Scheduler {
	hostname, _ := os.Hostname()
	return &Scheduler{
		store:        store,
		notifier:     notifier,
		workerID:     fmt.Sprintf("scheduler-%s-%s", hostname, uuid.NewString()[:8]),
		pollInterval: DefaultSchedulerPollInterval,
	}
}

// SetRedisClient sets the Redis client for per-campaign locking. If unset,
// the scheduler falls back to PostgreSQL advisory locks when a DB handle is
// available, or skips locking entirely.
func (s *Scheduler) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

// SetDB provides the database handle used for advisory-lock fallback.
func (s *Scheduler) SetDB(db *sql.DB) {
	s.db = db
}

// SetPollInterval overrides the polling interval.
func (s *Scheduler) SetPollInterval(d time.Duration) {
	s.pollInterval = d
}

// Start begins the polling loop. Returns an error if already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	log.Printf("[Scheduler] Starting with poll interval: %v", s.pollInterval)

	s.wg.Add(1)
	go s.loop()

	return nil
}

// Stop cancels future ticks and waits for the current one to finish. A
// dispatch already handed off keeps running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Printf("[Scheduler] Stopping...")
	s.cancel()
	s.wg.Wait()
	log.Printf("[Scheduler] Stopped. Activated: %d campaigns, errors: %d",
		atomic.LoadInt64(&s.campaignsActivated), atomic.LoadInt64(&s.tickErrors))
}

// Status reports whether the loop is running plus cumulative counters.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	return SchedulerStatus{
		Running:            running,
		CampaignsActivated: atomic.LoadInt64(&s.campaignsActivated),
		Errors:             atomic.LoadInt64(&s.tickErrors),
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	// First check fires immediately so campaigns due during downtime are
	// picked up without waiting a full interval.
	s.tick()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick claims and fires every due campaign. One bad campaign never aborts
// the rest of the batch.
func (s *Scheduler) tick() {
	metrics.SchedulerTicks.Inc()

	// Stop only prevents future ticks; an in-flight tick runs to completion
	// on its own deadline, never on the loop context.
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	due, err := s.store.FindDueScheduled(ctx, time.Now())
	if err != nil {
		log.Printf("[Scheduler] Error fetching due campaigns: %v", err)
		atomic.AddInt64(&s.tickErrors, 1)
		return
	}

	for i := range due {
		s.processDue(ctx, &due[i])
	}
}

func (s *Scheduler) processDue(ctx context.Context, c *domain.Campaign) {
	if s.redisClient != nil || s.db != nil {
		lock := distlock.NewLock(s.redisClient, s.db, fmt.Sprintf("campaign:%s", c.ID), 10*time.Minute)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			log.Printf("[Scheduler] Error acquiring lock for campaign %s: %v", c.ID, err)
			atomic.AddInt64(&s.tickErrors, 1)
			return
		}
		if !acquired {
			log.Printf("[Scheduler] Campaign %s already being processed by another worker", c.ID)
			return
		}
		defer lock.Release(ctx)
	}

	claimed, err := s.store.ClaimScheduled(ctx, c.ID)
	if err != nil {
		log.Printf("[Scheduler] Error claiming campaign %s: %v", c.ID, err)
		atomic.AddInt64(&s.tickErrors, 1)
		return
	}
	if !claimed {
		// Someone else won the transition; nothing to do.
		return
	}

	log.Printf("[Scheduler] Campaign %s (%s) activated", c.ID, c.Name)

	result, err := s.notifier.Post(ctx, buildEvent(c))
	if err != nil {
		log.Printf("[Scheduler] Campaign %s: webhook delivery failed: %v", c.ID, err)
		atomic.AddInt64(&s.tickErrors, 1)
		if markErr := s.store.MarkFailed(ctx, c.ID, fmt.Sprintf("automation webhook failed: %v", err)); markErr != nil {
			log.Printf("[Scheduler] Campaign %s: error marking failed: %v", c.ID, markErr)
		}
		return
	}
	if !result.OK {
		// Non-2xx means the automation side received and rejected; the
		// campaign stays active and the response is only logged.
		log.Printf("[Scheduler] Campaign %s: webhook returned %s", c.ID, result.Status)
	}

	atomic.AddInt64(&s.campaignsActivated, 1)
}

// newContext creates a fresh loop context (exposed for testing).
func (s *Scheduler) newContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

func buildEvent(c *domain.Campaign) webhook.CampaignEvent {
	ev := webhook.CampaignEvent{
		ID:   c.ID,
		Type: "campaign.scheduled.due",
		Template: webhook.EventTemplate{
			Subject:  c.Subject,
			HTMLBody: c.HTMLBody,
		},
		Schedule: c.ScheduledAt,
	}
	for _, a := range c.Attachments {
		ev.Media = append(ev.Media, webhook.EventMedia{Filename: a.Filename, URL: a.URL})
	}
	settings, err := json.Marshal(map[string]interface{}{
		"recipient_mode":    c.RecipientMode,
		"selected_statuses": c.SelectedStatuses,
		"custom_emails":     c.CustomEmails,
	})
	if err == nil {
		ev.Settings = settings
	}
	return ev
}
