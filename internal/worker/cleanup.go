package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/campaign-engine/internal/campaign"
	"github.com/ignite/campaign-engine/internal/metrics"
)

const (
	// DefaultCleanupInterval is how often the reconciler scans for stalls.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultStallTimeout is how long a campaign may stay active before the
	// reconciler assumes its dispatch loop died and force-completes it.
	DefaultStallTimeout = 2 * time.Hour
)

// Cleanup reconciles campaigns stuck in the active status, usually after a
// process crash mid-dispatch. Stalled campaigns are moved to completed with
// whatever counters they accumulated; partial progress stays visible.
type Cleanup struct {
	store campaign.Store

	interval     time.Duration
	stallTimeout time.Duration

	// Stats
	reconciled int64
	errors     int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// CleanupStatus is the externally visible loop state.
type CleanupStatus struct {
	Running    bool  `json:"running"`
	Reconciled int64 `json:"reconciled"`
	Errors     int64 `json:"errors"`
}

// NewCleanup creates a cleanup loop with the default interval and timeout.
func NewCleanup(store campaign.Store) *Cleanup {
	return &Cleanup{
		store:        store,
		interval:     DefaultCleanupInterval,
		stallTimeout: DefaultStallTimeout,
	}
}

// SetInterval overrides the scan interval.
func (c *Cleanup) SetInterval(d time.Duration) { c.interval = d }

// SetStallTimeout overrides the stall threshold.
func (c *Cleanup) SetStallTimeout(d time.Duration) { c.stallTimeout = d }

// Start begins the reconciliation loop. Returns an error if already running.
func (c *Cleanup) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("cleanup already running")
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	log.Printf("[Cleanup] Starting with interval %v, stall timeout %v", c.interval, c.stallTimeout)

	c.wg.Add(1)
	go c.loop()

	return nil
}

// Stop cancels future scans and waits for the current one to finish.
func (c *Cleanup) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	log.Printf("[Cleanup] Stopping...")
	c.cancel()
	c.wg.Wait()
	log.Printf("[Cleanup] Stopped. Reconciled: %d campaigns", atomic.LoadInt64(&c.reconciled))
}

// Status reports whether the loop is running plus cumulative counters.
func (c *Cleanup) Status() CleanupStatus {
	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()
	return CleanupStatus{
		Running:    running,
		Reconciled: atomic.LoadInt64(&c.reconciled),
		Errors:     atomic.LoadInt64(&c.errors),
	}
}

// newContext creates a fresh loop context (exposed for testing).
func (c *Cleanup) newContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

func (c *Cleanup) loop() {
	defer c.wg.Done()

	c.tick()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Cleanup) tick() {
	// Stop only prevents future scans; an in-flight scan runs to completion
	// on its own deadline, never on the loop context.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-c.stallTimeout)
	stalled, err := c.store.FindStalledActive(ctx, cutoff)
	if err != nil {
		log.Printf("[Cleanup] Error fetching stalled campaigns: %v", err)
		atomic.AddInt64(&c.errors, 1)
		return
	}

	for i := range stalled {
		cmp := &stalled[i]
		if err := c.store.MarkCompleted(ctx, cmp.ID); err != nil {
			log.Printf("[Cleanup] Error reconciling campaign %s: %v", cmp.ID, err)
			atomic.AddInt64(&c.errors, 1)
			continue
		}
		atomic.AddInt64(&c.reconciled, 1)
		metrics.StalledReconciled.Inc()
		log.Printf("[Cleanup] Campaign %s force-completed after stall (sent: %d, failed: %d)",
			cmp.ID, cmp.SentCount, cmp.FailedCount)
	}
}
