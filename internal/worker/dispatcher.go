package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignite/campaign-engine/internal/campaign"
	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/mailer"
	"github.com/ignite/campaign-engine/internal/metrics"
	"github.com/ignite/campaign-engine/internal/template"
)

// DefaultSendDelay is the pause between consecutive sends of one campaign.
// It applies after every attempt, success or failure.
const DefaultSendDelay = 500 * time.Millisecond

// DispatchSettings carries the per-dispatch sender identity and an optional
// pacing override.
type DispatchSettings struct {
	FromName  string
	FromEmail string
	ReplyTo   string

	// SendDelay overrides the dispatcher default when > 0.
	SendDelay time.Duration
}

// Dispatcher runs campaign send loops. Each campaign sends strictly
// sequentially in its own goroutine; different campaigns may run in
// parallel. A campaign already in flight cannot be dispatched again until
// its run finishes.
type Dispatcher struct {
	store     campaign.Store
	resolver  *campaign.Resolver
	sender    mailer.Sender
	templates *template.Engine
	sendDelay time.Duration

	inFlight sync.Map // campaign id -> struct{}
	wg       sync.WaitGroup

	// Stats
	campaignsRun int64
	emailsSent   int64
	emailsFailed int64
}

// NewDispatcher creates a dispatcher with the default inter-message delay.
func NewDispatcher(store campaign.Store, resolver *campaign.Resolver, sender mailer.Sender, templates *template.Engine) *Dispatcher {
	return &Dispatcher{
		store:     store,
		resolver:  resolver,
		sender:    sender,
		templates: templates,
		sendDelay: DefaultSendDelay,
	}
}

// SetSendDelay overrides the default inter-message delay. Zero disables
// pacing, which tests rely on.
func (d *Dispatcher) SetSendDelay(delay time.Duration) {
	d.sendDelay = delay
}

// Dispatch marks the campaign active and launches its send loop in the
// background. It returns once the status transition is durable, so callers
// can immediately answer "accepted" and poll counters afterwards.
//
// Returns ErrDispatchInFlight when this process is already sending the
// campaign, ErrTerminalStatus when the campaign already completed or failed.
func (d *Dispatcher) Dispatch(ctx context.Context, id string, settings DispatchSettings) error {
	if _, loaded := d.inFlight.LoadOrStore(id, struct{}{}); loaded {
		return campaign.ErrDispatchInFlight
	}

	c, err := d.store.Get(ctx, id)
	if err != nil {
		d.inFlight.Delete(id)
		return err
	}
	if c.Status.Terminal() {
		d.inFlight.Delete(id)
		return campaign.ErrTerminalStatus
	}

	ok, err := d.store.BeginDispatch(ctx, id)
	if err != nil {
		d.inFlight.Delete(id)
		return fmt.Errorf("begin dispatch: %w", err)
	}
	if !ok {
		d.inFlight.Delete(id)
		return campaign.ErrTerminalStatus
	}

	// The send loop outlives the request; detach from the caller's context.
	d.wg.Add(1)
	go d.run(context.Background(), c, settings)

	return nil
}

// Wait blocks until all in-flight send loops finish. Used on shutdown and in
// tests; a running loop is never cancelled mid-campaign.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Stats returns cumulative dispatcher counters.
func (d *Dispatcher) Stats() (campaigns, sent, failed int64) {
	return atomic.LoadInt64(&d.campaignsRun),
		atomic.LoadInt64(&d.emailsSent),
		atomic.LoadInt64(&d.emailsFailed)
}

func (d *Dispatcher) run(ctx context.Context, c *domain.Campaign, settings DispatchSettings) {
	defer d.wg.Done()
	defer d.inFlight.Delete(c.ID)

	started := time.Now()
	defer func() {
		metrics.DispatchDuration.Observe(time.Since(started).Seconds())
	}()

	recipients, err := d.resolver.Resolve(ctx, c)
	if err != nil {
		log.Printf("[Dispatcher] Campaign %s: recipient resolution failed: %v", c.ID, err)
		d.fail(ctx, c.ID, err)
		return
	}

	log.Printf("[Dispatcher] Campaign %s: sending to %d recipients", c.ID, len(recipients))

	delay := d.sendDelay
	if settings.SendDelay > 0 {
		delay = settings.SendDelay
	}
	// rate.Every(0) is rate.Inf, so a zero delay skips pacing entirely.
	limiter := rate.NewLimiter(rate.Every(delay), 1)

	for _, r := range recipients {
		if err := limiter.Wait(ctx); err != nil {
			d.fail(ctx, c.ID, err)
			return
		}
		if err := d.sendOne(ctx, c, r, settings); err != nil {
			d.fail(ctx, c.ID, err)
			return
		}
	}

	if err := d.store.MarkCompleted(ctx, c.ID); err != nil {
		log.Printf("[Dispatcher] Campaign %s: error marking completed: %v", c.ID, err)
		metrics.CampaignsDispatched.WithLabelValues("error").Inc()
		return
	}

	atomic.AddInt64(&d.campaignsRun, 1)
	metrics.CampaignsDispatched.WithLabelValues("completed").Inc()
	log.Printf("[Dispatcher] Campaign %s: completed (%d recipients)", c.ID, len(recipients))
}

// sendOne renders and sends to a single recipient, then persists the
// outcome. A send failure is contained; only a persistence failure is
// returned, which aborts the run.
func (d *Dispatcher) sendOne(ctx context.Context, c *domain.Campaign, r domain.Recipient, settings DispatchSettings) error {
	bindings := template.Bindings(r)
	subject, err := d.templates.Render(c.Subject, bindings)
	if err != nil {
		log.Printf("[Dispatcher] Campaign %s: subject render error for %s, sending raw: %v", c.ID, r.Address, err)
	}
	body, err := d.templates.Render(c.HTMLBody, bindings)
	if err != nil {
		log.Printf("[Dispatcher] Campaign %s: body render error for %s, sending raw: %v", c.ID, r.Address, err)
	}

	msg := mailer.Message{
		To:        r.Address,
		ToName:    r.DisplayName,
		FromName:  settings.FromName,
		FromEmail: settings.FromEmail,
		ReplyTo:   settings.ReplyTo,
		Subject:   subject,
		HTMLBody:  body,
	}
	for _, a := range c.Attachments {
		msg.Attachments = append(msg.Attachments, mailer.AttachmentRef{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			URL:         a.URL,
		})
	}

	if sendErr := d.sender.Send(ctx, msg); sendErr != nil {
		atomic.AddInt64(&d.emailsFailed, 1)
		metrics.EmailsFailed.Inc()
		failure := domain.SendFailure{
			Recipient: r.Address,
			Error:     sendErr.Error(),
			Timestamp: time.Now().UTC(),
		}
		if err := d.store.RecordFailure(ctx, c.ID, failure); err != nil {
			return fmt.Errorf("record failure for %s: %w", r.Address, err)
		}
		return nil
	}

	atomic.AddInt64(&d.emailsSent, 1)
	metrics.EmailsSent.Inc()
	if err := d.store.RecordSend(ctx, c.ID); err != nil {
		return fmt.Errorf("record send for %s: %w", r.Address, err)
	}
	return nil
}

// fail moves the campaign to failed with the fatal error recorded. Progress
// counters written so far stay as they are.
func (d *Dispatcher) fail(ctx context.Context, id string, cause error) {
	if err := d.store.MarkFailed(ctx, id, cause.Error()); err != nil {
		log.Printf("[Dispatcher] Campaign %s: error marking failed: %v", id, err)
	}
	metrics.CampaignsDispatched.WithLabelValues("failed").Inc()
}
