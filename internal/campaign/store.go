package campaign

import (
	"context"
	"time"

	"github.com/ignite/campaign-engine/internal/domain"
)

// Store defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// FindDueScheduled returns campaigns with status=scheduled whose
	// scheduled_at is at or before now, ordered by scheduled_at.
	FindDueScheduled(ctx context.Context, now time.Time) ([]domain.Campaign, error)

	// FindStalledActive returns campaigns still marked active whose dispatch
	// started before cutoff and never completed.
	FindStalledActive(ctx context.Context, cutoff time.Time) ([]domain.Campaign, error)

	// ClaimScheduled atomically moves a campaign from scheduled to active and
	// stamps started_at. Returns false when the campaign was not in the
	// scheduled status, which is how concurrent claimers lose the race.
	ClaimScheduled(ctx context.Context, id string) (bool, error)

	// BeginDispatch marks a campaign active for an immediate send. Unlike
	// ClaimScheduled it accepts draft, scheduled and already-active campaigns;
	// started_at is only set if it was not set before. Returns false for
	// campaigns in a terminal status.
	BeginDispatch(ctx context.Context, id string) (bool, error)

	// RecordSend increments sent_count and delivered_count by one.
	RecordSend(ctx context.Context, id string) error

	// RecordFailure increments failed_count and appends f to the campaign's
	// metadata failure log in a single statement.
	RecordFailure(ctx context.Context, id string, f domain.SendFailure) error

	// MarkCompleted moves a campaign to completed and stamps completed_at.
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed moves a campaign to failed, stamps completed_at and merges
	// lastError into the metadata without discarding the failure log.
	MarkFailed(ctx context.Context, id string, lastError string) error
}

// LeadSource provides the read-only lead queries the resolver needs.
type LeadSource interface {
	// EmailableLeads returns all leads of the organization with a non-empty
	// email address, in creation order.
	EmailableLeads(ctx context.Context, orgID string) ([]domain.Recipient, error)

	// LeadsByStatus returns emailable leads whose status label is in statuses.
	LeadsByStatus(ctx context.Context, orgID string, statuses []string) ([]domain.Recipient, error)
}
