package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/campaign-engine/internal/campaign"
	"github.com/ignite/campaign-engine/internal/domain"
)

// CampaignStore implements campaign.Store against PostgreSQL.
type CampaignStore struct{ db *sql.DB }

// NewCampaignStore creates a Postgres-backed campaign store.
func NewCampaignStore(db *sql.DB) *CampaignStore { return &CampaignStore{db: db} }

const campaignColumns = `
	id, organization_id, name, subject, COALESCE(body_html,''),
	COALESCE(attachments,'[]'), status, recipient_mode,
	COALESCE(selected_statuses,'{}'), COALESCE(custom_emails,''),
	scheduled_at, started_at, completed_at,
	sent_count, failed_count, delivered_count,
	COALESCE(metadata,'{}'), created_at, updated_at`

func (s *CampaignStore) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+campaignColumns+`
		FROM crm_campaigns
		WHERE id = $1
	`, id)

	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (s *CampaignStore) FindDueScheduled(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+campaignColumns+`
		FROM crm_campaigns
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("find due campaigns: %w", err)
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func (s *CampaignStore) FindStalledActive(ctx context.Context, cutoff time.Time) ([]domain.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+campaignColumns+`
		FROM crm_campaigns
		WHERE status = 'active' AND started_at < $1 AND completed_at IS NULL
		ORDER BY started_at ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find stalled campaigns: %w", err)
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

// ClaimScheduled is the compare-and-set that prevents two schedulers (or two
// ticks of one scheduler) from activating the same campaign.
func (s *CampaignStore) ClaimScheduled(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE crm_campaigns
		SET status = 'active', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`, id)
	if err != nil {
		return false, fmt.Errorf("claim scheduled campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim scheduled campaign: %w", err)
	}
	return n > 0, nil
}

// BeginDispatch marks a campaign active for an immediate send. A campaign the
// scheduler already activated is accepted; started_at keeps its original value
// in that case.
func (s *CampaignStore) BeginDispatch(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE crm_campaigns
		SET status = 'active', started_at = COALESCE(started_at, NOW()), updated_at = NOW()
		WHERE id = $1 AND status IN ('draft','scheduled','active')
	`, id)
	if err != nil {
		return false, fmt.Errorf("begin dispatch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("begin dispatch: %w", err)
	}
	return n > 0, nil
}

func (s *CampaignStore) RecordSend(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crm_campaigns
		SET sent_count = sent_count + 1,
		    delivered_count = delivered_count + 1,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("record send: %w", err)
	}
	return nil
}

// RecordFailure bumps the counter and appends the failure entry to the
// metadata log in one statement, so concurrent writers never drop each
// other's entries.
func (s *CampaignStore) RecordFailure(ctx context.Context, id string, f domain.SendFailure) error {
	entry, err := json.Marshal([]domain.SendFailure{f})
	if err != nil {
		return fmt.Errorf("record failure: marshal entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE crm_campaigns
		SET failed_count = failed_count + 1,
		    metadata = jsonb_set(COALESCE(metadata,'{}'), '{failures}',
		        COALESCE(metadata->'failures','[]'::jsonb) || $2::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`, id, string(entry))
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

func (s *CampaignStore) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crm_campaigns
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed merges last_error into the metadata additively; any failure log
// already recorded stays intact.
func (s *CampaignStore) MarkFailed(ctx context.Context, id string, lastError string) error {
	errJSON, err := json.Marshal(lastError)
	if err != nil {
		return fmt.Errorf("mark failed: marshal error: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE crm_campaigns
		SET status = 'failed', completed_at = NOW(),
		    metadata = jsonb_set(COALESCE(metadata,'{}'), '{last_error}', $2::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`, id, string(errJSON))
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var attachmentsJSON, metadataJSON []byte
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Subject, &c.HTMLBody,
		&attachmentsJSON, &c.Status, &c.RecipientMode,
		pq.Array(&c.SelectedStatuses), &c.CustomEmails,
		&c.ScheduledAt, &c.StartedAt, &c.CompletedAt,
		&c.SentCount, &c.FailedCount, &c.DeliveredCount,
		&metadataJSON, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(attachmentsJSON) > 0 {
		if err := json.Unmarshal(attachmentsJSON, &c.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return c, nil
}

func collectCampaigns(rows *sql.Rows) ([]domain.Campaign, error) {
	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return out, nil
}
