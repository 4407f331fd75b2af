package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/campaign-engine/internal/domain"
)

// LeadStore implements campaign.LeadSource against PostgreSQL.
type LeadStore struct{ db *sql.DB }

// NewLeadStore creates a Postgres-backed lead source.
func NewLeadStore(db *sql.DB) *LeadStore { return &LeadStore{db: db} }

func (s *LeadStore) EmailableLeads(ctx context.Context, orgID string) ([]domain.Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, COALESCE(first_name,''), COALESCE(last_name,'')
		FROM crm_leads
		WHERE organization_id = $1 AND email IS NOT NULL AND email <> ''
		ORDER BY created_at ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query emailable leads: %w", err)
	}
	defer rows.Close()
	return collectRecipients(rows)
}

func (s *LeadStore) LeadsByStatus(ctx context.Context, orgID string, statuses []string) ([]domain.Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, COALESCE(first_name,''), COALESCE(last_name,'')
		FROM crm_leads
		WHERE organization_id = $1 AND status = ANY($2)
		  AND email IS NOT NULL AND email <> ''
		ORDER BY created_at ASC
	`, orgID, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("query leads by status: %w", err)
	}
	defer rows.Close()
	return collectRecipients(rows)
}

func collectRecipients(rows *sql.Rows) ([]domain.Recipient, error) {
	var out []domain.Recipient
	for rows.Next() {
		var email, first, last string
		if err := rows.Scan(&email, &first, &last); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, domain.Recipient{
			Address:     email,
			DisplayName: strings.TrimSpace(first + " " + last),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return out, nil
}
