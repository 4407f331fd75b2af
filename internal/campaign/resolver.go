package campaign

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/campaign-engine/internal/domain"
)

// Resolver turns a campaign's targeting configuration into a concrete
// recipient list. Resolution happens fresh at dispatch time, never at
// scheduling time, so the list reflects current lead data.
type Resolver struct {
	leads LeadSource
}

// NewResolver creates a resolver over the given lead source.
func NewResolver(leads LeadSource) *Resolver {
	return &Resolver{leads: leads}
}

// Resolve returns the ordered recipient list for the campaign. An empty list
// is a valid result. Addresses are not deduplicated; a lead present twice
// receives the message twice.
func (r *Resolver) Resolve(ctx context.Context, c *domain.Campaign) ([]domain.Recipient, error) {
	switch c.RecipientMode {
	case domain.RecipientAll:
		recipients, err := r.leads.EmailableLeads(ctx, c.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("resolve all recipients: %w", err)
		}
		return recipients, nil

	case domain.RecipientSegments:
		if len(c.SelectedStatuses) == 0 {
			return nil, fmt.Errorf("%w: segments mode with no statuses selected", ErrInvalidTargeting)
		}
		recipients, err := r.leads.LeadsByStatus(ctx, c.OrganizationID, c.SelectedStatuses)
		if err != nil {
			return nil, fmt.Errorf("resolve segment recipients: %w", err)
		}
		return recipients, nil

	case domain.RecipientCustom:
		return parseCustomEmails(c.CustomEmails), nil

	default:
		return nil, fmt.Errorf("%w: unknown recipient mode %q", ErrInvalidTargeting, c.RecipientMode)
	}
}

// parseCustomEmails splits a comma-separated address list, trims whitespace
// and keeps only tokens that look like addresses. Malformed tokens are
// silently dropped rather than failing the whole campaign.
func parseCustomEmails(raw string) []domain.Recipient {
	var out []domain.Recipient
	for _, tok := range strings.Split(raw, ",") {
		addr := strings.TrimSpace(tok)
		if addr == "" || !strings.Contains(addr, "@") {
			continue
		}
		out = append(out, domain.Recipient{Address: addr})
	}
	return out
}
