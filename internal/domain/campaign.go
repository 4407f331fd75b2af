package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// Terminal reports whether the status is final. Counters and timestamps are
// frozen once a campaign reaches a terminal status; only audit metadata may
// still be appended.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignCompleted || s == CampaignFailed
}

// RecipientMode determines how a campaign's recipient list is resolved.
type RecipientMode string

const (
	// RecipientAll targets every lead of the organization with a usable address.
	RecipientAll RecipientMode = "all"
	// RecipientSegments targets leads whose status label is in SelectedStatuses.
	RecipientSegments RecipientMode = "segments"
	// RecipientCustom targets the raw comma-separated CustomEmails list.
	RecipientCustom RecipientMode = "custom"
)

// Campaign represents one outbound bulk-messaging job with its content,
// targeting configuration and dispatch progress counters.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	Name           string         `json:"name" db:"name"`
	Subject        string         `json:"subject" db:"subject"`
	HTMLBody       string         `json:"html_body" db:"body_html"`
	Attachments    []Attachment   `json:"attachments,omitempty" db:"attachments"`
	Status         CampaignStatus `json:"status" db:"status"`

	RecipientMode    RecipientMode `json:"recipient_mode" db:"recipient_mode"`
	SelectedStatuses []string      `json:"selected_statuses,omitempty" db:"selected_statuses"`
	CustomEmails     string        `json:"custom_emails,omitempty" db:"custom_emails"`

	// ScheduledAt is only meaningful while Status == CampaignScheduled. It is
	// kept for audit after the transition, so due-campaign queries must filter
	// on status as well.
	ScheduledAt *time.Time `json:"scheduled_at" db:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`

	// Progress counters, monotonically non-decreasing, updated incrementally
	// during dispatch.
	SentCount      int `json:"sent_count" db:"sent_count"`
	FailedCount    int `json:"failed_count" db:"failed_count"`
	DeliveredCount int `json:"delivered_count" db:"delivered_count"`

	Metadata CampaignMetadata `json:"metadata" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CampaignMetadata is the open audit document attached to a campaign. All
// writes to it are additive merges at the store layer so concurrently written
// failure entries are never lost.
type CampaignMetadata struct {
	Failures  []SendFailure `json:"failures,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// SendFailure records a single per-recipient send failure.
type SendFailure struct {
	Recipient string    `json:"recipient"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Attachment describes a file attached to the campaign content.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url"`
}

// Recipient is an ephemeral value resolved fresh on every dispatch run;
// it is never persisted as its own entity because lead data may have changed
// since the campaign was scheduled.
type Recipient struct {
	Address     string `json:"address"`
	DisplayName string `json:"display_name,omitempty"`
}
