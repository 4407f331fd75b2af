// Package webhook posts campaign activation events to the external
// automation pipeline. Delivery is best-effort and at-least-once; the
// receiving side is expected to tolerate duplicates.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// CampaignEvent is the payload posted when a scheduled campaign activates.
type CampaignEvent struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Template EventTemplate   `json:"template"`
	Settings json.RawMessage `json:"settings,omitempty"`
	Media    []EventMedia    `json:"media,omitempty"`
	Schedule *time.Time      `json:"schedule,omitempty"`
}

// EventTemplate carries the campaign content for the automation side.
type EventTemplate struct {
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

// EventMedia references one campaign attachment.
type EventMedia struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Result describes the webhook response. OK is false for non-2xx responses,
// which are logged but never treated as campaign failures.
type Result struct {
	OK     bool
	Status string
}

// Notifier posts events to a fixed webhook URL. A Notifier with an empty URL
// is disabled and reports success without doing anything.
type Notifier struct {
	url    string
	client *http.Client
}

// NewNotifier creates a notifier for the given URL.
func NewNotifier(url string) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Post sends the event. A transport-level failure is returned as an error;
// a non-2xx response only flips Result.OK.
func (n *Notifier) Post(ctx context.Context, ev CampaignEvent) (Result, error) {
	if n.url == "" {
		return Result{OK: true, Status: "disabled"}, nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return Result{}, fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[Webhook] non-2xx response for campaign %s: %s", ev.ID, resp.Status)
		return Result{OK: false, Status: resp.Status}, nil
	}
	return Result{OK: true, Status: resp.Status}, nil
}
