package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-engine/internal/campaign"
	"github.com/ignite/campaign-engine/internal/pkg/httputil"
	"github.com/ignite/campaign-engine/internal/worker"
)

// dispatchRequest carries optional sender overrides for an immediate send.
type dispatchRequest struct {
	FromName    string `json:"from_name,omitempty"`
	FromEmail   string `json:"from_email,omitempty"`
	ReplyTo     string `json:"reply_to,omitempty"`
	SendDelayMS int    `json:"send_delay_ms,omitempty"`
}

// handleDispatch starts a campaign send. It answers 202 once the campaign is
// durably active; progress is polled via GET on the campaign.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dispatchRequest
	if r.ContentLength > 0 {
		if !httputil.Decode(w, r, &req) {
			return
		}
	}

	settings := worker.DispatchSettings{
		FromName:  req.FromName,
		FromEmail: req.FromEmail,
		ReplyTo:   req.ReplyTo,
		SendDelay: time.Duration(req.SendDelayMS) * time.Millisecond,
	}

	err := s.dispatcher.Dispatch(r.Context(), id, settings)
	switch {
	case err == nil:
		httputil.Accepted(w, map[string]string{"id": id, "status": "active"})
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrDispatchInFlight):
		httputil.Conflict(w, "campaign dispatch already in flight")
	case errors.Is(err, campaign.ErrTerminalStatus):
		httputil.Conflict(w, "campaign already completed or failed")
	default:
		httputil.InternalError(w, err)
	}
}

// handleGetCampaign returns the campaign with its live progress counters and
// failure log.
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.store.Get(r.Context(), id)
	switch {
	case err == nil:
		httputil.OK(w, c)
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	default:
		httputil.InternalError(w, err)
	}
}

func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Start(); err != nil {
		httputil.Conflict(w, err.Error())
		return
	}
	httputil.OK(w, s.scheduler.Status())
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Stop()
	httputil.OK(w, s.scheduler.Status())
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, s.scheduler.Status())
}

func (s *Server) handleCleanupStart(w http.ResponseWriter, r *http.Request) {
	if err := s.cleanup.Start(); err != nil {
		httputil.Conflict(w, err.Error())
		return
	}
	httputil.OK(w, s.cleanup.Status())
}

func (s *Server) handleCleanupStop(w http.ResponseWriter, r *http.Request) {
	s.cleanup.Stop()
	httputil.OK(w, s.cleanup.Status())
}

func (s *Server) handleCleanupStatus(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, s.cleanup.Status())
}
