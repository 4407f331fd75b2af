// Package metrics holds the Prometheus collectors for the dispatch engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmailsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_emails_sent_total",
		Help: "Emails accepted by the mail provider.",
	})

	EmailsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_emails_failed_total",
		Help: "Per-recipient send failures.",
	})

	CampaignsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaigns_dispatched_total",
		Help: "Finished dispatch runs by outcome.",
	}, []string{"outcome"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "campaign_dispatch_duration_seconds",
		Help:    "Wall time of a full campaign dispatch run.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_scheduler_ticks_total",
		Help: "Scheduler poll iterations.",
	})

	StalledReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_stalled_reconciled_total",
		Help: "Stalled active campaigns force-completed by the cleanup loop.",
	})
)
