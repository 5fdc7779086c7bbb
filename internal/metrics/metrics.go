// Package metrics defines the Prometheus instruments for the poll engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pollwatch_polls_created_total",
		Help: "Number of polls created.",
	})

	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pollwatch_votes_total",
		Help: "Vote submissions by outcome.",
	}, []string{"outcome"})

	RendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pollwatch_renders_total",
		Help: "Result renders by kind (live or final).",
	}, []string{"kind"})

	RenderFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pollwatch_render_failures_total",
		Help: "Best-effort renders that failed and were logged.",
	})

	SessionsRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pollwatch_sessions_recovered_total",
		Help: "Open sessions reconstructed from the store at startup.",
	})

	FinalizationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pollwatch_finalizations_total",
		Help: "Polls driven through the closing transition.",
	})

	LiveFeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pollwatch_live_feed_clients",
		Help: "Currently connected live result feed subscribers.",
	})

	SinkBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pollwatch_sink_breaker_state",
		Help: "Circuit breaker state of the results sink (0 closed, 1 half-open, 2 open).",
	})
)
