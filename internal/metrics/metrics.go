package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vkinder_events_total",
			Help: "Total number of inbound events, by recognized command",
		},
		[]string{"command"},
	)

	SearchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vkinder_searches_total",
			Help: "Total number of candidate searches seeded",
		},
	)

	CandidatesShownTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vkinder_candidates_shown_total",
			Help: "Total number of candidates announced to requesters",
		},
	)

	FavoritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vkinder_favorites_total",
			Help: "Total number of add-to-favorites decisions",
		},
	)

	BlacklistsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vkinder_blacklists_total",
			Help: "Total number of add-to-blacklist decisions",
		},
	)

	StreamsExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vkinder_streams_exhausted_total",
			Help: "Total number of candidate streams that ran dry",
		},
	)

	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vkinder_provider_errors_total",
			Help: "Total number of failed VK API calls, by method",
		},
		[]string{"method"},
	)
)
