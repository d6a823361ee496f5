package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Board metrics
	ScreamsCreatedTotal prometheus.Counter
	ReactionsTotal      *prometheus.CounterVec
	FeedEmptyTotal      prometheus.Counter

	// Collaborator and job metrics
	MemeGenerationsTotal *prometheus.CounterVec
	ArchiveRunsTotal     *prometheus.CounterVec
	ArchivedPostsTotal   prometheus.Counter
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics, registering them on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "screamboard_http_requests_total",
					Help: "HTTP requests by method, route and status",
				},
				[]string{"method", "route", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "screamboard_http_request_duration_seconds",
					Help:    "HTTP request latency",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
			ScreamsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "screamboard_screams_created_total",
				Help: "Screams created",
			}),
			ReactionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "screamboard_reactions_total",
					Help: "Reaction attempts by result (ok, skip, conflict, not_found, error)",
				},
				[]string{"result"},
			),
			FeedEmptyTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "screamboard_feed_empty_total",
				Help: "Feed requests that found no unseen scream",
			}),
			MemeGenerationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "screamboard_meme_generations_total",
					Help: "Meme generation attempts by result",
				},
				[]string{"result"},
			),
			ArchiveRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "screamboard_archive_runs_total",
					Help: "Weekly archive runs by trigger (admin, schedule, cli) and result",
				},
				[]string{"trigger", "result"},
			),
			ArchivedPostsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "screamboard_archived_posts_total",
				Help: "Posts written to weekly archives",
			}),
		}
	})
	return instance
}
