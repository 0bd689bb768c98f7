package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ApplicationsSubmitted prometheus.Counter
	DuplicateSubmissions  prometheus.Counter
	PIIViews              prometheus.Counter
	Claims                prometheus.Counter
	ClaimConflictRetries  prometheus.Counter
	AssignmentsReclaimed  prometheus.Counter
	AuthFailures          prometheus.Counter
	ClaimDuration         prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ApplicationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_applications_submitted_total",
			Help: "Total number of membership applications accepted",
		}),
		DuplicateSubmissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_duplicate_submissions_total",
			Help: "Submissions rejected because the email blind index already exists",
		}),
		PIIViews: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_pii_views_total",
			Help: "Decrypted PII reads that produced an audit entry",
		}),
		Claims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_claims_total",
			Help: "Successful queue claims (automatic and manual)",
		}),
		ClaimConflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_claim_conflict_retries_total",
			Help: "Claim attempts retried after losing a concurrent conditional update",
		}),
		AssignmentsReclaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_assignments_reclaimed_total",
			Help: "Stale assignments returned to the pending queue",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_auth_failures_total",
			Help: "Failed login attempts",
		}),
		ClaimDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_claim_duration_seconds",
			Help:    "Latency of claim-next including the inline stale sweep",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
