package login

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stepup_logins_total",
			Help: "Total login evaluations by outcome",
		},
		[]string{"outcome"},
	)

	challengesIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stepup_challenges_issued_total",
			Help: "Total step-up challenges issued",
		},
		[]string{"method"},
	)

	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stepup_verifications_total",
			Help: "Total second factor verification attempts",
		},
		[]string{"method", "result"},
	)

	lockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stepup_lockouts_total",
			Help: "Total verification lockouts triggered",
		},
	)

	snapshotCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stepup_snapshot_cache_lookups_total",
			Help: "Factor snapshot cache lookups by result",
		},
		[]string{"result"},
	)
)
