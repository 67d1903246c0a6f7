package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChallengesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockduel_challenges_created_total",
		Help: "Open challenges created.",
	})

	ChallengesJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockduel_challenges_joined_total",
		Help: "Challenges successfully joined (sessions created).",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blockduel_active_sessions",
		Help: "Sessions currently in play.",
	})

	MatchesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockduel_matches_completed_total",
		Help: "Matches recorded, by mode and play type.",
	}, []string{"mode", "play_type"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
