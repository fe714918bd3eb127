package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "WebSocket connections currently open",
		},
	)
	EventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_received_total",
			Help: "Inbound events by name",
		},
		[]string{"event"},
	)
	EventErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_event_errors_total",
			Help: "Error events sent back to clients, by kind",
		},
		[]string{"kind"},
	)
	MatchesProposed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaking_matches_proposed_total",
			Help: "Random pairings proposed to both sides",
		},
	)
	MatchesCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaking_matches_cancelled_total",
			Help: "Pairings cancelled before both sides approved",
		},
	)
	SessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_sessions_created_total",
			Help: "Duel sessions created, by how the pair was formed",
		},
		[]string{"mode"},
	)
	SessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_sessions_finished_total",
			Help: "Duel sessions finished, by reason",
		},
		[]string{"reason"},
	)
	GuessesScored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duel_guesses_total",
			Help: "Guesses scored",
		},
	)
	SecretCodesAllocated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "secret_codes_allocated_total",
			Help: "Join codes handed out",
		},
	)
	SecretCodeRefills = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "secret_code_refills_total",
			Help: "Pool refills",
		},
	)
	RateLimitRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_requests_total",
			Help: "Total requests seen by the rate limiter",
		},
		[]string{"endpoint"},
	)
	RateLimitBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_blocked_total",
			Help: "Total requests blocked by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		EventsReceived,
		EventErrors,
		MatchesProposed,
		MatchesCancelled,
		SessionsCreated,
		SessionsFinished,
		GuessesScored,
		SecretCodesAllocated,
		SecretCodeRefills,
		RateLimitRequests,
		RateLimitBlocked,
	)
}
