package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectedPlayers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetris_connected_players",
			Help: "Players currently connected over any transport",
		},
	)
	PendingPlayers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetris_pending_players",
			Help: "Players waiting for a pool to fill",
		},
	)
	ActivePools = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetris_active_pools",
			Help: "Pools with at least one connected member",
		},
	)
	ActionsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetris_actions_applied_total",
			Help: "Actions accepted by the authoritative boards",
		},
		[]string{"kind"},
	)
	ActionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetris_actions_rejected_total",
			Help: "Actions rejected by the authoritative boards",
		},
		[]string{"reason"},
	)
	GarbageLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetris_garbage_lines_total",
			Help: "Garbage lines delivered to opponents",
		},
	)
	Eliminations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetris_eliminations_total",
			Help: "Players topped out or disconnected mid-match",
		},
	)
	MatchesFinished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetris_matches_finished_total",
			Help: "Matches that reached a result",
		},
	)
	ThrottledInputs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetris_throttled_inputs_total",
			Help: "Inputs dropped by the per-connection rate limiter",
		},
		[]string{"transport"},
	)
	DroppedClients = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetris_dropped_clients_total",
			Help: "Connections dropped because their outbox was full",
		},
	)
	Resyncs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetris_client_resyncs_total",
			Help: "Client predictions discarded after disagreeing with the server",
		},
	)
)

func init() {
	prometheus.MustRegister(ConnectedPlayers)
	prometheus.MustRegister(PendingPlayers)
	prometheus.MustRegister(ActivePools)
	prometheus.MustRegister(ActionsApplied)
	prometheus.MustRegister(ActionsRejected)
	prometheus.MustRegister(GarbageLines)
	prometheus.MustRegister(Eliminations)
	prometheus.MustRegister(MatchesFinished)
	prometheus.MustRegister(ThrottledInputs)
	prometheus.MustRegister(DroppedClients)
	prometheus.MustRegister(Resyncs)
}
