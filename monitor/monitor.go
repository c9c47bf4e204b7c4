// monitor/monitor.go
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/musicalchairs/game"
)

type Metrics struct {
	GamesStarted  prometheus.Counter
	GamesFinished prometheus.Counter
	ActiveGames   prometheus.Gauge
	Rounds        prometheus.Counter
	Eliminations  prometheus.Counter
	Chairs        *prometheus.GaugeVec
	SettleLatency prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Number of games that played their first round",
		}),
		GamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Number of games that ended with a winner",
		}),
		ActiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_games",
			Help:      "Number of games currently being played",
		}),
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Number of rounds started",
		}),
		Eliminations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eliminations_total",
			Help:      "Number of players eliminated",
		}),
		Chairs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chairs",
			Help:      "Chairs in play for the current round",
		}, []string{"game"}),
		SettleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "race_settle_seconds",
			Help:      "Time from the music stopping to the loser leaving",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	reg.MustRegister(
		m.GamesStarted,
		m.GamesFinished,
		m.ActiveGames,
		m.Rounds,
		m.Eliminations,
		m.Chairs,
		m.SettleLatency,
	)

	return m
}

// Monitor turns game events into metrics.
type Monitor struct {
	metrics  *Metrics
	registry *prometheus.Registry
}

// NewMonitor registers its metrics on reg. A nil reg gets a fresh registry
// that also carries the Go runtime and process collectors.
func NewMonitor(namespace string, reg *prometheus.Registry) *Monitor {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return &Monitor{
		metrics:  NewMetrics(namespace, reg),
		registry: reg,
	}
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Notify implements game.Notifier.
func (m *Monitor) Notify(e game.Event) {
	switch e.Kind {
	case game.EventRoundStarted:
		if e.Round == 1 {
			m.metrics.GamesStarted.Inc()
			m.metrics.ActiveGames.Inc()
		}
		m.metrics.Rounds.Inc()
		m.metrics.Chairs.WithLabelValues(e.GameID).Set(float64(e.Chairs))
	case game.EventPlayerEliminated:
		m.metrics.Eliminations.Inc()
	case game.EventRoundState:
		m.metrics.SettleLatency.Observe(e.Settle.Seconds())
	case game.EventGameOver:
		m.metrics.GamesFinished.Inc()
		m.metrics.ActiveGames.Dec()
		m.metrics.Chairs.DeleteLabelValues(e.GameID)
	}
}

// GameAborted balances ActiveGames for a game that ended without a winner.
func (m *Monitor) GameAborted(gameID string) {
	m.metrics.ActiveGames.Dec()
	m.metrics.Chairs.DeleteLabelValues(gameID)
}
