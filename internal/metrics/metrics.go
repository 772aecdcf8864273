package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dotsboxes"

// Collectors agrupa as métricas do servidor de partidas.
type Collectors struct {
	ConnectionsActive prometheus.Gauge
	SessionsLoggedIn  prometheus.Gauge
	QueueLength       prometheus.Gauge
	MatchesActive     prometheus.Gauge
	MovesTotal        *prometheus.CounterVec
	GamesFinished     *prometheus.CounterVec
	ProtocolErrors    *prometheus.CounterVec
}

// New registra as métricas em reg. Com reg nil nada é registrado (útil em testes).
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open client connections.",
		}),
		SessionsLoggedIn: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_logged_in",
			Help:      "Sessions holding an identity.",
		}),
		QueueLength: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Sessions waiting for a match.",
		}),
		MatchesActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matches_active",
			Help:      "Matches in progress.",
		}),
		MovesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Moves received, by result.",
		}, []string{"result"}),
		GamesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished matches, by GAMEOVER reason.",
		}, []string{"reason"}),
		ProtocolErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "ERROR replies sent to clients.",
		}, []string{"fatal"}),
	}
}

// Handler expõe o registry no formato do Prometheus.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
