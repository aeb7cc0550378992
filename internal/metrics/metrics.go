package metrics

import (
	"net/http"

	"github.com/aman-churiwal/quota-gateway/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quota_gateway"

const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"

	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginError              = "error"
)

// Metrics owns a private registry so several servers can coexist in one process
type Metrics struct {
	registry *prometheus.Registry

	AdmissionDecisions *prometheus.CounterVec
	Logins             *prometheus.CounterVec
	TokensIssued       prometheus.Counter
	WindowsSwept       prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		AdmissionDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_decisions_total",
			Help:      "Rate limiter decisions by tier and outcome",
		}, []string{"tier", "outcome"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),
		TokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued since start",
		}),
		WindowsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_windows_swept_total",
			Help:      "Expired quota windows removed by the sweeper",
		}),
	}
}

func (m *Metrics) ObserveDecision(tier models.Tier, allowed bool) {
	outcome := OutcomeRejected
	if allowed {
		outcome = OutcomeAllowed
	}
	m.AdmissionDecisions.WithLabelValues(tier.String(), outcome).Inc()
}

func (m *Metrics) ObserveLogin(result string) {
	m.Logins.WithLabelValues(result).Inc()
	if result == LoginSuccess {
		m.TokensIssued.Inc()
	}
}

func (m *Metrics) ObserveSweep(removed int) {
	m.WindowsSwept.Add(float64(removed))
}

// TrackQuotaWindows exposes the number of live quota windows as a gauge
func (m *Metrics) TrackQuotaWindows(count func() int) {
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "quota_windows",
		Help:      "Quota windows currently tracked",
	}, func() float64 {
		return float64(count())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
