package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/form"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/predictor"
)

const namespace = "nba_predictor"

// Metrics holds the application's Prometheus collectors
type Metrics struct {
	Submissions     *prometheus.CounterVec
	PredictDuration *prometheus.HistogramVec
	BackendUp       prometheus.Gauge
	CacheLookups    *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	SSEClients      prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Completed prediction submissions by outcome and error kind",
		}, []string{"outcome", "kind"}),
		PredictDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predict_duration_seconds",
			Help:      "Latency of calls to the prediction service",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
		BackendUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_up",
			Help:      "1 when the last health probe of the prediction service succeeded",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Prediction cache lookups by result",
		}, []string{"result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Form sessions currently held in memory",
		}),
		SSEClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_clients",
			Help:      "Connected event stream clients",
		}),
	}

	reg.MustRegister(m.Submissions, m.PredictDuration, m.BackendUp, m.CacheLookups, m.ActiveSessions, m.SSEClients)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveSubmission counts one finished submission. kind is empty on success.
func (m *Metrics) ObserveSubmission(outcome models.Outcome, kind string) {
	if kind == "" {
		kind = "none"
	}
	m.Submissions.WithLabelValues(string(outcome), kind).Inc()
}

// SetBackendUp records the latest health probe
func (m *Metrics) SetBackendUp(up bool) {
	if up {
		m.BackendUp.Set(1)
	} else {
		m.BackendUp.Set(0)
	}
}

// CacheLookup implements cache.Observer
func (m *Metrics) CacheLookup(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// TimedPredictor records the latency of every prediction call
type TimedPredictor struct {
	next    form.Predictor
	metrics *Metrics
}

// InstrumentPredictor wraps next so each call lands in PredictDuration
func (m *Metrics) InstrumentPredictor(next form.Predictor) *TimedPredictor {
	return &TimedPredictor{next: next, metrics: m}
}

func (t *TimedPredictor) Predict(ctx context.Context, req models.GameRequest) (*models.PredictionResult, error) {
	start := time.Now()
	res, err := t.next.Predict(ctx, req)

	outcome := "success"
	if err != nil {
		outcome = string(predictor.AsError(err).Kind)
	}
	t.metrics.PredictDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return res, err
}
