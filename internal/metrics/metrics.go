// Package metrics provides Prometheus metrics for the scoring service.
// It defines HTTP request, prediction, validation and registry metrics that
// are exposed on /metrics for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the scoring service.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by method, route and status code
	HTTPDuration *prometheus.HistogramVec // Request latency by method and route

	// Scoring metrics
	Predictions        *prometheus.CounterVec // Decisions served, by decision
	PredictionScores   prometheus.Histogram   // Distribution of served probabilities
	PredictionFailures prometheus.Counter     // Model invocations that returned an error
	ValidationErrors   prometheus.Counter     // Requests rejected by the feature contract

	// Model and registry metrics
	ModelInfo       *prometheus.GaugeVec   // Constant 1, labelled with the served reference
	RegistryLookups *prometheus.CounterVec // Version resolutions by result

	// Decision log and feed
	DecisionLogErrors prometheus.Counter // Failed decision log writes
	FeedClients       prometheus.Gauge   // Connected decision feed clients
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors, for serving from a dedicated /metrics handler.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewWithRegistry creates metrics on a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, handler and status",
		}, []string{"method", "handler", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "handler"}),
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of credit decisions served",
		}, []string{"decision"}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_probability",
			Help:    "Distribution of predicted default probabilities",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1.0},
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of model invocations that failed",
		}),
		ValidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_errors_total",
			Help: "Total number of prediction requests rejected by input validation",
		}),
		ModelInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "model_info",
			Help: "Served model reference and build, always 1",
		}, []string{"model_uri", "git_commit"}),
		RegistryLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_lookups_total",
			Help: "Total number of model version resolutions by result",
		}, []string{"result"}),
		DecisionLogErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "decision_log_errors_total",
			Help: "Total number of decision log writes that failed",
		}),
		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "decision_feed_clients",
			Help: "Number of connected decision feed clients",
		}),
	}
}

// SetModelInfo publishes the served reference.
func (m *Metrics) SetModelInfo(modelURI, gitCommit string) {
	m.ModelInfo.Reset()
	m.ModelInfo.WithLabelValues(modelURI, gitCommit).Set(1)
}
