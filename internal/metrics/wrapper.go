package metrics

import (
	"strconv"
	"time"
)

// MetricsWrapper adapts Metrics to the narrow recorder interfaces the scoring,
// registry and server packages declare, so those packages stay free of
// Prometheus types.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionObserve(decision string, probability float64) {
	w.m.Predictions.WithLabelValues(decision).Inc()
	w.m.PredictionScores.Observe(probability)
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) ValidationErrorsInc() {
	w.m.ValidationErrors.Inc()
}

func (w *MetricsWrapper) RegistryLookupObserve(result string) {
	w.m.RegistryLookups.WithLabelValues(result).Inc()
}

func (w *MetricsWrapper) DecisionLogErrorsInc() {
	w.m.DecisionLogErrors.Inc()
}

func (w *MetricsWrapper) FeedClientsSet(n int) {
	w.m.FeedClients.Set(float64(n))
}

func (w *MetricsWrapper) HTTPRequestObserve(method, handler string, status int, d time.Duration) {
	w.m.HTTPRequests.WithLabelValues(method, handler, strconv.Itoa(status)).Inc()
	w.m.HTTPDuration.WithLabelValues(method, handler).Observe(d.Seconds())
}
