package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	PredictionsTotal *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	InferDuration    prometheus.Histogram
	Confidence       prometheus.Histogram
	ModelReady       prometheus.Gauge
	ModelInfo        *prometheus.GaugeVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_predictions_total",
			Help: "Total triage verdicts by urgency and source.",
		}, []string{"urgency", "source"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_prediction_errors_total",
			Help: "Total failed triage requests by error kind.",
		}, []string{"kind"}),
		InferDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medtriage_inference_duration_seconds",
			Help:    "Duration of a single inference in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us .. ~2.6s
		}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medtriage_prediction_confidence",
			Help:    "Confidence of model verdicts.",
			Buckets: prometheus.LinearBuckets(0.25, 0.075, 11), // 0.25 .. 1.0
		}),
		ModelReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "medtriage_model_ready",
			Help: "1 when a model is loaded, 0 otherwise.",
		}),
		ModelInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "medtriage_model_info",
			Help: "Loaded model metadata. Always 1.",
		}, []string{"training_id", "dir"}),
	}

	reg.MustRegister(
		m.PredictionsTotal,
		m.ErrorsTotal,
		m.InferDuration,
		m.Confidence,
		m.ModelReady,
		m.ModelInfo,
	)

	return m
}

// SetModel records the model state reported by a service.
func (m *Metrics) SetModel(r Readiness) {
	if !r.Ready {
		m.ModelReady.Set(0)
		return
	}
	m.ModelReady.Set(1)
	m.ModelInfo.WithLabelValues(r.TrainingID, r.ModelDir).Set(1)
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnInfer: func(e *InferEvent) {
			m.PredictionsTotal.WithLabelValues(string(e.Urgency), string(e.Source)).Inc()
			m.InferDuration.Observe(e.Duration)
			if e.Source == SourceModel {
				m.Confidence.Observe(e.Confidence)
			}
		},
		OnError: func(kind Kind) {
			m.ErrorsTotal.WithLabelValues(string(kind)).Inc()
		},
	}
}
