package core

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/corra-ai/corra-ai/pkg/metrics"
)

type Metrics struct {
	ingestTime     *prometheus.HistogramVec
	ingestError    *prometheus.CounterVec
	embeddingTime  *prometheus.HistogramVec
	embeddingError *prometheus.CounterVec
	retrievalTime  *prometheus.HistogramVec
	genContextTime *prometheus.HistogramVec
}

func NewMetrics(ns, system string) *Metrics {
	// setup metric
	metrics.SetupMetricsManager(ns, system, prometheus.DefaultRegisterer.(*prometheus.Registry))

	m := &Metrics{
		ingestTime:     metrics.NewHistogramVec("ingest_time", []string{"method"}),
		ingestError:    metrics.NewCounterVec("ingest_error", []string{"stage"}),
		embeddingTime:  metrics.NewHistogramVec("embedding_time", []string{"usage"}),
		embeddingError: metrics.NewCounterVec("embedding_error", []string{"usage"}),
		retrievalTime:  metrics.NewHistogramVec("retrieval_time", []string{"mode"}),
		genContextTime: metrics.NewHistogramVec("generate_context_time", []string{"type"}),
	}

	return m
}

func (m *Metrics) IngestTimer(method string) *prometheus.Timer {
	return prometheus.NewTimer(m.ingestTime.WithLabelValues(method))
}

func (m *Metrics) IngestErrorInc(stage string) {
	m.ingestError.WithLabelValues(stage).Inc()
}

func (m *Metrics) EmbeddingTimer(usage string) *prometheus.Timer {
	return prometheus.NewTimer(m.embeddingTime.WithLabelValues(usage))
}

func (m *Metrics) EmbeddingErrorInc(usage string) {
	m.embeddingError.WithLabelValues(usage).Inc()
}

func (m *Metrics) RetrievalTimer(mode string) *prometheus.Timer {
	return prometheus.NewTimer(m.retrievalTime.WithLabelValues(mode))
}

func (m *Metrics) GenContextTimer(types string) *prometheus.Timer {
	return prometheus.NewTimer(m.genContextTime.WithLabelValues(types))
}
