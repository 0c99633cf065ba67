// Package metrics exposes Prometheus counters and histograms for the
// bridge's call lifecycle, latency breakdown, and provider errors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector the bridge registers. A single
// instance is shared process-wide across all active calls.
type Metrics struct {
	CallsStartedTotal   prometheus.Counter
	CallsEndedTotal     *prometheus.CounterVec
	ActiveCalls         prometheus.Gauge
	ProviderErrorsTotal *prometheus.CounterVec

	STTLatencySeconds prometheus.Histogram
	LLMLatencySeconds prometheus.Histogram
	TTSLatencySeconds prometheus.Histogram

	OutboundFramesTotal prometheus.Counter
}

// New builds and registers the bridge's metrics collectors.
func New() *Metrics {
	m := &Metrics{
		CallsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_calls_started_total",
			Help: "The total number of calls accepted on the telephony WebSocket",
		}),
		CallsEndedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_calls_ended_total",
			Help: "The total number of calls torn down, labeled by reason",
		}, []string{"reason"}),
		ActiveCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_active_calls",
			Help: "The current number of calls with an open session",
		}),
		ProviderErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_provider_errors_total",
			Help: "The total number of errors surfaced by an upstream provider, labeled by provider and kind",
		}, []string{"provider", "kind"}),
		STTLatencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_stt_latency_seconds",
			Help:    "Time from user-stop to the STT final transcript",
			Buckets: prometheus.DefBuckets,
		}),
		LLMLatencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_llm_latency_seconds",
			Help:    "Time from LLM turn start to turn end",
			Buckets: prometheus.DefBuckets,
		}),
		TTSLatencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_tts_latency_seconds",
			Help:    "Time from LLM turn end to the first TTS audio chunk",
			Buckets: prometheus.DefBuckets,
		}),
		OutboundFramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_outbound_frames_total",
			Help: "The total number of outbound 20ms mu-law frames sent to callers",
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.CallsStartedTotal,
		m.CallsEndedTotal,
		m.ActiveCalls,
		m.ProviderErrorsTotal,
		m.STTLatencySeconds,
		m.LLMLatencySeconds,
		m.TTSLatencySeconds,
		m.OutboundFramesTotal,
	)
}

// RecordCallStart marks one call accepted.
func (m *Metrics) RecordCallStart() {
	m.CallsStartedTotal.Inc()
	m.ActiveCalls.Inc()
}

// RecordCallEnd marks one call torn down for the given reason (e.g.
// "caller_hangup", "provider_stop").
func (m *Metrics) RecordCallEnd(reason string) {
	m.CallsEndedTotal.WithLabelValues(reason).Inc()
	m.ActiveCalls.Dec()
}

// RecordProviderError records one upstream failure.
func (m *Metrics) RecordProviderError(provider, kind string) {
	m.ProviderErrorsTotal.WithLabelValues(provider, kind).Inc()
}
