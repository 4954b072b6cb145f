package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticks          *prometheus.CounterVec
	tickSkips      *prometheus.CounterVec
	tickLatency    *prometheus.HistogramVec
	attempts       *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	costUSD        *prometheus.CounterVec
	alphaScore     prometheus.Gauge
	emergencyStops prometheus.Counter
	errorsTotal    *prometheus.CounterVec
}

// New creates a recorder registered on reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphadesk_agent_ticks_total",
				Help: "Agent ticks by result",
			},
			[]string{"agent", "result"},
		),
		tickSkips: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphadesk_agent_ticks_skipped_total",
				Help: "Agent ticks skipped before analysis",
			},
			[]string{"agent", "reason"},
		),
		tickLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphadesk_agent_tick_duration_seconds",
				Help:    "Duration of agent ticks in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"agent"},
		),
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphadesk_provider_attempts_total",
				Help: "AI provider call attempts by result",
			},
			[]string{"provider", "model", "result"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphadesk_provider_fallbacks_total",
				Help: "Calls served by a provider other than the requested one",
			},
			[]string{"from", "to"},
		),
		costUSD: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphadesk_ai_cost_usd_total",
				Help: "Accumulated AI spend in USD",
			},
			[]string{"provider"},
		),
		alphaScore: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "alphadesk_alpha_confidence",
				Help: "Latest consolidated alpha confidence",
			},
		),
		emergencyStops: f.NewCounter(
			prometheus.CounterOpts{
				Name: "alphadesk_emergency_stops_total",
				Help: "Emergency halt transitions",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphadesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordTick(agent string, seconds float64, ok bool) {
	r.ticks.WithLabelValues(agent, result(ok)).Inc()
	r.tickLatency.WithLabelValues(agent).Observe(seconds)
}

func (r *Recorder) RecordTickSkipped(agent, reason string) {
	r.tickSkips.WithLabelValues(agent, reason).Inc()
}

func (r *Recorder) RecordAttempt(provider, model string, ok bool) {
	r.attempts.WithLabelValues(provider, model, result(ok)).Inc()
}

func (r *Recorder) RecordFallback(from, to string) {
	r.fallbacks.WithLabelValues(from, to).Inc()
}

func (r *Recorder) RecordCost(provider string, usd float64) {
	if usd <= 0 {
		return
	}
	r.costUSD.WithLabelValues(provider).Add(usd)
}

func (r *Recorder) RecordAlpha(confidence int) {
	r.alphaScore.Set(float64(confidence))
}

func (r *Recorder) RecordEmergencyStop() {
	r.emergencyStops.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordTick(string, float64, bool) {}
func (Nop) RecordTickSkipped(string, string) {}
func (Nop) RecordAttempt(string, string, bool) {}
func (Nop) RecordFallback(string, string) {}
func (Nop) RecordCost(string, float64) {}
func (Nop) RecordAlpha(int) {}
func (Nop) RecordEmergencyStop() {}
func (Nop) RecordError(string) {}
