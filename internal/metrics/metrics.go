// Package metrics turns pipeline audit events into Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josephgoksu/genesis/internal/audit"
)

const namespace = "genesis"

// Sink is an audit.Recorder that updates Prometheus collectors.
type Sink struct {
	gatherer prometheus.Gatherer

	events       *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	verdicts     *prometheus.CounterVec
	averageScore prometheus.Histogram
	strategies   *prometheus.CounterVec
	exhausted    prometheus.Counter
	decisions    *prometheus.CounterVec
	registered   prometheus.Counter

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokens          prometheus.Counter
	cost            prometheus.Counter
}

// NewSink registers the genesis collectors with reg. A nil reg uses a
// fresh private registry.
func NewSink(reg *prometheus.Registry) *Sink {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Sink{
		gatherer: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Audit events recorded, by kind.",
		}, []string{"kind"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Malformed gateway responses replaced by a fallback, by stage.",
		}, []string{"stage"}),
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qa",
			Name:      "verdicts_total",
			Help:      "Acceptance gate verdicts, by classification.",
		}, []string{"classification"}),
		averageScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "qa",
			Name:      "average_score",
			Help:      "Average judge score per QA pass.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		strategies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "strategies_total",
			Help:      "Adjustment strategies selected, by strategy.",
		}, []string{"strategy"}),
		exhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "exhausted_total",
			Help:      "Requests that ran out of QA attempts.",
		}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Admission policy decisions, by result.",
		}, []string{"result"}),
		registered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agents_registered_total",
			Help:      "Agents written to the registry.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Creation requests, by outcome.",
		}, []string{"outcome"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end creation request latency.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"outcome"}),
		tokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "tokens_total",
			Help:      "Tokens consumed by gateway calls.",
		}),
		cost: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "cost_usd_total",
			Help:      "Estimated gateway spend in US dollars.",
		}),
	}
}

// Record implements audit.Recorder.
func (s *Sink) Record(e audit.Event) {
	s.events.WithLabelValues(string(e.Kind)).Inc()

	switch e.Kind {
	case audit.KindFallback:
		s.fallbacks.WithLabelValues(e.Stage).Inc()
	case audit.KindVerdict:
		if c, ok := e.Data["classification"].(string); ok {
			s.verdicts.WithLabelValues(c).Inc()
		}
		if avg, ok := e.Data["average_score"].(float64); ok {
			s.averageScore.Observe(avg)
		}
	case audit.KindStrategySelected:
		s.strategies.WithLabelValues(e.Strategy).Inc()
	case audit.KindExhausted:
		s.exhausted.Inc()
	case audit.KindPolicyDecision:
		s.decisions.WithLabelValues(e.Message).Inc()
	case audit.KindRegistered:
		s.registered.Inc()
	}
}

// ObserveRequest records a finished creation request.
func (s *Sink) ObserveRequest(outcome string, d time.Duration, tokens int, costUSD float64) {
	s.requests.WithLabelValues(outcome).Inc()
	s.requestDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if tokens > 0 {
		s.tokens.Add(float64(tokens))
	}
	if costUSD > 0 {
		s.cost.Add(costUSD)
	}
}

// Handler serves the sink's registry in the Prometheus text format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}
