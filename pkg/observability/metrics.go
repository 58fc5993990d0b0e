package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the explorer's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	decodes        *prometheus.CounterVec
	decodeDuration *prometheus.HistogramVec
	disposed       prometheus.Counter
	discarded      prometheus.Counter
	state          *prometheus.GaugeVec
	transitions    *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors. Go runtime and process
// collectors are registered too so /metrics is useful on its own.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "latentscope_decodes_total",
				Help: "Total number of decodes by pixel source",
			},
			[]string{"source"},
		),
		decodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "latentscope_decode_duration_seconds",
				Help:    "Duration of decodes",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"source"},
		),
		disposed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latentscope_frames_disposed_total",
			Help: "Superseded frames released after paint",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latentscope_frames_discarded_total",
			Help: "Stale frames released without being shown",
		}),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "latentscope_model_state",
				Help: "1 for the current model load state",
			},
			[]string{"state"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "latentscope_state_transitions_total",
				Help: "Model load state transitions",
			},
			[]string{"to"},
		),
	}
	m.registry.MustRegister(
		m.decodes, m.decodeDuration, m.disposed, m.discarded, m.state, m.transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.setState(domain.StateUninitialized)
	return m
}

// Registry exposes the registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(_ context.Context, e *domain.StateEvent) {
			m.transitions.WithLabelValues(string(e.To)).Inc()
			m.setState(e.To)
		},
		OnDecode: func(_ context.Context, e *domain.DecodeEvent) {
			m.decodes.WithLabelValues(string(e.Source)).Inc()
			m.decodeDuration.WithLabelValues(string(e.Source)).Observe(e.Duration.Seconds())
		},
		OnDispose: func(context.Context, *domain.BufferEvent) {
			m.disposed.Inc()
		},
		OnDiscard: func(context.Context, *domain.BufferEvent) {
			m.discarded.Inc()
		},
	}
}

func (m *Metrics) setState(current domain.LoadState) {
	for _, s := range []domain.LoadState{domain.StateUninitialized, domain.StateLoading, domain.StateReady, domain.StateFailed} {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(string(s)).Set(v)
	}
}
