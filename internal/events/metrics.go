package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink counts events per kind and provider.
type MetricsSink struct {
	events *prometheus.CounterVec
}

// NewMetricsSink registers the event counter with reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_auth",
		Name:      "identity_events_total",
		Help:      "Identity linkage events by kind and provider.",
	}, []string{"kind", "provider"})
	if err := reg.Register(counter); err != nil {
		return nil, err
	}
	return &MetricsSink{events: counter}, nil
}

func (s *MetricsSink) Emit(_ context.Context, e Event) {
	s.events.WithLabelValues(string(e.Kind), e.Provider).Inc()
}

// Counter exposes the underlying vector for inspection.
func (s *MetricsSink) Counter() *prometheus.CounterVec {
	return s.events
}
