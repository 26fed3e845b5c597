package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type promRecorder struct {
	events  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPrometheus builds a Recorder backed by the given registerer, under
// the "x402" namespace. Passing nil uses the default registerer.
func NewPrometheus(reg prometheus.Registerer) Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &promRecorder{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "x402",
			Name:      "events_total",
			Help:      "Payment protocol operations by outcome.",
		}, []string{"op", "scheme", "network", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "x402",
			Name:      "latency_seconds",
			Help:      "Payment protocol operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(r.events, r.latency)
	return r
}

func (r *promRecorder) Event(op, scheme, network, outcome string) {
	r.events.WithLabelValues(op, scheme, network, outcome).Inc()
}

func (r *promRecorder) Latency(op string, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}
