// Package metrics exposes share-link issuance counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "share"

// Recorder implements share.Observer on top of a private registry.
type Recorder struct {
	registry   *prometheus.Registry
	issued     prometheus.Counter
	attempts   prometheus.Histogram
	collisions prometheus.Counter
	exhausted  prometheus.Counter
	resolved   *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry, including Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "issued_total",
			Help:      "Share links committed to the store.",
		}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "generation_attempts",
			Help:      "Candidate tokens drawn per issued link.",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 50},
		}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "collisions_total",
			Help:      "Candidate tokens rejected because they were already live.",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "exhausted_total",
			Help:      "Create calls that ran out of generation attempts.",
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "resolved_total",
			Help:      "Resolve calls by outcome.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(
		r.issued,
		r.attempts,
		r.collisions,
		r.exhausted,
		r.resolved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

func (r *Recorder) Issued(attempts int) {
	r.issued.Inc()
	r.attempts.Observe(float64(attempts))
}

func (r *Recorder) Collision() {
	r.collisions.Inc()
}

func (r *Recorder) Exhausted() {
	r.exhausted.Inc()
}

func (r *Recorder) Resolved(found bool) {
	result := "miss"
	if found {
		result = "hit"
	}

	r.resolved.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
