package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus is a Recorder backed by its own registry.
type Prometheus struct {
	registry     *prom.Registry
	queryTotal   *prom.CounterVec
	querySeconds *prom.HistogramVec
	matches      prom.Histogram
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates and registers the query collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prom.NewRegistry(),
		queryTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "cedar_queries_total",
			Help: "Total number of reasoning queries",
		}, []string{"outcome"}),
		querySeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "cedar_query_seconds",
			Help:    "Reasoning query duration in seconds",
			Buckets: prom.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"outcome"}),
		matches: prom.NewHistogram(prom.HistogramOpts{
			Name:    "cedar_query_matches",
			Help:    "Number of matches returned per successful query",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}
	p.registry.MustRegister(p.queryTotal, p.querySeconds, p.matches)
	return p
}

func (p *Prometheus) IncQueryTotal(outcome string) {
	p.queryTotal.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) ObserveQuerySeconds(outcome string, seconds float64) {
	p.querySeconds.WithLabelValues(outcome).Observe(seconds)
}

func (p *Prometheus) ObserveMatches(n int) {
	p.matches.Observe(float64(n))
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prom.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
