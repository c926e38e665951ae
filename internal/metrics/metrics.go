package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Requests         *prometheus.CounterVec
	ResolveDuration  *prometheus.HistogramVec
	MalformedResults prometheus.Counter
	ProcedureErrors  *prometheus.CounterVec
}

// New creates the gateway collectors and registers them on reg. A nil reg
// leaves them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpc_gateway_requests_total",
			Help: "RPC requests handled by the adapter, by platform and response status.",
		}, []string{"platform", "status"}),
		ResolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpc_gateway_resolve_duration_seconds",
			Help:    "Time from request normalization to an assembled response.",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		MalformedResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rpc_gateway_malformed_results_total",
			Help: "Resolutions that did not yield a head followed by a chunk.",
		}),
		ProcedureErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpc_gateway_procedure_errors_total",
			Help: "Errors reported by the resolution pipeline, by procedure path.",
		}, []string{"path"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.ResolveDuration, m.MalformedResults, m.ProcedureErrors)
	}
	return m
}

func (m *Metrics) ObserveRequest(platform string, status int, started time.Time) {
	m.Requests.WithLabelValues(platform, strconv.Itoa(status)).Inc()
	m.ResolveDuration.WithLabelValues(platform).Observe(time.Since(started).Seconds())
}
