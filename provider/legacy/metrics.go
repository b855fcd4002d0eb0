package legacy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "legacy"

// Metrics groups the bridge's prometheus collectors.
type Metrics struct {
	RemoteRequests  *prometheus.CounterVec
	RemoteDuration  *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	Validations     *prometheus.CounterVec
	Provisioning    *prometheus.CounterVec
	cacheEntryGauge prometheus.GaugeFunc
}

// NewMetrics builds the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RemoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "remote_requests_total",
				Help:      "Calls to the legacy facade by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		RemoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "remote_request_duration_seconds",
				Help:      "Latency of calls to the legacy facade",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"op"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_lookups_total",
				Help:      "Profile cache lookups by result",
			},
			[]string{"result"},
		),
		Validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "federation_validations_total",
				Help:      "Credential validations by outcome",
			},
			[]string{"outcome"},
		),
		Provisioning: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "provisioning_total",
				Help:      "Local user provisioning by action",
			},
			[]string{"action"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.RemoteRequests,
			m.RemoteDuration,
			m.CacheLookups,
			m.Validations,
			m.Provisioning,
		)
	}

	return m
}

// WatchCache exports the cache size as a gauge.
func (m *Metrics) WatchCache(reg prometheus.Registerer, cache ProfileCache) {
	if m == nil || reg == nil || cache == nil {
		return
	}
	m.cacheEntryGauge = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "cache_entries",
			Help:      "Profiles currently held in the cache",
		},
		func() float64 { return float64(cache.Len()) },
	)
	reg.MustRegister(m.cacheEntryGauge)
}

func (m *Metrics) observeRemote(op, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.RemoteRequests.WithLabelValues(op, outcome).Inc()
	m.RemoteDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) validation(outcome ValidationOutcome) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(outcome.String()).Inc()
}

func (m *Metrics) provisioned(created bool) {
	if m == nil {
		return
	}
	action := "updated"
	if created {
		action = "created"
	}
	m.Provisioning.WithLabelValues(action).Inc()
}
