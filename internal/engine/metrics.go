package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks worker activity. A nil *Metrics is a valid no-op collector.
type Metrics struct {
	JobsTotal       *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	FetchErrors     prometheus.Counter
	Deliveries      *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	CacheEvictions  prometheus.Counter
	CacheCost       prometheus.Gauge
	PendingRequests prometheus.Gauge
}

// NewMetrics creates and registers the gothumb_ metrics on reg.
// Panics if registration fails (expected during initialization only).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gothumb_jobs_total",
				Help: "Fetch jobs by kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: processed, discarded, rejected
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gothumb_cache_lookups_total",
				Help: "Image cache lookups by result",
			},
			[]string{"result"}, // hit, miss
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gothumb_fetch_duration_seconds",
				Help:    "Duration of image fetches from the remote source",
				Buckets: prometheus.DefBuckets,
			},
		),
		FetchErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gothumb_fetch_errors_total",
				Help: "Fetches that failed to produce an image",
			},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gothumb_deliveries_total",
				Help: "Download results by delivery outcome",
			},
			[]string{"result"}, // delivered, stale
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gothumb_queue_depth",
				Help: "Jobs waiting for the fetch worker",
			},
		),
		CacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gothumb_cache_evictions_total",
				Help: "Images evicted from the cache to stay under budget",
			},
		),
		CacheCost: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gothumb_cache_cost",
				Help: "Summed cost of all cached images",
			},
		),
		PendingRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gothumb_pending_requests",
				Help: "Handles with a registered, undelivered request",
			},
		),
	}

	reg.MustRegister(
		m.JobsTotal,
		m.CacheLookups,
		m.FetchDuration,
		m.FetchErrors,
		m.Deliveries,
		m.QueueDepth,
		m.CacheEvictions,
		m.CacheCost,
		m.PendingRequests,
	)

	return m
}

func (m *Metrics) recordJob(kind JobKind, outcome string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(kind.String(), outcome).Inc()
}

func (m *Metrics) recordLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) recordFetch(seconds float64, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(seconds)
	if err != nil {
		m.FetchErrors.Inc()
	}
}

func (m *Metrics) recordDelivery(delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.Deliveries.WithLabelValues("delivered").Inc()
	} else {
		m.Deliveries.WithLabelValues("stale").Inc()
	}
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) recordEviction() {
	if m == nil {
		return
	}
	m.CacheEvictions.Inc()
}

func (m *Metrics) setCacheCost(cost int64) {
	if m == nil {
		return
	}
	m.CacheCost.Set(float64(cost))
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.PendingRequests.Set(float64(n))
}
