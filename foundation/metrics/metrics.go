// Package metrics maintains the prometheus collectors for the node.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger"

// Metrics holds the collectors registered on a private registry. A nil
// value is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	blocksReplayed  prometheus.Counter
	blocksProcessed *prometheus.CounterVec
	harvestAttempts prometheus.Counter
	blocksHarvested prometheus.Counter
	chainHeight     prometheus.Gauge
	chainScore      prometheus.Gauge
	mempoolSize     prometheus.Gauge
	executionTime   prometheus.Histogram
	requests        *prometheus.CounterVec
}

// New constructs the collectors and registers them.
func New() *Metrics {
	m := Metrics{
		registry: prometheus.NewRegistry(),

		blocksReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "blocks_replayed_total",
			Help:      "Total number of stored blocks replayed into the cache",
		}),
		blocksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "blocks_processed_total",
			Help:      "Total number of blocks offered to the chain",
		}, []string{"result"}), // result: accepted/rejected
		harvestAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harvesting",
			Name:      "attempts_total",
			Help:      "Total number of harvesting attempts",
		}),
		blocksHarvested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harvesting",
			Name:      "blocks_total",
			Help:      "Total number of blocks harvested by this node",
		}),
		chainHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "height",
			Help:      "Height of the last block in the chain",
		}),
		chainScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "score",
			Help:      "Score of the chain (approximate above 2^53)",
		}),
		mempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "transactions",
			Help:      "Number of transactions waiting in the mempool",
		}),
		executionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "block_duration_seconds",
			Help:      "Duration of executing a block",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms ~ 1s
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "web",
			Name:      "requests_total",
			Help:      "Total number of web requests",
		}, []string{"status"}), // status: 2xx/4xx/5xx
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.blocksReplayed,
		m.blocksProcessed,
		m.harvestAttempts,
		m.blocksHarvested,
		m.chainHeight,
		m.chainScore,
		m.mempoolSize,
		m.executionTime,
		m.requests,
	)

	return &m
}

// Handler returns the handler that exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// BlockReplayed counts a block loaded from storage.
func (m *Metrics) BlockReplayed() {
	if m == nil {
		return
	}
	m.blocksReplayed.Inc()
}

// BlockProcessed counts a block offered to the chain.
func (m *Metrics) BlockProcessed(accepted bool) {
	if m == nil {
		return
	}

	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.blocksProcessed.WithLabelValues(result).Inc()
}

// HarvestAttempt counts a harvesting attempt.
func (m *Metrics) HarvestAttempt() {
	if m == nil {
		return
	}
	m.harvestAttempts.Inc()
}

// BlockHarvested counts a block harvested by this node.
func (m *Metrics) BlockHarvested() {
	if m == nil {
		return
	}
	m.blocksHarvested.Inc()
}

// SetChain records the chain height and score.
func (m *Metrics) SetChain(height uint64, score float64) {
	if m == nil {
		return
	}
	m.chainHeight.Set(float64(height))
	m.chainScore.Set(score)
}

// SetMempoolSize records the number of pending transactions.
func (m *Metrics) SetMempoolSize(n int) {
	if m == nil {
		return
	}
	m.mempoolSize.Set(float64(n))
}

// ObserveExecution records the time spent executing a block.
func (m *Metrics) ObserveExecution(d time.Duration) {
	if m == nil {
		return
	}
	m.executionTime.Observe(d.Seconds())
}

// Request counts a web request by status class.
func (m *Metrics) Request(statusCode int) {
	if m == nil {
		return
	}

	class := "2xx"
	switch {
	case statusCode >= 500:
		class = "5xx"
	case statusCode >= 400:
		class = "4xx"
	case statusCode >= 300:
		class = "3xx"
	}
	m.requests.WithLabelValues(class).Inc()
}
