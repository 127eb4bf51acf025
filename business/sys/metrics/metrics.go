// Package metrics constructs the metrics the application will track.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/siertrichain/siertrichain/foundation/blockchain/state"
)

// Set of request metrics tracked by the web middleware.
var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siertrichain",
		Subsystem: "web",
		Name:      "requests_total",
		Help:      "Number of requests handled, by route.",
	}, []string{"route"})

	failures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "siertrichain",
		Subsystem: "web",
		Name:      "errors_total",
		Help:      "Number of requests that ended in an error.",
	})

	panics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "siertrichain",
		Subsystem: "web",
		Name:      "panics_total",
		Help:      "Number of panics recovered while handling requests.",
	})
)

// AddRequests increments the request count for the route.
func AddRequests(route string) {
	requests.WithLabelValues(route).Inc()
}

// AddErrors increments the error count.
func AddErrors() {
	failures.Inc()
}

// AddPanics increments the panic count.
func AddPanics() {
	panics.Inc()
}

// =============================================================================

// StatsSource is the behavior the chain collector reads from.
type StatsSource interface {
	QueryStats() state.Stats
}

// ChainCollector reports the node's chain counters at scrape time.
type ChainCollector struct {
	source StatsSource

	height     *prometheus.Desc
	difficulty *prometheus.Desc
	assets     *prometheus.Desc
	mempool    *prometheus.Desc
	applied    *prometheus.Desc
	rejected   *prometheus.Desc
	reorgs     *prometheus.Desc
	hitRatio   *prometheus.Desc
}

// NewChainCollector constructs a collector over the specified source.
func NewChainCollector(source StatsSource) *ChainCollector {
	desc := func(name string, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("siertrichain", "chain", name), help, nil, nil)
	}

	return &ChainCollector{
		source:     source,
		height:     desc("height", "Number of the latest block."),
		difficulty: desc("difficulty", "Leading zero bits required for the next block."),
		assets:     desc("assets", "Number of assets in the ledger."),
		mempool:    desc("mempool", "Number of transactions waiting to be mined."),
		applied:    desc("blocks_applied_total", "Number of blocks applied to the chain."),
		rejected:   desc("blocks_rejected_total", "Number of blocks that failed validation."),
		reorgs:     desc("reorgs_total", "Number of chain reorganizations."),
		hitRatio:   desc("block_index_hit_ratio", "Hit ratio of the block hash lookup cache."),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *ChainCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.height
	ch <- c.difficulty
	ch <- c.assets
	ch <- c.mempool
	ch <- c.applied
	ch <- c.rejected
	ch <- c.reorgs
	ch <- c.hitRatio
}

// Collect implements the prometheus.Collector interface.
func (c *ChainCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.QueryStats()

	ch <- prometheus.MustNewConstMetric(c.height, prometheus.GaugeValue, float64(stats.Height))
	ch <- prometheus.MustNewConstMetric(c.difficulty, prometheus.GaugeValue, float64(stats.Difficulty))
	ch <- prometheus.MustNewConstMetric(c.assets, prometheus.GaugeValue, float64(stats.Assets))
	ch <- prometheus.MustNewConstMetric(c.mempool, prometheus.GaugeValue, float64(stats.Mempool))
	ch <- prometheus.MustNewConstMetric(c.applied, prometheus.CounterValue, float64(stats.BlocksApplied))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(stats.BlocksRejected))
	ch <- prometheus.MustNewConstMetric(c.reorgs, prometheus.CounterValue, float64(stats.Reorgs))
	ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, stats.IndexHitRatio)
}
