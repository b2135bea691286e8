// Package cachestats exports a cache's counters as prometheus metrics.
package cachestats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quay/accrs/libcache"
)

var _ prometheus.Collector = (*Collector)(nil)

// Stater is a provider of the Stats() function. Implemented by
// libcache.Cache.
type Stater interface {
	Stats() libcache.Stats
}

type staterFunc func() libcache.Stats

// Collector is a prometheus.Collector for the statistics produced by a
// cache instance.
type Collector struct {
	name string
	stat staterFunc

	countDesc    *prometheus.Desc
	sizeDesc     *prometheus.Desc
	maxSizeDesc  *prometheus.Desc
	sweepsDesc   *prometheus.Desc
	restoresDesc *prometheus.Desc
	offloadDesc  *prometheus.Desc
	poppedDesc   *prometheus.Desc
	searchesDesc *prometheus.Desc
	hitsDesc     *prometheus.Desc
}

// NewCollector creates a Collector reading from the provided Stater.
//
// Name labels every metric, so processes running several caches can
// differentiate them.
func NewCollector(stater Stater, name string) *Collector {
	return newCollector(stater.Stats, name)
}

func newCollector(fn staterFunc, n string) *Collector {
	return &Collector{
		name: n,
		stat: fn,
		countDesc: prometheus.NewDesc(
			"accrs_tier_buffers",
			"Number of buffers resident in the tier.",
			tierLabels, nil),
		sizeDesc: prometheus.NewDesc(
			"accrs_tier_size_bytes",
			"Bytes charged against the tier's budget.",
			tierLabels, nil),
		maxSizeDesc: prometheus.NewDesc(
			"accrs_tier_max_bytes",
			"The tier's memory budget.",
			tierLabels, nil),
		sweepsDesc: prometheus.NewDesc(
			"accrs_sweeps_total",
			"Cumulative count of clock sweeps on the raw tier.",
			cacheLabels, nil),
		restoresDesc: prometheus.NewDesc(
			"accrs_restores_total",
			"Cumulative count of buffers promoted back from the comp tier.",
			cacheLabels, nil),
		offloadDesc: prometheus.NewDesc(
			"accrs_offloaded_total",
			"Cumulative count of buffers compressed into the comp tier.",
			cacheLabels, nil),
		poppedDesc: prometheus.NewDesc(
			"accrs_popped_total",
			"Cumulative count of buffers evicted from the comp tier.",
			cacheLabels, nil),
		searchesDesc: prometheus.NewDesc(
			"accrs_searches_total",
			"Cumulative count of cache lookups.",
			cacheLabels, nil),
		hitsDesc: prometheus.NewDesc(
			"accrs_hits_total",
			"Cumulative count of cache lookups that returned a buffer.",
			cacheLabels, nil),
	}
}

var (
	cacheLabels = []string{"cache_name"}
	tierLabels  = []string{"cache_name", "tier"}
)

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	s := c.stat()
	for tier, ls := range map[string]struct {
		count    int
		cur, max int64
	}{
		"raw":  {s.Raw.Count, s.Raw.CurrentSize, s.Raw.MaxSize},
		"comp": {s.Comp.Count, s.Comp.CurrentSize, s.Comp.MaxSize},
	} {
		metrics <- prometheus.MustNewConstMetric(
			c.countDesc,
			prometheus.GaugeValue,
			float64(ls.count),
			c.name, tier,
		)
		metrics <- prometheus.MustNewConstMetric(
			c.sizeDesc,
			prometheus.GaugeValue,
			float64(ls.cur),
			c.name, tier,
		)
		metrics <- prometheus.MustNewConstMetric(
			c.maxSizeDesc,
			prometheus.GaugeValue,
			float64(ls.max),
			c.name, tier,
		)
	}
	metrics <- prometheus.MustNewConstMetric(
		c.sweepsDesc,
		prometheus.CounterValue,
		float64(s.Raw.Sweeps),
		c.name,
	)
	metrics <- prometheus.MustNewConstMetric(
		c.restoresDesc,
		prometheus.CounterValue,
		float64(s.Raw.Restores),
		c.name,
	)
	metrics <- prometheus.MustNewConstMetric(
		c.offloadDesc,
		prometheus.CounterValue,
		float64(s.Raw.Offloaded),
		c.name,
	)
	metrics <- prometheus.MustNewConstMetric(
		c.poppedDesc,
		prometheus.CounterValue,
		float64(s.Comp.Popped),
		c.name,
	)
	metrics <- prometheus.MustNewConstMetric(
		c.searchesDesc,
		prometheus.CounterValue,
		float64(s.Searches),
		c.name,
	)
	metrics <- prometheus.MustNewConstMetric(
		c.hitsDesc,
		prometheus.CounterValue,
		float64(s.Hits),
		c.name,
	)
}
