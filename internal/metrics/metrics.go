// Package metrics exports internal/radiostats counters as Prometheus
// gauges, grounded on the pack example repo runZeroInc-sockstats's use
// of github.com/prometheus/client_golang for socket-layer observability
// — the closest precedent in the example pack for exposing per-
// interface network counters this way.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rubyfpv/radio-link/internal/radiostats"
)

// Collector adapts a *radiostats.Stats value into a prometheus.Collector,
// recomputed on every scrape (spec.md's stats are cheap to read under
// one mutex) rather than pushed on every update.
type Collector struct {
	stats *radiostats.Stats

	rxQuality   *prometheus.Desc
	rxBytesSec  *prometheus.Desc
	txBytesSec  *prometheus.Desc
	ifaceBroken *prometheus.Desc
	linkLost    *prometheus.Desc
	interfaces  []int
}

// New creates a Collector for the given Stats value, reporting on the
// listed interface indexes (the set enumerated by ifacesetup at startup).
func New(stats *radiostats.Stats, interfaces []int) *Collector {
	return &Collector{
		stats: stats,
		rxQuality: prometheus.NewDesc(
			"ruby_rx_relative_quality", "Relative RX quality (0-100) per interface.",
			[]string{"interface"}, nil),
		rxBytesSec: prometheus.NewDesc(
			"ruby_rx_bytes_per_second", "Observed RX bytes/sec per interface.",
			[]string{"interface"}, nil),
		txBytesSec: prometheus.NewDesc(
			"ruby_tx_bytes_per_second", "Observed TX bytes/sec per interface.",
			[]string{"interface"}, nil),
		ifaceBroken: prometheus.NewDesc(
			"ruby_interface_broken", "1 if the interface is marked broken.",
			[]string{"interface"}, nil),
		linkLost: prometheus.NewDesc(
			"ruby_link_lost", "1 if the controller link is marked lost.",
			nil, nil),
		interfaces: interfaces,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rxQuality
	ch <- c.rxBytesSec
	ch <- c.txBytesSec
	ch <- c.ifaceBroken
	ch <- c.linkLost
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, idx := range c.interfaces {
		label := strconv.Itoa(idx)
		ch <- prometheus.MustNewConstMetric(c.rxQuality, prometheus.GaugeValue, float64(c.stats.RxRelativeQuality(idx)), label)

		snap := c.stats.InterfaceSnapshot(idx)
		ch <- prometheus.MustNewConstMetric(c.rxBytesSec, prometheus.GaugeValue, float64(snap.BytesPerSecRX), label)
		ch <- prometheus.MustNewConstMetric(c.txBytesSec, prometheus.GaugeValue, float64(snap.BytesPerSecTX), label)
		brokenVal := 0.0
		if snap.Broken {
			brokenVal = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.ifaceBroken, prometheus.GaugeValue, brokenVal, label)
	}

	lostVal := 0.0
	if c.stats.IsLinkLost() {
		lostVal = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.linkLost, prometheus.GaugeValue, lostVal)
}
