// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tscoord

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a point-in-time snapshot of coordinator activity.
type Metrics struct {
	// ReportsApplied counts worker progress reports that changed state.
	ReportsApplied uint64
	// ReportsReplayed counts duplicate reports dropped as no-ops.
	ReportsReplayed uint64
	// ReportsRejected counts protocol-violating reports (regressions).
	ReportsRejected uint64
	// SinceViolations counts timestamp determinations that failed because
	// the requested data had been compacted away.
	SinceViolations uint64
	// WaitsStarted counts queries that had to wait for an upper to pass
	// their timestamp.
	WaitsStarted uint64
	// WaitsCancelled counts such waits abandoned by query cancellation.
	WaitsCancelled uint64
	// Collections is the number of registered collections.
	Collections int
	// HydrationEntries is the number of tracked (object, replica) pairs.
	HydrationEntries int
	// HydratedEntries is how many of those are hydrated.
	HydratedEntries int
}

var (
	descReports = prometheus.NewDesc(
		"tscoord_reports_total",
		"Worker progress reports by outcome.",
		[]string{"outcome"}, nil,
	)
	descSinceViolations = prometheus.NewDesc(
		"tscoord_since_violations_total",
		"Timestamp determinations rejected because data was compacted away.",
		nil, nil,
	)
	descWaits = prometheus.NewDesc(
		"tscoord_query_waits_total",
		"Queries that waited for a write frontier, by outcome.",
		[]string{"outcome"}, nil,
	)
	descCollections = prometheus.NewDesc(
		"tscoord_collections",
		"Registered collections.",
		nil, nil,
	)
	descHydration = prometheus.NewDesc(
		"tscoord_hydration_entries",
		"Tracked (object, replica) pairs by hydration state.",
		[]string{"state"}, nil,
	)
)

// MetricsCollector exposes a Coordinator's metrics to a prometheus
// registry.
type MetricsCollector struct {
	c *Coordinator
}

var _ prometheus.Collector = (*MetricsCollector)(nil)

// NewMetricsCollector creates a collector reading from c.
func NewMetricsCollector(c *Coordinator) *MetricsCollector {
	return &MetricsCollector{c: c}
}

// Describe implements prometheus.Collector.
func (mc *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descReports
	ch <- descSinceViolations
	ch <- descWaits
	ch <- descCollections
	ch <- descHydration
}

// Collect implements prometheus.Collector.
func (mc *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	m := mc.c.Metrics()
	ch <- prometheus.MustNewConstMetric(descReports, prometheus.CounterValue,
		float64(m.ReportsApplied), "applied")
	ch <- prometheus.MustNewConstMetric(descReports, prometheus.CounterValue,
		float64(m.ReportsReplayed), "replayed")
	ch <- prometheus.MustNewConstMetric(descReports, prometheus.CounterValue,
		float64(m.ReportsRejected), "rejected")
	ch <- prometheus.MustNewConstMetric(descSinceViolations, prometheus.CounterValue,
		float64(m.SinceViolations))
	ch <- prometheus.MustNewConstMetric(descWaits, prometheus.CounterValue,
		float64(m.WaitsStarted), "started")
	ch <- prometheus.MustNewConstMetric(descWaits, prometheus.CounterValue,
		float64(m.WaitsCancelled), "cancelled")
	ch <- prometheus.MustNewConstMetric(descCollections, prometheus.GaugeValue,
		float64(m.Collections))
	ch <- prometheus.MustNewConstMetric(descHydration, prometheus.GaugeValue,
		float64(m.HydratedEntries), "hydrated")
	ch <- prometheus.MustNewConstMetric(descHydration, prometheus.GaugeValue,
		float64(m.HydrationEntries-m.HydratedEntries), "not_hydrated")
}
