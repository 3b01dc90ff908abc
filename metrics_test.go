// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tscoord

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector(t *testing.T) {
	c := openTestCoordinator(t, nil)

	cluster, err := c.CreateCluster("compute")
	require.NoError(t, err)
	replica, err := c.CreateReplica(cluster, "r1", 1, 1)
	require.NoError(t, err)
	idx, err := c.CreateObject(ObjectSpec{Name: "idx", Kind: KindIndex, Cluster: cluster})
	require.NoError(t, err)
	require.NoError(t, c.Report(replica, 0, idx.ID, FrontierAt(TS(5)), Counters{}))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewMetricsCollector(c)))
	families, err := reg.Gather()
	require.NoError(t, err)

	got := make(map[string]int)
	for _, f := range families {
		got[f.GetName()] = len(f.GetMetric())
	}
	require.Equal(t, map[string]int{
		"tscoord_reports_total":          3,
		"tscoord_since_violations_total": 1,
		"tscoord_query_waits_total":      2,
		"tscoord_collections":            1,
		"tscoord_hydration_entries":      2,
	}, got)
}

func TestReportLatencyHistogram(t *testing.T) {
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tscoord_report_latency",
		Buckets: prometheus.DefBuckets,
	})
	c := openTestCoordinator(t, &Options{ReportLatency: hist})

	cluster, err := c.CreateCluster("compute")
	require.NoError(t, err)
	replica, err := c.CreateReplica(cluster, "r1", 1, 1)
	require.NoError(t, err)
	idx, err := c.CreateObject(ObjectSpec{Name: "idx", Kind: KindIndex, Cluster: cluster})
	require.NoError(t, err)
	require.NoError(t, c.Report(replica, 0, idx.ID, FrontierAt(TS(5)), Counters{}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(hist)
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Equal(t, uint64(1), families[0].GetMetric()[0].GetHistogram().GetSampleCount())
}
