// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tscoord coordinates frontiers and read timestamps for a
// cluster of dataflow replicas: it tracks each collection's since and
// upper frontiers, folds per-worker progress reports into cluster-wide
// frontiers, selects safe read timestamps for queries, and reports
// per-replica hydration.
package tscoord

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tscoord/aggregator"
	"github.com/cockroachdb/tscoord/hydration"
	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/internal/frontier"
	"github.com/cockroachdb/tscoord/lifecycle"
	"github.com/cockroachdb/tscoord/oracle"
	"github.com/cockroachdb/tscoord/store"
)

// Coordinator ties the frontier store, process aggregator, timestamp
// oracle, hydration tracker, and lifecycle manager together behind one
// handle. All methods are safe for concurrent use.
type Coordinator struct {
	opts    *Options
	store   *store.Store
	agg     *aggregator.Aggregator
	tracker *hydration.Tracker
	catalog *lifecycle.Manager
	oracle  *oracle.Oracle

	sinceViolations atomic.Uint64
	waitsStarted    atomic.Uint64
	waitsCancelled  atomic.Uint64
}

// storeFrontiers adapts the store's error-returning Read to the
// hydration tracker's ok-returning view.
type storeFrontiers struct{ st *store.Store }

func (s storeFrontiers) ReadUpper(id base.CollectionID) (frontier.Antichain, bool) {
	p, err := s.st.Read(id)
	if err != nil {
		return frontier.Antichain{}, false
	}
	return p.Upper, true
}

// Open creates a Coordinator and starts its background hydration
// polling. opts may be nil.
func Open(opts *Options) (*Coordinator, error) {
	if opts == nil {
		opts = &Options{}
	}
	opts.EnsureDefaults()
	c := &Coordinator{opts: opts}
	c.store = store.New(opts.Logger)
	c.agg = aggregator.New(c.store, opts.Logger)
	c.agg.SetViolationLogRate(opts.ViolationLogRate)
	c.tracker = hydration.New(storeFrontiers{c.store}, c.agg, opts.HydrationInterval)
	c.catalog = lifecycle.New(c.store, c.agg, c.tracker, opts.Logger)
	c.oracle = oracle.New(c.store, opts.Clock, opts.Timeline, c.catalog.Describe)
	c.tracker.Start()
	return c, nil
}

// Close stops background polling. The coordinator's state remains
// readable; Close exists so tests and embedders can shut down cleanly.
func (c *Coordinator) Close() error {
	c.tracker.Stop()
	return nil
}

// CreateCluster registers a new, empty cluster.
func (c *Coordinator) CreateCluster(name string) (ClusterID, error) {
	return c.catalog.CreateCluster(name)
}

// CreateReplica adds a replica with the given worker and process counts
// to the cluster.
func (c *Coordinator) CreateReplica(
	cluster ClusterID, name string, workers, processes int,
) (ReplicaID, error) {
	return c.catalog.CreateReplica(cluster, name, workers, processes)
}

// DropReplica removes the replica and all state keyed by it.
func (c *Coordinator) DropReplica(replica ReplicaID) error {
	return c.catalog.DropReplica(replica)
}

// DropCluster drops the cluster, its objects, and its replicas.
func (c *Coordinator) DropCluster(cluster ClusterID) error {
	return c.catalog.DropCluster(cluster)
}

// CreateObject creates an object and its implicit collections.
func (c *Coordinator) CreateObject(spec ObjectSpec) (CreatedObject, error) {
	return c.catalog.CreateObject(spec)
}

// DropObject drops the object, cascading to its dependents.
func (c *Coordinator) DropObject(id CollectionID) error {
	return c.catalog.DropObject(id)
}

// Meta returns the catalog entry for a collection.
func (c *Coordinator) Meta(id CollectionID) (CollectionMeta, bool) {
	return c.catalog.Meta(id)
}

// Collections returns all catalog entries sorted by id.
func (c *Coordinator) Collections() []CollectionMeta {
	return c.catalog.Collections()
}

// Report applies one per-worker progress report.
func (c *Coordinator) Report(
	replica ReplicaID, worker WorkerID, collection CollectionID,
	upper Frontier, counters Counters,
) error {
	if h := c.opts.ReportLatency; h != nil {
		start := crtime.NowMono()
		defer func() { h.Observe(float64(start.Elapsed())) }()
	}
	return c.agg.Report(replica, worker, collection, upper, counters)
}

// AdvanceSince moves a collection's compaction frontier forward on
// behalf of the retention policy.
func (c *Coordinator) AdvanceSince(id CollectionID, since Frontier) error {
	_, err := c.store.AdvanceSince(id, since)
	return err
}

// ReadFrontier returns a collection's current frontier pair.
func (c *Coordinator) ReadFrontier(id CollectionID) (FrontierPair, error) {
	return c.store.Read(id)
}

// FrontierSnapshot returns every collection's frontier pair, sorted by
// id.
func (c *Coordinator) FrontierSnapshot() []CollectionFrontier {
	return c.store.Snapshot()
}

// WaitUpper blocks until the collection's upper passes ts or ctx is
// cancelled.
func (c *Coordinator) WaitUpper(ctx context.Context, id CollectionID, ts Timestamp) error {
	c.waitsStarted.Add(1)
	err := c.store.WaitUpper(ctx, id, ts)
	if err != nil && ctx.Err() != nil {
		c.waitsCancelled.Add(1)
	}
	return err
}

// PickTimestamp selects the timestamp at which a query over the given
// collections may read.
func (c *Coordinator) PickTimestamp(ids ...CollectionID) (Determination, error) {
	det, err := c.oracle.Pick(ids...)
	if err != nil {
		if errors.Is(err, oracle.ErrSinceViolation) {
			c.sinceViolations.Add(1)
		}
		return Determination{}, err
	}
	return det, nil
}

// Inspect renders the timestamp determination diagnostic for the given
// collections.
func (c *Coordinator) Inspect(ids ...CollectionID) (string, error) {
	det, err := c.PickTimestamp(ids...)
	if err != nil {
		return "", err
	}
	return det.Explain(), nil
}

// Hydrated reports whether the object's dataflow on the replica has
// caught up; ok is false if the pairing is not tracked.
func (c *Coordinator) Hydrated(object CollectionID, replica ReplicaID) (hydrated, ok bool) {
	return c.tracker.Hydrated(object, replica)
}

// HydrationSnapshot returns all hydration entries sorted by (object,
// replica).
func (c *Coordinator) HydrationSnapshot() []HydrationEntry {
	return c.tracker.Snapshot()
}

// ProcessSnapshot returns per-process progress for a replica and
// collection.
func (c *Coordinator) ProcessSnapshot(
	replica ReplicaID, collection CollectionID,
) ([]ProcessAggregate, error) {
	return c.agg.ProcessSnapshot(replica, collection)
}

// Metrics returns a snapshot of coordinator activity.
func (c *Coordinator) Metrics() Metrics {
	stats := c.agg.Stats()
	m := Metrics{
		ReportsApplied:  stats.ReportsApplied.Load(),
		ReportsReplayed: stats.ReportsReplayed.Load(),
		ReportsRejected: stats.ReportsRejected.Load(),
		SinceViolations: c.sinceViolations.Load(),
		WaitsStarted:    c.waitsStarted.Load(),
		WaitsCancelled:  c.waitsCancelled.Load(),
		Collections:     c.store.Len(),
	}
	for _, e := range c.tracker.Snapshot() {
		m.HydrationEntries++
		if e.Hydrated {
			m.HydratedEntries++
		}
	}
	return m
}
