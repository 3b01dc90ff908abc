// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package aggregator folds per-worker progress reports into per-process,
// per-replica, and cluster-wide write frontiers, and pushes cluster
// frontiers into the frontier store as they advance.
//
// A worker that stops reporting is indistinguishable from a slow one:
// silence contributes no new information and never regresses any
// aggregate. Permanent worker loss is handled by the lifecycle manager
// dropping the replica.
package aggregator

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/internal/frontier"
	"github.com/cockroachdb/tscoord/internal/rate"
	"github.com/cockroachdb/tscoord/store"
)

// ErrCounterRegression means a report carried counter levels below the
// worker's previously reported levels. Counters are monotonic levels, so
// this is a protocol violation like a frontier regression.
var ErrCounterRegression = errors.New("tscoord: counter regression")

// ErrReplicaExists means a replica registration reused a live replica id.
var ErrReplicaExists = errors.New("tscoord: replica already registered")

// Stats counts report outcomes. All fields are updated atomically.
type Stats struct {
	// ReportsApplied counts reports that changed aggregator state.
	ReportsApplied atomic.Uint64
	// ReportsReplayed counts duplicate reports dropped as no-ops.
	ReportsReplayed atomic.Uint64
	// ReportsRejected counts protocol-violating reports (regressions).
	ReportsRejected atomic.Uint64
}

// Aggregator tracks per-worker progress and derives process, replica, and
// cluster frontiers. It is the only steady-state writer of frontier values
// in the store; one effective report stream exists per worker, so writes
// to a given collection are serialized by construction.
type Aggregator struct {
	store  *store.Store
	logger base.Logger
	// violationLog paces protocol-violation logging; a stuck reporter can
	// replay a bad frontier at arbitrary frequency.
	violationLog *rate.Limiter
	stats        Stats

	mu struct {
		sync.Mutex
		replicas map[base.ReplicaID]*replicaState
	}
}

type replicaState struct {
	topo        Topology
	collections map[base.CollectionID]*collectionProgress
}

type collectionProgress struct {
	workers map[base.WorkerID]workerProgress
}

type workerProgress struct {
	upper    frontier.Antichain
	counters base.Counters
}

// New creates an Aggregator pushing into the given store.
func New(st *store.Store, logger base.Logger) *Aggregator {
	if logger == nil {
		logger = base.DefaultLogger{}
	}
	a := &Aggregator{
		store:        st,
		logger:       logger,
		violationLog: rate.NewLimiter(1.0, 10),
	}
	a.mu.replicas = make(map[base.ReplicaID]*replicaState)
	return a
}

// Stats returns the aggregator's report counters.
func (a *Aggregator) Stats() *Stats { return &a.stats }

// SetViolationLogRate adjusts how many protocol-violation log lines per
// second are emitted before pacing kicks in.
func (a *Aggregator) SetViolationLogRate(perSecond float64) {
	a.violationLog.SetRate(perSecond)
}

// RegisterReplica installs the worker-to-process topology for a new
// replica. Called by the lifecycle manager.
func (a *Aggregator) RegisterReplica(id base.ReplicaID, topo Topology) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.mu.replicas[id]; ok {
		return errors.Wrapf(ErrReplicaExists, "replica %s", id)
	}
	a.mu.replicas[id] = &replicaState{
		topo:        topo,
		collections: make(map[base.CollectionID]*collectionProgress),
	}
	return nil
}

// DropReplica discards all progress state reported by the replica's
// workers. Cluster frontiers already pushed to the store are unaffected:
// frontiers never regress, they merely stop advancing if no replica
// remains.
func (a *Aggregator) DropReplica(id base.ReplicaID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.mu.replicas[id]; !ok {
		return errors.Wrapf(base.ErrUnknownReplica, "replica %s", id)
	}
	delete(a.mu.replicas, id)
	return nil
}

// Replicas returns the ids of all registered replicas.
func (a *Aggregator) Replicas() []base.ReplicaID {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]base.ReplicaID, 0, len(a.mu.replicas))
	for id := range a.mu.replicas {
		ids = append(ids, id)
	}
	return ids
}

// Report applies one per-worker progress report: the worker's current
// write frontier for the collection and its cumulative ingest counters.
// Reports are at-least-once; a replayed report is a safe no-op. A report
// that would move the worker's frontier or counters backward, or whose
// timestamps do not match the collection's time domain arity, is rejected
// and never applied.
func (a *Aggregator) Report(
	replica base.ReplicaID,
	worker base.WorkerID,
	collection base.CollectionID,
	upper frontier.Antichain,
	counters base.Counters,
) error {
	// Fail fast on unregistered collections; reports never create
	// placeholder state.
	dims, err := a.store.Dims(collection)
	if err != nil {
		return err
	}
	for _, ts := range upper.Elements() {
		if ts.Dims() != dims {
			a.stats.ReportsRejected.Add(1)
			err := errors.Wrapf(base.ErrArityMismatch,
				"replica %s worker %s collection %s: timestamp %v has arity %d, want %d",
				replica, worker, collection, ts, ts.Dims(), dims)
			if a.violationLog.Allow() {
				a.logger.Errorf("dropping protocol-violating report: %v", err)
			}
			return err
		}
	}

	a.mu.Lock()
	rs, ok := a.mu.replicas[replica]
	if !ok {
		a.mu.Unlock()
		return errors.Wrapf(base.ErrUnknownReplica, "replica %s", replica)
	}
	if !rs.topo.ContainsWorker(worker) {
		a.mu.Unlock()
		return errors.Newf("worker %s out of range for replica %s (%s)", worker, replica, rs.topo)
	}
	cp := rs.collections[collection]
	if cp == nil {
		cp = &collectionProgress{workers: make(map[base.WorkerID]workerProgress)}
		rs.collections[collection] = cp
	}
	if prev, reported := cp.workers[worker]; reported {
		if prev.upper.Equal(upper) && prev.counters == counters {
			a.mu.Unlock()
			a.stats.ReportsReplayed.Add(1)
			return nil
		}
		if !prev.upper.LessEq(upper) {
			a.mu.Unlock()
			a.stats.ReportsRejected.Add(1)
			err := errors.Wrapf(base.ErrFrontierRegression,
				"replica %s worker %s collection %s: upper %v cannot retreat to %v",
				replica, worker, collection, prev.upper, upper)
			if a.violationLog.Allow() {
				a.logger.Errorf("dropping protocol-violating report: %v", err)
			}
			return err
		}
		if !counters.AtLeast(prev.counters) {
			a.mu.Unlock()
			a.stats.ReportsRejected.Add(1)
			err := errors.Wrapf(ErrCounterRegression,
				"replica %s worker %s collection %s: counters %v retreated to %v",
				replica, worker, collection, prev.counters, counters)
			if a.violationLog.Allow() {
				a.logger.Errorf("dropping protocol-violating report: %v", err)
			}
			return err
		}
	}
	cp.workers[worker] = workerProgress{upper: upper, counters: counters}
	clusterUpper, participating := a.clusterUpperLocked(collection)
	a.mu.Unlock()
	a.stats.ReportsApplied.Add(1)

	if !participating {
		return nil
	}
	return a.pushUpper(collection, clusterUpper)
}

// pushUpper advances the store's cluster frontier if the aggregate has
// moved past it. A lagging aggregate (a fresh replica pulling the meet
// backward) is normal and pushes nothing; the store frontier only ever
// advances.
func (a *Aggregator) pushUpper(collection base.CollectionID, upper frontier.Antichain) error {
	cur, err := a.store.Read(collection)
	if err != nil {
		return err
	}
	if !cur.Upper.Less(upper) {
		return nil
	}
	if _, err := a.store.AdvanceUpper(collection, upper); err != nil {
		// Raced with another push; the frontier is monotonic either way.
		if errors.Is(err, base.ErrFrontierRegression) {
			return nil
		}
		return err
	}
	return nil
}

// replicaUpperLocked returns the meet of the replica's workers' frontiers
// for the collection. A replica contributes a lower bound only once every
// one of its workers has reported: a silent worker may still hold data at
// arbitrarily early times, so a partially reported replica bounds nothing.
// Replicas that never touch the collection at all are likewise excluded,
// not treated as the minimal frontier.
func replicaUpperLocked(rs *replicaState, collection base.CollectionID) (frontier.Antichain, bool) {
	cp := rs.collections[collection]
	if cp == nil || len(cp.workers) != rs.topo.Workers {
		return frontier.Antichain{}, false
	}
	var meet frontier.Antichain
	first := true
	for _, wp := range cp.workers {
		if first {
			meet, first = wp.upper, false
		} else {
			meet = meet.Meet(wp.upper)
		}
	}
	return meet, true
}

// clusterUpperLocked computes the meet of the per-replica uppers across
// all replicas with full worker coverage for the collection.
func (a *Aggregator) clusterUpperLocked(collection base.CollectionID) (frontier.Antichain, bool) {
	var meet frontier.Antichain
	participating := false
	for _, rs := range a.mu.replicas {
		ru, ok := replicaUpperLocked(rs, collection)
		if !ok {
			continue
		}
		if !participating {
			meet, participating = ru, true
		} else {
			meet = meet.Meet(ru)
		}
	}
	return meet, participating
}

// ClusterUpper returns the cluster-wide aggregate upper for the
// collection, or false if no replica has full worker coverage for it yet.
func (a *Aggregator) ClusterUpper(collection base.CollectionID) (frontier.Antichain, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clusterUpperLocked(collection)
}

// ReplicaUpper returns the meet of one replica's workers' frontiers for
// the collection, or false until every worker of the replica has reported
// for it. The hydration tracker consumes this per-replica view.
func (a *Aggregator) ReplicaUpper(
	replica base.ReplicaID, collection base.CollectionID,
) (frontier.Antichain, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rs, ok := a.mu.replicas[replica]
	if !ok {
		return frontier.Antichain{}, false
	}
	return replicaUpperLocked(rs, collection)
}

// DropCollection discards all progress state for the collection across
// replicas. Called by the lifecycle manager during a drop cascade;
// subsequent reports for the collection fail fast against the store.
func (a *Aggregator) DropCollection(id base.CollectionID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, rs := range a.mu.replicas {
		delete(rs.collections, id)
	}
}

// ProcessAggregate is one process's slice of a replica's progress for a
// collection. Seen distinguishes "no data yet" (no worker in the process
// has reported, rendered as null by introspection) from reported zeros.
type ProcessAggregate struct {
	Process  base.ProcessID
	Seen     bool
	Upper    frontier.Antichain
	Counters base.Counters
}

// ProcessSnapshot returns, for each process of the replica, the meet of
// its workers' frontiers and the sum of their counters, restricted to
// workers that have reported for the collection.
func (a *Aggregator) ProcessSnapshot(
	replica base.ReplicaID, collection base.CollectionID,
) ([]ProcessAggregate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rs, ok := a.mu.replicas[replica]
	if !ok {
		return nil, errors.Wrapf(base.ErrUnknownReplica, "replica %s", replica)
	}
	out := make([]ProcessAggregate, rs.topo.Processes)
	for i := range out {
		out[i].Process = base.ProcessID(i)
	}
	cp := rs.collections[collection]
	if cp == nil {
		return out, nil
	}
	for w, wp := range cp.workers {
		agg := &out[rs.topo.ProcessForWorker(w)]
		if !agg.Seen {
			agg.Seen = true
			agg.Upper = wp.upper
		} else {
			agg.Upper = agg.Upper.Meet(wp.upper)
		}
		agg.Counters.Accumulate(wp.counters)
	}
	return out, nil
}
