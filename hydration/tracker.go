// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package hydration tracks, per (object, replica) pair, whether the
// object's dataflow on that replica has caught up to a steady, queryable
// state.
//
// The tracker is a pull-based read-side projection: it recomputes its
// state on a fixed cadence, decoupled from frontier writes. Callers may
// transiently observe "not hydrated" for an object the frontier store
// already shows as caught up; this staleness is bounded by the poll
// interval and is part of the contract, not an error. Checks in tests must
// retry until success rather than assert immediately.
package hydration

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/internal/frontier"
)

// FrontierSource provides cluster-wide uppers, normally the frontier
// store.
type FrontierSource interface {
	ReadUpper(base.CollectionID) (frontier.Antichain, bool)
}

// ReplicaFrontierSource provides per-replica uppers, normally the process
// aggregator.
type ReplicaFrontierSource interface {
	ReplicaUpper(base.ReplicaID, base.CollectionID) (frontier.Antichain, bool)
}

// Key identifies a hydration entry. Only dataflow-backed objects appear;
// webhook sources, tables, and progress relations are excluded by
// construction, the lifecycle manager never registers them here.
type Key struct {
	Object  base.CollectionID
	Replica base.ReplicaID
}

// Entry is an introspection view of one hydration entry.
type Entry struct {
	Key       Key
	Hydrated  bool
	UpdatedAt crtime.Mono
}

// Tracker derives hydration state from frontiers on a polling cadence. It
// owns no frontier data of its own.
type Tracker struct {
	frontiers        FrontierSource
	replicaFrontiers ReplicaFrontierSource
	interval         time.Duration
	nowFn            func() crtime.Mono

	mu struct {
		sync.Mutex
		running bool
		timer   *time.Timer
		entries map[Key]*entryState
	}
}

type entryState struct {
	inputs    []base.CollectionID
	hydrated  bool
	updatedAt crtime.Mono
}

// New creates a Tracker polling at the given interval once started.
func New(
	frontiers FrontierSource, replicaFrontiers ReplicaFrontierSource, interval time.Duration,
) *Tracker {
	t := &Tracker{
		frontiers:        frontiers,
		replicaFrontiers: replicaFrontiers,
		interval:         interval,
		nowFn:            crtime.NowMono,
	}
	t.mu.entries = make(map[Key]*entryState)
	return t
}

// Track creates a Not Hydrated entry for the pairing. inputs are the
// object's input collections; an object with no inputs (a source) is
// considered caught up once its frontier leaves the minimum. Tracking an
// already-tracked pairing is a no-op that preserves hydration state.
func (t *Tracker) Track(object base.CollectionID, replica base.ReplicaID, inputs []base.CollectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := Key{Object: object, Replica: replica}
	if _, ok := t.mu.entries[k]; ok {
		return
	}
	t.mu.entries[k] = &entryState{
		inputs:    slices.Clone(inputs),
		updatedAt: t.nowFn(),
	}
}

// UntrackObject removes all entries for the object, across replicas.
func (t *Tracker) UntrackObject(object base.CollectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.mu.entries {
		if k.Object == object {
			delete(t.mu.entries, k)
		}
	}
}

// UntrackReplica removes all entries for the replica, across objects.
func (t *Tracker) UntrackReplica(replica base.ReplicaID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.mu.entries {
		if k.Replica == replica {
			delete(t.mu.entries, k)
		}
	}
}

// Hydrated returns the pairing's hydration flag; ok is false if the
// pairing is not tracked. The flag may lag the frontier store by up to one
// poll interval.
func (t *Tracker) Hydrated(object base.CollectionID, replica base.ReplicaID) (hydrated, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.mu.entries[Key{Object: object, Replica: replica}]
	if !ok {
		return false, false
	}
	return e.hydrated, true
}

// Snapshot returns all entries sorted by (object, replica), for the
// introspection relation.
func (t *Tracker) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.mu.entries))
	for k, e := range t.mu.entries {
		out = append(out, Entry{Key: k, Hydrated: e.hydrated, UpdatedAt: e.updatedAt})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := cmp.Compare(a.Key.Object, b.Key.Object); c != 0 {
			return c
		}
		return cmp.Compare(a.Key.Replica, b.Key.Replica)
	})
	return out
}

// Start begins background polling.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mu.running {
		return
	}
	t.mu.running = true
	t.mu.timer = time.AfterFunc(t.interval, t.tick)
}

// Stop halts background polling. It does not discard state.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.mu.running {
		return
	}
	t.mu.running = false
	t.mu.timer.Stop()
	t.mu.timer = nil
}

func (t *Tracker) tick() {
	t.refresh()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mu.running {
		t.mu.timer = time.AfterFunc(t.interval, t.tick)
	}
}

// RefreshForTesting recomputes hydration state immediately.
func (t *Tracker) RefreshForTesting() {
	t.refresh()
}

// refresh advances Not Hydrated entries whose replica frontier shows the
// dataflow caught up to its inputs. Hydration is monotonic per pairing:
// ordinary progress never demotes a hydrated entry, only a drop removes
// it.
func (t *Tracker) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowFn()
	for k, e := range t.mu.entries {
		if e.hydrated {
			continue
		}
		ru, ok := t.replicaFrontiers.ReplicaUpper(k.Replica, k.Object)
		if !ok {
			// No report from this replica yet; silence is no information.
			continue
		}
		if t.caughtUp(ru, e.inputs) {
			e.hydrated = true
			e.updatedAt = now
		}
	}
}

func (t *Tracker) caughtUp(replicaUpper frontier.Antichain, inputs []base.CollectionID) bool {
	// A terminated dataflow is trivially caught up.
	if replicaUpper.IsEmpty() {
		return true
	}
	if len(inputs) == 0 {
		// Sources have no inputs: caught up once the frontier has left the
		// minimum.
		m, _ := replicaUpper.MinimumElement()
		return !replicaUpper.LessEqTS(frontier.MinTimestamp(m.Dims()))
	}
	var inputsUpper frontier.Antichain
	first := true
	for _, in := range inputs {
		u, ok := t.frontiers.ReadUpper(in)
		if !ok {
			// Input concurrently dropped; the cascade will remove this
			// entry shortly.
			return false
		}
		if first {
			inputsUpper, first = u, false
		} else {
			inputsUpper = inputsUpper.Meet(u)
		}
	}
	return inputsUpper.LessEq(replicaUpper)
}
