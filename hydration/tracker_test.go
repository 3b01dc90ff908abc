// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package hydration

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/internal/frontier"
	"github.com/stretchr/testify/require"
)

// fakeFrontiers serves both the cluster-wide and per-replica frontier
// interfaces from plain maps.
type fakeFrontiers struct {
	mu      sync.Mutex
	cluster map[base.CollectionID]frontier.Antichain
	replica map[Key]frontier.Antichain
}

func newFakeFrontiers() *fakeFrontiers {
	return &fakeFrontiers{
		cluster: make(map[base.CollectionID]frontier.Antichain),
		replica: make(map[Key]frontier.Antichain),
	}
}

func (f *fakeFrontiers) ReadUpper(id base.CollectionID) (frontier.Antichain, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.cluster[id]
	return u, ok
}

func (f *fakeFrontiers) ReplicaUpper(r base.ReplicaID, id base.CollectionID) (frontier.Antichain, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.replica[Key{Object: id, Replica: r}]
	return u, ok
}

func (f *fakeFrontiers) set(r base.ReplicaID, id base.CollectionID, ts uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replica[Key{Object: id, Replica: r}] = frontier.FromElem(frontier.TS(ts))
}

func (f *fakeFrontiers) setCluster(id base.CollectionID, ts uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cluster[id] = frontier.FromElem(frontier.TS(ts))
}

func TestSourceHydration(t *testing.T) {
	f := newFakeFrontiers()
	tr := New(f, f, time.Hour)
	tr.Track(1, 10, nil)

	// No report yet: not hydrated, but tracked.
	tr.RefreshForTesting()
	hydrated, ok := tr.Hydrated(1, 10)
	require.True(t, ok)
	require.False(t, hydrated)

	// A report at the minimum frontier is not caught up.
	f.replica[Key{Object: 1, Replica: 10}] = frontier.Minimum(1)
	tr.RefreshForTesting()
	hydrated, _ = tr.Hydrated(1, 10)
	require.False(t, hydrated)

	f.set(10, 1, 5)
	tr.RefreshForTesting()
	hydrated, _ = tr.Hydrated(1, 10)
	require.True(t, hydrated)
}

func TestDataflowHydrationAgainstInputs(t *testing.T) {
	f := newFakeFrontiers()
	tr := New(f, f, time.Hour)
	// Object 2 is an index over inputs 1 and 3.
	tr.Track(2, 10, []base.CollectionID{1, 3})

	f.setCluster(1, 10)
	f.setCluster(3, 6)
	f.set(10, 2, 4)
	tr.RefreshForTesting()
	hydrated, _ := tr.Hydrated(2, 10)
	require.False(t, hydrated)

	// Caught up to the meet of the inputs' uppers ([6]).
	f.set(10, 2, 6)
	tr.RefreshForTesting()
	hydrated, _ = tr.Hydrated(2, 10)
	require.True(t, hydrated)
}

func TestHydrationMonotonic(t *testing.T) {
	f := newFakeFrontiers()
	tr := New(f, f, time.Hour)
	tr.Track(2, 10, []base.CollectionID{1})
	f.setCluster(1, 5)
	f.set(10, 2, 5)
	tr.RefreshForTesting()
	hydrated, _ := tr.Hydrated(2, 10)
	require.True(t, hydrated)

	// Inputs racing ahead never demote a hydrated pairing.
	f.setCluster(1, 100)
	tr.RefreshForTesting()
	hydrated, _ = tr.Hydrated(2, 10)
	require.True(t, hydrated)
}

func TestTerminatedDataflowHydrates(t *testing.T) {
	f := newFakeFrontiers()
	tr := New(f, f, time.Hour)
	tr.Track(1, 10, nil)
	f.mu.Lock()
	f.replica[Key{Object: 1, Replica: 10}] = frontier.Empty()
	f.mu.Unlock()
	tr.RefreshForTesting()
	hydrated, _ := tr.Hydrated(1, 10)
	require.True(t, hydrated)
}

func TestUntrack(t *testing.T) {
	f := newFakeFrontiers()
	tr := New(f, f, time.Hour)
	tr.Track(1, 10, nil)
	tr.Track(1, 11, nil)
	tr.Track(2, 10, nil)

	tr.UntrackReplica(10)
	_, ok := tr.Hydrated(1, 10)
	require.False(t, ok)
	_, ok = tr.Hydrated(2, 10)
	require.False(t, ok)
	_, ok = tr.Hydrated(1, 11)
	require.True(t, ok)

	tr.UntrackObject(1)
	_, ok = tr.Hydrated(1, 11)
	require.False(t, ok)
	require.Empty(t, tr.Snapshot())
}

// The tracker is eventually consistent: with background polling the flag
// flips within a bounded number of intervals, so check by retrying.
func TestBackgroundPolling(t *testing.T) {
	f := newFakeFrontiers()
	tr := New(f, f, time.Millisecond)
	tr.Track(1, 10, nil)
	tr.Start()
	defer tr.Stop()

	f.set(10, 1, 3)
	require.Eventually(t, func() bool {
		hydrated, ok := tr.Hydrated(1, 10)
		return ok && hydrated
	}, 5*time.Second, time.Millisecond)
}

func TestTrackPreservesState(t *testing.T) {
	f := newFakeFrontiers()
	tr := New(f, f, time.Hour)
	tr.Track(1, 10, nil)
	f.set(10, 1, 3)
	tr.RefreshForTesting()

	// Re-tracking an existing pairing is an idempotent no-op.
	tr.Track(1, 10, nil)
	hydrated, ok := tr.Hydrated(1, 10)
	require.True(t, ok)
	require.True(t, hydrated)
}
