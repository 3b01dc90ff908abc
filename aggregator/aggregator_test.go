// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package aggregator

import (
	"testing"

	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/internal/frontier"
	"github.com/cockroachdb/tscoord/store"
	"github.com/stretchr/testify/require"
)

func TestTopology(t *testing.T) {
	topo, err := MakeTopology(4, 2)
	require.NoError(t, err)
	require.Equal(t, 2, topo.BlockSize())
	require.Equal(t, base.ProcessID(0), topo.ProcessForWorker(0))
	require.Equal(t, base.ProcessID(0), topo.ProcessForWorker(1))
	require.Equal(t, base.ProcessID(1), topo.ProcessForWorker(2))
	require.Equal(t, base.ProcessID(1), topo.ProcessForWorker(3))

	_, err = MakeTopology(5, 2)
	require.Error(t, err)
	_, err = MakeTopology(0, 1)
	require.Error(t, err)
}

func newTestAggregator(t *testing.T) (*Aggregator, *store.Store) {
	st := store.New(base.NoopLogger{})
	require.NoError(t, st.Register(1))
	a := New(st, base.NoopLogger{})
	topo, err := MakeTopology(4, 2)
	require.NoError(t, err)
	require.NoError(t, a.RegisterReplica(10, topo))
	return a, st
}

// Workers {0,1} map to process 0 and {2,3} to process 1. If worker 0
// reports upper=5 and worker 1 reports upper=7, process 0's aggregate is
// the meet, 5.
func TestProcessMeet(t *testing.T) {
	a, _ := newTestAggregator(t)

	require.NoError(t, a.Report(10, 0, 1, frontier.FromElem(frontier.TS(5)), base.Counters{MessagesReceived: 1}))
	require.NoError(t, a.Report(10, 1, 1, frontier.FromElem(frontier.TS(7)), base.Counters{MessagesReceived: 2}))
	require.NoError(t, a.Report(10, 2, 1, frontier.FromElem(frontier.TS(9)), base.Counters{MessagesReceived: 1}))

	procs, err := a.ProcessSnapshot(10, 1)
	require.NoError(t, err)
	require.Len(t, procs, 2)

	require.True(t, procs[0].Seen)
	require.Equal(t, "[5]", procs[0].Upper.String())
	require.Equal(t, uint64(3), procs[0].Counters.MessagesReceived)

	// Worker 3 has not reported; process 1 aggregates only worker 2.
	require.True(t, procs[1].Seen)
	require.Equal(t, "[9]", procs[1].Upper.String())
	require.Equal(t, uint64(1), procs[1].Counters.MessagesReceived)

	// The silent worker 3 may still hold data at arbitrarily early times,
	// so the replica bounds nothing cluster-wide yet.
	_, ok := a.ClusterUpper(1)
	require.False(t, ok)

	require.NoError(t, a.Report(10, 3, 1, frontier.FromElem(frontier.TS(9)), base.Counters{MessagesReceived: 1}))
	upper, ok := a.ClusterUpper(1)
	require.True(t, ok)
	require.Equal(t, "[5]", upper.String())
}

func TestNoDataYetSnapshot(t *testing.T) {
	a, _ := newTestAggregator(t)

	// The "no data yet" state: no worker has reported, both processes are
	// present but unseen (introspection renders these as null, not zero).
	procs, err := a.ProcessSnapshot(10, 1)
	require.NoError(t, err)
	require.Len(t, procs, 2)
	require.False(t, procs[0].Seen)
	require.False(t, procs[1].Seen)

	_, ok := a.ClusterUpper(1)
	require.False(t, ok)
}

func TestPushesAdvancesToStore(t *testing.T) {
	a, st := newTestAggregator(t)

	uppers := []uint64{5, 7, 3, 9}
	for w, u := range uppers {
		require.NoError(t, a.Report(10, base.WorkerID(w), 1,
			frontier.FromElem(frontier.TS(u)), base.Counters{}))
	}
	p, err := st.Read(1)
	require.NoError(t, err)
	require.Equal(t, "[3]", p.Upper.String())

	// The slowest worker catching up advances the cluster meet.
	require.NoError(t, a.Report(10, 2, 1, frontier.FromElem(frontier.TS(6)), base.Counters{}))
	p, err = st.Read(1)
	require.NoError(t, err)
	require.Equal(t, "[5]", p.Upper.String())

	require.NoError(t, a.Report(10, 0, 1, frontier.FromElem(frontier.TS(6)), base.Counters{}))
	p, err = st.Read(1)
	require.NoError(t, err)
	require.Equal(t, "[6]", p.Upper.String())
}

// The store frontier may not move until every worker of some replica has
// reported: a query answered against a partial meet could be invalidated
// by a straggler reporting an earlier frontier.
func TestPartialReportsDoNotAdvanceStore(t *testing.T) {
	a, st := newTestAggregator(t)

	uppers := []uint64{5, 7, 3, 9}
	for w, u := range uppers {
		p, err := st.Read(1)
		require.NoError(t, err)
		require.Equal(t, "[0]", p.Upper.String())
		require.NoError(t, a.Report(10, base.WorkerID(w), 1,
			frontier.FromElem(frontier.TS(u)), base.Counters{}))
	}

	// Only the fourth report completes coverage and pushes the true meet.
	p, err := st.Read(1)
	require.NoError(t, err)
	require.Equal(t, "since:[0] upper:[3]", p.String())
}

func TestRegressionRejected(t *testing.T) {
	a, _ := newTestAggregator(t)

	require.NoError(t, a.Report(10, 0, 1, frontier.FromElem(frontier.TS(5)), base.Counters{MessagesReceived: 4}))

	// Frontier regression: dropped, never applied.
	err := a.Report(10, 0, 1, frontier.FromElem(frontier.TS(4)), base.Counters{MessagesReceived: 4})
	require.ErrorIs(t, err, base.ErrFrontierRegression)

	// Counter regression at an advancing frontier: also a protocol violation.
	err = a.Report(10, 0, 1, frontier.FromElem(frontier.TS(6)), base.Counters{MessagesReceived: 3})
	require.ErrorIs(t, err, ErrCounterRegression)

	// Neither rejected report was applied.
	procs, err := a.ProcessSnapshot(10, 1)
	require.NoError(t, err)
	require.Equal(t, "[5]", procs[0].Upper.String())
	require.Equal(t, uint64(4), procs[0].Counters.MessagesReceived)
	require.Equal(t, uint64(2), a.Stats().ReportsRejected.Load())
}

func TestArityMismatchRejected(t *testing.T) {
	a, _ := newTestAggregator(t)

	require.NoError(t, a.Report(10, 0, 1, frontier.FromElem(frontier.TS(5)), base.Counters{MessagesReceived: 4}))

	// A two-coordinate timestamp for a one-dimensional collection is a
	// protocol violation, rejected like a regression rather than applied.
	err := a.Report(10, 0, 1, frontier.FromElem(frontier.MakeTimestamp(1, 2)), base.Counters{MessagesReceived: 4})
	require.ErrorIs(t, err, base.ErrArityMismatch)
	require.Equal(t, uint64(1), a.Stats().ReportsRejected.Load())

	procs, err := a.ProcessSnapshot(10, 1)
	require.NoError(t, err)
	require.Equal(t, "[5]", procs[0].Upper.String())
}

func TestReplayIsNoop(t *testing.T) {
	a, _ := newTestAggregator(t)

	c := base.Counters{MessagesReceived: 7, BytesReceived: 100}
	require.NoError(t, a.Report(10, 0, 1, frontier.FromElem(frontier.TS(5)), c))
	require.NoError(t, a.Report(10, 0, 1, frontier.FromElem(frontier.TS(5)), c))
	require.Equal(t, uint64(1), a.Stats().ReportsApplied.Load())
	require.Equal(t, uint64(1), a.Stats().ReportsReplayed.Load())

	procs, err := a.ProcessSnapshot(10, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(7), procs[0].Counters.MessagesReceived)
}

func TestReportValidation(t *testing.T) {
	a, _ := newTestAggregator(t)

	// Unknown collection: fail fast, no placeholder.
	err := a.Report(10, 0, 99, frontier.FromElem(frontier.TS(1)), base.Counters{})
	require.ErrorIs(t, err, base.ErrUnknownCollection)

	// Unknown replica.
	err = a.Report(11, 0, 1, frontier.FromElem(frontier.TS(1)), base.Counters{})
	require.ErrorIs(t, err, base.ErrUnknownReplica)

	// Worker out of range.
	err = a.Report(10, 4, 1, frontier.FromElem(frontier.TS(1)), base.Counters{})
	require.Error(t, err)
}

func TestTerminatedWorkers(t *testing.T) {
	a, st := newTestAggregator(t)

	for w := base.WorkerID(0); w < 4; w++ {
		require.NoError(t, a.Report(10, w, 1, frontier.Empty(), base.Counters{MessagesReceived: 1}))
	}
	// Every worker reported the terminal frontier: the collection is done.
	p, err := st.Read(1)
	require.NoError(t, err)
	require.True(t, p.Upper.IsEmpty())
}

func TestDropReplicaFreezesFrontier(t *testing.T) {
	a, st := newTestAggregator(t)

	for w := base.WorkerID(0); w < 4; w++ {
		require.NoError(t, a.Report(10, w, 1, frontier.FromElem(frontier.TS(5)), base.Counters{}))
	}
	require.NoError(t, a.DropReplica(10))

	_, ok := a.ClusterUpper(1)
	require.False(t, ok)
	// The store frontier survives replica churn.
	p, err := st.Read(1)
	require.NoError(t, err)
	require.Equal(t, "[5]", p.Upper.String())

	require.ErrorIs(t, a.DropReplica(10), base.ErrUnknownReplica)
}

func TestDropCollectionClearsProgress(t *testing.T) {
	a, _ := newTestAggregator(t)

	for w := base.WorkerID(0); w < 4; w++ {
		require.NoError(t, a.Report(10, w, 1, frontier.FromElem(frontier.TS(5)), base.Counters{MessagesReceived: 1}))
	}
	upper, ok := a.ClusterUpper(1)
	require.True(t, ok)
	require.Equal(t, "[5]", upper.String())

	a.DropCollection(1)
	_, ok = a.ClusterUpper(1)
	require.False(t, ok)
	procs, err := a.ProcessSnapshot(10, 1)
	require.NoError(t, err)
	require.False(t, procs[0].Seen)
	require.False(t, procs[1].Seen)
}
