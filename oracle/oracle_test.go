// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package oracle

import (
	"testing"
	"time"

	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/internal/frontier"
	"github.com/cockroachdb/tscoord/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testTimeline = uuid.MustParse("9f3a8e52-5b1f-4c6e-8d2a-0f1f6a4f9c11")

func newTestOracle(t *testing.T) (*Oracle, *store.Store, *ManualClock) {
	st := store.New(base.NoopLogger{})
	clock := &ManualClock{}
	o := New(st, clock, testTimeline, nil)
	o.wallFn = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	return o, st, clock
}

func advanceUpper(t *testing.T, st *store.Store, id base.CollectionID, ts uint64) {
	t.Helper()
	_, err := st.AdvanceUpper(id, frontier.FromElem(frontier.TS(ts)))
	require.NoError(t, err)
}

func advanceSince(t *testing.T, st *store.Store, id base.CollectionID, ts uint64) {
	t.Helper()
	_, err := st.AdvanceSince(id, frontier.FromElem(frontier.TS(ts)))
	require.NoError(t, err)
}

func TestPickSingleCollection(t *testing.T) {
	o, st, clock := newTestOracle(t)
	require.NoError(t, st.Register(1))
	advanceUpper(t, st, 1, 6)
	clock.Set(3)

	det, err := o.Pick(1)
	require.NoError(t, err)
	// largest not in advance of [6] is 5; the oracle read (3) is behind it,
	// so the query reads as currently as possible.
	require.Equal(t, frontier.TS(5), det.QueryTS)
	require.Equal(t, frontier.TS(3), det.ReadTS)
	require.Equal(t, frontier.TS(5), det.LargestNotInAdvance)
	require.True(t, det.CanRespondImmediately)
}

func TestPickReadTimestampAhead(t *testing.T) {
	o, st, clock := newTestOracle(t)
	require.NoError(t, st.Register(1))
	advanceUpper(t, st, 1, 6)
	// The oracle has already served 9 (read-your-writes): the query must
	// read at 9 and wait for the upper to pass it.
	clock.Set(9)

	det, err := o.Pick(1)
	require.NoError(t, err)
	require.Equal(t, frontier.TS(9), det.QueryTS)
	require.False(t, det.CanRespondImmediately)
}

func TestPickMultipleCollections(t *testing.T) {
	o, st, clock := newTestOracle(t)
	for id := base.CollectionID(1); id <= 3; id++ {
		require.NoError(t, st.Register(id))
	}
	advanceUpper(t, st, 1, 10)
	advanceUpper(t, st, 2, 4)
	advanceUpper(t, st, 3, 7)
	advanceSince(t, st, 1, 2)
	advanceSince(t, st, 3, 1)
	clock.Set(0)

	det, err := o.Pick(1, 2, 3)
	require.NoError(t, err)
	// upper = meet = [4]; since = join = [2].
	require.Equal(t, "[4]", det.Upper.String())
	require.Equal(t, "[2]", det.Since.String())
	require.Equal(t, frontier.TS(3), det.QueryTS)
	require.True(t, det.CanRespondImmediately)
	require.Len(t, det.Collections, 3)
}

func TestPickSinceClamp(t *testing.T) {
	o, st, clock := newTestOracle(t)
	require.NoError(t, st.Register(1))
	advanceUpper(t, st, 1, 10)
	advanceSince(t, st, 1, 7)
	clock.Set(0)

	// read=0, largest-not-in-advance=9, since=7: 9 >= 7, no clamp needed.
	det, err := o.Pick(1)
	require.NoError(t, err)
	require.Equal(t, frontier.TS(9), det.QueryTS)

	// Now pretend the oracle is far behind and the upper barely past the
	// since: the clamp engages but stays within the complete range.
	require.NoError(t, st.Register(2))
	advanceUpper(t, st, 2, 3)
	advanceSince(t, st, 2, 2)
	det, err = o.Pick(2)
	require.NoError(t, err)
	require.Equal(t, frontier.TS(2), det.QueryTS)
	require.True(t, det.CanRespondImmediately)
}

func TestPickSinceViolation(t *testing.T) {
	o, st, clock := newTestOracle(t)
	require.NoError(t, st.Register(1))
	require.NoError(t, st.Register(2))
	advanceUpper(t, st, 1, 3)
	advanceUpper(t, st, 2, 10)
	advanceSince(t, st, 2, 8)
	clock.Set(0)

	// Combined upper is [3] (largest complete: 2) but the join of sinces
	// is [8]: the readable range is empty, the data was compacted away.
	_, err := o.Pick(1, 2)
	require.ErrorIs(t, err, ErrSinceViolation)
}

func TestPickTerminatedCollection(t *testing.T) {
	o, st, clock := newTestOracle(t)
	require.NoError(t, st.Register(1))
	advanceUpper(t, st, 1, 4)
	advanceSince(t, st, 1, 2)
	_, err := st.AdvanceUpper(1, frontier.Empty())
	require.NoError(t, err)
	clock.Set(1_000_000)

	det, err := o.Pick(1)
	require.NoError(t, err)
	// A terminated collection can be read at any timestamp, immediately.
	require.True(t, det.CanRespondImmediately)
	require.True(t, det.Upper.IsEmpty())
	require.Equal(t, "[2]", det.Since.String())
	require.Equal(t, frontier.MaxTimestamp(1), det.QueryTS)
}

func TestPickEmptyCollectionSet(t *testing.T) {
	o, _, clock := newTestOracle(t)
	clock.Set(42)
	det, err := o.Pick()
	require.NoError(t, err)
	require.Equal(t, frontier.TS(42), det.QueryTS)
	require.True(t, det.CanRespondImmediately)
	require.Empty(t, det.Collections)
}

func TestPickUnknownCollection(t *testing.T) {
	o, _, _ := newTestOracle(t)
	_, err := o.Pick(99)
	require.ErrorIs(t, err, base.ErrUnknownCollection)
}

func TestReadNowMonotonic(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewWallClockWithNowFn(func() time.Time { return now })
	ts1 := c.Now()
	// Wall clock stepping backward must not move the read timestamp back.
	now = time.Unix(500, 0)
	ts2 := c.Now()
	require.True(t, ts1.LessEq(ts2))
}

func TestExplainTerminated(t *testing.T) {
	o, st, clock := newTestOracle(t)
	require.NoError(t, st.Register(7))
	advanceUpper(t, st, 7, 3)
	_, err := st.AdvanceUpper(7, frontier.Empty())
	require.NoError(t, err)
	clock.Set(5)

	det, err := o.Pick(7)
	require.NoError(t, err)
	out := det.Explain()
	require.Contains(t, out, "upper:[]")
	require.Contains(t, out, "can respond immediately: true")
	require.Contains(t, out, "timeline: Timeline(9f3a8e52-5b1f-4c6e-8d2a-0f1f6a4f9c11)")
	require.Contains(t, out, "collection u7:")
	require.Contains(t, out, "write frontier:[]")
	require.Contains(t, out, "read frontier:[0]")
}
