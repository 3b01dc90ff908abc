// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package oracle

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/tscoord/internal/frontier"
)

// ReadClock is the monotonically increasing, externally synchronized
// counter backing the oracle's read timestamp for a timeline. Two queries
// issued in real-time order never observe time moving backward, across
// sessions.
type ReadClock interface {
	// Now returns the current read timestamp. Successive calls never
	// decrease.
	Now() frontier.Timestamp
}

// WallClock derives read timestamps from wall-clock milliseconds, ratcheted
// through an atomic maximum so the result is monotonic even if the wall
// clock steps backward.
type WallClock struct {
	nowFn func() time.Time
	last  atomic.Uint64
}

// NewWallClock returns a WallClock reading from time.Now.
func NewWallClock() *WallClock {
	return &WallClock{nowFn: time.Now}
}

// NewWallClockWithNowFn returns a WallClock using the given time source.
func NewWallClockWithNowFn(nowFn func() time.Time) *WallClock {
	return &WallClock{nowFn: nowFn}
}

// Now implements ReadClock.
func (c *WallClock) Now() frontier.Timestamp {
	now := uint64(c.nowFn().UnixMilli())
	for {
		last := c.last.Load()
		if now <= last {
			return frontier.TS(last)
		}
		if c.last.CompareAndSwap(last, now) {
			return frontier.TS(now)
		}
	}
}

// ManualClock is a ReadClock advanced explicitly, for tests.
type ManualClock struct {
	ts atomic.Uint64
}

// Now implements ReadClock.
func (c *ManualClock) Now() frontier.Timestamp {
	return frontier.TS(c.ts.Load())
}

// Set moves the clock to ts; it never moves backward.
func (c *ManualClock) Set(ts uint64) {
	for {
		cur := c.ts.Load()
		if ts <= cur || c.ts.CompareAndSwap(cur, ts) {
			return
		}
	}
}

// Advance moves the clock forward by d ticks.
func (c *ManualClock) Advance(d uint64) {
	c.ts.Add(d)
}
