// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/redact"

// Counters are the ingestion statistics a worker reports alongside its
// write frontier. Counters are levels, not deltas: a report carries the
// worker's current totals, so replaying a report is a no-op.
type Counters struct {
	// MessagesReceived is the number of upstream messages ingested.
	MessagesReceived uint64
	// BytesReceived is the number of upstream bytes ingested.
	BytesReceived uint64
	// UpdatesStaged is the number of differential updates staged for commit.
	UpdatesStaged uint64
	// UpdatesCommitted is the number of differential updates committed.
	UpdatesCommitted uint64
}

// Accumulate adds the other counters into the receiver.
func (c *Counters) Accumulate(other Counters) {
	c.MessagesReceived += other.MessagesReceived
	c.BytesReceived += other.BytesReceived
	c.UpdatesStaged += other.UpdatesStaged
	c.UpdatesCommitted += other.UpdatesCommitted
}

// AtLeast reports whether every counter is >= the corresponding counter in
// other. Counter levels are monotonic per worker; a report violating this
// is a protocol violation.
func (c Counters) AtLeast(other Counters) bool {
	return c.MessagesReceived >= other.MessagesReceived &&
		c.BytesReceived >= other.BytesReceived &&
		c.UpdatesStaged >= other.UpdatesStaged &&
		c.UpdatesCommitted >= other.UpdatesCommitted
}

// IsZero reports whether all counters are zero.
func (c Counters) IsZero() bool {
	return c == Counters{}
}

// SafeFormat implements redact.SafeFormatter.
func (c Counters) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("messages=%d bytes=%d staged=%d committed=%d",
		redact.SafeUint(c.MessagesReceived), redact.SafeUint(c.BytesReceived),
		redact.SafeUint(c.UpdatesStaged), redact.SafeUint(c.UpdatesCommitted))
}
