// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// CollectionID identifies a logical collection (source, table, index,
// materialized view, sink, subsource, or progress relation). IDs are
// allocated by the lifecycle manager and never reused.
type CollectionID uint64

// String returns a string representation of the collection ID.
func (id CollectionID) String() string { return fmt.Sprintf("u%d", uint64(id)) }

// SafeFormat implements redact.SafeFormatter.
func (id CollectionID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("u%d", redact.SafeUint(id))
}

// ClusterID identifies a compute cluster.
type ClusterID uint64

// String returns a string representation of the cluster ID.
func (id ClusterID) String() string { return fmt.Sprintf("c%d", uint64(id)) }

// SafeFormat implements redact.SafeFormatter.
func (id ClusterID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("c%d", redact.SafeUint(id))
}

// ReplicaID identifies a replica within a cluster.
type ReplicaID uint64

// String returns a string representation of the replica ID.
func (id ReplicaID) String() string { return fmt.Sprintf("r%d", uint64(id)) }

// SafeFormat implements redact.SafeFormatter.
func (id ReplicaID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("r%d", redact.SafeUint(id))
}

// WorkerID identifies a worker within a replica. Worker IDs are dense,
// starting at zero.
type WorkerID uint32

// String returns a string representation of the worker ID.
func (id WorkerID) String() string { return fmt.Sprintf("w%d", uint32(id)) }

// SafeFormat implements redact.SafeFormatter.
func (id WorkerID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("w%d", redact.SafeUint(id))
}

// ProcessID identifies a physical process within a replica. Process IDs are
// dense, starting at zero.
type ProcessID uint32

// String returns a string representation of the process ID.
func (id ProcessID) String() string { return fmt.Sprintf("p%d", uint32(id)) }

// SafeFormat implements redact.SafeFormatter.
func (id ProcessID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("p%d", redact.SafeUint(id))
}
