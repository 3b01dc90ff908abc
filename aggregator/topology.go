// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package aggregator

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tscoord/internal/base"
)

// Topology is the deterministic worker-to-process partition of a replica,
// fixed for the replica's lifetime. Workers are assigned to processes in
// contiguous blocks of equal size: for a 2-process, 4-worker replica,
// workers {0,1} map to process 0 and workers {2,3} to process 1.
type Topology struct {
	// Workers is the replica size: the total worker count.
	Workers int
	// Processes is the number of physical processes.
	Processes int
}

// MakeTopology validates and returns a topology. The worker count must be
// a positive multiple of the process count.
func MakeTopology(workers, processes int) (Topology, error) {
	if workers <= 0 || processes <= 0 {
		return Topology{}, errors.Newf("topology must have positive workers and processes (got %d/%d)",
			workers, processes)
	}
	if workers%processes != 0 {
		return Topology{}, errors.Newf("worker count %d not divisible into %d processes",
			workers, processes)
	}
	return Topology{Workers: workers, Processes: processes}, nil
}

// BlockSize returns the number of workers per process.
func (t Topology) BlockSize() int { return t.Workers / t.Processes }

// ProcessForWorker returns the process hosting the given worker.
func (t Topology) ProcessForWorker(w base.WorkerID) base.ProcessID {
	return base.ProcessID(int(w) / t.BlockSize())
}

// ContainsWorker reports whether the worker id is within the replica.
// WorkerID is unsigned, so only the upper bound can be out of range.
func (t Topology) ContainsWorker(w base.WorkerID) bool {
	return uint64(w) < uint64(t.Workers)
}

// String returns a string representation of the topology.
func (t Topology) String() string {
	return redact.StringWithoutMarkers(t)
}

// SafeFormat implements redact.SafeFormatter.
func (t Topology) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d workers / %d processes", redact.SafeInt(t.Workers), redact.SafeInt(t.Processes))
}
