// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"errors"
)

// ErrUnknownCollection means an operation referenced a collection id that
// is not registered. Unknown ids fail fast; no placeholder is created.
var ErrUnknownCollection = errors.New("tscoord: unknown collection")

// ErrUnknownReplica means an operation referenced a replica id that is not
// registered.
var ErrUnknownReplica = errors.New("tscoord: unknown replica")

// ErrUnknownCluster means an operation referenced a cluster id that is not
// registered.
var ErrUnknownCluster = errors.New("tscoord: unknown cluster")

// ErrFrontierRegression means a reported frontier would move backward. This
// is a protocol violation in the reporting layer; the offending report is
// dropped, never applied.
var ErrFrontierRegression = errors.New("tscoord: frontier regression")

// ErrArityMismatch means a timestamp's arity does not match the
// collection's time domain. Like a regression, this is a protocol
// violation: the offending operation is rejected, never applied.
var ErrArityMismatch = errors.New("tscoord: timestamp arity mismatch")
