// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tscoord

import (
	"github.com/cockroachdb/tscoord/aggregator"
	"github.com/cockroachdb/tscoord/hydration"
	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/internal/frontier"
	"github.com/cockroachdb/tscoord/lifecycle"
	"github.com/cockroachdb/tscoord/oracle"
	"github.com/cockroachdb/tscoord/store"
)

// CollectionID exports the base.CollectionID type.
type CollectionID = base.CollectionID

// ClusterID exports the base.ClusterID type.
type ClusterID = base.ClusterID

// ReplicaID exports the base.ReplicaID type.
type ReplicaID = base.ReplicaID

// WorkerID exports the base.WorkerID type.
type WorkerID = base.WorkerID

// ProcessID exports the base.ProcessID type.
type ProcessID = base.ProcessID

// CollectionKind exports the base.CollectionKind type.
type CollectionKind = base.CollectionKind

// Collection kinds.
const (
	KindSource           = base.KindSource
	KindSubsource        = base.KindSubsource
	KindProgress         = base.KindProgress
	KindTable            = base.KindTable
	KindIndex            = base.KindIndex
	KindMaterializedView = base.KindMaterializedView
	KindSink             = base.KindSink
	KindWebhookSource    = base.KindWebhookSource
	KindLoadGenerator    = base.KindLoadGenerator
)

// Counters exports the base.Counters type.
type Counters = base.Counters

// Logger exports the base.Logger type.
type Logger = base.Logger

// DefaultLogger exports the base.DefaultLogger type.
type DefaultLogger = base.DefaultLogger

// Timestamp exports the frontier.Timestamp type.
type Timestamp = frontier.Timestamp

// Frontier exports the frontier.Antichain type.
type Frontier = frontier.Antichain

// TS returns a single-coordinate timestamp, the common case.
func TS(v uint64) Timestamp { return frontier.TS(v) }

// FrontierAt returns the frontier holding exactly the given timestamp.
func FrontierAt(ts Timestamp) Frontier { return frontier.FromElem(ts) }

// EmptyFrontier returns the terminal frontier.
func EmptyFrontier() Frontier { return frontier.Empty() }

// FrontierPair exports the store.FrontierPair type.
type FrontierPair = store.FrontierPair

// CollectionFrontier exports the store.CollectionFrontier type.
type CollectionFrontier = store.CollectionFrontier

// ObjectSpec exports the lifecycle.ObjectSpec type.
type ObjectSpec = lifecycle.ObjectSpec

// CreatedObject exports the lifecycle.CreatedObject type.
type CreatedObject = lifecycle.CreatedObject

// CollectionMeta exports the lifecycle.CollectionMeta type.
type CollectionMeta = lifecycle.CollectionMeta

// Determination exports the oracle.Determination type.
type Determination = oracle.Determination

// HydrationEntry exports the hydration.Entry type.
type HydrationEntry = hydration.Entry

// ProcessAggregate exports the aggregator.ProcessAggregate type.
type ProcessAggregate = aggregator.ProcessAggregate

// Errors re-exported for callers matching with errors.Is.
var (
	ErrUnknownCollection  = base.ErrUnknownCollection
	ErrUnknownReplica     = base.ErrUnknownReplica
	ErrUnknownCluster     = base.ErrUnknownCluster
	ErrFrontierRegression = base.ErrFrontierRegression
	ErrArityMismatch      = base.ErrArityMismatch
	ErrSinceViolation     = oracle.ErrSinceViolation
)
