// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/redact"

// CollectionKind enumerates the kinds of logical collections tracked by the
// coordinator.
type CollectionKind uint8

const (
	KindUnknown CollectionKind = iota
	// KindSource is a single-output ingestion (Kafka topic, CDC feed).
	KindSource
	// KindSubsource is one output table of a multi-output source.
	KindSubsource
	// KindProgress is the progress relation automatically created alongside
	// a source to expose its ingestion frontier.
	KindProgress
	// KindTable is a user table written through the coordinator.
	KindTable
	// KindIndex is an arrangement maintained by a compute dataflow.
	KindIndex
	// KindMaterializedView is a continuously maintained materialization.
	KindMaterializedView
	// KindSink emits changes of a collection to an external system.
	KindSink
	// KindWebhookSource is a push-based source with no owning dataflow.
	KindWebhookSource
	// KindLoadGenerator is a synthetic source that may terminate.
	KindLoadGenerator
)

var kindStrings = [...]string{
	KindUnknown:          "unknown",
	KindSource:           "source",
	KindSubsource:        "subsource",
	KindProgress:         "progress",
	KindTable:            "table",
	KindIndex:            "index",
	KindMaterializedView: "materialized-view",
	KindSink:             "sink",
	KindWebhookSource:    "webhook-source",
	KindLoadGenerator:    "load-generator",
}

// String returns a string representation of the kind.
func (k CollectionKind) String() string {
	if int(k) >= len(kindStrings) {
		return kindStrings[KindUnknown]
	}
	return kindStrings[k]
}

// SafeFormat implements redact.SafeFormatter.
func (k CollectionKind) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString(redact.SafeString(k.String()))
}

// ParseKind maps a kind name back to its CollectionKind.
func ParseKind(s string) (CollectionKind, bool) {
	for k, name := range kindStrings {
		if name == s && CollectionKind(k) != KindUnknown {
			return CollectionKind(k), true
		}
	}
	return KindUnknown, false
}

// DataflowBacked reports whether collections of this kind are maintained by
// a per-replica dataflow and therefore participate in hydration tracking.
// Webhook sources, tables, and progress relations have no owning dataflow
// and never appear in the hydration tracker.
func (k CollectionKind) DataflowBacked() bool {
	switch k {
	case KindSource, KindSubsource, KindIndex, KindMaterializedView, KindSink, KindLoadGenerator:
		return true
	default:
		return false
	}
}

// MultiOutput reports whether collections of this kind may own subsources
// and a progress relation.
func (k CollectionKind) MultiOutput() bool {
	return k == KindSource || k == KindLoadGenerator
}
