// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package oracle selects the timestamp at which a query may safely and
// most currently read a set of collections. The oracle is the only
// component that combines frontiers of multiple collections; it does so
// with explicit meets and joins, never by assuming synchronized clocks.
package oracle

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/internal/frontier"
	"github.com/cockroachdb/tscoord/store"
	"github.com/google/uuid"
)

// ErrSinceViolation means the query timestamp would fall below the
// combined since: the requested data has been compacted away. The caller
// must choose a newer timestamp; the oracle never retries on its own.
var ErrSinceViolation = errors.New("tscoord: timestamp less than since, data has been compacted")

// FrontierReader is the slice of the frontier store the oracle consumes.
type FrontierReader interface {
	Read(base.CollectionID) (store.FrontierPair, error)
}

// DescribeFunc renders a collection id for diagnostic output, e.g.
// "source materialize.public.orders (u3, storage)".
type DescribeFunc func(base.CollectionID) string

// Oracle assigns safe, monotonic read timestamps for one timeline.
type Oracle struct {
	frontiers FrontierReader
	clock     ReadClock
	timeline  uuid.UUID
	describe  DescribeFunc
	wallFn    func() time.Time
}

// New creates an Oracle for the given timeline. describe may be nil.
func New(frontiers FrontierReader, clock ReadClock, timeline uuid.UUID, describe DescribeFunc) *Oracle {
	if describe == nil {
		describe = func(id base.CollectionID) string {
			return fmt.Sprintf("collection %s", id)
		}
	}
	return &Oracle{
		frontiers: frontiers,
		clock:     clock,
		timeline:  timeline,
		describe:  describe,
		wallFn:    time.Now,
	}
}

// ReadNow returns the oracle's current read timestamp without consulting
// any collection.
func (o *Oracle) ReadNow() frontier.Timestamp { return o.clock.Now() }

// Timeline returns the timeline this oracle serves.
func (o *Oracle) Timeline() uuid.UUID { return o.timeline }

// CollectionState is the frontier state of one referenced collection at
// determination time.
type CollectionState struct {
	ID          base.CollectionID
	Description string
	Since       frontier.Antichain
	Upper       frontier.Antichain
}

// Determination is the outcome of timestamp selection for a query.
type Determination struct {
	// Timeline identifies the oracle's timeline.
	Timeline uuid.UUID
	// SessionWallTime is the wall time the determination was made.
	SessionWallTime time.Time
	// ReadTS is the oracle read timestamp consulted.
	ReadTS frontier.Timestamp
	// QueryTS is the timestamp the query must read at.
	QueryTS frontier.Timestamp
	// LargestNotInAdvance is the greatest timestamp strictly less than the
	// combined upper (the greatest representable timestamp if the upper is
	// terminal).
	LargestNotInAdvance frontier.Timestamp
	// Since is the join of the inputs' sinces: the binding lower bound.
	Since frontier.Antichain
	// Upper is the meet of the inputs' uppers.
	Upper frontier.Antichain
	// CanRespondImmediately is true iff QueryTS is strictly less than the
	// combined upper: all data required at QueryTS has been produced. When
	// false the caller must wait for the upper to advance past QueryTS.
	CanRespondImmediately bool
	// Collections holds per-input frontier state for diagnostics.
	Collections []CollectionState
}

// Pick computes the timestamp at which a query over the given collections
// may read. With no collections the result is the bare oracle read
// timestamp, unconstrained.
func (o *Oracle) Pick(ids ...base.CollectionID) (Determination, error) {
	det := Determination{
		Timeline:        o.timeline,
		SessionWallTime: o.wallFn(),
		ReadTS:          o.clock.Now(),
	}
	if len(ids) == 0 {
		det.QueryTS = det.ReadTS
		det.LargestNotInAdvance = det.ReadTS
		det.Upper = frontier.Empty()
		det.Since = frontier.Minimum(det.ReadTS.Dims())
		det.CanRespondImmediately = true
		return det, nil
	}

	var upper, since frontier.Antichain
	for i, id := range ids {
		p, err := o.frontiers.Read(id)
		if err != nil {
			return Determination{}, err
		}
		det.Collections = append(det.Collections, CollectionState{
			ID:          id,
			Description: o.describe(id),
			Since:       p.Since,
			Upper:       p.Upper,
		})
		if i == 0 {
			upper, since = p.Upper, p.Since
		} else {
			// The meet of the uppers bounds what has been fully computed
			// everywhere; the latest since is the binding constraint.
			upper = upper.Meet(p.Upper)
			since = since.Join(p.Since)
		}
	}
	det.Upper = upper
	det.Since = since

	dims := det.ReadTS.Dims()
	if m, ok := upper.MinimumElement(); ok {
		dims = m.Dims()
	} else if m, ok := since.MinimumElement(); ok {
		dims = m.Dims()
	}
	if dims != det.ReadTS.Dims() {
		return Determination{}, errors.AssertionFailedf(
			"timeline clock arity %d does not match collection time domain arity %d",
			det.ReadTS.Dims(), dims)
	}

	// A terminated input can be read at any timestamp: no further write
	// will ever invalidate the result.
	if upper.IsEmpty() {
		det.LargestNotInAdvance = frontier.MaxTimestamp(dims)
	} else {
		m, _ := upper.MinimumElement()
		det.LargestNotInAdvance = m.StepBack()
	}

	// As current as possible, but never behind the oracle: read-your-writes
	// across sessions.
	qts := det.ReadTS.Join(det.LargestNotInAdvance)

	if !since.LessEqTS(qts) {
		// Clamp up to the since. If that would push the query beyond the
		// largest complete timestamp, the data is gone: fail rather than
		// serve a result that is stale relative to the since.
		m, ok := since.MinimumElement()
		if !ok || !m.LessEq(det.LargestNotInAdvance) {
			return Determination{}, errors.Wrapf(ErrSinceViolation,
				"query timestamp %v less than since %v", qts, since)
		}
		qts = qts.Join(m)
		if !since.LessEqTS(qts) {
			return Determination{}, errors.Wrapf(ErrSinceViolation,
				"query timestamp %v less than since %v", qts, since)
		}
	}
	det.QueryTS = qts
	det.CanRespondImmediately = !upper.LessEqTS(qts)
	return det, nil
}

// Explain renders the determination as the introspection diagnostic text:
// one header block, then one block per referenced collection.
func (d Determination) Explain() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "                query timestamp: %s\n", d.QueryTS)
	fmt.Fprintf(&sb, "          oracle read timestamp: %s\n", d.ReadTS)
	fmt.Fprintf(&sb, "largest not in advance of upper: %s\n", d.LargestNotInAdvance)
	fmt.Fprintf(&sb, "                          upper:%s\n", d.Upper)
	fmt.Fprintf(&sb, "                          since:%s\n", d.Since)
	fmt.Fprintf(&sb, "        can respond immediately: %t\n", d.CanRespondImmediately)
	fmt.Fprintf(&sb, "                       timeline: Timeline(%s)\n", d.Timeline)
	fmt.Fprintf(&sb, "              session wall time: %s\n",
		d.SessionWallTime.UTC().Format("2006-01-02 15:04:05.000"))
	for _, c := range d.Collections {
		fmt.Fprintf(&sb, "\n%s:\n", c.Description)
		fmt.Fprintf(&sb, "                  read frontier:%s\n", c.Since)
		fmt.Fprintf(&sb, "                 write frontier:%s\n", c.Upper)
	}
	return sb.String()
}
