// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package frontier implements the algebra of partially ordered timestamps
// and antichains over them. Frontiers (since and upper bounds on
// collections) are antichains: sets of pairwise-incomparable timestamps.
// The common case is a single-coordinate, totally ordered timestamp; the
// multi-coordinate product order is the general model and the single
// coordinate is its specialization.
package frontier

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Timestamp is a point in a partially ordered time domain: a vector of
// coordinates under the product order. Two timestamps are comparable only
// if they have the same number of coordinates; comparing timestamps of
// different arity is a programmer error.
//
// Timestamps have value semantics. Operations return new timestamps and
// never mutate their receiver.
type Timestamp []uint64

// TS returns a single-coordinate timestamp, the common case.
func TS(v uint64) Timestamp { return Timestamp{v} }

// MakeTimestamp returns a timestamp with the given coordinates.
func MakeTimestamp(coords ...uint64) Timestamp {
	return slices.Clone(coords)
}

// MinTimestamp returns the minimum timestamp with the given arity.
func MinTimestamp(dims int) Timestamp {
	return make(Timestamp, dims)
}

// MaxTimestamp returns the maximum representable timestamp with the given
// arity.
func MaxTimestamp(dims int) Timestamp {
	ts := make(Timestamp, dims)
	for i := range ts {
		ts[i] = math.MaxUint64
	}
	return ts
}

// Dims returns the number of coordinates.
func (t Timestamp) Dims() int { return len(t) }

// Clone returns a copy of the timestamp.
func (t Timestamp) Clone() Timestamp { return slices.Clone(t) }

func (t Timestamp) assertComparable(o Timestamp) {
	if len(t) != len(o) {
		panic(errors.AssertionFailedf("mismatched timestamp arity: %d vs %d", len(t), len(o)))
	}
}

// Equal reports whether the timestamps are equal.
func (t Timestamp) Equal(o Timestamp) bool {
	t.assertComparable(o)
	return slices.Equal(t, o)
}

// LessEq reports whether t <= o in the product order. The order is
// partial: LessEq(a, b) and LessEq(b, a) may both be false.
func (t Timestamp) LessEq(o Timestamp) bool {
	t.assertComparable(o)
	for i := range t {
		if t[i] > o[i] {
			return false
		}
	}
	return true
}

// Less reports whether t < o in the product order.
func (t Timestamp) Less(o Timestamp) bool {
	return t.LessEq(o) && !slices.Equal(t, o)
}

// Meet returns the greatest lower bound: the coordinate-wise minimum.
func (t Timestamp) Meet(o Timestamp) Timestamp {
	t.assertComparable(o)
	r := make(Timestamp, len(t))
	for i := range t {
		r[i] = min(t[i], o[i])
	}
	return r
}

// Join returns the least upper bound: the coordinate-wise maximum.
func (t Timestamp) Join(o Timestamp) Timestamp {
	t.assertComparable(o)
	r := make(Timestamp, len(t))
	for i := range t {
		r[i] = max(t[i], o[i])
	}
	return r
}

// StepBack returns the timestamp with its final coordinate decremented,
// saturating at zero. For a single-coordinate upper {t}, StepBack yields
// the largest timestamp not in advance of the frontier.
func (t Timestamp) StepBack() Timestamp {
	r := slices.Clone(t)
	if n := len(r); n > 0 && r[n-1] > 0 {
		r[n-1]--
	}
	return r
}

// Next returns the timestamp with its final coordinate incremented,
// saturating at the maximum.
func (t Timestamp) Next() Timestamp {
	r := slices.Clone(t)
	if n := len(r); n > 0 && r[n-1] < math.MaxUint64 {
		r[n-1]++
	}
	return r
}

// IsMin reports whether every coordinate is zero.
func (t Timestamp) IsMin() bool {
	for _, c := range t {
		if c != 0 {
			return false
		}
	}
	return true
}

// Compare orders timestamps lexicographically. This is a total order used
// only for deterministic iteration and rendering; it is not the time
// domain's partial order.
func (t Timestamp) Compare(o Timestamp) int {
	return slices.Compare(t, o)
}

// String returns "5" for single-coordinate timestamps and "(5,3)" for
// multi-coordinate ones.
func (t Timestamp) String() string {
	if len(t) == 1 {
		return strconv.FormatUint(t[0], 10)
	}
	var sb strings.Builder
	sb.WriteByte('(')
	for i, c := range t {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(c, 10))
	}
	sb.WriteByte(')')
	return sb.String()
}

// SafeFormat implements redact.SafeFormatter.
func (t Timestamp) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString(redact.SafeString(t.String()))
}

// ParseTimestamp parses the String representation of a timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.Newf("empty timestamp")
	}
	if s[0] == '(' {
		if s[len(s)-1] != ')' {
			return nil, errors.Newf("malformed timestamp %q", s)
		}
		parts := strings.Split(s[1:len(s)-1], ",")
		ts := make(Timestamp, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "malformed timestamp %q", s)
			}
			ts[i] = v
		}
		return ts, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed timestamp %q", s)
	}
	return TS(v), nil
}

var _ fmt.Stringer = Timestamp{}
