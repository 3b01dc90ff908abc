// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package frontier

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Antichain is a frontier: a minimal set of pairwise-incomparable
// timestamps. A timestamp ts is "in advance of" the frontier if some
// element of the frontier is <= ts; data at such timestamps is not yet
// final. The empty antichain is the terminal frontier: no timestamp is in
// advance of it, so everything is final and nothing further will ever be
// written.
//
// Antichains have value semantics: operations return new antichains.
// Elements are kept sorted (lexicographically) so that equal antichains
// have identical representations.
type Antichain struct {
	elems []Timestamp
}

// Empty returns the empty (terminal) frontier.
func Empty() Antichain { return Antichain{} }

// FromElem returns the frontier containing exactly the given timestamp.
func FromElem(ts Timestamp) Antichain {
	return Antichain{elems: []Timestamp{ts.Clone()}}
}

// Minimum returns the minimal frontier for the given arity: the frontier a
// freshly registered collection starts at.
func Minimum(dims int) Antichain {
	return FromElem(MinTimestamp(dims))
}

// Make returns the frontier holding the minimal elements of the given
// timestamps.
func Make(elems ...Timestamp) Antichain {
	ts := make([]Timestamp, len(elems))
	for i := range elems {
		ts[i] = elems[i].Clone()
	}
	return Antichain{elems: minimize(ts)}
}

// minimize retains the minimal elements of elems, sorted. It mutates and
// returns its argument's backing slice.
func minimize(elems []Timestamp) []Timestamp {
	out := elems[:0]
	for i, e := range elems {
		dominated := false
		for j, o := range elems {
			if i == j {
				continue
			}
			if o.Less(e) || (o.Equal(e) && j < i) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, Timestamp.Compare)
	return out
}

// IsEmpty reports whether this is the terminal frontier.
func (a Antichain) IsEmpty() bool { return len(a.elems) == 0 }

// Len returns the number of elements.
func (a Antichain) Len() int { return len(a.elems) }

// Elements returns the frontier's elements in sorted order. The caller
// must not mutate the result.
func (a Antichain) Elements() []Timestamp { return a.elems }

// MinimumElement returns the lexicographically least element, if any.
func (a Antichain) MinimumElement() (Timestamp, bool) {
	if len(a.elems) == 0 {
		return nil, false
	}
	return a.elems[0], true
}

// Insert returns the frontier extended with ts, keeping the set minimal.
// If ts is already in advance of the frontier, the result is unchanged.
func (a Antichain) Insert(ts Timestamp) Antichain {
	if a.LessEqTS(ts) {
		return a
	}
	elems := make([]Timestamp, 0, len(a.elems)+1)
	for _, e := range a.elems {
		if !ts.LessEq(e) {
			elems = append(elems, e)
		}
	}
	elems = append(elems, ts.Clone())
	slices.SortFunc(elems, Timestamp.Compare)
	return Antichain{elems: elems}
}

// LessEqTS reports whether ts is at or in advance of the frontier: some
// element of the frontier is <= ts. For the empty frontier this is always
// false; no timestamp is in advance of the terminal frontier.
func (a Antichain) LessEqTS(ts Timestamp) bool {
	for _, e := range a.elems {
		if e.LessEq(ts) {
			return true
		}
	}
	return false
}

// LessEq reports whether a <= o in the frontier order: every element of o
// is at or in advance of a. The empty frontier is the maximum: f <= Empty
// for every f.
func (a Antichain) LessEq(o Antichain) bool {
	for _, x := range o.elems {
		if !a.LessEqTS(x) {
			return false
		}
	}
	return true
}

// Less reports whether a <= o and a != o.
func (a Antichain) Less(o Antichain) bool {
	return a.LessEq(o) && !a.Equal(o)
}

// Equal reports whether the frontiers hold the same elements.
func (a Antichain) Equal(o Antichain) bool {
	if len(a.elems) != len(o.elems) {
		return false
	}
	for i := range a.elems {
		if !a.elems[i].Equal(o.elems[i]) {
			return false
		}
	}
	return true
}

// Meet returns the greatest lower bound of the two frontiers: the minimal
// elements of their union. Meet with the empty (terminal) frontier is the
// identity.
func (a Antichain) Meet(o Antichain) Antichain {
	if a.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return a
	}
	elems := make([]Timestamp, 0, len(a.elems)+len(o.elems))
	elems = append(elems, a.elems...)
	elems = append(elems, o.elems...)
	return Antichain{elems: minimize(elems)}
}

// Join returns the least upper bound of the two frontiers: the minimal
// elements of the pairwise coordinate-wise joins. Join with the empty
// (terminal) frontier is the terminal frontier.
func (a Antichain) Join(o Antichain) Antichain {
	if a.IsEmpty() || o.IsEmpty() {
		return Empty()
	}
	elems := make([]Timestamp, 0, len(a.elems)*len(o.elems))
	for _, x := range a.elems {
		for _, y := range o.elems {
			elems = append(elems, x.Join(y))
		}
	}
	return Antichain{elems: minimize(elems)}
}

// String renders the frontier as "[e1 e2 ...]"; the terminal frontier is
// "[]".
func (a Antichain) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range a.elems {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// SafeFormat implements redact.SafeFormatter.
func (a Antichain) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString(redact.SafeString(a.String()))
}

// Parse parses the String representation of a frontier.
func Parse(s string) (Antichain, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return Antichain{}, errors.Newf("malformed frontier %q", s)
	}
	s = strings.TrimSpace(s[1 : len(s)-1])
	if s == "" {
		return Empty(), nil
	}
	var elems []Timestamp
	for _, f := range strings.Fields(s) {
		ts, err := ParseTimestamp(f)
		if err != nil {
			return Antichain{}, err
		}
		if len(elems) > 0 && ts.Dims() != elems[0].Dims() {
			return Antichain{}, errors.Newf("mixed timestamp arity in frontier %q", s)
		}
		elems = append(elems, ts)
	}
	return Make(elems...), nil
}
