// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package store implements the Frontier Store: the authoritative mapping
// from collection to (since, upper) across the cluster. It is the single
// source of truth consulted by the timestamp oracle and by introspection.
//
// The store is sharded by collection id. Frontier reads are wait-free:
// each collection publishes an immutable FrontierPair through an atomic
// pointer, so readers never contend with writers. Writes to the same
// collection are serialized by a per-collection mutex; the effective
// single-writer-per-collection discipline is upheld by the aggregator's
// routing, the mutex only guards against misuse.
package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/swiss"
	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/internal/frontier"
)

// ErrCollectionExists means a registration referenced an id that is
// already registered.
var ErrCollectionExists = errors.New("tscoord: collection already registered")

// ErrSinceBeyondUpper means a since advancement would move the compaction
// frontier beyond the write frontier, violating since <= upper.
var ErrSinceBeyondUpper = errors.New("tscoord: since would exceed upper")

// FrontierPair is a collection's pair of frontiers: since (compaction
// frontier, bounding valid reads from below) and upper (write frontier,
// below which all data is final). The invariant since <= upper holds after
// every store mutation.
type FrontierPair struct {
	Since frontier.Antichain
	Upper frontier.Antichain
}

// String returns a string representation of the pair.
func (p FrontierPair) String() string {
	return redact.StringWithoutMarkers(p)
}

// SafeFormat implements redact.SafeFormatter.
func (p FrontierPair) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("since:%v upper:%v", p.Since, p.Upper)
}

const numShards = 16

// Store tracks the frontier pair of every registered collection.
type Store struct {
	logger base.Logger
	shards [numShards]shard
}

type shard struct {
	mu      sync.RWMutex
	entries swiss.Map[base.CollectionID, *entry]
}

type entry struct {
	id base.CollectionID
	// dims is the arity of the collection's time domain, fixed at
	// registration. Timestamps of any other arity are rejected.
	dims int

	// writeMu serializes mutations of pair. Readers load pair directly.
	writeMu sync.Mutex
	pair    atomic.Pointer[FrontierPair]

	waitMu  sync.Mutex
	closed  bool
	waiters map[*waiter]struct{}
}

// checkArity rejects frontiers containing timestamps outside the
// collection's time domain. Mismatched operations come from outside the
// process (reports, waits), so this is an error, not an assertion.
func (e *entry) checkArity(f frontier.Antichain) error {
	for _, ts := range f.Elements() {
		if ts.Dims() != e.dims {
			return errors.Wrapf(base.ErrArityMismatch,
				"collection %s: timestamp %v has arity %d, want %d", e.id, ts, ts.Dims(), e.dims)
		}
	}
	return nil
}

type waiter struct {
	ts frontier.Timestamp
	ch chan error
}

// New creates an empty Store.
func New(logger base.Logger) *Store {
	if logger == nil {
		logger = base.DefaultLogger{}
	}
	s := &Store{logger: logger}
	for i := range s.shards {
		s.shards[i].entries.Init(16)
	}
	return s
}

func (s *Store) shard(id base.CollectionID) *shard {
	// Fibonacci hashing; ids are dense so the multiply spreads them.
	h := uint64(id) * 0x9E3779B97F4A7C15
	return &s.shards[h>>(64-4)]
}

func (s *Store) find(id base.CollectionID) *entry {
	sh := s.shard(id)
	sh.mu.RLock()
	e, _ := sh.entries.Get(id)
	sh.mu.RUnlock()
	return e
}

// Register creates a fresh entry for the collection with
// since = upper = [0], the minimal frontier.
func (s *Store) Register(id base.CollectionID) error {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.entries.Get(id); ok {
		return errors.Wrapf(ErrCollectionExists, "collection %s", id)
	}
	e := &entry{id: id, dims: 1, waiters: make(map[*waiter]struct{})}
	initial := frontier.Minimum(e.dims)
	e.pair.Store(&FrontierPair{Since: initial, Upper: initial})
	sh.entries.Put(id, e)
	return nil
}

// Unregister removes all state for the collection. Pending WaitUpper calls
// fail with ErrUnknownCollection. The lifecycle manager guarantees no
// remaining readers before calling this; the store does not check.
func (s *Store) Unregister(id base.CollectionID) error {
	sh := s.shard(id)
	sh.mu.Lock()
	e, ok := sh.entries.Get(id)
	if ok {
		sh.entries.Delete(id)
	}
	sh.mu.Unlock()
	if !ok {
		return errors.Wrapf(base.ErrUnknownCollection, "collection %s", id)
	}
	e.waitMu.Lock()
	e.closed = true
	for w := range e.waiters {
		w.ch <- errors.Wrapf(base.ErrUnknownCollection, "collection %s dropped while waiting", id)
	}
	e.waiters = nil
	e.waitMu.Unlock()
	return nil
}

// Read returns the collection's current frontier pair. It never blocks on
// concurrent frontier writes.
func (s *Store) Read(id base.CollectionID) (FrontierPair, error) {
	e := s.find(id)
	if e == nil {
		return FrontierPair{}, errors.Wrapf(base.ErrUnknownCollection, "collection %s", id)
	}
	return *e.pair.Load(), nil
}

// Dims returns the arity of the collection's time domain.
func (s *Store) Dims(id base.CollectionID) (int, error) {
	e := s.find(id)
	if e == nil {
		return 0, errors.Wrapf(base.ErrUnknownCollection, "collection %s", id)
	}
	return e.dims, nil
}

// AdvanceUpper moves the collection's write frontier forward. A
// non-advancing report equal to the current upper is an idempotent no-op.
// A report that would move the frontier backward (or sideways, to an
// incomparable frontier) is a protocol violation: it is rejected and never
// applied. Advancing to the empty frontier terminates the collection.
func (s *Store) AdvanceUpper(id base.CollectionID, upper frontier.Antichain) (advanced bool, _ error) {
	e := s.find(id)
	if e == nil {
		return false, errors.Wrapf(base.ErrUnknownCollection, "collection %s", id)
	}
	if err := e.checkArity(upper); err != nil {
		return false, err
	}
	e.writeMu.Lock()
	cur := e.pair.Load()
	if cur.Upper.Equal(upper) {
		e.writeMu.Unlock()
		return false, nil
	}
	if !cur.Upper.LessEq(upper) {
		e.writeMu.Unlock()
		return false, errors.Wrapf(base.ErrFrontierRegression,
			"collection %s: upper %v cannot retreat to %v", id, cur.Upper, upper)
	}
	p := &FrontierPair{Since: cur.Since, Upper: upper}
	e.pair.Store(p)
	e.writeMu.Unlock()
	e.notify(p)
	return true, nil
}

// AdvanceSince moves the collection's compaction frontier forward, on
// behalf of the external retention policy. The since may never exceed the
// upper: everything at or beyond the upper has not been produced yet, so
// it cannot have been compacted. Once a collection terminates (empty
// upper) its since stays wherever the retention policy last put it.
func (s *Store) AdvanceSince(id base.CollectionID, since frontier.Antichain) (advanced bool, _ error) {
	e := s.find(id)
	if e == nil {
		return false, errors.Wrapf(base.ErrUnknownCollection, "collection %s", id)
	}
	if err := e.checkArity(since); err != nil {
		return false, err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	cur := e.pair.Load()
	if cur.Since.Equal(since) {
		return false, nil
	}
	if !cur.Since.LessEq(since) {
		return false, errors.Wrapf(base.ErrFrontierRegression,
			"collection %s: since %v cannot retreat to %v", id, cur.Since, since)
	}
	if !since.LessEq(cur.Upper) {
		return false, errors.Wrapf(ErrSinceBeyondUpper,
			"collection %s: since %v vs upper %v", id, since, cur.Upper)
	}
	e.pair.Store(&FrontierPair{Since: since, Upper: cur.Upper})
	return true, nil
}

// WaitUpper blocks until the collection's upper is strictly in advance of
// ts (until a read at ts can respond immediately) or until ctx is
// cancelled. A collection that terminates (empty upper) satisfies every
// wait. Dropping the collection fails the wait with ErrUnknownCollection.
func (s *Store) WaitUpper(ctx context.Context, id base.CollectionID, ts frontier.Timestamp) error {
	e := s.find(id)
	if e == nil {
		return errors.Wrapf(base.ErrUnknownCollection, "collection %s", id)
	}
	if ts.Dims() != e.dims {
		return errors.Wrapf(base.ErrArityMismatch,
			"collection %s: wait timestamp %v has arity %d, want %d", id, ts, ts.Dims(), e.dims)
	}
	for {
		if p := e.pair.Load(); !p.Upper.LessEqTS(ts) {
			return nil
		}
		w := &waiter{ts: ts.Clone(), ch: make(chan error, 1)}
		e.waitMu.Lock()
		if e.closed {
			e.waitMu.Unlock()
			return errors.Wrapf(base.ErrUnknownCollection, "collection %s", id)
		}
		e.waiters[w] = struct{}{}
		e.waitMu.Unlock()
		// Recheck after registering to avoid a missed wakeup between the
		// fast-path check and the waiter becoming visible to notify.
		if p := e.pair.Load(); !p.Upper.LessEqTS(ts) {
			e.removeWaiter(w)
			return nil
		}
		select {
		case err := <-w.ch:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			e.removeWaiter(w)
			return ctx.Err()
		}
	}
}

func (e *entry) notify(p *FrontierPair) {
	e.waitMu.Lock()
	for w := range e.waiters {
		if !p.Upper.LessEqTS(w.ts) {
			w.ch <- nil
			delete(e.waiters, w)
		}
	}
	e.waitMu.Unlock()
}

func (e *entry) removeWaiter(w *waiter) {
	e.waitMu.Lock()
	delete(e.waiters, w)
	e.waitMu.Unlock()
}

// Len returns the number of registered collections.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += sh.entries.Len()
		sh.mu.RUnlock()
	}
	return n
}

// CollectionFrontier pairs a collection id with its current frontiers.
type CollectionFrontier struct {
	ID   base.CollectionID
	Pair FrontierPair
}

// Snapshot returns the frontier pair of every registered collection,
// sorted by id, for introspection relations.
func (s *Store) Snapshot() []CollectionFrontier {
	var out []CollectionFrontier
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		sh.entries.All(func(id base.CollectionID, e *entry) bool {
			out = append(out, CollectionFrontier{ID: id, Pair: *e.pair.Load()})
			return true
		})
		sh.mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b CollectionFrontier) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
