// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package lifecycle owns the catalog of clusters, replicas, and
// collections, and is the only writer of their existence. DDL operations
// register and deregister state in the frontier store, the aggregator, and
// the hydration tracker as an all-or-nothing transaction: every operation
// validates against the whole catalog before its first mutation, so a
// failure leaves no partial state behind.
//
// Dependencies between objects (a sink over a view over a source, a
// subsource under its parent) form an explicit DAG keyed by collection id.
// Cascading drops traverse it in reverse topological order, so no reader
// ever observes a dangling reference mid-cascade.
package lifecycle

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tscoord/aggregator"
	"github.com/cockroachdb/tscoord/hydration"
	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/store"
)

// ErrInvalidObject means an object spec failed validation; nothing was
// created.
var ErrInvalidObject = errors.New("tscoord: invalid object spec")

// CollectionMeta describes one catalog collection.
type CollectionMeta struct {
	ID   base.CollectionID
	Name string
	Kind base.CollectionKind
	// Cluster is the owning cluster; zero for cluster-less collections
	// (tables, webhook sources).
	Cluster base.ClusterID
	// Parent is the owning source for subsources and progress relations;
	// zero otherwise.
	Parent base.CollectionID
	// Inputs are the collections this object reads from.
	Inputs []base.CollectionID
}

type clusterMeta struct {
	name     string
	replicas map[base.ReplicaID]replicaMeta
}

type replicaMeta struct {
	name string
	topo aggregator.Topology
}

// Manager serializes DDL and keeps the catalog, frontier store, aggregator,
// and hydration tracker mutually consistent.
type Manager struct {
	store     *store.Store
	agg       *aggregator.Aggregator
	hydration *hydration.Tracker
	logger    base.Logger

	mu struct {
		sync.Mutex
		nextCollection base.CollectionID
		nextCluster    base.ClusterID
		nextReplica    base.ReplicaID
		clusters       map[base.ClusterID]*clusterMeta
		collections    map[base.CollectionID]*CollectionMeta
		// dependents maps a collection to the collections that must be
		// dropped before it: readers of its output, plus its subsources
		// and progress relation.
		dependents map[base.CollectionID][]base.CollectionID
	}
}

// New creates a Manager over the given components.
func New(
	st *store.Store, agg *aggregator.Aggregator, tracker *hydration.Tracker, logger base.Logger,
) *Manager {
	if logger == nil {
		logger = base.DefaultLogger{}
	}
	m := &Manager{store: st, agg: agg, hydration: tracker, logger: logger}
	m.mu.nextCollection = 1
	m.mu.nextCluster = 1
	m.mu.nextReplica = 1
	m.mu.clusters = make(map[base.ClusterID]*clusterMeta)
	m.mu.collections = make(map[base.CollectionID]*CollectionMeta)
	m.mu.dependents = make(map[base.CollectionID][]base.CollectionID)
	return m
}

// CreateCluster registers a new, empty cluster.
func (m *Manager) CreateCluster(name string) (base.ClusterID, error) {
	if name == "" {
		return 0, errors.Newf("cluster name must be non-empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.mu.nextCluster
	m.mu.nextCluster++
	m.mu.clusters[id] = &clusterMeta{
		name:     name,
		replicas: make(map[base.ReplicaID]replicaMeta),
	}
	m.logger.Infof("created cluster %s (%s)", name, id)
	return id, nil
}

// CreateReplica adds a replica of the given size to the cluster and
// instantiates its worker-to-process mapping. Every dataflow-backed object
// already assigned to the cluster gets a fresh Not Hydrated entry for the
// new replica.
func (m *Manager) CreateReplica(
	cluster base.ClusterID, name string, workers, processes int,
) (base.ReplicaID, error) {
	topo, err := aggregator.MakeTopology(workers, processes)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cm, ok := m.mu.clusters[cluster]
	if !ok {
		return 0, errors.Wrapf(base.ErrUnknownCluster, "cluster %s", cluster)
	}
	id := m.mu.nextReplica
	m.mu.nextReplica++
	if err := m.agg.RegisterReplica(id, topo); err != nil {
		return 0, err
	}
	cm.replicas[id] = replicaMeta{name: name, topo: topo}
	for _, meta := range m.mu.collections {
		if meta.Cluster == cluster && meta.Kind.DataflowBacked() {
			m.hydration.Track(meta.ID, id, meta.Inputs)
		}
	}
	m.logger.Infof("created replica %s (%s, %s) in cluster %s", name, id, topo, cluster)
	return id, nil
}

// DropReplica removes the replica, its aggregator state, and all hydration
// entries keyed by it. Cluster-relative frontiers in the store are
// untouched.
func (m *Manager) DropReplica(replica base.ReplicaID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cm := m.findReplicaClusterLocked(replica)
	if cm == nil {
		return errors.Wrapf(base.ErrUnknownReplica, "replica %s", replica)
	}
	if err := m.agg.DropReplica(replica); err != nil {
		return err
	}
	m.hydration.UntrackReplica(replica)
	delete(cm.replicas, replica)
	m.logger.Infof("dropped replica %s", replica)
	return nil
}

func (m *Manager) findReplicaClusterLocked(replica base.ReplicaID) *clusterMeta {
	for _, cm := range m.mu.clusters {
		if _, ok := cm.replicas[replica]; ok {
			return cm
		}
	}
	return nil
}

// DropCluster drops the cluster's objects (cascading to their dependents),
// then its replicas, then the cluster itself.
func (m *Manager) DropCluster(cluster base.ClusterID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cm, ok := m.mu.clusters[cluster]
	if !ok {
		return errors.Wrapf(base.ErrUnknownCluster, "cluster %s", cluster)
	}
	var roots []base.CollectionID
	for id, meta := range m.mu.collections {
		if meta.Cluster == cluster && meta.Parent == 0 {
			roots = append(roots, id)
		}
	}
	slices.Sort(roots)
	for _, id := range roots {
		if _, ok := m.mu.collections[id]; !ok {
			// Already removed by an earlier root's cascade.
			continue
		}
		if err := m.dropObjectLocked(id); err != nil {
			return err
		}
	}
	for id := range cm.replicas {
		if err := m.agg.DropReplica(id); err != nil {
			return err
		}
		m.hydration.UntrackReplica(id)
	}
	delete(m.mu.clusters, cluster)
	m.logger.Infof("dropped cluster %s", cluster)
	return nil
}

// ObjectSpec describes an object to create. A multi-output source lists
// its subsources by name; the manager materializes one collection per
// subsource plus exactly one progress relation, parented to the source.
type ObjectSpec struct {
	Name string
	Kind base.CollectionKind
	// Cluster is required for dataflow-backed kinds and forbidden-to-miss
	// only for them; tables and webhook sources may be cluster-less.
	Cluster base.ClusterID
	// Inputs are the collections the object reads from (e.g. the view a
	// sink emits).
	Inputs []base.CollectionID
	// Subsources are the output tables of a multi-output source.
	Subsources []string
}

// CreatedObject reports the collections materialized for an ObjectSpec.
type CreatedObject struct {
	ID base.CollectionID
	// Subsources holds one id per requested subsource, in order.
	Subsources []base.CollectionID
	// Progress is the progress relation's id; zero if the kind has none.
	Progress base.CollectionID
}

// CreateObject creates the object and its implicit collections, registers
// them in the frontier store, and installs hydration entries for every
// replica currently in the owning cluster. The operation is atomic: any
// validation failure leaves all stores untouched.
func (m *Manager) CreateObject(spec ObjectSpec) (CreatedObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate everything before the first mutation.
	if spec.Name == "" {
		return CreatedObject{}, errors.Wrapf(ErrInvalidObject, "object name must be non-empty")
	}
	if spec.Kind == base.KindUnknown || spec.Kind == base.KindSubsource || spec.Kind == base.KindProgress {
		return CreatedObject{}, errors.Wrapf(ErrInvalidObject,
			"kind %s cannot be created directly", spec.Kind)
	}
	var cm *clusterMeta
	if spec.Cluster != 0 {
		var ok bool
		if cm, ok = m.mu.clusters[spec.Cluster]; !ok {
			return CreatedObject{}, errors.Wrapf(base.ErrUnknownCluster, "cluster %s", spec.Cluster)
		}
	} else if spec.Kind.DataflowBacked() {
		return CreatedObject{}, errors.Wrapf(ErrInvalidObject,
			"%s %q requires an owning cluster", spec.Kind, spec.Name)
	}
	for _, in := range spec.Inputs {
		if _, ok := m.mu.collections[in]; !ok {
			return CreatedObject{}, errors.Wrapf(base.ErrUnknownCollection, "input %s", in)
		}
	}
	if len(spec.Subsources) > 0 && !spec.Kind.MultiOutput() {
		return CreatedObject{}, errors.Wrapf(ErrInvalidObject,
			"%s %q cannot own subsources", spec.Kind, spec.Name)
	}

	created := CreatedObject{ID: m.allocCollectionLocked()}
	metas := []*CollectionMeta{{
		ID:      created.ID,
		Name:    spec.Name,
		Kind:    spec.Kind,
		Cluster: spec.Cluster,
		Inputs:  slices.Clone(spec.Inputs),
	}}
	for _, sub := range spec.Subsources {
		id := m.allocCollectionLocked()
		created.Subsources = append(created.Subsources, id)
		metas = append(metas, &CollectionMeta{
			ID:      id,
			Name:    sub,
			Kind:    base.KindSubsource,
			Cluster: spec.Cluster,
			Parent:  created.ID,
		})
	}
	if spec.Kind.MultiOutput() {
		created.Progress = m.allocCollectionLocked()
		metas = append(metas, &CollectionMeta{
			ID:      created.Progress,
			Name:    spec.Name + "_progress",
			Kind:    base.KindProgress,
			Cluster: spec.Cluster,
			Parent:  created.ID,
		})
	}

	// Fresh ids cannot collide; a store failure here is a bug, but unwind
	// anyway so the transaction never half-applies.
	for i, meta := range metas {
		if err := m.store.Register(meta.ID); err != nil {
			for _, done := range metas[:i] {
				_ = m.store.Unregister(done.ID)
			}
			return CreatedObject{}, errors.Wrapf(err, "registering %s %q", meta.Kind, meta.Name)
		}
	}
	for _, meta := range metas {
		m.mu.collections[meta.ID] = meta
		for _, in := range meta.Inputs {
			m.mu.dependents[in] = append(m.mu.dependents[in], meta.ID)
		}
		if meta.Parent != 0 {
			m.mu.dependents[meta.Parent] = append(m.mu.dependents[meta.Parent], meta.ID)
		}
	}
	if cm != nil {
		for replica := range cm.replicas {
			for _, meta := range metas {
				if meta.Kind.DataflowBacked() {
					m.hydration.Track(meta.ID, replica, meta.Inputs)
				}
			}
		}
	}
	m.logger.Infof("created %s %q (%s)", spec.Kind, spec.Name, created.ID)
	return created, nil
}

func (m *Manager) allocCollectionLocked() base.CollectionID {
	id := m.mu.nextCollection
	m.mu.nextCollection++
	return id
}

// DropObject drops the object and everything that depends on it, deepest
// dependents first.
func (m *Manager) DropObject(id base.CollectionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mu.collections[id]; !ok {
		return errors.Wrapf(base.ErrUnknownCollection, "collection %s", id)
	}
	return m.dropObjectLocked(id)
}

func (m *Manager) dropObjectLocked(id base.CollectionID) error {
	order := m.dropOrderLocked(id)
	for _, c := range order {
		m.hydration.UntrackObject(c)
		m.agg.DropCollection(c)
		if err := m.store.Unregister(c); err != nil {
			return errors.Wrapf(err, "unregistering %s", c)
		}
		meta := m.mu.collections[c]
		for _, in := range meta.Inputs {
			m.mu.dependents[in] = slices.DeleteFunc(m.mu.dependents[in],
				func(d base.CollectionID) bool { return d == c })
		}
		if meta.Parent != 0 {
			m.mu.dependents[meta.Parent] = slices.DeleteFunc(m.mu.dependents[meta.Parent],
				func(d base.CollectionID) bool { return d == c })
		}
		delete(m.mu.dependents, c)
		delete(m.mu.collections, c)
		m.logger.Infof("dropped %s %q (%s)", meta.Kind, meta.Name, c)
	}
	return nil
}

// dropOrderLocked returns the dependent closure of id in reverse
// topological order: every collection appears before anything it depends
// on.
func (m *Manager) dropOrderLocked(id base.CollectionID) []base.CollectionID {
	var order []base.CollectionID
	visited := make(map[base.CollectionID]bool)
	var visit func(base.CollectionID)
	visit = func(c base.CollectionID) {
		if visited[c] {
			return
		}
		visited[c] = true
		deps := slices.Clone(m.mu.dependents[c])
		slices.Sort(deps)
		for _, d := range deps {
			visit(d)
		}
		order = append(order, c)
	}
	visit(id)
	return order
}

// Meta returns the catalog entry for a collection.
func (m *Manager) Meta(id base.CollectionID) (CollectionMeta, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.mu.collections[id]
	if !ok {
		return CollectionMeta{}, false
	}
	out := *meta
	out.Inputs = slices.Clone(meta.Inputs)
	return out, true
}

// Collections returns all catalog entries sorted by id.
func (m *Manager) Collections() []CollectionMeta {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CollectionMeta, 0, len(m.mu.collections))
	for _, meta := range m.mu.collections {
		c := *meta
		c.Inputs = slices.Clone(meta.Inputs)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b CollectionMeta) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Replicas returns the ids of the cluster's replicas, sorted.
func (m *Manager) Replicas(cluster base.ClusterID) ([]base.ReplicaID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cm, ok := m.mu.clusters[cluster]
	if !ok {
		return nil, errors.Wrapf(base.ErrUnknownCluster, "cluster %s", cluster)
	}
	ids := make([]base.ReplicaID, 0, len(cm.replicas))
	for id := range cm.replicas {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Describe renders a collection for diagnostic output, e.g.
// "materialized-view orders_by_hour (u4)".
func (m *Manager) Describe(id base.CollectionID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.mu.collections[id]
	if !ok {
		return fmt.Sprintf("collection %s", id)
	}
	return fmt.Sprintf("%s %s (%s)", meta.Kind, meta.Name, meta.ID)
}
