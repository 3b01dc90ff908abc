// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tscoord"
	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/internal/frontier"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// scenario is the YAML schema consumed by "tscoord run". Clusters,
// replicas, objects, and collections are referenced by name; the
// scenario runner resolves names to ids as it creates them.
type scenario struct {
	Options  yaml.Node `yaml:"options"`
	Clusters []struct {
		Name     string `yaml:"name"`
		Replicas []struct {
			Name      string `yaml:"name"`
			Workers   int    `yaml:"workers"`
			Processes int    `yaml:"processes"`
		} `yaml:"replicas"`
	} `yaml:"clusters"`
	Objects []struct {
		Name       string   `yaml:"name"`
		Kind       string   `yaml:"kind"`
		Cluster    string   `yaml:"cluster"`
		Inputs     []string `yaml:"inputs"`
		Subsources []string `yaml:"subsources"`
	} `yaml:"objects"`
	Reports   []report `yaml:"reports"`
	Processes []struct {
		Replica    string `yaml:"replica"`
		Collection string `yaml:"collection"`
	} `yaml:"processes"`
	Since   []struct {
		Collection string `yaml:"collection"`
		Frontier   string `yaml:"frontier"`
	} `yaml:"advance_since"`
	Queries [][]string `yaml:"queries"`
}

type report struct {
	Replica    string `yaml:"replica"`
	Worker     uint32 `yaml:"worker"`
	Collection string `yaml:"collection"`
	Upper      string `yaml:"upper"`
	Messages   uint64 `yaml:"messages"`
	Bytes      uint64 `yaml:"bytes"`
	Staged     uint64 `yaml:"staged"`
	Committed  uint64 `yaml:"committed"`
}

func runScenario(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sc scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}

	opts := &tscoord.Options{HydrationInterval: 10 * time.Millisecond}
	if !sc.Options.IsZero() {
		raw, err := yaml.Marshal(&sc.Options)
		if err != nil {
			return err
		}
		if err := opts.ParseOptions(raw); err != nil {
			return err
		}
	}
	c, err := tscoord.Open(opts)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	clusters := make(map[string]tscoord.ClusterID)
	replicas := make(map[string]tscoord.ReplicaID)
	collections := make(map[string]tscoord.CollectionID)

	for _, cl := range sc.Clusters {
		id, err := c.CreateCluster(cl.Name)
		if err != nil {
			return err
		}
		clusters[cl.Name] = id
		for _, r := range cl.Replicas {
			rid, err := c.CreateReplica(id, r.Name, r.Workers, r.Processes)
			if err != nil {
				return err
			}
			replicas[r.Name] = rid
		}
	}

	for _, o := range sc.Objects {
		kind, ok := base.ParseKind(o.Kind)
		if !ok {
			return errors.Newf("object %q: unknown kind %q", o.Name, o.Kind)
		}
		spec := tscoord.ObjectSpec{Name: o.Name, Kind: kind, Subsources: o.Subsources}
		if o.Cluster != "" {
			cl, ok := clusters[o.Cluster]
			if !ok {
				return errors.Newf("object %q: unknown cluster %q", o.Name, o.Cluster)
			}
			spec.Cluster = cl
		}
		for _, in := range o.Inputs {
			id, ok := collections[in]
			if !ok {
				return errors.Newf("object %q: unknown input %q", o.Name, in)
			}
			spec.Inputs = append(spec.Inputs, id)
		}
		created, err := c.CreateObject(spec)
		if err != nil {
			return err
		}
		collections[o.Name] = created.ID
		for i, sub := range o.Subsources {
			collections[sub] = created.Subsources[i]
		}
		if created.Progress != 0 {
			collections[o.Name+"_progress"] = created.Progress
		}
	}

	// Reports for different replicas are independent streams; feed them
	// concurrently, preserving order within each replica.
	byReplica := make(map[string][]report)
	for _, r := range sc.Reports {
		byReplica[r.Replica] = append(byReplica[r.Replica], r)
	}
	var g errgroup.Group
	for name, reps := range byReplica {
		rid, ok := replicas[name]
		if !ok {
			return errors.Newf("report references unknown replica %q", name)
		}
		g.Go(func() error {
			for _, r := range reps {
				cid, ok := collections[r.Collection]
				if !ok {
					return errors.Newf("report references unknown collection %q", r.Collection)
				}
				upper, err := frontier.Parse(r.Upper)
				if err != nil {
					return errors.Wrapf(err, "report for %q", r.Collection)
				}
				err = c.Report(rid, tscoord.WorkerID(r.Worker), cid, upper, tscoord.Counters{
					MessagesReceived: r.Messages,
					BytesReceived:    r.Bytes,
					UpdatesStaged:    r.Staged,
					UpdatesCommitted: r.Committed,
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, s := range sc.Since {
		cid, ok := collections[s.Collection]
		if !ok {
			return errors.Newf("advance_since references unknown collection %q", s.Collection)
		}
		since, err := frontier.Parse(s.Frontier)
		if err != nil {
			return err
		}
		if err := c.AdvanceSince(cid, since); err != nil {
			return err
		}
	}

	// Let the hydration tracker observe the reports before printing.
	time.Sleep(3 * opts.HydrationInterval)

	printFrontiers(w, c)
	printHydration(w, c)
	for _, p := range sc.Processes {
		rid, ok := replicas[p.Replica]
		if !ok {
			return errors.Newf("processes references unknown replica %q", p.Replica)
		}
		cid, ok := collections[p.Collection]
		if !ok {
			return errors.Newf("processes references unknown collection %q", p.Collection)
		}
		if err := printProcesses(w, c, p.Replica, p.Collection, rid, cid); err != nil {
			return err
		}
	}
	for _, q := range sc.Queries {
		ids := make([]tscoord.CollectionID, 0, len(q))
		for _, name := range q {
			cid, ok := collections[name]
			if !ok {
				return errors.Newf("query references unknown collection %q", name)
			}
			ids = append(ids, cid)
		}
		out, err := c.Inspect(ids...)
		if err != nil {
			fmt.Fprintf(w, "\nquery %v: %v\n", q, err)
			continue
		}
		fmt.Fprintf(w, "\n%s", out)
	}
	return nil
}

func printFrontiers(w io.Writer, c *tscoord.Coordinator) {
	fmt.Fprintln(w, "collections:")
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"id", "name", "kind", "since", "upper"})
	for _, cf := range c.FrontierSnapshot() {
		name, kind := "", ""
		if meta, ok := c.Meta(cf.ID); ok {
			name, kind = meta.Name, meta.Kind.String()
		}
		tw.Append([]string{
			cf.ID.String(), name, kind, cf.Pair.Since.String(), cf.Pair.Upper.String(),
		})
	}
	tw.Render()
}

// printProcesses dumps per-process progress. Processes none of whose
// workers have reported yet render as <null>, distinguishing "no data
// yet" from reported zeros.
func printProcesses(
	w io.Writer, c *tscoord.Coordinator,
	replicaName, collectionName string,
	replica tscoord.ReplicaID, collection tscoord.CollectionID,
) error {
	procs, err := c.ProcessSnapshot(replica, collection)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "processes of %s for %s:\n", replicaName, collectionName)
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"process", "upper", "messages", "bytes", "staged", "committed"})
	for _, p := range procs {
		if !p.Seen {
			tw.Append([]string{p.Process.String(), "<null>", "<null>", "<null>", "<null>", "<null>"})
			continue
		}
		tw.Append([]string{
			p.Process.String(), p.Upper.String(),
			fmt.Sprint(p.Counters.MessagesReceived), fmt.Sprint(p.Counters.BytesReceived),
			fmt.Sprint(p.Counters.UpdatesStaged), fmt.Sprint(p.Counters.UpdatesCommitted),
		})
	}
	tw.Render()
	return nil
}

func printHydration(w io.Writer, c *tscoord.Coordinator) {
	entries := c.HydrationSnapshot()
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w, "hydration:")
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"object", "replica", "hydrated"})
	for _, e := range entries {
		tw.Append([]string{
			e.Key.Object.String(), e.Key.Replica.String(), fmt.Sprint(e.Hydrated),
		})
	}
	tw.Render()
}
