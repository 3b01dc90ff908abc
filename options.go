// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tscoord

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tscoord/internal/base"
	"github.com/cockroachdb/tscoord/oracle"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Options holds the parameters for creating a Coordinator.
type Options struct {
	// Logger receives coordinator log output. Defaults to DefaultLogger.
	Logger Logger

	// HydrationInterval is the cadence of the hydration tracker's poll
	// loop. Hydration state may lag the frontier store by up to this
	// interval; that staleness is part of the contract. Defaults to 1s.
	HydrationInterval time.Duration

	// Timeline identifies the oracle's timeline. Defaults to a random
	// UUID, giving every deployment its own timeline.
	Timeline uuid.UUID

	// Clock is the oracle's monotonic read-timestamp source, shared across
	// the deployment for the timeline. Defaults to a wall-clock derived,
	// ratcheted clock.
	Clock oracle.ReadClock

	// ViolationLogRate caps protocol-violation log lines per second.
	// Defaults to 1.
	ViolationLogRate float64

	// ReportLatency, if set, records the latency of applying worker
	// progress reports.
	ReportLatency prometheus.Histogram
}

// EnsureDefaults fills in unset options with their defaults, returning the
// receiver for chaining.
func (o *Options) EnsureDefaults() *Options {
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
	if o.HydrationInterval <= 0 {
		o.HydrationInterval = time.Second
	}
	if o.Timeline == uuid.Nil {
		o.Timeline = uuid.New()
	}
	if o.Clock == nil {
		o.Clock = oracle.NewWallClock()
	}
	if o.ViolationLogRate <= 0 {
		o.ViolationLogRate = 1
	}
	return o
}

type optionsYAML struct {
	HydrationInterval string  `yaml:"hydration_interval"`
	Timeline          string  `yaml:"timeline"`
	ViolationLogRate  float64 `yaml:"violation_log_rate"`
}

// ParseOptions parses a YAML options document into o, overriding only the
// fields the document sets.
func (o *Options) ParseOptions(data []byte) error {
	var y optionsYAML
	if err := yaml.Unmarshal(data, &y); err != nil {
		return errors.Wrap(err, "parsing options")
	}
	if y.HydrationInterval != "" {
		d, err := time.ParseDuration(y.HydrationInterval)
		if err != nil {
			return errors.Wrap(err, "parsing hydration_interval")
		}
		o.HydrationInterval = d
	}
	if y.Timeline != "" {
		tl, err := uuid.Parse(y.Timeline)
		if err != nil {
			return errors.Wrap(err, "parsing timeline")
		}
		o.Timeline = tl
	}
	if y.ViolationLogRate != 0 {
		o.ViolationLogRate = y.ViolationLogRate
	}
	return nil
}
