// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command tscoord runs scripted coordination scenarios against an
// in-process coordinator and prints the resulting frontier, process,
// and hydration state.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	cobra.EnableCommandSorting = false

	root := &cobra.Command{
		Use:   "tscoord",
		Short: "frontier and timestamp coordination tool",
	}

	run := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "run a scripted scenario and print the resulting state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.OutOrStdout(), args[0])
		},
	}
	root.AddCommand(run)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
