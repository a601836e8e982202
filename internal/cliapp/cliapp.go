// Package cliapp implements the tdrouted command-line interface.
//
// This package provides the subcommands that take a road network from raw
// OSM data through to a served time-dependent route query API: preprocess
// (ingest + contraction), customize (populate the CCH overlay with travel
// times), serve (the HTTP query server), and bench (latency measurement
// against a running server). The CLI is built using cobra and supports
// verbose logging via the charmbracelet/log library, mirroring
// matzehuels-stacktower's internal/cli package this is adapted from.
package cliapp

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version,
// typically injected via ldflags at build time.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the tdrouted CLI and returns an error if any command
// fails.
func Execute() error {
	var verbose bool

	root := &cobra.Command{
		Use:          "tdrouted",
		Short:        "tdrouted builds and serves a time-dependent route query engine",
		Long:         `tdrouted turns an OSM extract into a Customizable Contraction Hierarchy with time-dependent travel times, then serves point and profile route queries over it.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("tdrouted %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&configPathFlag, "config", "", "optional TOML engine config file")

	root.AddCommand(newPreprocessCmd())
	root.AddCommand(newCustomizeCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newBenchCmd())

	return root.ExecuteContext(context.Background())
}
