package cliapp

import (
	"fmt"

	"github.com/spf13/cobra"

	"tdcch/pkg/cch"
	"tdcch/pkg/preprocess"
	"tdcch/pkg/tdfunc"
	"tdcch/pkg/tdgraph"
)

type customizeOpts struct {
	rankGraph  string
	topology   string
	customized string
}

// newCustomizeCmd populates a previously-built CCH topology with travel
// times, the step re-run whenever conditions change materially (the
// topology itself, from preprocess, stays fixed).
func newCustomizeCmd() *cobra.Command {
	opts := customizeOpts{rankGraph: "graph.rank.bin", topology: "graph.topo.bin", customized: "graph.customized.bin"}

	cmd := &cobra.Command{
		Use:   "customize",
		Short: "Populate a CCH topology with time-dependent travel times",
		Long:  `customize reads the rank-space road graph and topology preprocess produced and runs the five-phase customizer, writing a CustomizedGraph ready for serve.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCustomize(cmd, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.rankGraph, "rank-graph", opts.rankGraph, "path to the rank-space road graph")
	cmd.Flags().StringVar(&opts.topology, "topology", opts.topology, "path to the CCH topology")
	cmd.Flags().StringVar(&opts.customized, "output", opts.customized, "output path for the customized graph")

	return cmd
}

func runCustomize(cmd *cobra.Command, opts *customizeOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	cfg, err := loadConfig(configPathFlag)
	if err != nil {
		return err
	}
	tdfunc.Period = cfg.Period

	rankGraph, err := tdgraph.ReadBinary(opts.rankGraph)
	if err != nil {
		return fmt.Errorf("read rank graph: %w", err)
	}
	topo, err := preprocess.ReadTopology(opts.topology)
	if err != nil {
		return fmt.Errorf("read topology: %w", err)
	}
	topo.RankGraph = rankGraph

	p := newProgress(logger)
	compacted, err := preprocess.Customize(ctx, topo, cfg.ParIterThreshold)
	if err != nil {
		return fmt.Errorf("customize: %w", err)
	}
	p.done("customized", "upward edges", len(compacted.Upward.Head), "downward edges", len(compacted.Downward.Head))

	if err := cch.WriteBinary(opts.customized, compacted); err != nil {
		return fmt.Errorf("write customized graph: %w", err)
	}
	logger.Info("customize complete", "output", opts.customized)
	return nil
}
