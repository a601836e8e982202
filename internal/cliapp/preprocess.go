package cliapp

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	osmparser "tdcch/pkg/osm"
	"tdcch/pkg/preprocess"
	"tdcch/pkg/tdfunc"
	"tdcch/pkg/tdgraph"
)

type preprocessOpts struct {
	input       string
	rankGraph   string
	topology    string
	bbox        string
	singapore   bool
	kl          bool
}

// newPreprocessCmd is the one-time step: ingest OSM, keep the largest
// connected component, and run contraction — a direct adaptation of
// cmd/preprocess/main.go's step ordering, stopping one step earlier
// (contraction's topology, not a weighted CH overlay, since that is the
// artifact re-customization reuses).
func newPreprocessCmd() *cobra.Command {
	opts := preprocessOpts{rankGraph: "graph.rank.bin", topology: "graph.topo.bin"}

	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Ingest an OSM extract and build the CCH topology",
		Long:  `preprocess parses an .osm.pbf file, keeps the largest connected component, and runs contraction, writing the rank-space road graph and the CCH topology it was built from. Run customize afterward to populate travel times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreprocess(cmd, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "path to .osm.pbf file (required)")
	cmd.Flags().StringVar(&opts.rankGraph, "rank-graph", opts.rankGraph, "output path for the rank-space road graph")
	cmd.Flags().StringVar(&opts.topology, "topology", opts.topology, "output path for the CCH topology")
	cmd.Flags().StringVar(&opts.bbox, "bbox", "", "bounding box filter: minLat,minLng,maxLat,maxLng")
	cmd.Flags().BoolVar(&opts.singapore, "singapore", false, "shortcut for --bbox 1.15,103.6,1.48,104.1")
	cmd.Flags().BoolVar(&opts.kl, "kl", false, "shortcut for --bbox 2.75,101.2,3.5,102.0 (Selangor + Kuala Lumpur)")
	cmd.MarkFlagRequired("input")

	return cmd
}

func runPreprocess(cmd *cobra.Command, opts *preprocessOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	cfg, err := loadConfig(configPathFlag)
	if err != nil {
		return err
	}
	tdfunc.Period = cfg.Period

	parseOpts, err := resolveBBox(opts)
	if err != nil {
		return err
	}

	f, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	p := newProgress(logger)
	logger.Info("parsing OSM data", "input", opts.input)
	parseResult, err := osmparser.Parse(ctx, f, parseOpts)
	if err != nil {
		return fmt.Errorf("parse OSM data: %w", err)
	}
	p.done("parsed OSM data", "edges", len(parseResult.Edges), "nodes", len(parseResult.NodeLat))

	p = newProgress(logger)
	g := tdgraph.Build(parseResult)
	p.done("built graph", "nodes", g.NumNodes, "edges", g.NumEdges)

	p = newProgress(logger)
	component := tdgraph.LargestComponent(g)
	g = tdgraph.FilterToComponent(g, component)
	p.done("filtered to largest component", "nodes", g.NumNodes, "edges", g.NumEdges)

	p = newProgress(logger)
	topo := preprocess.Contract(g)
	p.done("contracted", "nodes", topo.Topo.NumNodes, "upward edges", len(topo.Topo.Head))

	if err := tdgraph.WriteBinary(opts.rankGraph, topo.RankGraph); err != nil {
		return fmt.Errorf("write rank graph: %w", err)
	}
	if err := preprocess.WriteTopology(opts.topology, topo); err != nil {
		return fmt.Errorf("write topology: %w", err)
	}
	logger.Info("preprocess complete", "rank_graph", opts.rankGraph, "topology", opts.topology)
	return nil
}

func resolveBBox(opts *preprocessOpts) (osmparser.ParseOptions, error) {
	var popts osmparser.ParseOptions
	switch {
	case opts.kl:
		popts.BBox = osmparser.BBox{MinLat: 2.75, MaxLat: 3.5, MinLng: 101.2, MaxLng: 102.0}
	case opts.singapore:
		popts.BBox = osmparser.BBox{MinLat: 1.15, MaxLat: 1.48, MinLng: 103.6, MaxLng: 104.1}
	case opts.bbox != "":
		var minLat, minLng, maxLat, maxLng float64
		if _, err := fmt.Sscanf(opts.bbox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
			return popts, fmt.Errorf("invalid bbox format (expected minLat,minLng,maxLat,maxLng): %w", err)
		}
		popts.BBox = osmparser.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
	}
	return popts, nil
}
