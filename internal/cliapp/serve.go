package cliapp

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"tdcch/pkg/api"
	"tdcch/pkg/cch"
	"tdcch/pkg/tdfunc"
	"tdcch/pkg/tdgraph"
	"tdcch/pkg/tdlive"
	"tdcch/pkg/tdquery"
)

type serveOpts struct {
	rankGraph  string
	customized string
	port       int
	corsOrigin string
}

// newServeCmd loads a customized CCH overlay and serves point/profile
// queries over HTTP, a direct adaptation of cmd/server/main.go's load
// step plus graceful-shutdown loop, rebuilt against tdquery and the new
// snapper instead of the teacher's scalar routing.Engine.
func newServeCmd() *cobra.Command {
	opts := serveOpts{rankGraph: "graph.rank.bin", customized: "graph.customized.bin", port: 8080}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve time-dependent route queries over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.rankGraph, "rank-graph", opts.rankGraph, "path to the rank-space road graph")
	cmd.Flags().StringVar(&opts.customized, "customized", opts.customized, "path to the customized graph")
	cmd.Flags().IntVar(&opts.port, "port", opts.port, "HTTP port")
	cmd.Flags().StringVar(&opts.corsOrigin, "cors-origin", "", "CORS allowed origin (empty = same-origin)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	cfg, err := loadConfig(configPathFlag)
	if err != nil {
		return err
	}
	tdfunc.Period = cfg.Period

	p := newProgress(logger)
	rankGraph, err := tdgraph.ReadBinary(opts.rankGraph)
	if err != nil {
		return fmt.Errorf("read rank graph: %w", err)
	}
	compacted, err := cch.ReadBinary(opts.customized)
	if err != nil {
		return fmt.Errorf("read customized graph: %w", err)
	}
	p.done("loaded graph", "nodes", compacted.NumNodes, "upward edges", len(compacted.Upward.Head))

	p = newProgress(logger)
	snapper := api.NewSnapper(rankGraph)
	p.done("built spatial index")

	qg := tdquery.NewGraph(compacted, rankGraph)

	if cfg.Live.RedisAddr != "" {
		startLiveRefresh(ctx, logger, cfg.Live)
	}

	stats := api.StatsResponse{
		NumNodes:     compacted.NumNodes,
		NumUpEdges:   len(compacted.Upward.Head),
		NumDownEdges: len(compacted.Downward.Head),
	}
	handlers := api.NewHandlers(qg, snapper, stats, logger)

	addr := fmt.Sprintf(":%d", opts.port)
	srvCfg := api.DefaultConfig(addr)
	srvCfg.CORSOrigin = opts.corsOrigin
	srv := api.NewServer(srvCfg, handlers, logger)

	return api.ListenAndServe(srv, logger)
}

// startLiveRefresh polls a Redis-backed live-traffic feed in the
// background every cfg.RefreshSeconds (30s when unset) and logs how many
// readings each poll returned. The readings are not applied to a
// tdlive.Overlay and queries do not use them.
func startLiveRefresh(ctx context.Context, logger *log.Logger, cfg LiveConfig) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	feed := tdlive.NewRedisFeed(client, cfg.RedisKey)

	interval := time.Duration(cfg.RefreshSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				readings, err := feed.Readings(ctx)
				if err != nil {
					logger.Warn("live feed refresh failed", "err", err)
					continue
				}
				logger.Info("live feed refreshed", "readings", len(readings))
			}
		}
	}()
}
