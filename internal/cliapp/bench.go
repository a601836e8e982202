package cliapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

type benchOpts struct {
	addr        string
	startLat    float64
	startLng    float64
	endLat      float64
	endLng      float64
	requests    int
	concurrency int
}

// newBenchCmd fires concurrent point queries against a running server and
// reports latency percentiles, adapted from cmd/visualize's goroutine
// fan-out + sync.WaitGroup idiom (there used to query three routing
// backends at once per request; here used to fire many requests at one
// backend concurrently).
func newBenchCmd() *cobra.Command {
	opts := benchOpts{addr: "http://localhost:8080", requests: 100, concurrency: 10}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure point-query latency against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "base URL of a running tdrouted server")
	cmd.Flags().Float64Var(&opts.startLat, "start-lat", 0, "start latitude (required)")
	cmd.Flags().Float64Var(&opts.startLng, "start-lng", 0, "start longitude (required)")
	cmd.Flags().Float64Var(&opts.endLat, "end-lat", 0, "end latitude (required)")
	cmd.Flags().Float64Var(&opts.endLng, "end-lng", 0, "end longitude (required)")
	cmd.Flags().IntVar(&opts.requests, "requests", opts.requests, "total number of requests to fire")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", opts.concurrency, "number of concurrent workers")
	cmd.MarkFlagRequired("start-lat")
	cmd.MarkFlagRequired("start-lng")
	cmd.MarkFlagRequired("end-lat")
	cmd.MarkFlagRequired("end-lng")

	return cmd
}

type benchResult struct {
	latency time.Duration
	err     error
}

func runBench(cmd *cobra.Command, opts *benchOpts) error {
	logger := loggerFromContext(cmd.Context())

	body, err := json.Marshal(map[string]any{
		"start":          map[string]float64{"lat": opts.startLat, "lng": opts.startLng},
		"end":            map[string]float64{"lat": opts.endLat, "lng": opts.endLng},
		"departure_time": 0,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	url := opts.addr + "/api/v1/route"

	jobs := make(chan struct{}, opts.requests)
	for i := 0; i < opts.requests; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	results := make(chan benchResult, opts.requests)
	var wg sync.WaitGroup
	wg.Add(opts.concurrency)
	for w := 0; w < opts.concurrency; w++ {
		go func() {
			defer wg.Done()
			for range jobs {
				results <- fireOne(client, url, body)
			}
		}()
	}
	wg.Wait()
	close(results)

	var latencies []time.Duration
	var failures int
	for r := range results {
		if r.err != nil {
			failures++
			continue
		}
		latencies = append(latencies, r.latency)
	}

	if len(latencies) == 0 {
		return fmt.Errorf("all %d requests failed", opts.requests)
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	logger.Info("bench complete",
		"requests", opts.requests,
		"failures", failures,
		"p50", percentile(latencies, 0.50).Round(time.Microsecond),
		"p90", percentile(latencies, 0.90).Round(time.Microsecond),
		"p99", percentile(latencies, 0.99).Round(time.Microsecond),
		"max", latencies[len(latencies)-1].Round(time.Microsecond),
	)
	return nil
}

func fireOne(client *http.Client, url string, body []byte) benchResult {
	start := time.Now()
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return benchResult{err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return benchResult{err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	return benchResult{latency: time.Since(start)}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
