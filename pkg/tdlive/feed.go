package tdlive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// LiveFeed supplies current live-traffic readings for original road arcs,
// keyed by arc id.
type LiveFeed interface {
	Readings(ctx context.Context) (map[uint32]LiveReading, error)
}

// RedisFeed reads live readings out of a single Redis hash: one field per
// arc id, each value "lower:upper:live_until" (three floats). An upstream
// traffic ingestion job is expected to HSET this hash directly; RedisFeed
// only reads it.
type RedisFeed struct {
	Client *redis.Client
	Key    string
	Logger *log.Logger
}

// NewRedisFeed builds a feed reading arc readings from key on client.
func NewRedisFeed(client *redis.Client, key string) *RedisFeed {
	return &RedisFeed{Client: client, Key: key, Logger: log.Default()}
}

// Readings fetches every field of the feed's hash and decodes it into a
// LiveReading, skipping (and logging) any field that doesn't parse rather
// than failing the whole batch over one bad entry.
func (f *RedisFeed) Readings(ctx context.Context) (map[uint32]LiveReading, error) {
	raw, err := f.Client.HGetAll(ctx, f.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("tdlive: fetch live readings from %q: %w", f.Key, err)
	}
	out := make(map[uint32]LiveReading, len(raw))
	for field, val := range raw {
		arc, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			f.Logger.Warnf("tdlive: skipping live reading with non-numeric arc id %q", field)
			continue
		}
		reading, err := parseReading(val)
		if err != nil {
			f.Logger.Warnf("tdlive: skipping malformed live reading for arc %d: %v", arc, err)
			continue
		}
		out[uint32(arc)] = reading
	}
	return out, nil
}

func parseReading(val string) (LiveReading, error) {
	parts := strings.Split(val, ":")
	if len(parts) != 3 {
		return LiveReading{}, fmt.Errorf("expected lower:upper:live_until, got %q", val)
	}
	lower, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return LiveReading{}, fmt.Errorf("lower bound: %w", err)
	}
	upper, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return LiveReading{}, fmt.Errorf("upper bound: %w", err)
	}
	liveUntil, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return LiveReading{}, fmt.Errorf("live_until: %w", err)
	}
	return LiveReading{Lower: lower, Upper: upper, LiveUntil: liveUntil}, nil
}
