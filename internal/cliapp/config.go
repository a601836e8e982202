package cliapp

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// configPathFlag is the root --config persistent flag, read by every
// subcommand via loadConfig.
var configPathFlag string

// EngineConfig holds the numerical design constants that are otherwise
// compiled-in defaults: the profile period, the customizer's separator
// parallelization cutoff, and the live-overlay feed's polling settings.
// A config file is optional; every field has a zero-value-safe default
// applied by loadConfig when the file is absent or a field is omitted —
// matching the teacher's flag-only configuration for everything else
// (see cmd/preprocess/main.go, cmd/server/main.go), just extended with
// one optional file for the handful of knobs flags don't cover well.
type EngineConfig struct {
	Period           float64       `toml:"period_seconds"`
	ParIterThreshold int           `toml:"par_iter_threshold"`
	Live             LiveConfig    `toml:"live"`
}

// LiveConfig configures the optional Redis-backed live-traffic overlay
// (spec.md §4.8); zero value disables it.
type LiveConfig struct {
	RedisAddr       string `toml:"redis_addr"`
	RedisKey        string `toml:"redis_key"`
	RefreshSeconds  int    `toml:"refresh_seconds"`
}

func defaultEngineConfig() EngineConfig {
	return EngineConfig{
		Period:           86400.0,
		ParIterThreshold: 64,
		Live: LiveConfig{
			RedisKey:       "tdrouted:live",
			RefreshSeconds: 30,
		},
	}
}

// loadConfig reads path (if non-empty) as TOML over defaultEngineConfig's
// defaults, the same library matzehuels-stacktower uses to decode
// poetry.lock/Cargo.lock, reused here for this engine's own config file
// instead. An empty path returns the defaults untouched.
func loadConfig(path string) (EngineConfig, error) {
	cfg := defaultEngineConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("cliapp: decode config %s: %w", path, err)
	}
	return cfg, nil
}
