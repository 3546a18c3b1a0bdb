package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New(ctx))
//  2. file (YAML) if COHORTD_CONFIG is set
//  3. env (prefix COHORTD_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("COHORTD_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: COHORTD_ADDR, COHORTD_STORE, ...
	// Map env keys like COHORTD_DATA_DIR -> data_dir (flat keys),
	// preserving underscores to match koanf tags on the struct.
	envProvider := env.Provider("COHORTD_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "cohortd_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.Store {
	case StoreMemory:
	case StoreBadger:
		if c.DataDir == "" {
			return fmt.Errorf("%w: data_dir is required for the badger store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	switch c.BenchmarkPercentile {
	case 10, 25, 50:
	default:
		return fmt.Errorf("%w: benchmark_percentile must be 10, 25, or 50", ErrInvalidConfig)
	}
	if c.BalanceIntervalHours <= 0 || c.AggregationIntervalMinutes <= 0 {
		return fmt.Errorf("%w: schedule intervals must be positive", ErrInvalidConfig)
	}
	if c.ProgressWorkers < 0 || c.QueueCapacity < 0 {
		return fmt.Errorf("%w: ingest sizing must not be negative", ErrInvalidConfig)
	}
	return nil
}
