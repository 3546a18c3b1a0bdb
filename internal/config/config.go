// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - Layer file and environment overrides on top via Load.
package config

import "context"

// Store backend names accepted in configuration.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the partition backend: memory or badger.
	Store string `koanf:"store"`

	// DataDir is the Badger database directory. Required when Store
	// is badger.
	DataDir string `koanf:"data_dir"`

	// SyncWrites forces Badger to fsync every commit.
	SyncWrites bool `koanf:"sync_writes"`

	// BenchmarkFile is an optional YAML benchmark seed loaded at
	// startup.
	BenchmarkFile string `koanf:"benchmark_file"`

	// BalanceIntervalHours schedules the cohort rebalance run.
	BalanceIntervalHours int `koanf:"balance_interval_hours"`

	// AggregationIntervalMinutes schedules the peer stats refresh.
	AggregationIntervalMinutes int `koanf:"aggregation_interval_minutes"`

	// TargetBand is the benchmark target band served in ghost data.
	TargetBand float64 `koanf:"target_band"`

	// BenchmarkPercentile selects the benchmark percentile band:
	// 10, 25, or 50.
	BenchmarkPercentile int `koanf:"benchmark_percentile"`

	// ProgressWorkers sizes the progress ingest worker pool.
	// Zero means NumCPU * 4.
	ProgressWorkers int `koanf:"progress_workers"`

	// QueueCapacity bounds the progress ingest queue. Zero means the
	// built-in default.
	QueueCapacity int `koanf:"queue_capacity"`

	// DedupeSize bounds the duplicate-event window. Zero means the
	// built-in default; negative means unbounded.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                   "info",
		Addr:                       ":9080",
		Store:                      StoreMemory,
		BalanceIntervalHours:       168, // weekly
		AggregationIntervalMinutes: 60,
		TargetBand:                 7.5,
		BenchmarkPercentile:        25,
	}
}
