// Package config holds ledgerd's run configuration: the knobs that control
// pipeline concurrency and where a run reads and writes its data.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a ledgerd run.
type Config struct {
	// DataDir is the root directory for all durable and working data.
	DataDir string `yaml:"data_dir"`

	// Pipeline settings.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging settings.
	Logging LoggingConfig `yaml:"logging"`
}

// PipelineConfig holds concurrency and batching settings for the three
// pipeline stages.
type PipelineConfig struct {
	// WorkerCount is the number of worker goroutines in the pool.
	WorkerCount int `yaml:"worker_count"`

	// BlockSize is the number of events the splitter batches per Block.
	BlockSize int `yaml:"block_size"`

	// QueueDepth is the channel buffer depth between pipeline stages.
	QueueDepth int `yaml:"queue_depth"`

	// HistoryCacheSize is the number of transaction records kept in each
	// client's in-memory history cache.
	HistoryCacheSize int `yaml:"history_cache_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is the log file path (empty for stderr).
	File string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults, sized to the
// machine it runs on.
func DefaultConfig() *Config {
	workers := runtime.GOMAXPROCS(0)
	if workers < 4 {
		workers = 4
	}

	return &Config{
		DataDir: "./data",
		Pipeline: PipelineConfig{
			WorkerCount:      workers,
			BlockSize:        1_000_000,
			QueueDepth:       5,
			HistoryCacheSize: 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "ledgerd.yaml"

// LoadConfig loads configuration from a YAML file under dataDir. If the
// file doesn't exist, it returns the defaults without creating one — unlike
// a long-running node, a one-shot batch run shouldn't leave config files
// behind it never asked for.
func LoadConfig(dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	path := ConfigPath(dataDir)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigPath returns the full path to the config file for the given data
// directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, ConfigFileName)
}

// ApplyEnvOverrides overlays LEDGERD_* environment variables onto cfg,
// coercing each value to its field's type via spf13/cast so operators can
// tune a run without editing the YAML file.
func ApplyEnvOverrides(cfg *Config) error {
	overrides := []struct {
		env string
		set func(string) error
	}{
		{"LEDGERD_DATA_DIR", func(v string) error { cfg.DataDir = v; return nil }},
		{"LEDGERD_WORKERS", intSetter(&cfg.Pipeline.WorkerCount)},
		{"LEDGERD_BLOCK_SIZE", intSetter(&cfg.Pipeline.BlockSize)},
		{"LEDGERD_QUEUE_DEPTH", intSetter(&cfg.Pipeline.QueueDepth)},
		{"LEDGERD_HISTORY_CACHE", intSetter(&cfg.Pipeline.HistoryCacheSize)},
		{"LEDGERD_LOG_LEVEL", func(v string) error { cfg.Logging.Level = v; return nil }},
		{"LEDGERD_LOG_FILE", func(v string) error { cfg.Logging.File = v; return nil }},
	}

	for _, o := range overrides {
		v, ok := os.LookupEnv(o.env)
		if !ok || v == "" {
			continue
		}
		if err := o.set(v); err != nil {
			return fmt.Errorf("config: invalid value for %s=%q: %w", o.env, v, err)
		}
	}
	return nil
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := cast.ToIntE(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}
