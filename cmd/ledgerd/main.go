// Package main provides the ledgerd batch pipeline: it reads a CSV file of
// client ledger events and emits final per-client account snapshots.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ewong/ledgerd/internal/config"
	"github.com/ewong/ledgerd/internal/pipeline"
	"github.com/ewong/ledgerd/internal/runlock"
	"github.com/ewong/ledgerd/internal/runsummary"
	"github.com/ewong/ledgerd/internal/telemetry"
	"github.com/ewong/ledgerd/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	app := &cli.App{
		Name:      "ledgerd",
		Usage:     "process a ledger event stream into per-client account snapshots",
		ArgsUsage: "<input>",
		Version:   version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data-dir", Value: "./data", Usage: "root directory for durable and working data"},
			&cli.IntFlag{Name: "workers", Usage: "worker pool size (default: max(GOMAXPROCS,4))"},
			&cli.IntFlag{Name: "block-size", Value: 1_000_000, Usage: "events per splitter block"},
			&cli.IntFlag{Name: "queue-depth", Value: 5, Usage: "channel buffer depth between pipeline stages"},
			&cli.IntFlag{Name: "history-cache", Value: 1024, Usage: "per-client transaction history cache size"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "log level (debug, info, warn, error)"},
			&cli.StringFlag{Name: "log-file", Value: "", Usage: "rotate logs to this file instead of stderr"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return cli.Exit("expected exactly one input file argument", 1)
	}
	inputPath := cliCtx.Args().Get(0)

	dataDir := cliCtx.String("data-dir")
	cfg, err := config.LoadConfig(dataDir)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load config: %v", err), 1)
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return cli.Exit(fmt.Sprintf("failed to apply environment overrides: %v", err), 1)
	}
	applyCLIOverrides(cliCtx, cfg)

	log := newLogger(cfg)
	logging.SetDefault(log)

	lock, err := runlock.Acquire(cfg.DataDir)
	if err != nil {
		log.Fatal("failed to acquire run lock", "error", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Error("failed to release run lock", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal, draining pipeline...")
		cancel()
	}()

	counters := &telemetry.Counters{}
	reporter := telemetry.NewReporter(counters, log.Component("telemetry"), 5*time.Second)
	defer reporter.Stop()

	run, err := runsummary.Begin(cfg.DataDir, inputPath)
	if err != nil {
		log.Fatal("failed to start run", "error", err)
	}
	log.Info("run started", "run_id", run.ID, "summary_dir", run.Dir)

	in, err := os.Open(inputPath)
	if err != nil {
		log.Fatal("failed to open input file", "path", inputPath, "error", err)
	}
	defer in.Close()

	pipelineCfg := pipeline.Config{
		DataDir:          cfg.DataDir,
		WorkerCount:      cfg.Pipeline.WorkerCount,
		BlockSize:        cfg.Pipeline.BlockSize,
		QueueDepth:       cfg.Pipeline.QueueDepth,
		HistoryCacheSize: cfg.Pipeline.HistoryCacheSize,
		Logger:           log.Component("pipeline"),
		Counters:         counters,
	}

	log.Info("starting run", "input", inputPath, "data_dir", cfg.DataDir, "workers", pipelineCfg.WorkerCount)
	start := time.Now()

	if err := pipeline.Run(ctx, pipelineCfg, in); err != nil {
		log.Fatal("pipeline run failed", "error", err)
	}

	elapsed := time.Since(start)
	log.Info("pipeline run complete", "elapsed", elapsed.Round(time.Millisecond))

	if err := run.Finish(counters, elapsed); err != nil {
		log.Warn("failed to write run summary", "error", err)
	}

	if err := pipeline.WriteCombinedSnapshot(pipelineCfg, os.Stdout); err != nil {
		log.Fatal("failed to emit combined snapshot", "error", err)
	}

	return nil
}

func applyCLIOverrides(cliCtx *cli.Context, cfg *config.Config) {
	if cliCtx.IsSet("data-dir") {
		cfg.DataDir = cliCtx.String("data-dir")
	}
	if cliCtx.IsSet("workers") {
		cfg.Pipeline.WorkerCount = cliCtx.Int("workers")
	}
	if cliCtx.IsSet("block-size") {
		cfg.Pipeline.BlockSize = cliCtx.Int("block-size")
	}
	if cliCtx.IsSet("queue-depth") {
		cfg.Pipeline.QueueDepth = cliCtx.Int("queue-depth")
	}
	if cliCtx.IsSet("history-cache") {
		cfg.Pipeline.HistoryCacheSize = cliCtx.Int("history-cache")
	}
	if cliCtx.IsSet("log-level") {
		cfg.Logging.Level = cliCtx.String("log-level")
	}
	if cliCtx.IsSet("log-file") {
		cfg.Logging.File = cliCtx.String("log-file")
	}
}

func newLogger(cfg *config.Config) *logging.Logger {
	logCfg := &logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o700); err == nil {
			logCfg.Output = logging.RotatingFile(cfg.Logging.File, 100, 3)
		}
	}
	return logging.New(logCfg)
}
