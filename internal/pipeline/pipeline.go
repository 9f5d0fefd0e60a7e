// Package pipeline wires the splitter, router and worker pool stages
// described in spec.md §4 into a single concurrent run over one input
// file, and writes the resulting per-client snapshots.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ewong/ledgerd/internal/ledger"
	"github.com/ewong/ledgerd/internal/snapshot"
	"github.com/ewong/ledgerd/internal/telemetry"
	"github.com/ewong/ledgerd/pkg/logging"
)

// Config configures a single pipeline run.
type Config struct {
	DataDir          string
	WorkerCount      int
	BlockSize        int
	QueueDepth       int
	HistoryCacheSize int
	Logger           *logging.Logger

	// Counters receives progress counts for the run. If nil, a private
	// Counters is used and discarded at the end of the run.
	Counters *telemetry.Counters
}

// Run drives one end-to-end pass over r: splitting it into blocks, routing
// events to a pool of WorkerCount workers, applying the ledger state
// machine, and writing a snapshot per client under DataDir. It returns once
// every stage has finished or a stage has failed, in which case the first
// error observed is returned and every other stage is canceled.
func Run(ctx context.Context, cfg Config, r io.Reader) error {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 5
	}
	if cfg.Counters == nil {
		cfg.Counters = &telemetry.Counters{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetDefault().Component("pipeline")
	}

	accountDir := filepath.Join(cfg.DataDir, "account")
	backupDir := filepath.Join(cfg.DataDir, "account_backup")
	historyDir := filepath.Join(cfg.DataDir, "transaction")

	blocks := make(chan Block, cfg.QueueDepth)
	workerIns := make([]chan ledger.Event, cfg.WorkerCount)
	workerInsSend := make([]chan<- ledger.Event, cfg.WorkerCount)
	for i := range workerIns {
		workerIns[i] = make(chan ledger.Event, cfg.QueueDepth)
		workerInsSend[i] = workerIns[i]
	}

	group, gctx := errgroup.WithContext(ctx)
	done := gctx.Done()

	group.Go(func() error {
		return Split(r, cfg.BlockSize, blocks, done, cfg.Counters)
	})

	group.Go(func() error {
		router := NewRouter(workerInsSend, logger.Component("router"), cfg.Counters)
		RunRouter(router, blocks, done)
		return nil
	})

	for i := 0; i < cfg.WorkerCount; i++ {
		i := i
		worker := NewWorker(WorkerConfig{
			ID:            i,
			HistoryDir:    historyDir,
			HistoryCache:  cfg.HistoryCacheSize,
			SnapshotDir:   accountDir,
			SnapshotStage: backupDir,
			Logger:        logger.Component(fmt.Sprintf("worker-%d", i)),
			Counters:      cfg.Counters,
		})
		group.Go(func() error {
			return worker.Run(workerIns[i])
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// WriteCombinedSnapshot concatenates every per-client snapshot file under
// DataDir/account into a single stream, e.g. for stdout emission.
func WriteCombinedSnapshot(cfg Config, w io.Writer) error {
	return snapshot.Emit(filepath.Join(cfg.DataDir, "account"), w)
}
