package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/ewong/ledgerd/internal/history"
	"github.com/ewong/ledgerd/internal/ledger"
	"github.com/ewong/ledgerd/internal/snapshot"
	"github.com/ewong/ledgerd/internal/telemetry"
	"github.com/ewong/ledgerd/pkg/logging"
)

// Worker owns a disjoint set of clients for the lifetime of a run. Because
// the router binds each client to exactly one worker, a Worker never shares
// an Account or a history.Store with any other goroutine and needs no
// internal locking.
type Worker struct {
	id int

	historyDir    string
	historyCache  int
	snapshotDir   string
	snapshotStage string

	accounts map[uint16]ledger.Account
	stores   map[uint16]*history.Store

	logger   *logging.Logger
	counters *telemetry.Counters
}

// WorkerConfig configures a single Worker.
type WorkerConfig struct {
	ID            int
	HistoryDir    string
	HistoryCache  int
	SnapshotDir   string
	SnapshotStage string
	Logger        *logging.Logger
	Counters      *telemetry.Counters
}

// NewWorker constructs a Worker. Per-client history stores are opened
// lazily as events arrive for a client, not eagerly.
func NewWorker(cfg WorkerConfig) *Worker {
	return &Worker{
		id:            cfg.ID,
		historyDir:    cfg.HistoryDir,
		historyCache:  cfg.HistoryCache,
		snapshotDir:   cfg.SnapshotDir,
		snapshotStage: cfg.SnapshotStage,
		accounts:      make(map[uint16]ledger.Account),
		stores:        make(map[uint16]*history.Store),
		logger:        cfg.Logger,
		counters:      cfg.Counters,
	}
}

// Run applies every event received on in, in order, until in is closed,
// then flushes every account it owns to a snapshot and closes its history
// stores. A fatal error aborts the run and is returned to the caller; the
// worker still attempts to close any stores it had already opened.
func (w *Worker) Run(in <-chan ledger.Event) error {
	defer w.closeStores()

	for ev := range in {
		if err := w.apply(ev); err != nil {
			return fmt.Errorf("worker %d: %w", w.id, err)
		}
	}

	for clientID, acc := range w.accounts {
		if err := snapshot.Write(w.snapshotDir, w.snapshotStage, clientID, acc); err != nil {
			return fmt.Errorf("worker %d: snapshot client %d: %w", w.id, clientID, err)
		}
	}
	return nil
}

func (w *Worker) apply(ev ledger.Event) error {
	store, err := w.storeFor(ev.ClientID)
	if err != nil {
		return err
	}

	acc, ok := w.accounts[ev.ClientID]
	if !ok {
		acc = ledger.NewAccount(ev.ClientID)
	}

	newAcc, err := ledger.Apply(acc, ev, store)
	if err != nil {
		return fmt.Errorf("apply client %d tx %d: %w", ev.ClientID, ev.TxID, err)
	}
	w.accounts[ev.ClientID] = newAcc
	if w.counters != nil {
		w.counters.IncEventsApplied()
	}
	return nil
}

func (w *Worker) storeFor(clientID uint16) (*history.Store, error) {
	if s, ok := w.stores[clientID]; ok {
		return s, nil
	}

	dir := filepath.Join(w.historyDir, fmt.Sprintf("%d_db", clientID))
	s, err := history.Open(clientID, history.Config{Dir: dir, CacheSize: w.historyCache})
	if err != nil {
		return nil, fmt.Errorf("open history store for client %d: %w", clientID, err)
	}
	w.stores[clientID] = s
	return s, nil
}

func (w *Worker) closeStores() {
	for clientID, s := range w.stores {
		if err := s.Close(); err != nil && w.logger != nil {
			w.logger.Warn("failed to close history store", "client_id", clientID, "error", err)
		}
	}
}
