// Package history provides the durable per-client transaction history that
// the ledger state machine consults when applying dispute-family events.
// Each client gets its own embedded SQLite file used as an ordered
// key-value table, fronted by an in-memory write-through LRU cache so the
// common case (disputes against recently-seen transactions) never touches
// disk.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ewong/ledgerd/internal/ledger"
)

// Store is the per-client transaction history. It implements
// ledger.Store.
type Store struct {
	clientID uint16
	db       *sql.DB
	cache    *lru.Cache[uint32, *ledger.TxRecord]
	mu       sync.Mutex
}

// Config configures a single client's history store.
type Config struct {
	// Dir is the directory this client's SQLite file lives in
	// (data/transaction/<client_id>_db/ per spec.md §6).
	Dir string
	// CacheSize is the number of entries kept in the in-memory LRU cache.
	CacheSize int
}

// Open opens (creating if necessary) the history store for one client.
func Open(clientID uint16, cfg Config) (*Store, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("history: failed to create directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, "history.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: failed to ping database: %w", err)
	}
	// SQLite only supports one writer; a single connection avoids
	// SQLITE_BUSY under our own write-through cache's coalescing.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tx_records (
			tx_id TEXT PRIMARY KEY,
			client_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			amount TEXT NOT NULL,
			dispute_state TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: failed to initialize schema: %w", err)
	}

	cache, err := lru.New[uint32, *ledger.TxRecord](cfg.CacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: failed to create cache: %w", err)
	}

	return &Store{clientID: clientID, db: db, cache: cache}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the transaction record for txID, checking the in-memory
// cache before falling back to the durable layer.
func (s *Store) Get(txID uint32) (*ledger.TxRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.cache.Get(txID); ok {
		cp := *rec
		return &cp, true, nil
	}

	rec, found, err := s.loadFromDB(txID)
	if err != nil {
		return nil, false, fmt.Errorf("history: get(%d): %w", txID, err)
	}
	if !found {
		return nil, false, nil
	}
	s.cache.Add(txID, rec)
	cp := *rec
	return &cp, true, nil
}

func (s *Store) loadFromDB(txID uint32) (*ledger.TxRecord, bool, error) {
	row := s.db.QueryRow(`SELECT client_id, kind, amount, dispute_state FROM tx_records WHERE tx_id = ?`, txKey(txID))

	var clientID uint16
	var kind, amountStr, state string
	if err := row.Scan(&clientID, &kind, &amountStr, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt amount for tx %d: %w", txID, err)
	}

	return &ledger.TxRecord{
		TxID:         txID,
		ClientID:     clientID,
		Kind:         ledger.Kind(kind),
		Amount:       amount,
		DisputeState: ledger.DisputeState(state),
	}, true, nil
}

// Put inserts a new transaction record. Writing the same (tx_id, client,
// kind, amount) twice is a no-op; a conflicting record for the same tx_id
// returns ledger.ErrConflict.
func (s *Store) Put(rec ledger.TxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found, err := s.loadFromDB(rec.TxID)
	if err != nil {
		return fmt.Errorf("history: put(%d): %w", rec.TxID, err)
	}
	if found {
		if existing.ClientID != rec.ClientID || existing.Kind != rec.Kind || !existing.Amount.Equal(rec.Amount) {
			return ledger.ErrConflict
		}
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO tx_records (tx_id, client_id, kind, amount, dispute_state) VALUES (?, ?, ?, ?, ?)`,
		txKey(rec.TxID), rec.ClientID, string(rec.Kind), rec.Amount.String(), string(ledger.StateNone),
	)
	if err != nil {
		return fmt.Errorf("history: put(%d): %w", rec.TxID, err)
	}

	cp := rec
	cp.DisputeState = ledger.StateNone
	s.cache.Add(rec.TxID, &cp)
	return nil
}

// SetDisputeState overwrites the dispute state of an already-recorded
// transaction. It is the caller's (ledger.Apply's) responsibility to have
// already validated the transition is legal; SetDisputeState is a no-op if
// the transaction does not exist.
func (s *Store) SetDisputeState(txID uint32, newState ledger.DisputeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE tx_records SET dispute_state = ? WHERE tx_id = ?`, string(newState), txKey(txID))
	if err != nil {
		return fmt.Errorf("history: set_dispute_state(%d): %w", txID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if rec, ok := s.cache.Get(txID); ok {
		rec.DisputeState = newState
	}
	return nil
}

// txKey is the compact stringification of a tx_id used as the SQLite
// primary key (spec.md §4.2).
func txKey(txID uint32) string {
	return fmt.Sprintf("%d", txID)
}
