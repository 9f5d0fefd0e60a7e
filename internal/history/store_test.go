package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ewong/ledgerd/internal/ledger"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "ledgerd-history-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := Open(1, Config{Dir: tmpDir, CacheSize: 16})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, tmpDir
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	_, tmpDir := newTestStore(t)

	dbPath := filepath.Join(tmpDir, "history.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestPutThenGet(t *testing.T) {
	store, _ := newTestStore(t)

	rec := ledger.TxRecord{TxID: 1, ClientID: 1, Kind: ledger.Deposit, Amount: d("12.5")}
	if err := store.Put(rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, found, err := store.Get(1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if got.ClientID != 1 || got.Kind != ledger.Deposit || !got.Amount.Equal(d("12.5")) {
		t.Errorf("Get() = %+v, want matching record", got)
	}
	if got.DisputeState != ledger.StateNone {
		t.Errorf("DisputeState = %v, want StateNone", got.DisputeState)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, found, err := store.Get(999)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true, want false for missing tx")
	}
}

func TestPutSameRecordTwiceIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)

	rec := ledger.TxRecord{TxID: 1, ClientID: 1, Kind: ledger.Deposit, Amount: d("5")}
	if err := store.Put(rec); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	if err := store.Put(rec); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}
}

func TestPutConflictingRecordReturnsErrConflict(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.Put(ledger.TxRecord{TxID: 1, ClientID: 1, Kind: ledger.Deposit, Amount: d("5")}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	err := store.Put(ledger.TxRecord{TxID: 1, ClientID: 1, Kind: ledger.Deposit, Amount: d("99")})
	if !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("Put() error = %v, want ErrConflict", err)
	}
}

func TestSetDisputeStateRoundTrips(t *testing.T) {
	store, _ := newTestStore(t)

	rec := ledger.TxRecord{TxID: 1, ClientID: 1, Kind: ledger.Deposit, Amount: d("5")}
	if err := store.Put(rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.SetDisputeState(1, ledger.StateDisputed); err != nil {
		t.Fatalf("SetDisputeState() error = %v", err)
	}

	got, found, err := store.Get(1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false")
	}
	if got.DisputeState != ledger.StateDisputed {
		t.Errorf("DisputeState = %v, want StateDisputed", got.DisputeState)
	}
}

func TestSetDisputeStateOnMissingTxIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.SetDisputeState(42, ledger.StateDisputed); err != nil {
		t.Fatalf("SetDisputeState() error = %v", err)
	}
}

func TestGetSurvivesReopen(t *testing.T) {
	store, dir := newTestStore(t)

	if err := store.Put(ledger.TxRecord{TxID: 7, ClientID: 1, Kind: ledger.Withdrawal, Amount: d("3.25")}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(1, Config{Dir: dir, CacheSize: 16})
	if err != nil {
		t.Fatalf("reopen Open() error = %v", err)
	}
	defer reopened.Close()

	got, found, err := reopened.Get(7)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if !found {
		t.Fatal("Get() after reopen found = false, want true")
	}
	if !got.Amount.Equal(d("3.25")) {
		t.Errorf("Amount = %s, want 3.25", got.Amount)
	}
}

func TestDefaultCacheSize(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ledgerd-history-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := Open(1, Config{Dir: tmpDir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if store.cache.Len() != 0 {
		t.Errorf("new cache Len() = %d, want 0", store.cache.Len())
	}
}
