package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ewong/ledgerd/internal/ledger"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func drain(ch chan ledger.Event) []ledger.Event {
	var events []ledger.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestRouterBindsClientToSingleWorker(t *testing.T) {
	out0 := make(chan ledger.Event, 10)
	out1 := make(chan ledger.Event, 10)
	router := NewRouter([]chan<- ledger.Event{out0, out1}, nil, nil)
	done := make(chan struct{})

	events := []ledger.Event{
		{Kind: ledger.Deposit, ClientID: 1, TxID: 1, Amount: d("1")},
		{Kind: ledger.Deposit, ClientID: 1, TxID: 2, Amount: d("1")},
		{Kind: ledger.Deposit, ClientID: 2, TxID: 3, Amount: d("1")},
	}
	for _, ev := range events {
		if !router.Route(ev, done) {
			t.Fatal("Route() returned false unexpectedly")
		}
	}
	close(out0)
	close(out1)

	c0, c1 := drain(out0), drain(out1)
	total := len(c0) + len(c1)
	if total != 3 {
		t.Fatalf("routed %d events, want 3", total)
	}

	// client 1's two events must land on the same worker.
	seenOn0 := countClient(c0, 1)
	seenOn1 := countClient(c1, 1)
	if (seenOn0 != 0) == (seenOn1 != 0) && seenOn0 != 2 && seenOn1 != 2 {
		t.Errorf("client 1 events split across workers: on0=%d on1=%d", seenOn0, seenOn1)
	}
}

func countClient(events []ledger.Event, clientID uint16) int {
	n := 0
	for _, ev := range events {
		if ev.ClientID == clientID {
			n++
		}
	}
	return n
}

func TestRouterDropsCrossClientTxConflict(t *testing.T) {
	out0 := make(chan ledger.Event, 10)
	router := NewRouter([]chan<- ledger.Event{out0}, nil, nil)
	done := make(chan struct{})

	router.Route(ledger.Event{Kind: ledger.Deposit, ClientID: 1, TxID: 1, Amount: d("1")}, done)
	router.Route(ledger.Event{Kind: ledger.Deposit, ClientID: 2, TxID: 1, Amount: d("1")}, done)
	close(out0)

	got := drain(out0)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1 (conflicting event dropped)", len(got))
	}
	if got[0].ClientID != 1 {
		t.Errorf("surviving event belongs to client %d, want 1", got[0].ClientID)
	}
}
