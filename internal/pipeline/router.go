package pipeline

import (
	"github.com/ewong/ledgerd/internal/ledger"
	"github.com/ewong/ledgerd/internal/telemetry"
	"github.com/ewong/ledgerd/pkg/logging"
)

// Router is Stage 2 of the pipeline. It owns the client_id -> worker
// assignment (bound for the lifetime of a run by round-robin, so a given
// client's events always land on the same worker and worker state never
// needs cross-goroutine synchronization) and the cross-client tx_id
// ownership map, the one place in the pipeline that sees the full,
// unsharded event stream before it gets sharded across workers.
type Router struct {
	workerCount int
	clientOwner map[uint16]int
	nextWorker  int

	// txOwner records which client a tx_id was first seen under. A later
	// event bearing the same tx_id under a different client_id is a
	// semantic violation (spec.md §7) and is dropped rather than routed.
	txOwner map[uint32]uint16

	outs     []chan<- ledger.Event
	logger   *logging.Logger
	counters *telemetry.Counters
}

// NewRouter builds a Router that fans events out across outs, one channel
// per worker. counters may be nil.
func NewRouter(outs []chan<- ledger.Event, logger *logging.Logger, counters *telemetry.Counters) *Router {
	return &Router{
		workerCount: len(outs),
		clientOwner: make(map[uint16]int),
		txOwner:     make(map[uint32]uint16),
		outs:        outs,
		logger:      logger,
		counters:    counters,
	}
}

// Route assigns ev to its client's bound worker, applying the cross-client
// conflict check first. It blocks until the event is delivered or done
// fires. It returns false if routing was aborted via done.
func (r *Router) Route(ev ledger.Event, done <-chan struct{}) bool {
	switch ev.Kind {
	case ledger.Deposit, ledger.Withdrawal:
		if owner, seen := r.txOwner[ev.TxID]; seen {
			if owner != ev.ClientID {
				if r.logger != nil {
					r.logger.Warn("dropping event with conflicting tx owner",
						"tx_id", ev.TxID, "claimed_client", ev.ClientID, "owner_client", owner)
				}
				if r.counters != nil {
					r.counters.IncEventsDropped()
				}
				return true
			}
		} else {
			r.txOwner[ev.TxID] = ev.ClientID
		}
	}

	worker := r.workerFor(ev.ClientID)
	select {
	case r.outs[worker] <- ev:
		return true
	case <-done:
		return false
	}
}

// workerFor returns the worker index bound to clientID, assigning one via
// round-robin on first sight.
func (r *Router) workerFor(clientID uint16) int {
	if w, ok := r.clientOwner[clientID]; ok {
		return w
	}
	w := r.nextWorker % r.workerCount
	r.nextWorker++
	r.clientOwner[clientID] = w
	return w
}

// RunRouter drains blocks from in, routing every event they contain, until
// in is closed or done fires. It closes every channel in outs when finished
// so downstream workers can detect end-of-input.
func RunRouter(r *Router, in <-chan Block, done <-chan struct{}) {
	defer func() {
		for _, out := range r.outs {
			close(out)
		}
	}()

	for block := range in {
		for _, ev := range block.Events {
			if !r.Route(ev, done) {
				return
			}
		}
		select {
		case <-done:
			return
		default:
		}
	}
}
