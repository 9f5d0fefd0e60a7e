package pipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/ewong/ledgerd/internal/codec"
	"github.com/ewong/ledgerd/internal/ledger"
	"github.com/ewong/ledgerd/internal/telemetry"
)

// Block is a bounded run of events read off the input stream in arrival
// order. Stage 2 (the router) consumes Blocks and fans their events out to
// workers; the block boundary has no semantic meaning, it only bounds how
// much the splitter can get ahead of the router.
type Block struct {
	Events []ledger.Event
}

// Split reads events from r and emits Blocks of up to blockSize events onto
// out, in input order, until r is exhausted or ctx-like cancellation is
// observed via done. It closes out when finished. A decode error is fatal
// per spec.md §7 and is returned after out is closed. counters may be nil.
func Split(r io.Reader, blockSize int, out chan<- Block, done <-chan struct{}, counters *telemetry.Counters) error {
	if blockSize <= 0 {
		blockSize = 1_000_000
	}
	defer close(out)

	reader := codec.NewReader(r)
	block := Block{Events: make([]ledger.Event, 0, blockSize)}

	flush := func() bool {
		if len(block.Events) == 0 {
			return true
		}
		select {
		case out <- block:
			block = Block{Events: make([]ledger.Event, 0, blockSize)}
			return true
		case <-done:
			return false
		}
	}

	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			flush()
			return nil
		}
		if err != nil {
			flush()
			if counters != nil {
				counters.IncDecodeErrors()
			}
			return fmt.Errorf("splitter: %w", err)
		}
		if counters != nil {
			counters.IncEventsRead()
		}

		block.Events = append(block.Events, ev)
		if len(block.Events) >= blockSize {
			if !flush() {
				return nil
			}
		}

		select {
		case <-done:
			return nil
		default:
		}
	}
}
