// Package telemetry tracks in-process counters for a ledgerd run and logs
// them periodically. It is intentionally not a network-facing metrics
// server: a batch pipeline has no long-lived process for a scraper to
// poll, so observability here means readable log lines, not /metrics.
package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ewong/ledgerd/pkg/logging"
)

// Counters tracks run-wide event counts. All fields are updated with
// atomic operations so any pipeline goroutine can report into the same
// Counters without its own lock.
type Counters struct {
	EventsRead    int64
	EventsApplied int64
	EventsDropped int64
	DecodeErrors  int64
}

// IncEventsRead increments the count of events read off the input stream.
func (c *Counters) IncEventsRead() { atomic.AddInt64(&c.EventsRead, 1) }

// IncEventsApplied increments the count of events a worker passed through
// the state machine without error. Events the state machine silently
// ignores (overdraw, dispute on unknown tx, locked account) are counted
// here too.
func (c *Counters) IncEventsApplied() { atomic.AddInt64(&c.EventsApplied, 1) }

// IncEventsDropped increments the count of events the router drops because
// their tx_id is already owned by another client. No other semantic
// violation is counted here.
func (c *Counters) IncEventsDropped() { atomic.AddInt64(&c.EventsDropped, 1) }

// IncDecodeErrors increments the count of fatal input decode errors.
func (c *Counters) IncDecodeErrors() { atomic.AddInt64(&c.DecodeErrors, 1) }

// snapshot is an immutable read of Counters at a point in time.
type snapshot struct {
	read, applied, dropped, decodeErrors int64
}

func (c *Counters) snapshot() snapshot {
	return snapshot{
		read:         atomic.LoadInt64(&c.EventsRead),
		applied:      atomic.LoadInt64(&c.EventsApplied),
		dropped:      atomic.LoadInt64(&c.EventsDropped),
		decodeErrors: atomic.LoadInt64(&c.DecodeErrors),
	}
}

// Reporter periodically logs a Counters snapshot until Stop is called.
type Reporter struct {
	counters *Counters
	logger   *logging.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewReporter starts logging counters at the given interval. Call Stop to
// halt it and flush one final log line.
func NewReporter(counters *Counters, logger *logging.Logger, interval time.Duration) *Reporter {
	r := &Reporter{
		counters: counters,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go r.run(interval)
	return r
}

func (r *Reporter) run(interval time.Duration) {
	defer close(r.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.report()
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	s := r.counters.snapshot()
	r.logger.Info("pipeline progress",
		"events_read", humanize.Comma(s.read),
		"events_applied", humanize.Comma(s.applied),
		"events_dropped", humanize.Comma(s.dropped),
		"decode_errors", humanize.Comma(s.decodeErrors),
	)
}

// Stop halts the reporter and blocks until its final report has been
// logged.
func (r *Reporter) Stop() {
	close(r.stopCh)
	<-r.doneCh
}
