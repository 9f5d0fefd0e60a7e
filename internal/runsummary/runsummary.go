// Package runsummary manages the ephemeral per-run working directory and
// writes a short end-of-run report there. Unlike the durable
// data/account and data/transaction trees (which sit directly under the
// data directory, shared by every run, so a restarted run finds its prior
// state), this directory is namespaced by the input file's stem and a
// fresh run id on every invocation, so two diagnostic runs against the
// same input never collide on disk.
package runsummary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ewong/ledgerd/internal/telemetry"
)

// Run tracks one pipeline invocation's ephemeral working directory.
type Run struct {
	ID  string
	Dir string
}

// Begin creates data/summary/<input_stem>/<run_id>/ and returns a handle
// to it, tagged with a fresh run id.
func Begin(dataDir, inputPath string) (*Run, error) {
	stem := inputStem(inputPath)
	id := uuid.NewString()
	dir := filepath.Join(dataDir, "summary", stem, id)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("runsummary: failed to create %s: %w", dir, err)
	}
	return &Run{ID: id, Dir: dir}, nil
}

// Finish writes a small human-readable report of the run's counters and
// duration into the run's working directory.
func (r *Run) Finish(counters *telemetry.Counters, elapsed time.Duration) error {
	path := filepath.Join(r.Dir, "summary.txt")
	body := fmt.Sprintf(
		"run_id: %s\nelapsed: %s\nevents_read: %d\nevents_applied: %d\nevents_dropped: %d\ndecode_errors: %d\n",
		r.ID, elapsed.Round(time.Millisecond),
		counters.EventsRead, counters.EventsApplied, counters.EventsDropped, counters.DecodeErrors,
	)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return fmt.Errorf("runsummary: failed to write %s: %w", path, err)
	}
	return nil
}

// inputStem returns the input file's base name without its extension, the
// key the summary directory is namespaced by under data/summary/.
func inputStem(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
