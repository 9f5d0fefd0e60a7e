package ledger

import "errors"

// ErrConflict is returned by a Store's Put when a transaction id is already
// recorded with a different client, kind, or amount. The state machine
// treats this as a semantic violation: the event is silently ignored, the
// account is left unchanged, and the run continues.
var ErrConflict = errors.New("ledger: conflicting transaction record")
