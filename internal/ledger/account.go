package ledger

import (
	"github.com/shopspring/decimal"
)

// Account is the per-client balance tuple.
type Account struct {
	ClientID  uint16
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// NewAccount returns the zero-value account for a client.
func NewAccount(clientID uint16) Account {
	return Account{
		ClientID:  clientID,
		Available: decimal.Zero,
		Held:      decimal.Zero,
		Total:     decimal.Zero,
		Locked:    false,
	}
}

// Store is the durable per-client transaction history a worker consults and
// updates while applying events. Implemented by internal/history.Store.
type Store interface {
	Get(txID uint32) (*TxRecord, bool, error)
	Put(rec TxRecord) error
	SetDisputeState(txID uint32, newState DisputeState) error
}
