// Package ledger implements the per-client account state machine: the pure
// mapping from (Account, Event, history store) to (Account, history update).
package ledger

import (
	"github.com/shopspring/decimal"
)

// Kind identifies the type of a ledger event.
type Kind string

const (
	Deposit    Kind = "deposit"
	Withdrawal Kind = "withdrawal"
	Dispute    Kind = "dispute"
	Resolve    Kind = "resolve"
	Chargeback Kind = "chargeback"
)

// Event is a single parsed input row.
type Event struct {
	Kind     Kind
	ClientID uint16
	TxID     uint32
	// Amount is only populated for Deposit and Withdrawal events.
	Amount decimal.Decimal
}

// DisputeState is the lifecycle state of a recorded transaction's dispute.
type DisputeState string

const (
	StateNone       DisputeState = "none"
	StateDisputed   DisputeState = "disputed"
	StateResolved   DisputeState = "resolved"
	StateChargedBack DisputeState = "charged_back"
)

// TxRecord is the durable record kept for every successfully applied
// Deposit or Withdrawal.
type TxRecord struct {
	TxID         uint32
	ClientID     uint16
	Kind         Kind
	Amount       decimal.Decimal
	DisputeState DisputeState
}
