package ledger

import (
	"errors"
	"fmt"
)

// Apply applies a single event to an account, consulting and updating the
// account's transaction history store as required by the event kind. It
// implements the table in spec.md §4.3 exactly: every precondition failure
// is a silent no-op (the account and the store are left exactly as they
// were), and the only errors returned are store I/O failures and an
// unknown event kind, both of which the caller must treat as fatal to the
// owning worker.
func Apply(acc Account, ev Event, store Store) (Account, error) {
	switch ev.Kind {
	case Deposit:
		return applyDeposit(acc, ev, store)
	case Withdrawal:
		return applyWithdrawal(acc, ev, store)
	case Dispute:
		return applyDispute(acc, ev, store)
	case Resolve:
		return applyResolve(acc, ev, store)
	case Chargeback:
		return applyChargeback(acc, ev, store)
	default:
		return acc, fmt.Errorf("ledger: unknown event kind %q", ev.Kind)
	}
}

func applyDeposit(acc Account, ev Event, store Store) (Account, error) {
	if acc.Locked || !ev.Amount.IsPositive() {
		return acc, nil
	}

	existing, found, err := store.Get(ev.TxID)
	if err != nil {
		return acc, err
	}
	if found {
		// Already recorded for this client: ignore (see ErrConflict docs
		// for the cross-client case, rejected earlier by the router).
		_ = existing
		return acc, nil
	}

	rec := TxRecord{TxID: ev.TxID, ClientID: ev.ClientID, Kind: Deposit, Amount: ev.Amount, DisputeState: StateNone}
	if err := store.Put(rec); err != nil {
		if errors.Is(err, ErrConflict) {
			return acc, nil
		}
		return acc, err
	}

	acc.Available = acc.Available.Add(ev.Amount)
	acc.Total = acc.Total.Add(ev.Amount)
	return acc, nil
}

func applyWithdrawal(acc Account, ev Event, store Store) (Account, error) {
	if acc.Locked || !ev.Amount.IsPositive() || acc.Available.LessThan(ev.Amount) {
		return acc, nil
	}

	_, found, err := store.Get(ev.TxID)
	if err != nil {
		return acc, err
	}
	if found {
		return acc, nil
	}

	rec := TxRecord{TxID: ev.TxID, ClientID: ev.ClientID, Kind: Withdrawal, Amount: ev.Amount, DisputeState: StateNone}
	if err := store.Put(rec); err != nil {
		if errors.Is(err, ErrConflict) {
			return acc, nil
		}
		return acc, err
	}

	acc.Available = acc.Available.Sub(ev.Amount)
	acc.Total = acc.Total.Sub(ev.Amount)
	return acc, nil
}

func applyDispute(acc Account, ev Event, store Store) (Account, error) {
	if acc.Locked {
		return acc, nil
	}

	rec, found, err := store.Get(ev.TxID)
	if err != nil {
		return acc, err
	}
	if !found || rec.DisputeState != StateNone {
		return acc, nil
	}

	if rec.Kind == Deposit {
		acc.Available = acc.Available.Sub(rec.Amount)
		acc.Held = acc.Held.Add(rec.Amount)
	}
	// Withdrawal disputes are balance-neutral until a chargeback.

	if err := store.SetDisputeState(ev.TxID, StateDisputed); err != nil {
		return acc, err
	}
	return acc, nil
}

func applyResolve(acc Account, ev Event, store Store) (Account, error) {
	if acc.Locked {
		return acc, nil
	}

	rec, found, err := store.Get(ev.TxID)
	if err != nil {
		return acc, err
	}
	if !found || rec.DisputeState != StateDisputed {
		return acc, nil
	}

	if rec.Kind == Deposit {
		acc.Available = acc.Available.Add(rec.Amount)
		acc.Held = acc.Held.Sub(rec.Amount)
	}

	if err := store.SetDisputeState(ev.TxID, StateResolved); err != nil {
		return acc, err
	}
	return acc, nil
}

func applyChargeback(acc Account, ev Event, store Store) (Account, error) {
	if acc.Locked {
		return acc, nil
	}

	rec, found, err := store.Get(ev.TxID)
	if err != nil {
		return acc, err
	}
	if !found || rec.DisputeState != StateDisputed {
		return acc, nil
	}

	switch rec.Kind {
	case Deposit:
		acc.Held = acc.Held.Sub(rec.Amount)
		acc.Total = acc.Total.Sub(rec.Amount)
	case Withdrawal:
		acc.Available = acc.Available.Add(rec.Amount)
		acc.Total = acc.Total.Add(rec.Amount)
	}
	acc.Locked = true

	if err := store.SetDisputeState(ev.TxID, StateChargedBack); err != nil {
		return acc, err
	}
	return acc, nil
}
