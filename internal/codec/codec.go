// Package codec parses input rows into typed ledger events and serializes
// account snapshots. It is the boundary between the textual CSV wire
// format (spec.md §6) and the internal ledger.Event / ledger.Account types.
package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ewong/ledgerd/internal/ledger"
)

// DecodeError is returned for any row the codec cannot turn into a valid
// Event. Per spec.md §7 this is always fatal to the run.
type DecodeError struct {
	Line int
	Row  []string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: line %d (%v): %v", e.Line, e.Row, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var headerNames = map[string]bool{"type": true, "client": true, "tx": true, "amount": true}

// Reader streams Events out of an input CSV, skipping at most one header
// row at the very start of the stream.
type Reader struct {
	csv         *csv.Reader
	line        int
	sawFirstRow bool
}

// NewReader wraps r for event decoding.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // dispute-family rows may omit the amount column
	cr.TrimLeadingSpace = true
	return &Reader{csv: cr}
}

// Next returns the next decoded event, or io.EOF once the stream is
// exhausted. A row that cannot be turned into an event is returned as a
// fatal *DecodeError; errors from the underlying CSV reader (malformed
// quoting, read failures) are returned unwrapped.
func (r *Reader) Next() (ledger.Event, error) {
	for {
		row, err := r.csv.Read()
		if err != nil {
			return ledger.Event{}, err
		}
		r.line++

		if !r.sawFirstRow {
			r.sawFirstRow = true
			if isHeaderRow(row) {
				continue
			}
		}

		ev, err := decodeRow(row)
		if err != nil {
			return ledger.Event{}, &DecodeError{Line: r.line, Row: row, Err: err}
		}
		return ev, nil
	}
}

func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	return headerNames[strings.ToLower(strings.TrimSpace(row[0]))]
}

func decodeRow(row []string) (ledger.Event, error) {
	if len(row) < 3 {
		return ledger.Event{}, fmt.Errorf("expected at least 3 columns, got %d", len(row))
	}

	kind, err := parseKind(row[0])
	if err != nil {
		return ledger.Event{}, err
	}

	clientID, err := parseUint16(row[1])
	if err != nil {
		return ledger.Event{}, fmt.Errorf("invalid client id %q: %w", row[1], err)
	}

	txID, err := parseUint32(row[2])
	if err != nil {
		return ledger.Event{}, fmt.Errorf("invalid tx id %q: %w", row[2], err)
	}

	ev := ledger.Event{Kind: kind, ClientID: clientID, TxID: txID}

	switch kind {
	case ledger.Deposit, ledger.Withdrawal:
		if len(row) < 4 || strings.TrimSpace(row[3]) == "" {
			return ledger.Event{}, fmt.Errorf("%s requires an amount column", kind)
		}
		amt, err := parseAmount(row[3])
		if err != nil {
			return ledger.Event{}, fmt.Errorf("invalid amount %q: %w", row[3], err)
		}
		ev.Amount = amt
	}

	return ev, nil
}

func parseKind(s string) (ledger.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit":
		return ledger.Deposit, nil
	case "withdrawal", "withdraw":
		return ledger.Withdrawal, nil
	case "dispute":
		return ledger.Dispute, nil
	case "resolve":
		return ledger.Resolve, nil
	case "chargeback":
		return ledger.Chargeback, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	return uint16(v), err
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	return uint32(v), err
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}
