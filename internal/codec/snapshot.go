package codec

import (
	"fmt"
	"io"

	"github.com/ewong/ledgerd/internal/ledger"
)

// SnapshotHeader is the fixed header row of every snapshot stream.
const SnapshotHeader = "client,available,held,total,locked"

// WriteSnapshotHeader writes the fixed snapshot header row.
func WriteSnapshotHeader(w io.Writer) error {
	_, err := fmt.Fprintln(w, SnapshotHeader)
	return err
}

// EncodeSnapshotRow renders a single account as a snapshot CSV row, with
// amounts formatted to exactly four fractional digits.
func EncodeSnapshotRow(acc ledger.Account) string {
	return fmt.Sprintf("%d,%s,%s,%s,%t",
		acc.ClientID,
		acc.Available.StringFixed(4),
		acc.Held.StringFixed(4),
		acc.Total.StringFixed(4),
		acc.Locked,
	)
}

// WriteSnapshotRow writes a single account's snapshot row terminated by a
// newline.
func WriteSnapshotRow(w io.Writer, acc ledger.Account) error {
	_, err := fmt.Fprintln(w, EncodeSnapshotRow(acc))
	return err
}
