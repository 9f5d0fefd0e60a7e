package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ewong/ledgerd/internal/codec"
)

// Emit reads every <client_id>.csv file under dir and writes a single
// combined snapshot stream to w, ordered by client_id so output is
// deterministic regardless of which worker finished first.
func Emit(dir string, w io.Writer) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("snapshot: failed to read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".csv" {
			files = append(files, e.Name())
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return clientIDFromFilename(files[i]) < clientIDFromFilename(files[j])
	})

	bw := bufio.NewWriter(w)
	if err := codec.WriteSnapshotHeader(bw); err != nil {
		return err
	}

	for _, name := range files {
		if err := appendBody(filepath.Join(dir, name), bw); err != nil {
			return fmt.Errorf("snapshot: failed to append %s: %w", name, err)
		}
	}
	return bw.Flush()
}

// clientIDFromFilename extracts the numeric client id from a "<id>.csv"
// filename so files sort numerically rather than lexically.
func clientIDFromFilename(name string) uint64 {
	id, _ := strconv.ParseUint(strings.TrimSuffix(name, filepath.Ext(name)), 10, 16)
	return id
}

// appendBody copies every line of path except its header row into w.
func appendBody(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if line == codec.SnapshotHeader {
				continue
			}
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
