package pipeline

import (
	"strings"
	"testing"
)

func collectBlocks(out <-chan Block) []Block {
	var blocks []Block
	for b := range out {
		blocks = append(blocks, b)
	}
	return blocks
}

func TestSplitBatchesByBlockSize(t *testing.T) {
	input := "deposit,1,1,1.0\ndeposit,1,2,1.0\ndeposit,1,3,1.0\ndeposit,1,4,1.0\ndeposit,1,5,1.0\n"

	out := make(chan Block, 10)
	done := make(chan struct{})
	if err := Split(strings.NewReader(input), 2, out, done, nil); err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	blocks := collectBlocks(out)
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3 (2+2+1)", len(blocks))
	}
	if len(blocks[0].Events) != 2 || len(blocks[1].Events) != 2 || len(blocks[2].Events) != 1 {
		t.Errorf("unexpected block sizes: %d, %d, %d", len(blocks[0].Events), len(blocks[1].Events), len(blocks[2].Events))
	}
}

func TestSplitPropagatesDecodeError(t *testing.T) {
	input := "deposit,1,1,1.0\nteleport,1,2,1.0\n"

	out := make(chan Block, 10)
	done := make(chan struct{})
	err := Split(strings.NewReader(input), 10, out, done, nil)
	if err == nil {
		t.Fatal("Split() error = nil, want decode error")
	}
	// the valid row before the bad one must still have been flushed
	blocks := collectBlocks(out)
	total := 0
	for _, b := range blocks {
		total += len(b.Events)
	}
	if total != 1 {
		t.Errorf("got %d events flushed before error, want 1", total)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	out := make(chan Block, 10)
	done := make(chan struct{})
	if err := Split(strings.NewReader(""), 10, out, done, nil); err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if blocks := collectBlocks(out); len(blocks) != 0 {
		t.Errorf("got %d blocks, want 0", len(blocks))
	}
}
