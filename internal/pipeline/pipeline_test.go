package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestRunEndToEnd(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ledgerd-pipeline-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	input := "type,client,tx,amount\n" +
		"deposit,1,1,1.0\n" +
		"deposit,2,2,2.0\n" +
		"deposit,1,3,2.0\n" +
		"withdrawal,1,4,1.5\n" +
		"withdrawal,2,5,3.0\n"

	cfg := Config{
		DataDir:          tmpDir,
		WorkerCount:      2,
		BlockSize:        10,
		QueueDepth:       2,
		HistoryCacheSize: 16,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := Run(ctx, cfg, strings.NewReader(input)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var buf strings.Builder
	if err := WriteCombinedSnapshot(cfg, &buf); err != nil {
		t.Fatalf("WriteCombinedSnapshot() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "1,1.5000,0.0000,1.5000,false") {
		t.Errorf("missing client 1 snapshot row, got:\n%s", out)
	}
	if !strings.Contains(out, "2,2.0000,0.0000,2.0000,false") {
		t.Errorf("missing client 2 snapshot row, got:\n%s", out)
	}
}

func TestRunWithDisputeAndChargeback(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ledgerd-pipeline-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	input := "type,client,tx,amount\n" +
		"deposit,12,1,10\n" +
		"deposit,12,2,11\n" +
		"deposit,12,3,12\n" +
		"withdrawal,12,4,50\n" +
		"withdrawal,12,5,11\n" +
		"dispute,12,1\n" +
		"deposit,12,6,12\n" +
		"chargeback,12,1\n"

	cfg := Config{
		DataDir:          tmpDir,
		WorkerCount:      1,
		BlockSize:        10,
		QueueDepth:       2,
		HistoryCacheSize: 16,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := Run(ctx, cfg, strings.NewReader(input)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var buf strings.Builder
	if err := WriteCombinedSnapshot(cfg, &buf); err != nil {
		t.Fatalf("WriteCombinedSnapshot() error = %v", err)
	}

	if !strings.Contains(buf.String(), "12,24.0000,0.0000,24.0000,true") {
		t.Errorf("expected locked client 12 with balance 24, got:\n%s", buf.String())
	}
}

func TestRunDropsCrossClientTxConflict(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ledgerd-pipeline-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// tx 1 is first claimed by client 1, then client 2 tries to reuse it;
	// the second deposit must be dropped rather than applied to client 2.
	input := "type,client,tx,amount\n" +
		"deposit,1,1,5.0\n" +
		"deposit,2,1,100.0\n"

	cfg := Config{
		DataDir:          tmpDir,
		WorkerCount:      2,
		BlockSize:        10,
		QueueDepth:       2,
		HistoryCacheSize: 16,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := Run(ctx, cfg, strings.NewReader(input)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var buf strings.Builder
	if err := WriteCombinedSnapshot(cfg, &buf); err != nil {
		t.Fatalf("WriteCombinedSnapshot() error = %v", err)
	}

	if strings.Contains(buf.String(), "2,100.0000") {
		t.Errorf("client 2 should not have received the conflicting deposit, got:\n%s", buf.String())
	}
}
