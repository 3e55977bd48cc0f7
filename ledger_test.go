package main

import (
	"path/filepath"
	"testing"
)

func TestLedgerRecordsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notified_users.txt")

	ledger, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	if ledger.Seen("ana@x.com") {
		t.Fatalf("empty ledger must not report keys as seen")
	}
	if err := ledger.Record("ana@x.com"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !ledger.Seen("ana@x.com") {
		t.Fatalf("recorded key must be seen in the same run")
	}
	if err := ledger.Close(); err != nil {
		t.Fatalf("close ledger: %v", err)
	}

	reopened, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	defer reopened.Close()
	if !reopened.Seen("ana@x.com") {
		t.Fatalf("recorded key must survive reopen")
	}
	if reopened.Seen("luis@x.com") {
		t.Fatalf("unrecorded key must not be seen")
	}
}

func TestLedgerRecordIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.txt")
	ledger, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer ledger.Close()

	for i := 0; i < 3; i++ {
		if err := ledger.Record("ana@x.com"); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if len(ledger.seen) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(ledger.seen))
	}
}

func TestNilLedgerDisablesTracking(t *testing.T) {
	var ledger *Ledger
	if ledger.Seen("ana@x.com") {
		t.Fatalf("nil ledger must not report keys as seen")
	}
	if err := ledger.Record("ana@x.com"); err != nil {
		t.Fatalf("nil ledger record must be a no-op, got %v", err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatalf("nil ledger close must be a no-op, got %v", err)
	}
}
