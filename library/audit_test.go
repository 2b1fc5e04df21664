package library

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAuditLoggerAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger := NewAuditLogger(path)

	if err := logger.Log(LoanEntity, "borrow", map[string]string{"user": "201", "isbn": "b1"}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := logger.Log(FineEntity, "pay", map[string]string{"user": "201"}); err != nil {
		t.Fatalf("log: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad log line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Entity != LoanEntity || entries[0].Action != "borrow" {
		t.Errorf("entry 0 = %s/%s, want loan/borrow", entries[0].Entity, entries[0].Action)
	}
	if entries[1].Entity != FineEntity || entries[1].Action != "pay" {
		t.Errorf("entry 1 = %s/%s, want fine/pay", entries[1].Entity, entries[1].Action)
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Error("entries must carry distinct non-empty ids")
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("entry timestamp not set")
	}
}

func TestNilAuditLoggerDiscards(t *testing.T) {
	var logger *AuditLogger
	if err := logger.Log(BookEntity, "add", nil); err != nil {
		t.Fatalf("nil logger: %v", err)
	}
}
