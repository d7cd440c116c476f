package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListFlushes(t *testing.T) {
	s := newTestService(t)

	if err := s.RecordFlush("f1", "C001:1700000000.000100", 3, "completed", "https://notion.example/p1"); err != nil {
		t.Fatalf("record flush: %v", err)
	}
	if err := s.RecordFlush("f2", "C001:*", 0, "skipped_empty", ""); err != nil {
		t.Fatalf("record flush: %v", err)
	}

	records, err := s.RecentFlushes(10)
	if err != nil {
		t.Fatalf("list flushes: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Newest first.
	if records[0].FlushID != "f2" || records[1].FlushID != "f1" {
		t.Fatalf("unexpected order: %s, %s", records[0].FlushID, records[1].FlushID)
	}
	if records[1].Fragments != 3 || records[1].Status != "completed" {
		t.Fatalf("unexpected record %+v", records[1])
	}
}

func TestRecentFlushesLimit(t *testing.T) {
	s := newTestService(t)
	for i := 0; i < 5; i++ {
		if err := s.RecordFlush("f", "C001:*", 1, "completed", ""); err != nil {
			t.Fatalf("record flush: %v", err)
		}
	}
	records, err := s.RecentFlushes(2)
	if err != nil {
		t.Fatalf("list flushes: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(records))
	}
}

func TestRecordBackfillRun(t *testing.T) {
	s := newTestService(t)
	err := s.RecordBackfillRun(BackfillRun{
		Channel:    "C002",
		DryRun:     true,
		Scanned:    120,
		ReportLike: 8,
		Written:    0,
		StartedAt:  time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("record backfill run: %v", err)
	}
}
