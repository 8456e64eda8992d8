package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/moneykin1993/habit-app/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "habit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTokenSlot(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	token, err := s.ReadToken(ctx)
	if err != nil || token != "" {
		t.Fatalf("expected empty slot, got %q %v", token, err)
	}
	if err := s.WriteToken(ctx, "first"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.WriteToken(ctx, "second"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if token, _ := s.ReadToken(ctx); token != "second" {
		t.Fatalf("expected overwritten token, got %q", token)
	}
	if err := s.ClearToken(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if token, _ := s.ReadToken(ctx); token != "" {
		t.Fatalf("expected cleared token, got %q", token)
	}
}

func TestJournalUpsertKeepsOneRowPerDate(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	at := time.Date(2025, time.December, 3, 10, 0, 0, 0, time.UTC)

	entry := model.JournalEntry{
		StudentKey:   "stu-1",
		ReportDate:   "2025-12-03",
		PlanStatus:   model.PlanAchieved,
		StudyMinutes: 30,
		Grade:        model.GradeB,
		SubmittedAt:  at,
	}
	if err := s.RecordSubmission(ctx, entry); err != nil {
		t.Fatalf("record: %v", err)
	}
	entry.PlanStatus = model.PlanNotAchieved
	entry.Reason = "疲れていた"
	entry.StudyMinutes = 10
	entry.SubmittedAt = at.Add(time.Hour)
	if err := s.RecordSubmission(ctx, entry); err != nil {
		t.Fatalf("re-record: %v", err)
	}
	other := entry
	other.ReportDate = "2025-12-04"
	if err := s.RecordSubmission(ctx, other); err != nil {
		t.Fatalf("record other: %v", err)
	}

	entries, err := s.ListSubmissions(ctx, JournalFilter{StudentKey: "stu-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two rows, got %d", len(entries))
	}
	if entries[0].ReportDate != "2025-12-04" {
		t.Fatalf("expected newest first, got %s", entries[0].ReportDate)
	}
	got := entries[1]
	if got.PlanStatus != model.PlanNotAchieved || got.Reason != "疲れていた" || got.StudyMinutes != 10 || !got.SubmittedAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("expected updated row, got %+v", got)
	}

	limited, err := s.ListSubmissions(ctx, JournalFilter{Since: "2025-12-04", Limit: 5})
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected one row since 12-04, got %d %v", len(limited), err)
	}
}
