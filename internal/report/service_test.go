package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"psikoadmin/internal/auth"
	internaldb "psikoadmin/internal/db"
	"psikoadmin/internal/practice"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:report_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := internaldb.Open(context.Background(), internaldb.Config{Driver: internaldb.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewService(conn)
}

func finished(owner string, score int, at time.Time) practice.FinishedSession {
	return practice.FinishedSession{
		SessionID:  fmt.Sprintf("sess-%d", at.Unix()),
		Owner:      auth.Principal{Subject: owner, Role: auth.RoleViewer},
		Categories: []string{"verbal", "logical"},
		Summary: practice.Summary{
			TotalQuestions: 10,
			AnsweredCount:  10,
			CorrectCount:   score / 10,
			Score:          score,
			Tier:           practice.TierFor(score),
		},
		Reason:     practice.ReasonCompleted,
		FinishedAt: at,
	}
}

func TestRecordAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	for i, score := range []int{40, 90, 70} {
		if err := svc.RecordFinished(ctx, finished("user-1", score, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("RecordFinished: %v", err)
		}
	}
	if err := svc.RecordFinished(ctx, finished("user-2", 100, base)); err != nil {
		t.Fatalf("RecordFinished: %v", err)
	}

	items, err := svc.ListByOwner(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(items) != 2 || items[0].Score != 70 || items[1].Score != 90 {
		t.Fatalf("unexpected items %+v", items)
	}
	if len(items[0].Categories) != 2 || items[0].Tier != practice.TierGood || items[0].FinishReason != practice.ReasonCompleted {
		t.Fatalf("unexpected row %+v", items[0])
	}
	if !items[0].FinishedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("unexpected finished_at %v", items[0].FinishedAt)
	}

	sum, err := svc.SummaryByOwner(ctx, "user-1")
	if err != nil {
		t.Fatalf("SummaryByOwner: %v", err)
	}
	if sum.Sessions != 3 || sum.HighestScore != 90 || sum.LowestScore != 40 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.AverageScore < 66.6 || sum.AverageScore > 66.7 {
		t.Fatalf("unexpected average %v", sum.AverageScore)
	}

	empty, err := svc.SummaryByOwner(ctx, "nobody")
	if err != nil || empty.Sessions != 0 || empty.AverageScore != 0 {
		t.Fatalf("unexpected empty summary %+v %v", empty, err)
	}
}

func TestRecordRejectsMissingOwner(t *testing.T) {
	svc := &Service{db: (*sql.DB)(nil)}
	err := svc.RecordFinished(context.Background(), practice.FinishedSession{SessionID: "s"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.ListByOwner(context.Background(), " ", 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
