package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"psikoadmin/internal/practice"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

var ErrInvalidInput = errors.New("invalid input")

type Service struct {
	db    *sql.DB
	newID func() string
}

type Result struct {
	ID             string                `json:"id"`
	SessionID      string                `json:"session_id"`
	Owner          string                `json:"owner"`
	Categories     []string              `json:"categories"`
	TotalQuestions int                   `json:"total_questions"`
	AnsweredCount  int                   `json:"answered_count"`
	CorrectCount   int                   `json:"correct_count"`
	Score          int                   `json:"score"`
	Tier           practice.Tier         `json:"tier"`
	FinishReason   practice.FinishReason `json:"finish_reason"`
	FinishedAt     time.Time             `json:"finished_at"`
}

// OwnerSummary aggregates every recorded result of one user.
type OwnerSummary struct {
	Owner        string  `json:"owner"`
	Sessions     int     `json:"sessions"`
	AverageScore float64 `json:"average_score"`
	HighestScore int     `json:"highest_score"`
	LowestScore  int     `json:"lowest_score"`
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, newID: uuid.NewString}
}

// RecordFinished stores the outcome of a finished practice session.
func (s *Service) RecordFinished(ctx context.Context, fs practice.FinishedSession) error {
	owner := strings.TrimSpace(fs.Owner.Subject)
	if owner == "" || strings.TrimSpace(fs.SessionID) == "" {
		return ErrInvalidInput
	}
	finishedAt := fs.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO practice_results (
			id, session_id, owner, categories, total_questions, answered_count,
			correct_count, score, tier, finish_reason, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.newID(), fs.SessionID, owner, strings.Join(fs.Categories, ","),
		fs.Summary.TotalQuestions, fs.Summary.AnsweredCount, fs.Summary.CorrectCount,
		fs.Summary.Score, string(fs.Summary.Tier), string(fs.Reason), finishedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert practice result: %w", err)
	}
	return nil
}

// ListByOwner returns the newest results first.
func (s *Service) ListByOwner(ctx context.Context, owner string, limit int) ([]Result, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, owner, categories, total_questions, answered_count,
			correct_count, score, tier, finish_reason, finished_at
		FROM practice_results
		WHERE owner = $1
		ORDER BY finished_at DESC, id DESC
		LIMIT $2
	`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("query practice results: %w", err)
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var (
			r          Result
			categories string
			tier       string
			reason     string
			finishedAt int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Owner, &categories, &r.TotalQuestions, &r.AnsweredCount,
			&r.CorrectCount, &r.Score, &tier, &reason, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan practice result: %w", err)
		}
		r.Categories = splitCategories(categories)
		r.Tier = practice.Tier(tier)
		r.FinishReason = practice.FinishReason(reason)
		r.FinishedAt = time.UnixMilli(finishedAt).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate practice results: %w", err)
	}
	return out, nil
}

func (s *Service) SummaryByOwner(ctx context.Context, owner string) (*OwnerSummary, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrInvalidInput
	}
	out := &OwnerSummary{Owner: owner}
	var (
		avg             sql.NullFloat64
		highest, lowest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(score), MAX(score), MIN(score)
		FROM practice_results
		WHERE owner = $1
	`, owner).Scan(&out.Sessions, &avg, &highest, &lowest)
	if err != nil {
		return nil, fmt.Errorf("summarize practice results: %w", err)
	}
	out.AverageScore = avg.Float64
	out.HighestScore = int(highest.Int64)
	out.LowestScore = int(lowest.Int64)
	return out, nil
}

func splitCategories(raw string) []string {
	out := []string{}
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
