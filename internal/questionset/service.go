package questionset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrSetNotFound  = errors.New("question set not found")
)

type Service struct {
	db       *sql.DB
	validate *validator.Validate
	now      func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{
		db:       db,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *Service) CreateSet(ctx context.Context, in CreateSetInput) (*QuestionSet, error) {
	if err := s.normalizeAndValidate(&in); err != nil {
		return nil, err
	}
	questionsJSON, err := json.Marshal(in.Questions)
	if err != nil {
		return nil, fmt.Errorf("marshal questions: %w", err)
	}

	now := s.now().UTC()
	out := QuestionSet{
		ID:             uuid.NewString(),
		Category:       in.Category,
		Subcategory:    in.Subcategory,
		Topic:          in.Topic,
		Difficulty:     in.Difficulty,
		SharedText:     in.SharedText,
		SharedImageURL: in.SharedImageURL,
		Questions:      in.Questions,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      time.UnixMilli(now.UnixMilli()).UTC(),
		UpdatedAt:      time.UnixMilli(now.UnixMilli()).UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO question_sets (
			id, category, subcategory, topic, difficulty, shared_text, shared_image_url,
			questions_json, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, out.ID, out.Category, out.Subcategory, out.Topic, out.Difficulty, out.SharedText, out.SharedImageURL,
		string(questionsJSON), out.CreatedBy, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert question set: %w", err)
	}
	return &out, nil
}

func (s *Service) GetSet(ctx context.Context, id string) (*QuestionSet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, selectColumns+`
		FROM question_sets
		WHERE id = $1
	`, id)
	out, err := scanSet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("load question set: %w", err)
	}
	return out, nil
}

// FetchSetByID reads one set fresh from the store.
func (s *Service) FetchSetByID(ctx context.Context, id string) (*QuestionSet, error) {
	return s.GetSet(ctx, id)
}

func (s *Service) ListSets(ctx context.Context, q CandidateQuery) (*Page, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	query, args, err := buildListQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query question sets: %w", err)
	}
	defer rows.Close()

	items := make([]QuestionSet, 0)
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question set: %w", err)
		}
		items = append(items, *set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question sets: %w", err)
	}

	page := &Page{Items: items}
	if len(items) == q.Limit {
		page.NextCursor = cursorFor(items[len(items)-1], q.SortField)
	}
	return page, nil
}

// FetchCandidateSets returns one page of sets matching the coarse filters.
func (s *Service) FetchCandidateSets(ctx context.Context, q CandidateQuery) ([]QuestionSet, error) {
	page, err := s.ListSets(ctx, q)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (s *Service) UpdateSet(ctx context.Context, id string, patch Patch) (*QuestionSet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanSet(tx.QueryRowContext(ctx, selectColumns+`
		FROM question_sets
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("load question set: %w", err)
	}

	in := patch.Apply(*current)
	if err := s.normalizeAndValidate(&in); err != nil {
		return nil, err
	}
	questionsJSON, err := json.Marshal(in.Questions)
	if err != nil {
		return nil, fmt.Errorf("marshal questions: %w", err)
	}

	now := s.now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE question_sets
		SET category = $1, subcategory = $2, topic = $3, difficulty = $4,
			shared_text = $5, shared_image_url = $6, questions_json = $7, updated_at = $8
		WHERE id = $9
	`, in.Category, in.Subcategory, in.Topic, in.Difficulty, in.SharedText, in.SharedImageURL,
		string(questionsJSON), now.UnixMilli(), id); err != nil {
		return nil, fmt.Errorf("update question set: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	out := *current
	out.Category = in.Category
	out.Subcategory = in.Subcategory
	out.Topic = in.Topic
	out.Difficulty = in.Difficulty
	out.SharedText = in.SharedText
	out.SharedImageURL = in.SharedImageURL
	out.Questions = in.Questions
	out.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return &out, nil
}

// SaveSetEdits persists a partial edit made from inside a practice session.
func (s *Service) SaveSetEdits(ctx context.Context, id string, patch Patch) error {
	_, err := s.UpdateSet(ctx, id, patch)
	return err
}

func (s *Service) DeleteSet(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM question_sets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question set: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete question set: %w", err)
	}
	if n == 0 {
		return ErrSetNotFound
	}
	return nil
}

func (s *Service) normalizeAndValidate(in *CreateSetInput) error {
	in.Category = strings.TrimSpace(in.Category)
	in.Subcategory = strings.TrimSpace(in.Subcategory)
	in.Topic = strings.TrimSpace(in.Topic)
	in.Difficulty = strings.ToLower(strings.TrimSpace(in.Difficulty))
	in.SharedText = strings.TrimSpace(in.SharedText)
	in.SharedImageURL = strings.TrimSpace(in.SharedImageURL)
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)

	questions := make([]Question, len(in.Questions))
	for i, q := range in.Questions {
		q.ID = strings.TrimSpace(q.ID)
		q.Text = strings.TrimSpace(q.Text)
		q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
		q.Explanation = strings.TrimSpace(q.Explanation)
		q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty))
		for j := range q.Options {
			q.Options[j].Text = strings.TrimSpace(q.Options[j].Text)
			q.Options[j].ImageURL = strings.TrimSpace(q.Options[j].ImageURL)
		}
		questions[i] = q
	}
	in.Questions = questions

	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(err))
	}
	return validateOptions(in.Questions)
}

func validateOptions(questions []Question) error {
	for i, q := range questions {
		for j, opt := range q.Options {
			switch {
			case opt.IsText() && opt.IsImage():
				return fmt.Errorf("%w: question %d option %d must be text or image, not both", ErrInvalidInput, i+1, j+1)
			case !opt.IsText() && !opt.IsImage():
				return fmt.Errorf("%w: question %d option %d is empty", ErrInvalidInput, i+1, j+1)
			}
		}
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSet(row rowScanner) (*QuestionSet, error) {
	var (
		out           QuestionSet
		questionsJSON string
		createdAt     int64
		updatedAt     int64
	)
	if err := row.Scan(
		&out.ID,
		&out.Category,
		&out.Subcategory,
		&out.Topic,
		&out.Difficulty,
		&out.SharedText,
		&out.SharedImageURL,
		&questionsJSON,
		&out.CreatedBy,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questionsJSON), &out.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of %s: %w", out.ID, err)
	}
	out.CreatedAt = time.UnixMilli(createdAt).UTC()
	out.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &out, nil
}
