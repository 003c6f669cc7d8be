package questionset

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

const selectColumns = `SELECT id, category, subcategory, topic, difficulty, shared_text, shared_image_url,
	questions_json, created_by, created_at, updated_at`

var sortColumns = map[string]string{
	"created_at": "created_at",
	"createdAt":  "created_at",
	"updated_at": "updated_at",
	"updatedAt":  "updated_at",
}

func normalizeQuery(q CandidateQuery) (CandidateQuery, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}

	field := strings.TrimSpace(q.SortField)
	if field == "" {
		field = "created_at"
	}
	col, ok := sortColumns[field]
	if !ok {
		return q, fmt.Errorf("%w: unsupported sort field %q", ErrInvalidInput, q.SortField)
	}
	q.SortField = col

	switch strings.ToLower(strings.TrimSpace(q.SortDir)) {
	case "", "desc":
		q.SortDir = "desc"
	case "asc":
		q.SortDir = "asc"
	default:
		return q, fmt.Errorf("%w: sort direction must be asc or desc", ErrInvalidInput)
	}

	q.Category = strings.TrimSpace(q.Category)
	q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty))
	subs := make([]string, 0, len(q.Subcategories))
	seen := make(map[string]struct{}, len(q.Subcategories))
	for _, s := range q.Subcategories {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		subs = append(subs, s)
	}
	q.Subcategories = subs
	return q, nil
}

func buildListQuery(q CandidateQuery) (string, []any, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return "", nil, err
	}

	args := make([]any, 0, 8)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	var sb strings.Builder
	sb.WriteString(selectColumns)
	sb.WriteString("\n\tFROM question_sets\n\tWHERE 1=1")
	if q.Category != "" {
		sb.WriteString(" AND category = " + next(q.Category))
	}
	if len(q.Subcategories) > 0 {
		ph := make([]string, 0, len(q.Subcategories))
		for _, s := range q.Subcategories {
			ph = append(ph, next(s))
		}
		sb.WriteString(" AND subcategory IN (" + strings.Join(ph, ", ") + ")")
	}
	if q.Difficulty != "" {
		sb.WriteString(" AND difficulty = " + next(q.Difficulty))
	}
	if q.Cursor != "" {
		at, id, err := decodeCursor(q.Cursor)
		if err != nil {
			return "", nil, err
		}
		op := "<"
		if q.SortDir == "asc" {
			op = ">"
		}
		sb.WriteString(fmt.Sprintf(" AND (%s %s %s OR (%s = %s AND id %s %s))",
			q.SortField, op, next(at), q.SortField, next(at), op, next(id)))
	}
	dir := strings.ToUpper(q.SortDir)
	sb.WriteString(fmt.Sprintf("\n\tORDER BY %s %s, id %s\n\tLIMIT %s", q.SortField, dir, dir, next(q.Limit)))
	return sb.String(), args, nil
}

func encodeCursor(at int64, id string) string {
	raw := strconv.FormatInt(at, 10) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(c string) (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(c))
	if err != nil {
		return 0, "", fmt.Errorf("%w: invalid cursor", ErrInvalidInput)
	}
	atRaw, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return 0, "", fmt.Errorf("%w: invalid cursor", ErrInvalidInput)
	}
	at, err := strconv.ParseInt(atRaw, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: invalid cursor", ErrInvalidInput)
	}
	return at, id, nil
}

func cursorFor(set QuestionSet, sortField string) string {
	at := set.CreatedAt.UnixMilli()
	if sortField == "updated_at" {
		at = set.UpdatedAt.UnixMilli()
	}
	return encodeCursor(at, set.ID)
}
