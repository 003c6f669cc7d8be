package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidInput = errors.New("invalid input")

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Catalog(ctx context.Context) (Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, subcategory, topic
		FROM taxonomy_topics
		ORDER BY category ASC, subcategory ASC, position ASC, topic ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list taxonomy: %w", err)
	}
	defer rows.Close()

	out := make(Catalog, 0)
	for rows.Next() {
		var category, subcategory, topic string
		if err := rows.Scan(&category, &subcategory, &topic); err != nil {
			return nil, fmt.Errorf("scan taxonomy: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].Name != category {
			out = append(out, Category{Name: category, Subcategories: make([]Subcategory, 0)})
		}
		cat := &out[len(out)-1]
		if len(cat.Subcategories) == 0 || cat.Subcategories[len(cat.Subcategories)-1].Name != subcategory {
			cat.Subcategories = append(cat.Subcategories, Subcategory{Name: subcategory, Topics: make([]string, 0)})
		}
		sub := &cat.Subcategories[len(cat.Subcategories)-1]
		sub.Topics = append(sub.Topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate taxonomy: %w", err)
	}
	return out, nil
}

// TopicsFor returns the valid topics of a sub-category, empty when it has no
// topic taxonomy.
func (s *Service) TopicsFor(ctx context.Context, subcategory string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic
		FROM taxonomy_topics
		WHERE subcategory = $1
		ORDER BY position ASC, topic ASC
	`, strings.TrimSpace(subcategory))
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		out = append(out, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return out, nil
}

func (s *Service) ReplaceTopics(ctx context.Context, category, subcategory string, topics []string) ([]string, error) {
	category = strings.TrimSpace(category)
	subcategory = strings.TrimSpace(subcategory)
	if category == "" || subcategory == "" {
		return nil, fmt.Errorf("%w: category and subcategory are required", ErrInvalidInput)
	}
	clean := normalizeTopics(topics)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM taxonomy_topics WHERE subcategory = $1`, subcategory); err != nil {
		return nil, fmt.Errorf("clear topics: %w", err)
	}
	for i, topic := range clean {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO taxonomy_topics (category, subcategory, topic, position)
			VALUES ($1, $2, $3, $4)
		`, category, subcategory, topic, i); err != nil {
			return nil, fmt.Errorf("insert topic: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return clean, nil
}

// SeedDefaults loads catalog into an empty table. A populated table is left alone.
func (s *Service) SeedDefaults(ctx context.Context, catalog Catalog) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM taxonomy_topics`).Scan(&n); err != nil {
		return fmt.Errorf("count topics: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, cat := range catalog {
		for _, sub := range cat.Subcategories {
			if len(sub.Topics) == 0 {
				continue
			}
			if _, err := s.ReplaceTopics(ctx, cat.Name, sub.Name, sub.Topics); err != nil {
				return err
			}
		}
	}
	return nil
}

func normalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
