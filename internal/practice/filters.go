package practice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Limit caps the number of practice questions. The zero value means all.
type Limit int

const LimitAll Limit = 0

func (l Limit) IsAll() bool {
	return l <= 0
}

func (l Limit) MarshalJSON() ([]byte, error) {
	if l.IsAll() {
		return []byte(`"all"`), nil
	}
	return []byte(strconv.Itoa(int(l))), nil
}

// UnmarshalJSON accepts a positive number, a numeric string, "all" or null.
func (l *Limit) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = LimitAll
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if strings.EqualFold(raw, "all") || raw == "" {
			*l = LimitAll
			return nil
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fmt.Errorf("limit must be a positive integer or \"all\"")
	}
	*l = Limit(n)
	return nil
}

// ExamFilters is the scope of one practice session. Values within a field
// are ORed, fields are ANDed.
type ExamFilters struct {
	Categories    []string `json:"categories"`
	Subcategories []string `json:"subcategories"`
	Topics        []string `json:"topics"`
	Difficulties  []string `json:"difficulties"`
	Limit         Limit    `json:"limit"`
}

func (f ExamFilters) normalized() ExamFilters {
	return ExamFilters{
		Categories:    uniqueTrimmed(f.Categories, false),
		Subcategories: uniqueTrimmed(f.Subcategories, false),
		Topics:        uniqueTrimmed(f.Topics, false),
		Difficulties:  uniqueTrimmed(f.Difficulties, true),
		Limit:         f.Limit,
	}
}

func (f ExamFilters) Validate() error {
	if len(uniqueTrimmed(f.Categories, false)) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidInput)
	}
	return nil
}

func uniqueTrimmed(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
