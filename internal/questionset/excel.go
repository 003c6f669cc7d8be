package questionset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const exportMaxSets = 10000

var excelHeaders = []string{
	"set_ref", "category", "subcategory", "topic", "set_difficulty", "shared_text", "shared_image_url",
	"question_id", "question_text",
	"option_1", "option_1_image", "option_2", "option_2_image",
	"option_3", "option_3_image", "option_4", "option_4_image",
	"correct_answer", "explanation", "question_difficulty",
}

type ImportRowError struct {
	Row    int    `json:"row"`
	SetRef string `json:"set_ref,omitempty"`
	Error  string `json:"error"`
}

type ImportReport struct {
	TotalRows   int              `json:"total_rows"`
	CreatedSets int              `json:"created_sets"`
	SuccessRows int              `json:"success_rows"`
	FailedRows  int              `json:"failed_rows"`
	SetIDs      []string         `json:"set_ids"`
	Errors      []ImportRowError `json:"errors"`
}

// ExportSetsExcel writes one row per question. Set level columns repeat on
// every row of the same set so the sheet can be re-imported.
func (s *Service) ExportSetsExcel(ctx context.Context, q CandidateQuery) ([]byte, error) {
	q.Limit = MaxPageSize
	q.Cursor = ""
	sets := make([]QuestionSet, 0)
	for len(sets) < exportMaxSets {
		page, err := s.ListSets(ctx, q)
		if err != nil {
			return nil, err
		}
		sets = append(sets, page.Items...)
		if page.NextCursor == "" {
			break
		}
		q.Cursor = page.NextCursor
	}
	return renderSetsExcel(sets)
}

func renderSetsExcel(sets []QuestionSet) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, h := range excelHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, set := range sets {
		for _, q := range set.Questions {
			values := []any{
				set.ID, set.Category, set.Subcategory, set.Topic, set.Difficulty, set.SharedText, set.SharedImageURL,
				q.ID, q.Text,
			}
			for _, opt := range q.Options {
				values = append(values, opt.Text, opt.ImageURL)
			}
			values = append(values, q.CorrectAnswer, q.Explanation, q.Difficulty)
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			row++
		}
	}
	_ = f.SetColWidth(sheet, "A", "G", 20)
	_ = f.SetColWidth(sheet, "H", "T", 28)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

type importGroup struct {
	ref   string
	rows  []int
	input CreateSetInput
	err   error
}

// ImportSetsExcel creates one new set per distinct set_ref. Rows of a set must
// be contiguous; a failing row rejects its whole set.
func (s *Service) ImportSetsExcel(ctx context.Context, actor string, r io.Reader) (*ImportReport, error) {
	groups, total, err := parseSetsExcel(r)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{TotalRows: total, SetIDs: make([]string, 0), Errors: make([]ImportRowError, 0)}
	for _, g := range groups {
		if g.err == nil {
			g.input.CreatedBy = actor
			var set *QuestionSet
			set, g.err = s.CreateSet(ctx, g.input)
			if g.err == nil {
				report.CreatedSets++
				report.SuccessRows += len(g.rows)
				report.SetIDs = append(report.SetIDs, set.ID)
				continue
			}
		}
		report.FailedRows += len(g.rows)
		msg := g.err.Error()
		if !errors.Is(g.err, ErrInvalidInput) {
			msg = "internal error"
		}
		for _, n := range g.rows {
			report.Errors = append(report.Errors, ImportRowError{Row: n, SetRef: g.ref, Error: msg})
		}
	}
	return report, nil
}

func parseSetsExcel(r io.Reader) ([]*importGroup, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open excel: %v", ErrInvalidInput, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read rows: %v", ErrInvalidInput, err)
	}
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("%w: empty sheet", ErrInvalidInput)
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"set_ref", "category", "subcategory", "set_difficulty", "question_text", "correct_answer"} {
		if _, ok := idx[required]; !ok {
			return nil, 0, fmt.Errorf("%w: missing column %s", ErrInvalidInput, required)
		}
	}
	cell := func(rec []string, key string) string {
		i, ok := idx[key]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	groups := make([]*importGroup, 0)
	byRef := make(map[string]*importGroup)
	total := 0
	var current *importGroup
	for i, rec := range rows[1:] {
		rowNo := i + 2
		if isRowEmpty(rec) {
			continue
		}
		total++

		ref := cell(rec, "set_ref")
		if ref == "" {
			ref = fmt.Sprintf("row-%d", rowNo)
		}
		if current == nil || current.ref != ref {
			if prev, seen := byRef[ref]; seen {
				prev.rows = append(prev.rows, rowNo)
				if prev.err == nil {
					prev.err = fmt.Errorf("%w: rows of set %s are not contiguous", ErrInvalidInput, ref)
				}
				continue
			}
			current = &importGroup{
				ref: ref,
				input: CreateSetInput{
					Category:       cell(rec, "category"),
					Subcategory:    cell(rec, "subcategory"),
					Topic:          cell(rec, "topic"),
					Difficulty:     cell(rec, "set_difficulty"),
					SharedText:     cell(rec, "shared_text"),
					SharedImageURL: cell(rec, "shared_image_url"),
				},
			}
			byRef[ref] = current
			groups = append(groups, current)
		}

		q := Question{
			ID:            cell(rec, "question_id"),
			Text:          cell(rec, "question_text"),
			CorrectAnswer: cell(rec, "correct_answer"),
			Explanation:   cell(rec, "explanation"),
			Difficulty:    cell(rec, "question_difficulty"),
		}
		for n := 0; n < OptionCount; n++ {
			q.Options[n] = Option{
				Text:     cell(rec, fmt.Sprintf("option_%d", n+1)),
				ImageURL: cell(rec, fmt.Sprintf("option_%d_image", n+1)),
			}
		}
		current.rows = append(current.rows, rowNo)
		current.input.Questions = append(current.input.Questions, q)
	}
	return groups, total, nil
}

func isRowEmpty(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
