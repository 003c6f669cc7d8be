package questionset

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExportImportExcel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	in := validInput()
	in.Questions[0].Options[3] = Option{ImageURL: "/api/v1/assets/img/d.webp"}
	if _, err := svc.CreateSet(ctx, in); err != nil {
		t.Fatalf("seed: %v", err)
	}

	content, err := svc.ExportSetsExcel(ctx, CandidateQuery{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	report, err := svc.ImportSetsExcel(ctx, "importer", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.TotalRows != 2 || report.CreatedSets != 1 || report.SuccessRows != 2 || report.FailedRows != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	imported, err := svc.GetSet(ctx, report.SetIDs[0])
	if err != nil {
		t.Fatalf("get imported: %v", err)
	}
	if imported.CreatedBy != "importer" || imported.Topic != "linear equations" || imported.SharedText == "" {
		t.Fatalf("set fields lost in import: %+v", imported)
	}
	if imported.Questions[0].Options[3].ImageURL != "/api/v1/assets/img/d.webp" || imported.Questions[0].Options[3].Text != "" {
		t.Fatalf("image option lost in import: %+v", imported.Questions[0].Options[3])
	}
	if imported.Questions[1].ID != "q-b" || imported.Questions[1].Difficulty != "medium" {
		t.Fatalf("question fields lost in import: %+v", imported.Questions[1])
	}
}

func buildSheet(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, values := range rows {
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write sheet: %v", err)
	}
	return buf.Bytes()
}

func TestImportExcelReportsRowErrors(t *testing.T) {
	svc := newTestService(t)
	header := []any{"set_ref", "category", "subcategory", "set_difficulty", "question_text",
		"option_1", "option_2", "option_3", "option_4", "correct_answer"}
	content := buildSheet(t, [][]any{
		header,
		{"A", "verbal", "analogies", "easy", "Kucing : mengeong", "anjing", "sapi", "ayam", "bebek", "1"},
		{"A", "verbal", "analogies", "easy", "Burung : terbang", "ikan", "kuda", "ular", "semut", "1"},
		{"B", "verbal", "synonyms", "easy", "Cepat = ?", "lambat", "kilat", "laju", "diam", "9"},
		{},
		{"C", "quantitative", "algebra", "medium", "1+1", "2", "3", "4", "5", "1"},
		{"A", "verbal", "analogies", "easy", "late row", "a", "b", "c", "d", "1"},
	})

	report, err := svc.ImportSetsExcel(context.Background(), "importer", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.TotalRows != 5 {
		t.Fatalf("expected 5 non-empty rows, got %d", report.TotalRows)
	}
	if report.CreatedSets != 1 || report.SuccessRows != 1 {
		t.Fatalf("expected only set C to be created, got %+v", report)
	}
	if report.FailedRows != 4 || len(report.Errors) != 4 {
		t.Fatalf("expected 4 failed rows, got %+v", report)
	}
	for _, e := range report.Errors {
		if e.SetRef == "C" {
			t.Fatalf("set C should not report errors: %+v", e)
		}
		if e.SetRef == "A" && !strings.Contains(e.Error, "not contiguous") {
			t.Fatalf("expected contiguity error for set A, got %q", e.Error)
		}
	}
}

func TestImportExcelMissingColumn(t *testing.T) {
	svc := NewService(nil)
	content := buildSheet(t, [][]any{{"category", "subcategory"}})
	if _, err := svc.ImportSetsExcel(context.Background(), "x", bytes.NewReader(content)); err == nil {
		t.Fatalf("expected missing column error")
	}
}
