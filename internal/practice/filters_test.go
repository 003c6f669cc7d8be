package practice

import (
	"encoding/json"
	"testing"
)

func TestLimitJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    Limit
		wantErr bool
	}{
		{`5`, 5, false},
		{`"12"`, 12, false},
		{`"all"`, LimitAll, false},
		{`"ALL"`, LimitAll, false},
		{`null`, LimitAll, false},
		{`0`, 0, true},
		{`-3`, 0, true},
		{`"ten"`, 0, true},
	}
	for _, tc := range tests {
		var got Limit
		err := json.Unmarshal([]byte(tc.in), &got)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.in, tc.want, got)
		}
	}

	b, _ := json.Marshal(ExamFilters{Categories: []string{"verbal"}})
	var raw map[string]interface{}
	_ = json.Unmarshal(b, &raw)
	if raw["limit"] != "all" {
		t.Fatalf("expected limit all, got %v", raw["limit"])
	}
	b, _ = json.Marshal(Limit(10))
	if string(b) != "10" {
		t.Fatalf("expected 10, got %s", b)
	}
}

func TestFiltersNormalized(t *testing.T) {
	f := ExamFilters{
		Categories:   []string{" verbal", "verbal", ""},
		Difficulties: []string{"Easy", "easy ", "HARD"},
		Topics:       []string{"synonyms", " synonyms "},
	}.normalized()
	if len(f.Categories) != 1 || f.Categories[0] != "verbal" {
		t.Fatalf("unexpected categories %v", f.Categories)
	}
	if len(f.Difficulties) != 2 || f.Difficulties[0] != "easy" || f.Difficulties[1] != "hard" {
		t.Fatalf("unexpected difficulties %v", f.Difficulties)
	}
	if len(f.Topics) != 1 {
		t.Fatalf("unexpected topics %v", f.Topics)
	}
}
