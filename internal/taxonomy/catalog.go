package taxonomy

import (
	"context"
	"strings"
)

type Subcategory struct {
	Name   string   `json:"name"`
	Topics []string `json:"topics"`
}

type Category struct {
	Name          string        `json:"name"`
	Subcategories []Subcategory `json:"subcategories"`
}

// Catalog is an in-memory taxonomy. It also serves as a topic source for
// offline runs and tests.
type Catalog []Category

var DefaultCatalog = Catalog{
	{Name: "quantitative", Subcategories: []Subcategory{
		{Name: "algebra", Topics: []string{"linear equations", "quadratic equations", "inequalities"}},
		{Name: "arithmetic", Topics: []string{"fractions", "percentages", "ratios"}},
		{Name: "geometry", Topics: []string{"angles", "areas", "volumes"}},
		{Name: "data interpretation", Topics: []string{"tables", "charts"}},
	}},
	{Name: "verbal", Subcategories: []Subcategory{
		{Name: "analogies"},
		{Name: "reading comprehension", Topics: []string{"main idea", "inference", "vocabulary in context"}},
		{Name: "synonyms"},
		{Name: "antonyms"},
	}},
	{Name: "logical", Subcategories: []Subcategory{
		{Name: "series", Topics: []string{"number series", "letter series", "figure series"}},
		{Name: "deduction", Topics: []string{"syllogisms", "conditional statements"}},
	}},
}

func (c Catalog) TopicsFor(_ context.Context, subcategory string) ([]string, error) {
	subcategory = strings.TrimSpace(subcategory)
	for _, cat := range c {
		for _, sub := range cat.Subcategories {
			if sub.Name == subcategory {
				return append([]string(nil), sub.Topics...), nil
			}
		}
	}
	return nil, nil
}

func (c Catalog) Subcategory(category, name string) (*Subcategory, bool) {
	for i := range c {
		if c[i].Name != category {
			continue
		}
		for j := range c[i].Subcategories {
			if c[i].Subcategories[j].Name == name {
				return &c[i].Subcategories[j], true
			}
		}
	}
	return nil, false
}
