package practice

import (
	"fmt"
	"strconv"
	"strings"

	"psikoadmin/internal/questionset"
)

// PracticeQuestion is one question of a set, with session-local identity and
// the parent set's shared fields copied down.
type PracticeQuestion struct {
	ID             string               `json:"id"`
	SetID          string               `json:"set_id"`
	OriginalIndex  int                  `json:"original_index"`
	Category       string               `json:"category"`
	Subcategory    string               `json:"subcategory"`
	Topic          string               `json:"topic,omitempty"`
	Difficulty     string               `json:"difficulty"`
	SharedText     string               `json:"shared_text,omitempty"`
	SharedImageURL string               `json:"shared_image_url,omitempty"`
	Question       questionset.Question `json:"question"`
}

// IsCorrect reports whether a 1-based option matches the answer key.
func (pq PracticeQuestion) IsCorrect(option int) bool {
	return strconv.Itoa(option) == strings.TrimSpace(pq.Question.CorrectAnswer)
}

func syntheticID(setID string, index int) string {
	return fmt.Sprintf("%s_%d", setID, index)
}

// practiceID keeps the question's own id unless it is missing or already
// used in this working set.
func practiceID(own, setID string, index int, seen map[string]struct{}) string {
	if own = strings.TrimSpace(own); own != "" {
		if _, taken := seen[own]; !taken {
			return own
		}
	}
	id := syntheticID(setID, index)
	for n := 2; ; n++ {
		if _, taken := seen[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s_%d_%d", setID, index, n)
	}
}

func decorate(set questionset.QuestionSet, index int, id string) PracticeQuestion {
	q := set.Questions[index]
	return PracticeQuestion{
		ID:             id,
		SetID:          set.ID,
		OriginalIndex:  index,
		Category:       set.Category,
		Subcategory:    set.Subcategory,
		Topic:          set.Topic,
		Difficulty:     q.EffectiveDifficulty(set.Difficulty),
		SharedText:     set.SharedText,
		SharedImageURL: set.SharedImageURL,
		Question:       q,
	}
}

// Flatten emits the questions of each set in set order, keeping the
// within-set order.
func Flatten(sets []questionset.QuestionSet) []PracticeQuestion {
	total := 0
	for _, set := range sets {
		total += len(set.Questions)
	}
	out := make([]PracticeQuestion, 0, total)
	seen := make(map[string]struct{}, total)
	for _, set := range sets {
		for i := range set.Questions {
			id := practiceID(set.Questions[i].ID, set.ID, i, seen)
			seen[id] = struct{}{}
			out = append(out, decorate(set, i, id))
		}
	}
	return out
}
