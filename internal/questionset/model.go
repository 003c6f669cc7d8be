package questionset

import (
	"strings"
	"time"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

const OptionCount = 4

// Option is one answer slot. Exactly one of Text or ImageURL is set.
type Option struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

func (o Option) IsText() bool {
	return strings.TrimSpace(o.Text) != ""
}

func (o Option) IsImage() bool {
	return strings.TrimSpace(o.ImageURL) != ""
}

type Question struct {
	ID            string              `json:"id,omitempty"`
	Text          string              `json:"text" validate:"required"`
	Options       [OptionCount]Option `json:"options"`
	CorrectAnswer string              `json:"correct_answer" validate:"required,oneof=1 2 3 4"`
	Explanation   string              `json:"explanation,omitempty"`
	Difficulty    string              `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

// EffectiveDifficulty falls back to the parent set when the question has none.
func (q Question) EffectiveDifficulty(setDifficulty string) string {
	if d := strings.TrimSpace(q.Difficulty); d != "" {
		return d
	}
	return setDifficulty
}

type QuestionSet struct {
	ID             string     `json:"id"`
	Category       string     `json:"category"`
	Subcategory    string     `json:"subcategory"`
	Topic          string     `json:"topic,omitempty"`
	Difficulty     string     `json:"difficulty"`
	SharedText     string     `json:"shared_text,omitempty"`
	SharedImageURL string     `json:"shared_image_url,omitempty"`
	Questions      []Question `json:"questions"`
	CreatedBy      string     `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type CreateSetInput struct {
	Category       string     `validate:"required,max=120"`
	Subcategory    string     `validate:"required,max=120"`
	Topic          string     `validate:"max=120"`
	Difficulty     string     `validate:"required,oneof=easy medium hard"`
	SharedText     string     `validate:"max=20000"`
	SharedImageURL string     `validate:"max=2048"`
	Questions      []Question `validate:"required,min=1,max=50,dive"`
	CreatedBy      string
}

// Patch holds a partial update. Nil fields are left unchanged.
type Patch struct {
	Category       *string    `json:"category,omitempty"`
	Subcategory    *string    `json:"subcategory,omitempty"`
	Topic          *string    `json:"topic,omitempty"`
	Difficulty     *string    `json:"difficulty,omitempty"`
	SharedText     *string    `json:"shared_text,omitempty"`
	SharedImageURL *string    `json:"shared_image_url,omitempty"`
	Questions      []Question `json:"questions,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Category == nil && p.Subcategory == nil && p.Topic == nil && p.Difficulty == nil &&
		p.SharedText == nil && p.SharedImageURL == nil && p.Questions == nil
}

// Apply returns the input that results from applying p on top of set.
func (p Patch) Apply(set QuestionSet) CreateSetInput {
	in := CreateSetInput{
		Category:       set.Category,
		Subcategory:    set.Subcategory,
		Topic:          set.Topic,
		Difficulty:     set.Difficulty,
		SharedText:     set.SharedText,
		SharedImageURL: set.SharedImageURL,
		Questions:      set.Questions,
		CreatedBy:      set.CreatedBy,
	}
	if p.Category != nil {
		in.Category = *p.Category
	}
	if p.Subcategory != nil {
		in.Subcategory = *p.Subcategory
	}
	if p.Topic != nil {
		in.Topic = *p.Topic
	}
	if p.Difficulty != nil {
		in.Difficulty = *p.Difficulty
	}
	if p.SharedText != nil {
		in.SharedText = *p.SharedText
	}
	if p.SharedImageURL != nil {
		in.SharedImageURL = *p.SharedImageURL
	}
	if p.Questions != nil {
		in.Questions = p.Questions
	}
	return in
}

// CandidateQuery is the coarse filter pushed down to the store. Filters are ANDed.
type CandidateQuery struct {
	Limit         int
	Cursor        string
	SortField     string
	SortDir       string
	Category      string
	Subcategories []string
	Difficulty    string
}

type Page struct {
	Items      []QuestionSet `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}
