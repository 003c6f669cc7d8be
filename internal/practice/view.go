package practice

import (
	"time"

	"psikoadmin/internal/questionset"
)

// QuestionView is a question as shown to the user. The answer key and the
// explanation stay hidden until the question is answered.
type QuestionView struct {
	ID             string                                      `json:"id"`
	SetID          string                                      `json:"set_id"`
	Position       int                                         `json:"position"`
	Category       string                                      `json:"category"`
	Subcategory    string                                      `json:"subcategory"`
	Topic          string                                      `json:"topic,omitempty"`
	Difficulty     string                                      `json:"difficulty"`
	SharedText     string                                      `json:"shared_text,omitempty"`
	SharedImageURL string                                      `json:"shared_image_url,omitempty"`
	Text           string                                      `json:"text"`
	Options        [questionset.OptionCount]questionset.Option `json:"options"`
	Selected       int                                         `json:"selected,omitempty"`
	Answered       bool                                        `json:"answered"`
	IsCorrect      *bool                                       `json:"is_correct,omitempty"`
	CorrectAnswer  string                                      `json:"correct_answer,omitempty"`
	Explanation    string                                      `json:"explanation,omitempty"`
}

type State struct {
	ID               string        `json:"id"`
	Status           Status        `json:"status"`
	Reason           FinishReason  `json:"finish_reason,omitempty"`
	Error            string        `json:"error,omitempty"`
	Filters          ExamFilters   `json:"filters"`
	Index            int           `json:"index"`
	Total            int           `json:"total"`
	AnsweredCount    int           `json:"answered_count"`
	CanRetreat       bool          `json:"can_retreat"`
	CanAdvance       bool          `json:"can_advance"`
	IsLast           bool          `json:"is_last"`
	TimeLimitMinutes int           `json:"time_limit_minutes,omitempty"`
	RemainingSeconds *int          `json:"remaining_seconds,omitempty"`
	Current          *QuestionView `json:"current,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	FinishedAt       *time.Time    `json:"finished_at,omitempty"`
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:            s.id,
		Status:        s.statusLocked(),
		Reason:        s.reason,
		Filters:       s.filters,
		Index:         s.index,
		Total:         len(s.questions),
		AnsweredCount: len(s.answers),
		CreatedAt:     s.createdAt,
	}
	if s.failure != nil {
		st.Error = s.failure.Error()
	}
	if s.timeLimit > 0 {
		st.TimeLimitMinutes = int(s.timeLimit / time.Minute)
		secs := int(s.remaining / time.Second)
		st.RemainingSeconds = &secs
	}
	if !s.finishedAt.IsZero() {
		at := s.finishedAt
		st.FinishedAt = &at
	}
	if st.Status != StatusActive {
		return st
	}

	q := s.questions[s.index]
	view := viewOf(q, s.index)
	if selected, ok := s.answers[q.ID]; ok {
		correct := q.IsCorrect(selected)
		view.Selected = selected
		view.Answered = true
		view.IsCorrect = &correct
		view.CorrectAnswer = q.Question.CorrectAnswer
		view.Explanation = q.Question.Explanation
	}
	st.Current = &view
	st.CanRetreat = s.index > 0
	st.CanAdvance = view.Answered
	st.IsLast = s.index == len(s.questions)-1
	return st
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	switch {
	case s.closed && !s.finished:
		return StatusClosed
	case s.loading:
		return StatusLoading
	case s.reason == ReasonFetchFailed:
		return StatusFailed
	case s.reason == ReasonEmpty:
		return StatusEmpty
	case s.finished:
		return StatusFinished
	}
	return StatusActive
}

func viewOf(q PracticeQuestion, index int) QuestionView {
	return QuestionView{
		ID:             q.ID,
		SetID:          q.SetID,
		Position:       index + 1,
		Category:       q.Category,
		Subcategory:    q.Subcategory,
		Topic:          q.Topic,
		Difficulty:     q.Difficulty,
		SharedText:     q.SharedText,
		SharedImageURL: q.SharedImageURL,
		Text:           q.Question.Text,
		Options:        q.Question.Options,
	}
}
