package practice

import "math"

type Tier string

const (
	TierPerfect        Tier = "perfect"
	TierVeryGood       Tier = "very_good"
	TierGood           Tier = "good"
	TierKeepPracticing Tier = "keep_practicing"
)

var tierMessages = map[Tier]string{
	TierPerfect:        "Perfect score! Every answer was correct.",
	TierVeryGood:       "Very good! You have a strong grasp of this material.",
	TierGood:           "Good work, with some room to improve.",
	TierKeepPracticing: "Keep practicing. Review the explanations and try again.",
}

type ReviewItem struct {
	Position      int    `json:"position"`
	QuestionID    string `json:"question_id"`
	SetID         string `json:"set_id"`
	Text          string `json:"text"`
	Selected      int    `json:"selected,omitempty"`
	CorrectAnswer string `json:"correct_answer"`
	Answered      bool   `json:"answered"`
	IsCorrect     bool   `json:"is_correct"`
	Explanation   string `json:"explanation,omitempty"`
}

type Summary struct {
	TotalQuestions int          `json:"total_questions"`
	AnsweredCount  int          `json:"answered_count"`
	CorrectCount   int          `json:"correct_count"`
	Score          int          `json:"score"`
	Tier           Tier         `json:"tier"`
	Message        string       `json:"message"`
	Items          []ReviewItem `json:"items"`
}

// Summarize tallies the final state of a session. Unanswered questions count
// as wrong.
func Summarize(questions []PracticeQuestion, answers map[string]int) Summary {
	out := Summary{
		TotalQuestions: len(questions),
		Items:          make([]ReviewItem, 0, len(questions)),
	}
	for i, q := range questions {
		item := ReviewItem{
			Position:      i + 1,
			QuestionID:    q.ID,
			SetID:         q.SetID,
			Text:          q.Question.Text,
			CorrectAnswer: q.Question.CorrectAnswer,
			Explanation:   q.Question.Explanation,
		}
		if selected, ok := answers[q.ID]; ok {
			out.AnsweredCount++
			item.Answered = true
			item.Selected = selected
			item.IsCorrect = q.IsCorrect(selected)
			if item.IsCorrect {
				out.CorrectCount++
			}
		}
		out.Items = append(out.Items, item)
	}
	out.Score = Score(out.CorrectCount, out.TotalQuestions)
	out.Tier = TierFor(out.Score)
	out.Message = tierMessages[out.Tier]
	return out
}

func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// TierFor checks thresholds top-down; each lower bound is inclusive.
func TierFor(score int) Tier {
	switch {
	case score >= 100:
		return TierPerfect
	case score >= 80:
		return TierVeryGood
	case score >= 60:
		return TierGood
	default:
		return TierKeepPracticing
	}
}
