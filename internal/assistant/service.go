package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"psikoadmin/internal/questionset"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	systemPrompt   = "You write answer explanations for psychometric multiple-choice practice questions. " +
		"Explain in at most four sentences why the correct option is right and, briefly, why the others are not. " +
		"Do not restate the question. Plain text only."
	maxQuestionChars = 4000
)

var ErrInvalidInput = errors.New("invalid input")

const (
	SourceGemini        = "gemini"
	SourceLocal         = "local"
	SourceLocalFallback = "local_fallback"
)

type ServiceConfig struct {
	GeminiAPIKey string
	GeminiModel  string
	// BaseURL overrides the Gemini endpoint root.
	BaseURL    string
	HTTPClient *http.Client
}

type Service struct {
	geminiAPIKey string
	geminiModel  string
	baseURL      string
	client       *http.Client
}

type DraftRequest struct {
	Category    string               `json:"category"`
	Subcategory string               `json:"subcategory"`
	Topic       string               `json:"topic"`
	SharedText  string               `json:"shared_text"`
	Question    questionset.Question `json:"question"`
}

type Result struct {
	Explanation string `json:"explanation"`
	Source      string `json:"source"`
}

func NewService(cfg ServiceConfig) *Service {
	model := strings.TrimSpace(cfg.GeminiModel)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 18 * time.Second}
	}
	return &Service{
		geminiAPIKey: strings.TrimSpace(cfg.GeminiAPIKey),
		geminiModel:  model,
		baseURL:      base,
		client:       client,
	}
}

// DraftExplanation never fails on upstream errors; it falls back to a
// locally built explanation instead.
func (s *Service) DraftExplanation(ctx context.Context, req DraftRequest) (Result, error) {
	q := req.Question
	if strings.TrimSpace(q.Text) == "" {
		return Result{}, fmt.Errorf("%w: question text is required", ErrInvalidInput)
	}
	if len(q.Text)+len(req.SharedText) > maxQuestionChars {
		return Result{}, fmt.Errorf("%w: question too long", ErrInvalidInput)
	}
	if _, ok := correctIndex(q); !ok {
		return Result{}, fmt.Errorf("%w: correct_answer must be 1..4", ErrInvalidInput)
	}

	if s.geminiAPIKey == "" {
		return Result{Explanation: localExplanation(req), Source: SourceLocal}, nil
	}
	text, err := s.generateWithGemini(ctx, buildPrompt(req))
	if err != nil {
		log.Printf("assistant: gemini failed model=%s err=%v", s.geminiModel, err)
		return Result{Explanation: localExplanation(req), Source: SourceLocalFallback}, nil
	}
	return Result{Explanation: text, Source: SourceGemini}, nil
}

func buildPrompt(req DraftRequest) string {
	var b strings.Builder
	if scope := strings.Trim(strings.Join([]string{req.Category, req.Subcategory, req.Topic}, " / "), " /"); scope != "" {
		fmt.Fprintf(&b, "Subject: %s\n", scope)
	}
	if t := strings.TrimSpace(req.SharedText); t != "" {
		fmt.Fprintf(&b, "Passage:\n%s\n", t)
	}
	fmt.Fprintf(&b, "Question: %s\n", strings.TrimSpace(req.Question.Text))
	for i, opt := range req.Question.Options {
		fmt.Fprintf(&b, "Option %d: %s\n", i+1, optionLabel(opt))
	}
	fmt.Fprintf(&b, "Correct option: %s\n", strings.TrimSpace(req.Question.CorrectAnswer))
	return b.String()
}

func (s *Service) generateWithGemini(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"contents": []map[string]any{
			{
				"parts": []map[string]string{
					{"text": prompt},
				},
			},
		},
		"systemInstruction": map[string]any{
			"parts": []map[string]string{
				{"text": systemPrompt},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     0.3,
			"maxOutputTokens": 400,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, s.geminiModel, s.geminiAPIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	var out geminiGenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	reply := strings.TrimSpace(out.firstText())
	if reply == "" {
		return "", fmt.Errorf("empty gemini response")
	}
	return reply, nil
}

func localExplanation(req DraftRequest) string {
	idx, _ := correctIndex(req.Question)
	opt := req.Question.Options[idx-1]
	var b strings.Builder
	if opt.IsImage() && !opt.IsText() {
		fmt.Fprintf(&b, "The correct answer is option %d (the image option).", idx)
	} else {
		fmt.Fprintf(&b, "The correct answer is option %d: %s.", idx, strings.TrimSuffix(strings.TrimSpace(opt.Text), "."))
	}
	if strings.TrimSpace(req.SharedText) != "" {
		b.WriteString(" Check it against the passage before moving on.")
	}
	if t := strings.TrimSpace(req.Topic); t != "" {
		fmt.Fprintf(&b, " Review the %s material if this one was unclear.", t)
	}
	return b.String()
}

func correctIndex(q questionset.Question) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(q.CorrectAnswer))
	if err != nil || n < 1 || n > questionset.OptionCount {
		return 0, false
	}
	return n, true
}

func optionLabel(o questionset.Option) string {
	if o.IsText() {
		return strings.TrimSpace(o.Text)
	}
	if o.IsImage() {
		return "[image]"
	}
	return "(empty)"
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r geminiGenerateResponse) firstText() string {
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				return p.Text
			}
		}
	}
	return ""
}
