package practice

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"psikoadmin/internal/questionset"
)

func newLoadedSession(t *testing.T, cfg SessionConfig, sets ...questionset.QuestionSet) *Session {
	t.Helper()
	if cfg.ID == "" {
		cfg.ID = "sess-1"
	}
	cfg.Owner = tester
	s := NewSession(cfg)
	if err := s.Load(Flatten(sets)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSelectAnswerKeepsFirstChoice(t *testing.T) {
	s := newLoadedSession(t, SessionConfig{}, makeSet("a", "verbal", "analogies", "", "easy", 2))
	if err := s.SelectAnswer(2); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if err := s.SelectAnswer(1); err != nil {
		t.Fatalf("second SelectAnswer: %v", err)
	}
	st := s.Snapshot()
	if st.Current == nil || st.Current.Selected != 2 || st.AnsweredCount != 1 {
		t.Fatalf("expected first answer to stick, got %+v", st.Current)
	}
	if st.Current.IsCorrect == nil || *st.Current.IsCorrect {
		t.Fatalf("expected incorrect feedback")
	}
	if st.Current.CorrectAnswer != "1" {
		t.Fatalf("expected answer key after answering, got %q", st.Current.CorrectAnswer)
	}
}

func TestSelectAnswerRejectsBadOption(t *testing.T) {
	s := newLoadedSession(t, SessionConfig{}, makeSet("a", "verbal", "analogies", "", "easy", 1))
	for _, opt := range []int{0, 5, -1} {
		if err := s.SelectAnswer(opt); !errors.Is(err, ErrInvalidOption) {
			t.Fatalf("option %d: expected ErrInvalidOption, got %v", opt, err)
		}
	}
}

func TestSnapshotHidesAnswerKey(t *testing.T) {
	s := newLoadedSession(t, SessionConfig{}, makeSet("a", "verbal", "analogies", "", "easy", 1))
	st := s.Snapshot()
	if st.Status != StatusActive || st.Current == nil {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.Current.CorrectAnswer != "" || st.Current.Explanation != "" || st.Current.IsCorrect != nil {
		t.Fatalf("answer key leaked: %+v", st.Current)
	}
	if st.CanAdvance || st.CanRetreat || !st.IsLast || st.Current.Position != 1 {
		t.Fatalf("unexpected navigation flags %+v", st)
	}
	if st.RemainingSeconds != nil {
		t.Fatalf("untimed session should not report remaining time")
	}
}

func TestAdvanceAndRetreat(t *testing.T) {
	var finished int32
	s := newLoadedSession(t, SessionConfig{OnFinish: func(*Session) { atomic.AddInt32(&finished, 1) }},
		makeSet("a", "verbal", "analogies", "", "easy", 2),
		makeSet("b", "verbal", "analogies", "", "easy", 1),
	)

	if err := s.AdvanceIfAnswered(); !errors.Is(err, ErrAnswerRequired) {
		t.Fatalf("expected ErrAnswerRequired, got %v", err)
	}
	if err := s.Retreat(); err != nil {
		t.Fatalf("Retreat at start: %v", err)
	}
	if s.Snapshot().Index != 0 {
		t.Fatalf("retreat at start should be a no-op")
	}

	_ = s.SelectAnswer(1)
	if err := s.AdvanceIfAnswered(); err != nil {
		t.Fatalf("AdvanceIfAnswered: %v", err)
	}
	if err := s.Retreat(); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	_ = s.SelectAnswer(4)
	st := s.Snapshot()
	if st.Index != 0 || st.Current.Selected != 1 {
		t.Fatalf("retreat must keep the first answer, got %+v", st.Current)
	}

	if err := s.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("permissive Advance: %v", err)
	}
	if !s.Snapshot().IsLast {
		t.Fatalf("expected last question")
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("finishing Advance: %v", err)
	}

	select {
	case <-s.Done():
	default:
		t.Fatalf("expected Done to be closed")
	}
	if s.Status() != StatusFinished || s.Reason() != ReasonCompleted {
		t.Fatalf("unexpected status %s reason %s", s.Status(), s.Reason())
	}
	if err := s.SelectAnswer(1); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}
	if err := s.Advance(); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}
	if atomic.LoadInt32(&finished) != 1 {
		t.Fatalf("expected one finish callback, got %d", finished)
	}

	sum, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalQuestions != 3 || sum.AnsweredCount != 1 || sum.CorrectCount != 1 || sum.Score != 33 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestSummaryBeforeFinish(t *testing.T) {
	s := newLoadedSession(t, SessionConfig{}, makeSet("a", "verbal", "analogies", "", "easy", 1))
	if _, err := s.Summary(); !errors.Is(err, ErrSessionNotFinished) {
		t.Fatalf("expected ErrSessionNotFinished, got %v", err)
	}
}

func TestTimerExpiresSession(t *testing.T) {
	reasons := make(chan FinishReason, 1)
	s := newLoadedSession(t, SessionConfig{
		TimeLimit:    time.Minute,
		TickInterval: time.Millisecond,
		OnFinish:     func(s *Session) { reasons <- s.Reason() },
	}, makeSet("a", "verbal", "analogies", "", "easy", 3))

	_ = s.SelectAnswer(1)
	select {
	case got := <-reasons:
		if got != ReasonTimeExpired {
			t.Fatalf("expected time_expired, got %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timer did not expire")
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("expected Done to be closed")
	}
	st := s.Snapshot()
	if st.RemainingSeconds == nil || *st.RemainingSeconds != 0 || st.TimeLimitMinutes != 1 {
		t.Fatalf("unexpected timer state %+v", st)
	}
	sum, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalQuestions != 3 || sum.CorrectCount != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestCountdownPausedWhileLoading(t *testing.T) {
	s := NewSession(SessionConfig{ID: "x", TimeLimit: 2 * time.Second})
	if s.countdown() {
		t.Fatalf("loading session should keep its timer")
	}
	if s.Snapshot().RemainingSeconds == nil || *s.Snapshot().RemainingSeconds != 2 {
		t.Fatalf("countdown should not run while loading")
	}
	if err := s.Load(Flatten([]questionset.QuestionSet{makeSet("a", "verbal", "analogies", "", "easy", 1)})); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer s.Close()
	if s.countdown() {
		t.Fatalf("one second left, timer should continue")
	}
	if !s.countdown() {
		t.Fatalf("timer should stop at zero")
	}
	if s.Reason() != ReasonTimeExpired {
		t.Fatalf("expected time_expired, got %s", s.Reason())
	}
}

func TestEmptyAndFailedSessions(t *testing.T) {
	empty := NewSession(SessionConfig{ID: "e"})
	if err := empty.Load(nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if empty.Status() != StatusEmpty || empty.Reason() != ReasonEmpty {
		t.Fatalf("unexpected empty status %s", empty.Status())
	}
	if _, err := empty.CurrentSetID(); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	sum, err := empty.Summary()
	if err != nil || sum.Score != 0 {
		t.Fatalf("unexpected empty summary %+v %v", sum, err)
	}

	failed := NewSession(SessionConfig{ID: "f"})
	failed.Fail(ErrFetchFailed)
	st := failed.Snapshot()
	if st.Status != StatusFailed || st.Error == "" {
		t.Fatalf("unexpected failed state %+v", st)
	}
	if err := failed.Load(nil); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("expected late load to be rejected, got %v", err)
	}
}

func TestLoadAfterClose(t *testing.T) {
	s := NewSession(SessionConfig{ID: "c"})
	if err := s.SelectAnswer(1); !errors.Is(err, ErrSessionLoading) {
		t.Fatalf("expected ErrSessionLoading, got %v", err)
	}
	s.Close()
	s.Close()
	if s.Status() != StatusClosed {
		t.Fatalf("expected closed, got %s", s.Status())
	}
	if err := s.Load(Flatten([]questionset.QuestionSet{makeSet("a", "verbal", "analogies", "", "easy", 1)})); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestCloseStopsCountdown(t *testing.T) {
	reasons := make(chan FinishReason, 1)
	s := newLoadedSession(t, SessionConfig{
		TimeLimit:    time.Minute,
		TickInterval: time.Millisecond,
		OnFinish:     func(s *Session) { reasons <- s.Reason() },
	}, makeSet("a", "verbal", "analogies", "", "easy", 2))

	s.Close()
	before := s.Snapshot()
	select {
	case got := <-reasons:
		t.Fatalf("closed session finished with %s", got)
	case <-time.After(150 * time.Millisecond):
	}
	after := s.Snapshot()
	if after.Status != StatusClosed || after.Current != nil {
		t.Fatalf("unexpected closed state %+v", after)
	}
	if *after.RemainingSeconds != *before.RemainingSeconds || *after.RemainingSeconds == 0 {
		t.Fatalf("countdown kept running after close: %d -> %d", *before.RemainingSeconds, *after.RemainingSeconds)
	}
	select {
	case <-s.Done():
		t.Fatalf("Done should stay open for a closed session")
	default:
	}
}

func TestFinishStopsCountdown(t *testing.T) {
	reasons := make(chan FinishReason, 2)
	s := newLoadedSession(t, SessionConfig{
		TimeLimit:    10 * time.Minute,
		TickInterval: time.Millisecond,
		OnFinish:     func(s *Session) { reasons <- s.Reason() },
	}, makeSet("a", "verbal", "analogies", "", "easy", 1))

	if err := s.SelectAnswer(1); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if err := s.AdvanceIfAnswered(); err != nil {
		t.Fatalf("AdvanceIfAnswered: %v", err)
	}
	frozen := *s.Snapshot().RemainingSeconds
	time.Sleep(50 * time.Millisecond)

	st := s.Snapshot()
	if st.Status != StatusFinished || st.Reason != ReasonCompleted {
		t.Fatalf("unexpected state %+v", st)
	}
	if *st.RemainingSeconds != frozen || frozen == 0 {
		t.Fatalf("countdown kept running after finish: %d -> %d", frozen, *st.RemainingSeconds)
	}
	if len(reasons) != 1 || <-reasons != ReasonCompleted {
		t.Fatalf("expected a single completed finish")
	}

	s.Close()
	if s.Status() != StatusFinished {
		t.Fatalf("closing a finished session should keep it finished, got %s", s.Status())
	}
}

func TestMergeSetPreservesIdentity(t *testing.T) {
	s := newLoadedSession(t, SessionConfig{},
		makeSet("a", "verbal", "analogies", "", "easy", 3),
		makeSet("b", "verbal", "synonyms", "", "easy", 1),
	)
	_ = s.SelectAnswer(1)
	_ = s.Advance()
	_ = s.SelectAnswer(2)
	before := s.Snapshot().Current

	edited := makeSet("a", "verbal", "analogies", "", "medium", 3)
	edited.Questions[1].Text = "rewritten"
	edited.Questions[1].CorrectAnswer = "2"

	report := s.MergeSet(edited)
	if len(report.Replaced) != 3 || len(report.Stale) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	after := s.Snapshot().Current
	if after.ID != before.ID || after.Text != "rewritten" || after.Difficulty != "medium" {
		t.Fatalf("unexpected merged view %+v", after)
	}
	if after.Selected != 2 || after.IsCorrect == nil || !*after.IsCorrect {
		t.Fatalf("answer should survive the edit and be re-scored, got %+v", after)
	}
}

func TestMergeSetLeavesStaleEntries(t *testing.T) {
	s := newLoadedSession(t, SessionConfig{},
		makeSet("a", "verbal", "analogies", "", "easy", 3),
	)
	shrunk := makeSet("a", "verbal", "analogies", "", "easy", 1)
	shrunk.Questions[0].Text = "only one left"

	report := s.MergeSet(shrunk)
	if len(report.Replaced) != 1 || len(report.Stale) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Stale[0] != "a_1" || report.Stale[1] != "a_2" {
		t.Fatalf("unexpected stale ids %v", report.Stale)
	}
	if s.Snapshot().Total != 3 {
		t.Fatalf("working set must not shrink")
	}
	if !s.HasSet("a") || s.HasSet("zzz") {
		t.Fatalf("unexpected HasSet result")
	}
}
