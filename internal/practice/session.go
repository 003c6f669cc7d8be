package practice

import (
	"sync"
	"time"

	"psikoadmin/internal/auth"
	"psikoadmin/internal/questionset"
)

type Status string

const (
	StatusLoading  Status = "loading"
	StatusEmpty    Status = "empty"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	// StatusClosed is a session torn down before it finished.
	StatusClosed   Status = "closed"
)

type FinishReason string

const (
	ReasonCompleted   FinishReason = "completed"
	ReasonTimeExpired FinishReason = "time_expired"
	ReasonEmpty       FinishReason = "empty"
	ReasonFetchFailed FinishReason = "fetch_failed"
)

const DefaultTickInterval = time.Second

type SessionConfig struct {
	ID        string
	Owner     auth.Principal
	Filters   ExamFilters
	TimeLimit time.Duration
	// TickInterval is the wall-clock period of one countdown second.
	TickInterval time.Duration
	Now          func() time.Time
	// OnFinish runs once, outside the session lock, when the session finishes.
	OnFinish func(*Session)
}

// Session is the runner state of one practice session. All methods are safe
// for concurrent use.
type Session struct {
	id        string
	owner     auth.Principal
	filters   ExamFilters
	timeLimit time.Duration
	tick      time.Duration
	now       func() time.Time
	onFinish  func(*Session)
	createdAt time.Time

	mu         sync.Mutex
	questions  []PracticeQuestion
	answers    map[string]int
	index      int
	loading    bool
	finished   bool
	closed     bool
	reason     FinishReason
	failure    error
	remaining  time.Duration
	finishedAt time.Time
	stop       chan struct{}
	done       chan struct{}
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.TimeLimit < 0 {
		cfg.TimeLimit = 0
	}
	return &Session{
		id:        cfg.ID,
		owner:     cfg.Owner,
		filters:   cfg.Filters,
		timeLimit: cfg.TimeLimit,
		tick:      cfg.TickInterval,
		now:       cfg.Now,
		onFinish:  cfg.OnFinish,
		createdAt: cfg.Now(),
		answers:   make(map[string]int),
		loading:   true,
		remaining: cfg.TimeLimit,
		done:      make(chan struct{}),
	}
}

func (s *Session) ID() string            { return s.id }
func (s *Session) Owner() auth.Principal { return s.owner }
func (s *Session) Filters() ExamFilters  { return s.filters }

// Done is closed when the session finishes for any reason.
func (s *Session) Done() <-chan struct{} { return s.done }

// Load installs the resolved working set and starts the countdown. An empty
// working set finishes the session immediately.
func (s *Session) Load(questions []PracticeQuestion) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.loading {
		s.mu.Unlock()
		return ErrSessionFinished
	}
	s.questions = questions
	s.loading = false
	if len(questions) == 0 {
		s.finishLocked(ReasonEmpty)
		s.mu.Unlock()
		s.fireFinish()
		return nil
	}
	if s.timeLimit > 0 {
		s.stop = make(chan struct{})
		go s.runTimer(s.stop)
	}
	s.mu.Unlock()
	return nil
}

// Fail ends a loading session whose working set could not be resolved.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	if s.closed || !s.loading {
		s.mu.Unlock()
		return
	}
	s.loading = false
	s.failure = err
	s.finishLocked(ReasonFetchFailed)
	s.mu.Unlock()
	s.fireFinish()
}

// SelectAnswer records a 1-based option for the current question. Only the
// first selection per question is kept.
func (s *Session) SelectAnswer(option int) error {
	if option < 1 || option > questionset.OptionCount {
		return ErrInvalidOption
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.runnableLocked(); err != nil {
		return err
	}
	id := s.questions[s.index].ID
	if _, answered := s.answers[id]; answered {
		return nil
	}
	s.answers[id] = option
	return nil
}

// Advance moves forward without checking for an answer. On the last
// question it finishes the session.
func (s *Session) Advance() error {
	return s.advance(false)
}

// AdvanceIfAnswered is Advance gated on the current question having an
// answer.
func (s *Session) AdvanceIfAnswered() error {
	return s.advance(true)
}

func (s *Session) advance(requireAnswer bool) error {
	s.mu.Lock()
	if err := s.runnableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if requireAnswer {
		if _, ok := s.answers[s.questions[s.index].ID]; !ok {
			s.mu.Unlock()
			return ErrAnswerRequired
		}
	}
	if s.index < len(s.questions)-1 {
		s.index++
		s.mu.Unlock()
		return nil
	}
	s.finishLocked(ReasonCompleted)
	s.mu.Unlock()
	s.fireFinish()
	return nil
}

func (s *Session) Retreat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.runnableLocked(); err != nil {
		return err
	}
	if s.index > 0 {
		s.index--
	}
	return nil
}

// CurrentSetID is the parent set of the question on screen.
func (s *Session) CurrentSetID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return "", ErrSessionLoading
	}
	if len(s.questions) == 0 {
		return "", ErrNoQuestions
	}
	return s.questions[s.index].SetID, nil
}

// HasSet reports whether any entry of the working set comes from setID.
func (s *Session) HasSet(setID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.questions {
		if q.SetID == setID {
			return true
		}
	}
	return false
}

type MergeReport struct {
	Replaced []string `json:"replaced"`
	// Stale entries point past the end of the refreshed set and were left as
	// they were.
	Stale []string `json:"stale"`
}

// MergeSet refreshes every entry that came from set, keeping each entry's
// session id so recorded answers stay attached. Order never changes.
func (s *Session) MergeSet(set questionset.QuestionSet) MergeReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	report := MergeReport{Replaced: []string{}, Stale: []string{}}
	for i, q := range s.questions {
		if q.SetID != set.ID {
			continue
		}
		if q.OriginalIndex >= len(set.Questions) {
			report.Stale = append(report.Stale, q.ID)
			continue
		}
		s.questions[i] = decorate(set, q.OriginalIndex, q.ID)
		report.Replaced = append(report.Replaced, q.ID)
	}
	return report
}

// Close stops the countdown without finishing. Calls after the first are
// no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
}

func (s *Session) Summary() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		return Summary{}, ErrSessionNotFinished
	}
	return Summarize(s.questions, s.answers), nil
}

// FinishedAt is zero until the session finishes.
func (s *Session) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

func (s *Session) Reason() FinishReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *Session) runnableLocked() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.loading:
		return ErrSessionLoading
	case s.finished:
		return ErrSessionFinished
	case len(s.questions) == 0:
		return ErrNoQuestions
	}
	return nil
}

func (s *Session) finishLocked(reason FinishReason) {
	if s.finished {
		return
	}
	s.finished = true
	s.reason = reason
	s.finishedAt = s.now()
	s.stopTimerLocked()
	close(s.done)
}

func (s *Session) stopTimerLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Session) fireFinish() {
	if s.onFinish != nil {
		s.onFinish(s)
	}
}

func (s *Session) runTimer(stop <-chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.countdown() {
				return
			}
		}
	}
}

// countdown takes one second off the clock and reports whether the timer
// should stop.
func (s *Session) countdown() bool {
	s.mu.Lock()
	if s.closed || s.finished {
		s.mu.Unlock()
		return true
	}
	if s.loading {
		s.mu.Unlock()
		return false
	}
	s.remaining -= time.Second
	if s.remaining > 0 {
		s.mu.Unlock()
		return false
	}
	s.remaining = 0
	s.finishLocked(ReasonTimeExpired)
	s.mu.Unlock()
	s.fireFinish()
	return true
}
