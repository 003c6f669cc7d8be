package practice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"psikoadmin/internal/auth"
	"psikoadmin/internal/questionset"
)

const (
	MaxTimeLimitMinutes    = 600
	DefaultResolveTimeout  = 15 * time.Second
	DefaultJanitorInterval = time.Minute
	recordTimeout          = 5 * time.Second
)

// FinishedSession is what gets persisted once a session ends with a score.
type FinishedSession struct {
	SessionID  string
	Owner      auth.Principal
	Categories []string
	Summary    Summary
	Reason     FinishReason
	FinishedAt time.Time
}

type ResultRecorder interface {
	RecordFinished(ctx context.Context, fs FinishedSession) error
}

type ManagerConfig struct {
	SessionTTL      time.Duration
	TickInterval    time.Duration
	ResolveTimeout  time.Duration
	JanitorInterval time.Duration
	Now             func() time.Time
	NewID           func() string
}

type StartRequest struct {
	Filters          ExamFilters `json:"filters"`
	TimeLimitMinutes int         `json:"time_limit_minutes"`
	// Async returns the session while it is still loading.
	Async bool `json:"async"`
}

type EditSetResult struct {
	Set   *questionset.QuestionSet `json:"set"`
	Merge MergeReport              `json:"merge"`
	State State                    `json:"state"`
}

type Manager struct {
	resolver *Resolver
	store    SetStore
	recorder ResultRecorder
	registry *Registry
	cfg      ManagerConfig

	// base parents background resolves; Run cancels it on return.
	base       context.Context
	cancelBase context.CancelFunc
}

func NewManager(resolver *Resolver, store SetStore, recorder ResultRecorder, cfg ManagerConfig) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = DefaultJanitorInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		resolver:   resolver,
		store:      store,
		recorder:   recorder,
		registry:   NewRegistry(cfg.SessionTTL, cfg.Now),
		cfg:        cfg,
		base:       base,
		cancelBase: cancel,
	}
}

func (m *Manager) Start(ctx context.Context, p auth.Principal, req StartRequest) (*Session, error) {
	if err := req.Filters.Validate(); err != nil {
		return nil, err
	}
	if req.TimeLimitMinutes < 0 || req.TimeLimitMinutes > MaxTimeLimitMinutes {
		return nil, fmt.Errorf("%w: time_limit_minutes must be between 0 and %d", ErrInvalidInput, MaxTimeLimitMinutes)
	}

	s := NewSession(SessionConfig{
		ID:           m.cfg.NewID(),
		Owner:        p,
		Filters:      req.Filters.normalized(),
		TimeLimit:    time.Duration(req.TimeLimitMinutes) * time.Minute,
		TickInterval: m.cfg.TickInterval,
		Now:          m.cfg.Now,
		OnFinish:     m.recordFinished,
	})
	m.registry.Put(s)

	if req.Async {
		go m.load(m.base, s)
		return s, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ResolveTimeout)
	defer cancel()
	questions, err := m.resolver.Resolve(ctx, p, s.Filters())
	if err != nil {
		m.registry.Remove(s.ID())
		s.Close()
		return nil, err
	}
	if err := s.Load(questions); err != nil {
		return nil, err
	}
	log.Printf("practice: session started id=%s subject=%s questions=%d time_limit_minutes=%d", s.ID(), p.Subject, len(questions), req.TimeLimitMinutes)
	return s, nil
}

// load resolves in the background. A result that arrives after the session
// was closed is dropped.
func (m *Manager) load(ctx context.Context, s *Session) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ResolveTimeout)
	defer cancel()
	questions, err := m.resolver.Resolve(ctx, s.Owner(), s.Filters())
	if err != nil {
		s.Fail(err)
		return
	}
	if err := s.Load(questions); err != nil {
		log.Printf("practice: dropped late working set id=%s err=%v", s.ID(), err)
		return
	}
	log.Printf("practice: session loaded id=%s subject=%s questions=%d", s.ID(), s.Owner().Subject, len(questions))
}

func (m *Manager) Get(p auth.Principal, id string) (*Session, error) {
	s, ok := m.registry.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Owner().Subject != p.Subject && !p.IsAdmin() {
		return nil, ErrSessionForbidden
	}
	return s, nil
}

func (m *Manager) SelectAnswer(p auth.Principal, id string, option int) (State, error) {
	s, err := m.Get(p, id)
	if err != nil {
		return State{}, err
	}
	if err := s.SelectAnswer(option); err != nil {
		return State{}, err
	}
	return s.Snapshot(), nil
}

// Advance only moves past a question that has been answered.
func (m *Manager) Advance(p auth.Principal, id string) (State, error) {
	s, err := m.Get(p, id)
	if err != nil {
		return State{}, err
	}
	if err := s.AdvanceIfAnswered(); err != nil {
		return State{}, err
	}
	return s.Snapshot(), nil
}

func (m *Manager) Retreat(p auth.Principal, id string) (State, error) {
	s, err := m.Get(p, id)
	if err != nil {
		return State{}, err
	}
	if err := s.Retreat(); err != nil {
		return State{}, err
	}
	return s.Snapshot(), nil
}

func (m *Manager) Summary(p auth.Principal, id string) (Summary, error) {
	s, err := m.Get(p, id)
	if err != nil {
		return Summary{}, err
	}
	return s.Summary()
}

// EditSet loads a fresh copy of the set behind the current question.
func (m *Manager) EditSet(ctx context.Context, p auth.Principal, id string) (*questionset.QuestionSet, error) {
	s, err := m.Get(p, id)
	if err != nil {
		return nil, err
	}
	setID, err := s.CurrentSetID()
	if err != nil {
		return nil, err
	}
	set, err := m.fetchSet(ctx, setID)
	if err != nil {
		log.Printf("practice: edit fetch failed id=%s set_id=%s err=%v", id, setID, err)
		return nil, err
	}
	return set, nil
}

// SaveSetEdit persists patch, then re-fetches the set and merges it into the
// working set in place. An empty setID means the set of the current question.
func (m *Manager) SaveSetEdit(ctx context.Context, p auth.Principal, id, setID string, patch questionset.Patch) (*EditSetResult, error) {
	s, err := m.Get(p, id)
	if err != nil {
		return nil, err
	}
	if setID == "" {
		if setID, err = s.CurrentSetID(); err != nil {
			return nil, err
		}
	} else if !s.HasSet(setID) {
		return nil, ErrSetNotInSession
	}
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: edit has no changes", ErrInvalidInput)
	}

	if err := m.store.SaveSetEdits(ctx, setID, patch); err != nil {
		log.Printf("practice: edit save failed id=%s set_id=%s err=%v", id, setID, err)
		switch {
		case errors.Is(err, questionset.ErrInvalidInput), errors.Is(err, questionset.ErrSetNotFound):
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	set, err := m.fetchSet(ctx, setID)
	if err != nil {
		log.Printf("practice: edit refetch failed id=%s set_id=%s err=%v", id, setID, err)
		return nil, err
	}
	report := s.MergeSet(*set)
	if len(report.Stale) > 0 {
		log.Printf("practice: edit left stale entries id=%s set_id=%s stale=%d", id, setID, len(report.Stale))
	}
	return &EditSetResult{Set: set, Merge: report, State: s.Snapshot()}, nil
}

func (m *Manager) fetchSet(ctx context.Context, setID string) (*questionset.QuestionSet, error) {
	set, err := m.store.FetchSetByID(ctx, setID)
	if err != nil {
		if errors.Is(err, questionset.ErrSetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if set == nil {
		return nil, questionset.ErrSetNotFound
	}
	return set, nil
}

// Close discards a session. Nothing is recorded for it.
func (m *Manager) Close(p auth.Principal, id string) error {
	s, err := m.Get(p, id)
	if err != nil {
		return err
	}
	m.registry.Remove(id)
	s.Close()
	log.Printf("practice: session closed id=%s subject=%s", id, p.Subject)
	return nil
}

// LiveSessions counts registered sessions, expired or not.
func (m *Manager) LiveSessions() int {
	return m.registry.Len()
}

// Run evicts expired sessions until ctx is done. Background resolves still in
// flight are cancelled when it returns.
func (m *Manager) Run(ctx context.Context) {
	defer m.cancelBase()
	ticker := time.NewTicker(m.cfg.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() int {
	expired := m.registry.CleanupExpired()
	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		log.Printf("practice: evicted expired sessions count=%d live=%d", len(expired), m.registry.Len())
	}
	return len(expired)
}

func (m *Manager) recordFinished(s *Session) {
	reason := s.Reason()
	if m.recorder == nil || reason == ReasonEmpty || reason == ReasonFetchFailed {
		return
	}
	summary, err := s.Summary()
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	err = m.recorder.RecordFinished(ctx, FinishedSession{
		SessionID:  s.ID(),
		Owner:      s.Owner(),
		Categories: s.Filters().Categories,
		Summary:    summary,
		Reason:     reason,
		FinishedAt: s.FinishedAt(),
	})
	if err != nil {
		log.Printf("practice: record result failed id=%s err=%v", s.ID(), err)
		return
	}
	log.Printf("practice: session finished id=%s subject=%s reason=%s score=%d", s.ID(), s.Owner().Subject, reason, summary.Score)
}
