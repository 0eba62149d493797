package exam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/errors"
	"github.com/victornm/examiner/internal/event"
	"github.com/victornm/examiner/internal/telemetry"
)

type CourseLoader interface {
	GetCourse(ctx context.Context, id string) (domain.Course, error)
}

type Config struct {
	Courses       CourseLoader
	Results       ResultStore
	Notifier      Notifier
	EventBus      *event.Bus
	NewTickerFunc NewTickerFunc
}

// Service hosts the live exam sessions of a process and owns their timers.
type Service struct {
	courses   CourseLoader
	results   ResultStore
	notifier  Notifier
	eb        *event.Bus
	newTicker NewTickerFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session *Session
	timer   *Timer
}

func NewService(c Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		courses:   c.Courses,
		results:   c.Results,
		notifier:  c.Notifier,
		eb:        c.EventBus,
		newTicker: c.NewTickerFunc,
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*entry),
	}
}

type SessionView struct {
	SessionID string
	View
}

type StartRequest struct {
	CourseID string
	UserID   string
}

// Start loads the course, snapshots it and starts the countdown.
func (s *Service) Start(ctx context.Context, req StartRequest) (*SessionView, error) {
	c, err := s.courses.GetCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	id, err := newUUID()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	ss := NewSession(c, req.UserID,
		WithResultStore(s.results),
		WithNotifier(s.notifier),
	)

	s.mu.Lock()
	e := &entry{session: ss}
	s.sessions[id] = e
	e.timer = StartTimer(s.ctx, ss, TimerConfig{
		NewTickerFunc: s.newTicker,
		OnFinish: func(ctx context.Context, r *domain.ExamResult) {
			s.finish(ctx, id, r, domain.SubmitTriggerTimeout)
		},
	})
	s.mu.Unlock()

	telemetry.SessionsActive.Inc()
	slog.InfoContext(ctx, "exam: session started",
		"session", id,
		"course", c.ID,
		"user", req.UserID,
		"questions", len(c.Questions),
		"time_limit_minutes", c.TimeLimitMinutes,
	)

	return &SessionView{SessionID: id, View: ss.View()}, nil
}

type GetRequest struct {
	SessionID string
	UserID    string
}

func (s *Service) Get(_ context.Context, req GetRequest) (*SessionView, error) {
	e, err := s.lookup(req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	return &SessionView{SessionID: req.SessionID, View: e.session.View()}, nil
}

type SelectRequest struct {
	SessionID  string
	UserID     string
	QuestionID string
	OptionID   string
}

func (s *Service) Select(_ context.Context, req SelectRequest) (*SessionView, error) {
	e, err := s.lookup(req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := e.session.SelectOption(req.QuestionID, req.OptionID); err != nil {
		return nil, err
	}

	return &SessionView{SessionID: req.SessionID, View: e.session.View()}, nil
}

type NavigateRequest struct {
	SessionID string
	UserID    string
	Index     int
}

func (s *Service) Navigate(_ context.Context, req NavigateRequest) (*SessionView, error) {
	e, err := s.lookup(req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := e.session.Navigate(req.Index); err != nil {
		return nil, err
	}

	return &SessionView{SessionID: req.SessionID, View: e.session.View()}, nil
}

type SubmitRequest struct {
	SessionID string
	UserID    string
}

// Submit finishes the exam on the learner's request. When the timer has already submitted
// the session, the existing result is returned.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.ExamResult, error) {
	e, err := s.lookup(req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	r, ok, err := e.session.Submit(ctx)
	if err != nil {
		return nil, err
	}

	if ok {
		s.finish(ctx, req.SessionID, r, domain.SubmitTriggerManual)
	}

	return r, nil
}

type AbandonRequest struct {
	SessionID string
	UserID    string
}

// Abandon discards an unfinished session without producing a result.
func (s *Service) Abandon(ctx context.Context, req AbandonRequest) error {
	s.mu.Lock()
	e, ok := s.sessions[req.SessionID]
	if !ok || e.session.LearnerID() != req.UserID {
		s.mu.Unlock()
		return sessionNotFound(req.SessionID)
	}
	delete(s.sessions, req.SessionID)
	s.mu.Unlock()

	e.timer.Stop()
	telemetry.SessionsActive.Dec()

	slog.InfoContext(ctx, "exam: session abandoned",
		"session", req.SessionID,
		"user", req.UserID,
	)

	return nil
}

// Stop releases the timers of all live sessions. Unfinished sessions are dropped.
func (s *Service) Stop() {
	s.cancel()

	s.mu.Lock()
	entries := make([]*entry, 0, len(s.sessions))
	for id, e := range s.sessions {
		entries = append(entries, e)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		e.timer.Stop()
		telemetry.SessionsActive.Dec()
	}
}

// finish runs exactly once per session, for whichever trigger produced the result.
func (s *Service) finish(ctx context.Context, id string, r *domain.ExamResult, trigger domain.SubmitTrigger) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		e.timer.Stop()
		telemetry.SessionsActive.Dec()
	}

	telemetry.ExamsSubmitted.WithLabelValues(string(trigger)).Inc()

	slog.InfoContext(ctx, "exam: session submitted",
		"session", id,
		"result", r.ID,
		"course", r.CourseID,
		"user", r.UserID,
		"score", r.Score,
		"total", r.TotalQuestions,
		"trigger", trigger,
	)

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventExamSubmitted{
			Result:  r.Clone(),
			Trigger: trigger,
		})
	}
}

func (s *Service) lookup(id, userID string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || e.session.LearnerID() != userID {
		return nil, sessionNotFound(id)
	}

	return e, nil
}

func sessionNotFound(id string) error {
	return errors.New(errors.CodeNotFound,
		errors.WithMessagef("exam session not found or already finished: session=%s", id))
}
