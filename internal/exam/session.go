package exam

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/errors"
	"github.com/victornm/examiner/internal/scoring"
)

// ResultStore persists a finished exam. It is called at most once per session.
type ResultStore interface {
	SaveResult(ctx context.Context, r domain.ExamResult) error
}

// Notifier plays feedback for a learner. Failures never affect the session.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind domain.SoundKind) error
}

type state interface {
	isState()
}

type active struct{}

type finished struct {
	result  domain.ExamResult
	trigger domain.SubmitTrigger
}

func (active) isState()   {}
func (finished) isState() {}

// Session drives one learner through one exam attempt. It works on a private copy of the
// course and emits at most one ExamResult. All methods are safe for concurrent use, which
// lets a timer goroutine and request handlers share a session.
type Session struct {
	mu sync.Mutex

	course    domain.Course
	learnerID string

	index     int
	answers   map[string][]string
	remaining int
	state     state

	results  ResultStore
	notifier Notifier
	now      func() time.Time
	newID    func() (string, error)
}

type SessionOption func(*Session)

func WithResultStore(rs ResultStore) SessionOption {
	return func(s *Session) { s.results = rs }
}

func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) { s.notifier = n }
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

func WithIDGenerator(f func() (string, error)) SessionOption {
	return func(s *Session) { s.newID = f }
}

// NewSession starts an exam on a snapshot of course. Later edits to course are not seen.
func NewSession(course domain.Course, learnerID string, opts ...SessionOption) *Session {
	s := &Session{
		course:    course.Clone(),
		learnerID: learnerID,
		answers:   make(map[string][]string),
		remaining: course.TimeLimitMinutes * 60,
		state:     active{},
		now:       time.Now,
		newID:     newUUID,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// SelectOption records a selection. Single questions replace the previous answer, multiple
// questions toggle the option. Selecting on a finished session does nothing.
func (s *Session) SelectOption(questionID, optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.(finished); ok {
		return nil
	}

	q, ok := s.course.Question(questionID)
	if !ok {
		return errors.New(errors.CodeInvalidReference,
			errors.WithMessagef("question not in course: course=%s question=%s", s.course.ID, questionID))
	}

	if !q.HasOption(optionID) {
		return errors.New(errors.CodeInvalidReference,
			errors.WithMessagef("option not in question: question=%s option=%s", questionID, optionID))
	}

	switch q.Type {
	case domain.QuestionTypeMultiple:
		selected := s.answers[questionID]
		if i := slices.Index(selected, optionID); i >= 0 {
			s.answers[questionID] = slices.Delete(slices.Clone(selected), i, i+1)
		} else {
			s.answers[questionID] = append(slices.Clone(selected), optionID)
		}
	default:
		s.answers[questionID] = []string{optionID}
	}

	return nil
}

// Navigate moves to the question at index. Out of range indexes are rejected.
func (s *Session) Navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.(finished); ok {
		return nil
	}

	if index < 0 || index >= len(s.course.Questions) {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question index out of range: index=%d count=%d", index, len(s.course.Questions)))
	}

	s.index = index
	return nil
}

// Tick advances the countdown by one second. When the time runs out the session is submitted
// within the same call and the result is returned; otherwise the result is nil.
func (s *Session) Tick(ctx context.Context) (*domain.ExamResult, error) {
	s.mu.Lock()

	if _, ok := s.state.(active); !ok {
		s.mu.Unlock()
		return nil, nil
	}

	// remaining is already 0 only when an earlier timeout submission failed to persist.
	if s.remaining > 0 {
		s.remaining--
	}

	if s.remaining > 0 {
		s.mu.Unlock()
		s.notify(ctx, domain.SoundTick)
		return nil, nil
	}

	r, ok, err := s.submitLocked(ctx, domain.SubmitTriggerTimeout)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, nil
	}

	s.notifyResult(ctx, r)
	return r, nil
}

// Submit scores and persists the session. Only the first successful call produces a result and
// returns true; later calls return the existing result and false.
func (s *Session) Submit(ctx context.Context) (*domain.ExamResult, bool, error) {
	s.mu.Lock()
	r, ok, err := s.submitLocked(ctx, domain.SubmitTriggerManual)
	s.mu.Unlock()

	if ok {
		s.notifyResult(ctx, r)
	}

	return r, ok, err
}

func (s *Session) submitLocked(ctx context.Context, trigger domain.SubmitTrigger) (*domain.ExamResult, bool, error) {
	if f, ok := s.state.(finished); ok {
		r := f.result.Clone()
		return &r, false, nil
	}

	id, err := s.newID()
	if err != nil {
		return nil, false, fmt.Errorf("generate result ID: %w", err)
	}

	sc := scoring.Score(s.course.Questions, s.answers)

	r := domain.ExamResult{
		ID:             id,
		CourseID:       s.course.ID,
		UserID:         s.learnerID,
		Score:          sc.Score,
		TotalQuestions: sc.Total,
		SubmitTime:     domain.UnixMilli(s.now()),
		Answers:        make([]domain.Answer, 0, len(s.course.Questions)),
	}

	for _, q := range s.course.Questions {
		selected := slices.Clone(s.answers[q.ID])
		if selected == nil {
			selected = []string{}
		}

		r.Answers = append(r.Answers, domain.Answer{
			QuestionID:        q.ID,
			SelectedOptionIDs: selected,
		})
	}

	if s.results != nil {
		if err := s.results.SaveResult(ctx, r); err != nil {
			return nil, false, fmt.Errorf("persist result: %w", err)
		}
	}

	s.state = finished{result: r, trigger: trigger}
	out := r.Clone()
	return &out, true, nil
}

func (s *Session) notifyResult(ctx context.Context, r *domain.ExamResult) {
	kind := domain.SoundFail
	if scoring.Passed(r.Score, r.TotalQuestions) {
		kind = domain.SoundSuccess
	}

	s.notify(ctx, kind)
}

func (s *Session) notify(ctx context.Context, kind domain.SoundKind) {
	if s.notifier == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "exam: notifier panic",
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}
	}()

	if err := s.notifier.Notify(ctx, s.learnerID, kind); err != nil {
		slog.WarnContext(ctx, "exam: notify failed",
			"user", s.learnerID,
			"kind", kind,
			"error", err,
		)
	}
}

// Finished reports whether the session has produced its result.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.state.(finished)
	return ok
}

func (s *Session) LearnerID() string { return s.learnerID }

func (s *Session) CourseID() string { return s.course.ID }

// View is a point-in-time copy of a session for rendering.
type View struct {
	CourseID    string
	CourseTitle string
	UserID      string

	Index     int
	Total     int
	Question  *domain.Question
	Answers   map[string][]string
	Remaining time.Duration

	Finished bool
	Result   *domain.ExamResult
	Trigger  domain.SubmitTrigger
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		CourseID:    s.course.ID,
		CourseTitle: s.course.Title,
		UserID:      s.learnerID,
		Index:       s.index,
		Total:       len(s.course.Questions),
		Answers:     make(map[string][]string, len(s.answers)),
		Remaining:   time.Duration(s.remaining) * time.Second,
	}

	for k, a := range s.answers {
		v.Answers[k] = slices.Clone(a)
	}

	if s.index < len(s.course.Questions) {
		q := s.course.Questions[s.index].Clone()
		v.Question = &q
	}

	if f, ok := s.state.(finished); ok {
		r := f.result.Clone()
		v.Finished = true
		v.Result = &r
		v.Trigger = f.trigger
	}

	return v
}
