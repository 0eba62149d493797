package course

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/errors"
	"github.com/victornm/examiner/internal/store"
)

type Config struct {
	Store *store.Store
}

type Service struct {
	store *store.Store
	v     *validator.Validate
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
		v:     newValidator(),
	}
}

type CreateRequest struct {
	Title            string `json:"title" validate:"required"`
	Description      string `json:"description"`
	TimeLimitMinutes int    `json:"timeLimitMinutes" validate:"gt=0"`
}

// Create adds a course without questions.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Course, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate course ID: %w", err)
	}

	c := domain.Course{
		ID:               id.String(),
		Title:            req.Title,
		Description:      req.Description,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Questions:        []domain.Question{},
	}

	if err := s.store.SaveCourse(ctx, c); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "course: created", "course", c.ID)
	return &c, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Course, error) {
	return s.store.ListCourses(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Course, error) {
	c, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// Delete removes the course. Results already recorded for it are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetCourse(ctx, id); err != nil {
		return err
	}

	return s.store.DeleteCourse(ctx, id)
}

type OptionRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QuestionRequest struct {
	Text             string          `json:"text" validate:"required"`
	Type             string          `json:"type" validate:"question_type"`
	Options          []OptionRequest `json:"options"`
	CorrectOptionIDs []string        `json:"correctOptionIds" validate:"required,min=1"`
}

// AddQuestion appends a question to the course. Options with blank text are dropped before
// the remaining ones are checked.
func (s *Service) AddQuestion(ctx context.Context, courseID string, req QuestionRequest) (*domain.Question, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	q, err := buildQuestion(req)
	if err != nil {
		return nil, err
	}

	_, err = s.store.UpdateCourse(ctx, courseID, func(c *domain.Course) error {
		c.Questions = append(c.Questions, q)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "course: question added", "course", courseID, "question", q.ID)
	return &q, nil
}

// DeleteQuestion removes a question. Sessions already running keep their own copy of the course.
func (s *Service) DeleteQuestion(ctx context.Context, courseID, questionID string) error {
	_, err := s.store.UpdateCourse(ctx, courseID, func(c *domain.Course) error {
		n := len(c.Questions)
		c.Questions = slices.DeleteFunc(c.Questions, func(q domain.Question) bool { return q.ID == questionID })
		if len(c.Questions) == n {
			return errors.New(errors.CodeNotFound, errors.WithMessagef("question not found: id=%s", questionID))
		}
		return nil
	})

	return err
}

func buildQuestion(req QuestionRequest) (domain.Question, error) {
	invalid := func(format string, args ...any) error {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef(format, args...))
	}

	qid, err := uuid.NewV7()
	if err != nil {
		return domain.Question{}, fmt.Errorf("generate question ID: %w", err)
	}

	q := domain.Question{
		ID:   qid.String(),
		Text: req.Text,
		Type: domain.QuestionType(req.Type),
	}

	for _, o := range req.Options {
		text := strings.TrimSpace(o.Text)
		if text == "" {
			continue
		}

		id := strings.TrimSpace(o.ID)
		if id == "" {
			u, err := uuid.NewV7()
			if err != nil {
				return domain.Question{}, fmt.Errorf("generate option ID: %w", err)
			}
			id = u.String()
		}

		if q.HasOption(id) {
			return domain.Question{}, invalid("duplicate option id: %s", id)
		}

		q.Options = append(q.Options, domain.Option{ID: id, Text: text})
	}

	if len(q.Options) < 2 {
		return domain.Question{}, invalid("a question needs at least 2 non-blank options")
	}

	for _, id := range req.CorrectOptionIDs {
		if !q.HasOption(id) {
			return domain.Question{}, invalid("correct option %s is not one of the options", id)
		}
		if !slices.Contains(q.CorrectOptionIDs, id) {
			q.CorrectOptionIDs = append(q.CorrectOptionIDs, id)
		}
	}

	if q.Type == domain.QuestionTypeSingle && len(q.CorrectOptionIDs) != 1 {
		return domain.Question{}, invalid("a single choice question needs exactly 1 correct option")
	}

	return q, nil
}
