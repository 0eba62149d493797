package api

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/exam"
	"github.com/victornm/examiner/internal/report"
)

type (
	ErrorResponse struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	LoginRequest struct {
		Username string `json:"username"`
	}

	// Question hides the correct options; it is what a learner may see.
	Question struct {
		ID      string          `json:"id"`
		Text    string          `json:"text"`
		Type    string          `json:"type"`
		Options []domain.Option `json:"options"`
	}

	Course struct {
		ID               string `json:"id"`
		Title            string `json:"title"`
		Description      string `json:"description"`
		TimeLimitMinutes int    `json:"timeLimitMinutes"`
		QuestionCount    int    `json:"questionCount"`
		// Questions is filled for admins only.
		Questions []domain.Question `json:"questions,omitempty"`
	}

	StartExamRequest struct {
		CourseID string `json:"courseId"`
	}

	SelectOptionRequest struct {
		QuestionID string `json:"questionId"`
		OptionID   string `json:"optionId"`
	}

	NavigateRequest struct {
		Index *int `json:"index"`
	}

	Exam struct {
		SessionID        string              `json:"sessionId"`
		CourseID         string              `json:"courseId"`
		CourseTitle      string              `json:"courseTitle"`
		Index            int                 `json:"index"`
		Total            int                 `json:"total"`
		Question         *Question           `json:"question"`
		Answers          map[string][]string `json:"answers"`
		RemainingSeconds int64               `json:"remainingSeconds"`
	}

	Result struct {
		ID             string           `json:"id"`
		CourseID       string           `json:"courseId"`
		CourseTitle    string           `json:"courseTitle"`
		UserID         string           `json:"userId"`
		Score          int              `json:"score"`
		TotalQuestions int              `json:"totalQuestions"`
		Percentage     decimal.Decimal  `json:"percentage"`
		Passed         bool             `json:"passed"`
		Feedback       string           `json:"feedback"`
		Date           domain.UnixMilli `json:"date"`
		Answers        []domain.Answer  `json:"answers"`
	}

	ExamSubmitted struct {
		Result  Result               `json:"result"`
		Trigger domain.SubmitTrigger `json:"trigger"`
	}
)

func toQuestion(q domain.Question) Question {
	opts := q.Options
	if opts == nil {
		opts = []domain.Option{}
	}

	return Question{
		ID:      q.ID,
		Text:    q.Text,
		Type:    string(q.Type),
		Options: opts,
	}
}

func toCourse(c domain.Course, admin bool) Course {
	v := Course{
		ID:               c.ID,
		Title:            c.Title,
		Description:      c.Description,
		TimeLimitMinutes: c.TimeLimitMinutes,
		QuestionCount:    len(c.Questions),
	}

	if admin {
		v.Questions = c.Questions
		if v.Questions == nil {
			v.Questions = []domain.Question{}
		}
	}

	return v
}

func toExam(v *exam.SessionView) Exam {
	e := Exam{
		SessionID:        v.SessionID,
		CourseID:         v.CourseID,
		CourseTitle:      v.CourseTitle,
		Index:            v.Index,
		Total:            v.Total,
		Answers:          v.Answers,
		RemainingSeconds: int64(v.Remaining.Seconds()),
	}

	if v.Question != nil {
		q := toQuestion(*v.Question)
		e.Question = &q
	}

	return e
}

func toResult(s report.Summary) Result {
	r := s.Result
	answers := r.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}

	return Result{
		ID:             r.ID,
		CourseID:       r.CourseID,
		CourseTitle:    s.CourseTitle,
		UserID:         r.UserID,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		Percentage:     s.Percentage,
		Passed:         s.Passed,
		Feedback:       s.Feedback,
		Date:           r.SubmitTime,
		Answers:        answers,
	}
}
