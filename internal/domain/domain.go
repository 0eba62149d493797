package domain

import (
	"slices"
	"strconv"
	"time"
)

type QuestionType string

const (
	QuestionTypeSingle   QuestionType = "single"
	QuestionTypeMultiple QuestionType = "multiple"
)

func (t QuestionType) Valid() bool {
	return t == QuestionTypeSingle || t == QuestionTypeMultiple
}

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID   string       `json:"id"`
	Text string       `json:"text"`
	Type QuestionType `json:"type"`

	Options          []Option `json:"options"`
	CorrectOptionIDs []string `json:"correctOptionIds"`
}

func (q Question) Clone() Question {
	q.Options = slices.Clone(q.Options)
	q.CorrectOptionIDs = slices.Clone(q.CorrectOptionIDs)
	return q
}

// HasOption reports whether the option belongs to the question.
func (q Question) HasOption(optionID string) bool {
	return slices.ContainsFunc(q.Options, func(o Option) bool { return o.ID == optionID })
}

// Course is a timed set of questions. TimeLimitMinutes is always positive for a stored course.
type Course struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	Questions        []Question `json:"questions"`
}

// Clone returns a deep copy of the course, sharing no slices with c.
func (c Course) Clone() Course {
	cc := c
	cc.Questions = make([]Question, len(c.Questions))
	for i, q := range c.Questions {
		cc.Questions[i] = q.Clone()
	}

	return cc
}

// Question returns the question with the given ID.
func (c Course) Question(id string) (Question, bool) {
	i := slices.IndexFunc(c.Questions, func(q Question) bool { return q.ID == id })
	if i < 0 {
		return Question{}, false
	}

	return c.Questions[i], true
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Role       Role      `json:"role"`
	CreateTime UnixMilli `json:"createdAt"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Answer is the learner's selection for one question. SelectedOptionIDs is never nil.
type Answer struct {
	QuestionID        string   `json:"questionId"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
}

// ExamResult is the scored outcome of one exam session. It is immutable once created.
type ExamResult struct {
	ID             string    `json:"id"`
	CourseID       string    `json:"courseId"`
	UserID         string    `json:"userId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	SubmitTime     UnixMilli `json:"date"`
	Answers        []Answer  `json:"answers"`
}

func (r ExamResult) Clone() ExamResult {
	answers := make([]Answer, len(r.Answers))
	for i, a := range r.Answers {
		answers[i] = Answer{
			QuestionID:        a.QuestionID,
			SelectedOptionIDs: slices.Clone(a.SelectedOptionIDs),
		}
	}
	r.Answers = answers
	return r
}

type SubmitTrigger string

const (
	SubmitTriggerManual  SubmitTrigger = "manual"
	SubmitTriggerTimeout SubmitTrigger = "timeout"
)

type SoundKind string

const (
	SoundTick    SoundKind = "tick"
	SoundSuccess SoundKind = "success"
	SoundFail    SoundKind = "fail"
)

// UnixMilli is a time encoded in JSON as milliseconds since the Unix epoch.
type UnixMilli time.Time

func (t UnixMilli) Time() time.Time { return time.Time(t) }

func (t UnixMilli) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, time.Time(t).UnixMilli(), 10), nil
}

func (t *UnixMilli) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	ms, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}

	*t = UnixMilli(time.UnixMilli(int64(ms)))
	return nil
}

// Leaderboard ranks the learners of a course by their best percentage, highest first.
type Leaderboard struct {
	CourseID string             `json:"courseId"`
	Entries  []LeaderboardEntry `json:"entries"`
}

type LeaderboardEntry struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	Percentage int64  `json:"percentage"`
}
