package exam_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/errors"
	"github.com/victornm/examiner/internal/event"
	"github.com/victornm/examiner/internal/exam"
	"github.com/victornm/examiner/internal/notify/notifytest"
)

func TestService_StartUnknownCourse(t *testing.T) {
	svc, _ := makeService(t)

	_, err := svc.Start(context.Background(), exam.StartRequest{CourseID: "missing", UserID: "u1"})
	assert.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)
}

func TestService_ManualSubmit(t *testing.T) {
	svc, env := makeService(t)
	ctx := context.Background()

	v, err := svc.Start(ctx, exam.StartRequest{CourseID: "c1", UserID: "u1"})
	require.NoError(t, err)
	tk := <-env.tickers
	assert.Equal(t, time.Minute, v.Remaining)
	assert.Equal(t, "Q1", v.Question.ID)

	_, err = svc.Select(ctx, exam.SelectRequest{SessionID: v.SessionID, UserID: "u1", QuestionID: "Q1", OptionID: "opt1"})
	require.NoError(t, err)

	v, err = svc.Navigate(ctx, exam.NavigateRequest{SessionID: v.SessionID, UserID: "u1", Index: 1})
	require.NoError(t, err)
	assert.Equal(t, "Q2", v.Question.ID)

	for _, opt := range []string{"optA", "optB"} {
		_, err = svc.Select(ctx, exam.SelectRequest{SessionID: v.SessionID, UserID: "u1", QuestionID: "Q2", OptionID: opt})
		require.NoError(t, err)
	}

	r, err := svc.Submit(ctx, exam.SubmitRequest{SessionID: v.SessionID, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Score)
	assert.True(t, tk.stopped.Load(), "submit should release the timer")

	env.eb.Stop()
	require.Len(t, env.submitted(), 1)
	assert.Equal(t, domain.SubmitTriggerManual, env.submitted()[0].Trigger)
	assert.Equal(t, r.ID, env.submitted()[0].Result.ID)
	assert.Equal(t, []domain.SoundKind{domain.SoundSuccess}, env.notifier.Kinds(false))

	_, err = svc.Get(ctx, exam.GetRequest{SessionID: v.SessionID, UserID: "u1"})
	assert.True(t, errors.Is(err, errors.CodeNotFound), "finished session should be discarded")
}

func TestService_TimeoutSubmit(t *testing.T) {
	svc, env := makeService(t)
	ctx := context.Background()

	v, err := svc.Start(ctx, exam.StartRequest{CourseID: "c1", UserID: "u1"})
	require.NoError(t, err)
	tk := <-env.tickers

	for i := 0; i < 60; i++ {
		tk.tick(t)
	}

	require.Eventually(t, func() bool {
		return len(env.submitted()) == 1
	}, time.Second, 10*time.Millisecond)

	e := env.submitted()[0]
	assert.Equal(t, domain.SubmitTriggerTimeout, e.Trigger)
	assert.Equal(t, 0, e.Result.Score)
	assert.Len(t, env.results.saved(), 1)

	_, err = svc.Submit(ctx, exam.SubmitRequest{SessionID: v.SessionID, UserID: "u1"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
	assert.Len(t, env.results.saved(), 1, "late manual submit should not create a result")
}

func TestService_SessionsAreOwnedByTheirLearner(t *testing.T) {
	svc, env := makeService(t)
	ctx := context.Background()

	v, err := svc.Start(ctx, exam.StartRequest{CourseID: "c1", UserID: "u1"})
	require.NoError(t, err)
	<-env.tickers

	_, err = svc.Get(ctx, exam.GetRequest{SessionID: v.SessionID, UserID: "u2"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	_, err = svc.Submit(ctx, exam.SubmitRequest{SessionID: v.SessionID, UserID: "u2"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	err = svc.Abandon(ctx, exam.AbandonRequest{SessionID: v.SessionID, UserID: "u2"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_Abandon(t *testing.T) {
	svc, env := makeService(t)
	ctx := context.Background()

	v, err := svc.Start(ctx, exam.StartRequest{CourseID: "c1", UserID: "u1"})
	require.NoError(t, err)
	tk := <-env.tickers

	require.NoError(t, svc.Abandon(ctx, exam.AbandonRequest{SessionID: v.SessionID, UserID: "u1"}))
	assert.True(t, tk.stopped.Load())
	assert.Empty(t, env.results.saved())

	_, err = svc.Get(ctx, exam.GetRequest{SessionID: v.SessionID, UserID: "u1"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_InvalidSelectionKeepsSession(t *testing.T) {
	svc, env := makeService(t)
	ctx := context.Background()

	v, err := svc.Start(ctx, exam.StartRequest{CourseID: "c1", UserID: "u1"})
	require.NoError(t, err)
	<-env.tickers

	_, err = svc.Select(ctx, exam.SelectRequest{SessionID: v.SessionID, UserID: "u1", QuestionID: "Q1", OptionID: "optA"})
	assert.True(t, errors.Is(err, errors.CodeInvalidReference))

	_, err = svc.Navigate(ctx, exam.NavigateRequest{SessionID: v.SessionID, UserID: "u1", Index: 5})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	got, err := svc.Get(ctx, exam.GetRequest{SessionID: v.SessionID, UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, got.Answers)
	assert.Equal(t, 0, got.Index)
}

func TestService_Stop(t *testing.T) {
	svc, env := makeService(t)
	ctx := context.Background()

	var tks []*fakeTicker
	for _, u := range []string{"u1", "u2"} {
		_, err := svc.Start(ctx, exam.StartRequest{CourseID: "c1", UserID: u})
		require.NoError(t, err)
		tks = append(tks, <-env.tickers)
	}

	svc.Stop()

	for _, tk := range tks {
		assert.True(t, tk.stopped.Load())
	}
	assert.Empty(t, env.results.saved())
}

type serviceEnv struct {
	eb       *event.Bus
	results  *resultStore
	notifier *notifytest.Recorder
	tickers  chan *fakeTicker
	events   chan domain.EventExamSubmitted
	got      []domain.EventExamSubmitted
}

func (e *serviceEnv) submitted() []domain.EventExamSubmitted {
	for {
		select {
		case ev := <-e.events:
			e.got = append(e.got, ev)
		default:
			return e.got
		}
	}
}

func makeService(t *testing.T) (*exam.Service, *serviceEnv) {
	env := &serviceEnv{
		eb:       event.NewBus(),
		results:  &resultStore{},
		notifier: &notifytest.Recorder{},
		tickers:  make(chan *fakeTicker, 4),
		events:   make(chan domain.EventExamSubmitted, 4),
	}

	event.On(env.eb, domain.EventNameExamSubmitted, func(_ context.Context, e domain.EventExamSubmitted) error {
		env.events <- e
		return nil
	})

	svc := exam.NewService(exam.Config{
		Courses:       courseLoader{"c1": twoQuestionCourse()},
		Results:       env.results,
		Notifier:      env.notifier,
		EventBus:      env.eb,
		NewTickerFunc: fakeTickerFunc(env.tickers),
	})
	t.Cleanup(svc.Stop)

	return svc, env
}

type courseLoader map[string]domain.Course

func (l courseLoader) GetCourse(_ context.Context, id string) (domain.Course, error) {
	c, ok := l[id]
	if !ok {
		return domain.Course{}, errors.New(errors.CodeNotFound, errors.WithMessagef("course not found: id=%s", id))
	}

	return c, nil
}
