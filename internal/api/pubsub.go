package api

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/examiner/internal/domain"
)

const maxConcurrent = 100

// PublishLeaderboardUpdated sends the new ranking to every learner on it.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range l.Entries {
		eg.Go(func() error {
			return a.pubsub.Publish(ctx, entry.UserID, e.Name(), l)
		})
	}

	return eg.Wait()
}

// PublishExamSubmitted tells the learner, and every admin watching results, that an exam ended.
func (a *API) PublishExamSubmitted(ctx context.Context, e domain.EventExamSubmitted) error {
	data := ExamSubmitted{
		Result:  a.summarize(ctx, e.Result),
		Trigger: e.Trigger,
	}

	recipients := []string{e.Result.UserID}
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		slog.WarnContext(ctx, "pubsub: list admins failed, notifying learner only", "error", err)
	}
	for _, u := range users {
		if u.IsAdmin() && u.ID != e.Result.UserID {
			recipients = append(recipients, u.ID)
		}
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, userID := range recipients {
		eg.Go(func() error {
			return a.pubsub.Publish(ctx, userID, e.Name(), data)
		})
	}

	return eg.Wait()
}
