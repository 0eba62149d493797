package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/errors"
	"github.com/victornm/examiner/internal/event"
	"github.com/victornm/examiner/internal/scoring"
)

const (
	publishInterval = 200 * time.Millisecond
)

type UserLister interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type Config struct {
	EventBus *event.Bus
	Users    UserLister
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	users  UserLister
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		users:  c.Users,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	event.On(s.eb, domain.EventNameExamSubmitted, s.UpdateLeaderboard)

	return s
}

type GetLeaderboardRequest struct {
	CourseID string
}

// GetLeaderboard returns every learner who finished the course, best percentage first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.CourseID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: course=%s", req.CourseID))
	}

	names, err := s.usernames(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		id := z.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{
			UserID:     id,
			Username:   names[id],
			Percentage: int64(z.Score),
		})
	}

	return &domain.Leaderboard{
		CourseID: req.CourseID,
		Entries:  entries,
	}, nil
}

// UpdateLeaderboard records the learner's percentage unless they already did better.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventExamSubmitted) error {
	r := e.Result
	p := scoring.Percentage(r.Score, r.TotalQuestions)

	if err := s.redis.ZAddGT(ctx, s.getLeaderboardKey(r.CourseID), redis.Z{
		Score:  p.InexactFloat64(),
		Member: r.UserID,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, r)
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated per course per interval.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, r domain.ExamResult) error {
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(r.CourseID), r.SubmitTime.Time().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		CourseID: r.CourseID,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: course=%s: %w", r.CourseID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

// Remove drops the leaderboard of a deleted course.
func (s *Service) Remove(ctx context.Context, courseID string) error {
	return s.redis.Del(ctx, s.getLeaderboardKey(courseID), s.getLeaderboardTimeKey(courseID)).Err()
}

func (s *Service) usernames(ctx context.Context) (map[string]string, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	m := make(map[string]string, len(users))
	for _, u := range users {
		m[u.ID] = u.Username
	}

	return m, nil
}

func (s *Service) getLeaderboardKey(course string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, course)
}

func (s *Service) getLeaderboardTimeKey(course string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, course)
}
