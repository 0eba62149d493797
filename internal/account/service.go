package account

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/errors"
	"github.com/victornm/examiner/internal/store"
)

type Config struct {
	Store *store.Store
	Now   func() time.Time
}

type Service struct {
	store *store.Store
	now   func() time.Time

	// mu makes the first-user-is-admin decision and the insert one step.
	mu sync.Mutex
}

func NewService(c Config) *Service {
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		store: c.Store,
		now:   c.Now,
	}
}

type LoginRequest struct {
	Username string
}

// Login signs in by username only. An unknown username is registered on the fly; the very
// first registered user becomes an admin.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("username is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var u domain.User
	err := s.store.UpdateUsers(ctx, func(users []domain.User) ([]domain.User, error) {
		i := slices.IndexFunc(users, func(u domain.User) bool { return u.Username == username })
		if i >= 0 {
			u = users[i]
			return users, nil
		}

		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate user ID: %w", err)
		}

		role := domain.RoleUser
		if len(users) == 0 {
			role = domain.RoleAdmin
		}

		u = domain.User{
			ID:         id.String(),
			Username:   username,
			Role:       role,
			CreateTime: domain.UnixMilli(s.now()),
		}
		slog.InfoContext(ctx, "account: registered user", "user", u.ID, "role", u.Role)

		return append(users, u), nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.SetCurrentUser(ctx, &u); err != nil {
		return nil, err
	}

	return &u, nil
}

func (s *Service) Logout(ctx context.Context) error {
	return s.store.SetCurrentUser(ctx, nil)
}

// Current returns the signed in user, or an Unauthenticated error.
func (s *Service) Current(ctx context.Context) (*domain.User, error) {
	u, err := s.store.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	if u == nil {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("not logged in"))
	}

	return u, nil
}
