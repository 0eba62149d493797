// Package store keeps users, courses, results and the current user as four independent
// collections. Each collection is a JSON list stored under its own key in a Backend.
package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/errors"
)

// ErrNoValue is returned by a Backend when the key does not exist.
var ErrNoValue = stderrors.New("store: no value")

// Backend is a flat key-value persistence engine.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

const DefaultPrefix = "quiz_app_"

type Keys struct {
	Users       string
	Courses     string
	Results     string
	CurrentUser string
}

func KeysWithPrefix(prefix string) Keys {
	return Keys{
		Users:       prefix + "users",
		Courses:     prefix + "courses",
		Results:     prefix + "results",
		CurrentUser: prefix + "current_user",
	}
}

type Config struct {
	Backend Backend
	Prefix  string
}

type Store struct {
	b    Backend
	keys Keys

	// mu serializes read-modify-write of a collection. There are no cross-collection transactions.
	mu sync.Mutex
}

func New(c Config) *Store {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}

	return &Store{
		b:    c.Backend,
		keys: KeysWithPrefix(c.Prefix),
	}
}

func (s *Store) Keys() Keys { return s.keys }

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	return load[domain.User](ctx, s.b, s.keys.Users)
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}

	i := slices.IndexFunc(users, func(u domain.User) bool { return u.ID == id })
	if i < 0 {
		return domain.User{}, notFound("user", id)
	}

	return users[i], nil
}

// FindUserByUsername returns the user with the exact username, or false.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return domain.User{}, false, err
	}

	i := slices.IndexFunc(users, func(u domain.User) bool { return u.Username == username })
	if i < 0 {
		return domain.User{}, false, nil
	}

	return users[i], true, nil
}

// SaveUser inserts the user or replaces the one with the same ID.
func (s *Store) SaveUser(ctx context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := load[domain.User](ctx, s.b, s.keys.Users)
	if err != nil {
		return err
	}

	return save(ctx, s.b, s.keys.Users, upsert(users, u, func(u domain.User) string { return u.ID }))
}

// UpdateUsers applies fn to the user list atomically with respect to other writers of this Store.
func (s *Store) UpdateUsers(ctx context.Context, fn func(users []domain.User) ([]domain.User, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := load[domain.User](ctx, s.b, s.keys.Users)
	if err != nil {
		return err
	}

	users, err = fn(users)
	if err != nil {
		return err
	}

	return save(ctx, s.b, s.keys.Users, users)
}

func (s *Store) ListCourses(ctx context.Context) ([]domain.Course, error) {
	return load[domain.Course](ctx, s.b, s.keys.Courses)
}

func (s *Store) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	courses, err := s.ListCourses(ctx)
	if err != nil {
		return domain.Course{}, err
	}

	i := slices.IndexFunc(courses, func(c domain.Course) bool { return c.ID == id })
	if i < 0 {
		return domain.Course{}, notFound("course", id)
	}

	return courses[i], nil
}

// SaveCourse inserts the course or overwrites the one with the same ID.
func (s *Store) SaveCourse(ctx context.Context, c domain.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	courses, err := load[domain.Course](ctx, s.b, s.keys.Courses)
	if err != nil {
		return err
	}

	if c.Questions == nil {
		c.Questions = []domain.Question{}
	}

	return save(ctx, s.b, s.keys.Courses, upsert(courses, c, func(c domain.Course) string { return c.ID }))
}

// UpdateCourse loads the course, applies fn and writes the result back.
func (s *Store) UpdateCourse(ctx context.Context, id string, fn func(c *domain.Course) error) (domain.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	courses, err := load[domain.Course](ctx, s.b, s.keys.Courses)
	if err != nil {
		return domain.Course{}, err
	}

	i := slices.IndexFunc(courses, func(c domain.Course) bool { return c.ID == id })
	if i < 0 {
		return domain.Course{}, notFound("course", id)
	}

	c := courses[i].Clone()
	if err := fn(&c); err != nil {
		return domain.Course{}, err
	}
	courses[i] = c

	if err := save(ctx, s.b, s.keys.Courses, courses); err != nil {
		return domain.Course{}, err
	}

	return c, nil
}

// DeleteCourse removes the course. Deleting an unknown course is not an error.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	courses, err := load[domain.Course](ctx, s.b, s.keys.Courses)
	if err != nil {
		return err
	}

	courses = slices.DeleteFunc(courses, func(c domain.Course) bool { return c.ID == id })
	return save(ctx, s.b, s.keys.Courses, courses)
}

type ResultFilter struct {
	UserID   string
	CourseID string
}

func (f ResultFilter) match(r domain.ExamResult) bool {
	return (f.UserID == "" || f.UserID == r.UserID) &&
		(f.CourseID == "" || f.CourseID == r.CourseID)
}

// ListResults returns results in submission order.
func (s *Store) ListResults(ctx context.Context, f ResultFilter) ([]domain.ExamResult, error) {
	results, err := load[domain.ExamResult](ctx, s.b, s.keys.Results)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(results, func(r domain.ExamResult) bool { return !f.match(r) }), nil
}

func (s *Store) GetResult(ctx context.Context, id string) (domain.ExamResult, error) {
	results, err := load[domain.ExamResult](ctx, s.b, s.keys.Results)
	if err != nil {
		return domain.ExamResult{}, err
	}

	i := slices.IndexFunc(results, func(r domain.ExamResult) bool { return r.ID == id })
	if i < 0 {
		return domain.ExamResult{}, notFound("result", id)
	}

	return results[i], nil
}

// SaveResult appends a result. Results are never overwritten.
func (s *Store) SaveResult(ctx context.Context, r domain.ExamResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := load[domain.ExamResult](ctx, s.b, s.keys.Results)
	if err != nil {
		return err
	}

	if slices.ContainsFunc(results, func(x domain.ExamResult) bool { return x.ID == r.ID }) {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("result already exists: id=%s", r.ID))
	}

	return save(ctx, s.b, s.keys.Results, append(results, r))
}

// CurrentUser returns the logged in user, or nil.
func (s *Store) CurrentUser(ctx context.Context) (*domain.User, error) {
	users, err := load[domain.User](ctx, s.b, s.keys.CurrentUser)
	if err != nil {
		return nil, err
	}

	if len(users) == 0 {
		return nil, nil
	}

	return &users[0], nil
}

// SetCurrentUser stores u as the logged in user; nil logs out.
func (s *Store) SetCurrentUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u == nil {
		if err := s.b.Del(ctx, s.keys.CurrentUser); err != nil {
			return fmt.Errorf("store: delete %s: %w", s.keys.CurrentUser, err)
		}
		return nil
	}

	return save(ctx, s.b, s.keys.CurrentUser, []domain.User{*u})
}

func load[T any](ctx context.Context, b Backend, key string) ([]T, error) {
	raw, err := b.Get(ctx, key)
	if stderrors.Is(err, ErrNoValue) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", key, err)
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", key, err)
	}

	if items == nil {
		items = []T{}
	}

	return items, nil
}

func save[T any](ctx context.Context, b Backend, key string, items []T) error {
	if items == nil {
		items = []T{}
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}

	if err := b.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}

	return nil
}

func upsert[T any](items []T, item T, id func(T) string) []T {
	i := slices.IndexFunc(items, func(x T) bool { return id(x) == id(item) })
	if i < 0 {
		return append(items, item)
	}

	items[i] = item
	return items
}

func notFound(kind, id string) error {
	return errors.New(errors.CodeNotFound, errors.WithMessagef("%s not found: id=%s", kind, id))
}
