package redisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/store"
	"github.com/victornm/examiner/internal/store/redisstore"
)

func TestBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	b := redisstore.New(redisstore.Config{
		Redis: redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}),
	})
	ctx := context.Background()

	_, err := b.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrNoValue)

	require.NoError(t, b.Set(ctx, "k", []byte(`[1]`)))
	v, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(v))

	require.NoError(t, b.Del(ctx, "k"))
	_, err = b.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrNoValue)
}

func TestStoreOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	s := store.New(store.Config{
		Backend: redisstore.New(redisstore.Config{
			Redis: redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}),
		}),
	})
	ctx := context.Background()

	require.NoError(t, s.SaveCourse(ctx, domain.Course{ID: "c1", Title: "Go", TimeLimitMinutes: 1}))
	require.NoError(t, s.SaveResult(ctx, domain.ExamResult{ID: "r1", CourseID: "c1", UserID: "u1", Answers: []domain.Answer{}}))

	raw, err := mr.Get("quiz_app_courses")
	require.NoError(t, err)
	assert.Contains(t, raw, `"title":"Go"`)

	results, err := s.ListResults(ctx, store.ResultFilter{CourseID: "c1"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestBackend_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	b := redisstore.New(redisstore.Config{
		Redis: redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}, MaxRetries: -1}),
	})

	_, err = b.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNoValue)
}
