package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/notify"
)

func TestRedis_Notify(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc := makeRedis(t)
	sub := rc.Subscribe(ctx, notify.Channel("local:pubsub", "u1"))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "should confirm subscription")

	n := notify.NewRedis(notify.RedisConfig{
		Redis:  rc,
		Prefix: "local:pubsub",
		Skip:   []domain.SoundKind{domain.SoundTick},
	})

	require.NoError(t, n.Notify(ctx, "u1", domain.SoundTick))
	require.NoError(t, n.Notify(ctx, "u1", domain.SoundSuccess))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got struct {
		Event string `json:"event"`
		Data  struct {
			Kind domain.SoundKind `json:"kind"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, notify.EventSound, got.Event)
	assert.Equal(t, domain.SoundSuccess, got.Data.Kind, "tick should be skipped, success delivered first")
}

func TestRedis_NotifyFailsWhenRedisIsDown(t *testing.T) {
	rs, err := miniredis.Run()
	require.NoError(t, err)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      []string{rs.Addr()},
		MaxRetries: -1,
	})
	t.Cleanup(func() { rc.Close() })
	rs.Close()

	n := notify.NewRedis(notify.RedisConfig{Redis: rc, Prefix: "p"})
	assert.Error(t, n.Notify(context.Background(), "u1", domain.SoundFail))
}

func makeRedis(t *testing.T) redis.UniversalClient {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return rc
}
