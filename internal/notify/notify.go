// Package notify delivers fire-and-forget learner feedback such as timer ticks and the
// success or fail sound played when an exam ends.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/telemetry"
)

const EventSound = "sound"

type Func func(ctx context.Context, userID string, kind domain.SoundKind) error

func (f Func) Notify(ctx context.Context, userID string, kind domain.SoundKind) error {
	return f(ctx, userID, kind)
}

type Nop struct{}

func (Nop) Notify(context.Context, string, domain.SoundKind) error { return nil }

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Sound struct {
		Kind domain.SoundKind `json:"kind"`
	}
)

type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type RedisConfig struct {
	Redis  Publisher
	Prefix string
	// Skip lists sound kinds that are not published, e.g. tick to save traffic.
	Skip []domain.SoundKind
}

// Redis publishes notifications on a per-user pub/sub channel; the browser plays the sound.
type Redis struct {
	redis  Publisher
	prefix string
	skip   map[domain.SoundKind]bool
}

func NewRedis(c RedisConfig) *Redis {
	n := &Redis{
		redis:  c.Redis,
		prefix: c.Prefix,
		skip:   make(map[domain.SoundKind]bool, len(c.Skip)),
	}

	for _, k := range c.Skip {
		n.skip[k] = true
	}

	return n
}

func (n *Redis) Notify(ctx context.Context, userID string, kind domain.SoundKind) error {
	if n.skip[kind] {
		return nil
	}

	if err := n.Publish(ctx, userID, EventSound, Sound{Kind: kind}); err != nil {
		telemetry.NotificationsFailed.WithLabelValues(string(kind)).Inc()
		return err
	}

	return nil
}

// Publish sends an arbitrary event to the user's channel.
func (n *Redis) Publish(ctx context.Context, userID, event string, data any) error {
	b, err := json.Marshal(Notification{
		Event: event,
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %v", event, err)
	}

	return n.redis.Publish(ctx, Channel(n.prefix, userID), b).Err()
}

func Channel(prefix, userID string) string {
	return fmt.Sprintf("%s:user:%s", prefix, userID)
}
