package exam

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/victornm/examiner/internal/domain"
)

const tickInterval = time.Second

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type NewTickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

type TimerConfig struct {
	NewTickerFunc NewTickerFunc
	// OnFinish is called once when a tick submits the session. It runs after the timer has
	// released its ticker, so calling Stop from it is safe.
	OnFinish func(ctx context.Context, r *domain.ExamResult)
}

// Timer delivers one tick per second to a session until the session finishes, the context is
// cancelled or Stop is called. Ticks are processed one at a time.
type Timer struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func StartTimer(ctx context.Context, s *Session, c TimerConfig) *Timer {
	if c.NewTickerFunc == nil {
		c.NewTickerFunc = NewTimeTicker
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Timer{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	tk := c.NewTickerFunc(tickInterval)

	go func() {
		r := t.run(ctx, s, tk)
		tk.Stop()
		close(t.done)

		if r != nil && c.OnFinish != nil {
			c.OnFinish(context.WithoutCancel(ctx), r)
		}
	}()

	return t
}

func (t *Timer) run(ctx context.Context, s *Session, tk Ticker) *domain.ExamResult {
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-tk.C():
			r, err := s.Tick(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "exam: timeout submission failed, retrying on next tick",
					"course", s.CourseID(),
					"user", s.LearnerID(),
					"error", err,
				)
				continue
			}

			if r != nil {
				return r
			}

			if s.Finished() {
				return nil
			}
		}
	}
}

// Stop cancels the timer and waits for its goroutine to exit. It is safe to call more than once.
func (t *Timer) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the timer has stopped ticking.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}
