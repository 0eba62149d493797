// Package notifytest provides a recording notifier for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/victornm/examiner/internal/domain"
)

type Call struct {
	UserID string
	Kind   domain.SoundKind
}

// Recorder keeps every notification it receives. Err, when set, is returned from Notify.
type Recorder struct {
	Err error

	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Notify(_ context.Context, userID string, kind domain.SoundKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, Call{UserID: userID, Kind: kind})
	return r.Err
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Call(nil), r.calls...)
}

// Kinds returns the recorded kinds, optionally without ticks.
func (r *Recorder) Kinds(withTicks bool) []domain.SoundKind {
	var kinds []domain.SoundKind
	for _, c := range r.Calls() {
		if c.Kind == domain.SoundTick && !withTicks {
			continue
		}
		kinds = append(kinds, c.Kind)
	}

	return kinds
}
