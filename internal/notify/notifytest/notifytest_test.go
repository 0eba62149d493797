package notifytest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/notify/notifytest"
)

func TestRecorder(t *testing.T) {
	r := notifytest.Recorder{Err: errors.New("muted")}
	assert.Error(t, r.Notify(context.Background(), "u1", domain.SoundTick))
	assert.Error(t, r.Notify(context.Background(), "u1", domain.SoundFail))

	assert.Equal(t, []domain.SoundKind{domain.SoundFail}, r.Kinds(false))
	assert.Equal(t, []domain.SoundKind{domain.SoundTick, domain.SoundFail}, r.Kinds(true))
	assert.Equal(t, []notifytest.Call{{UserID: "u1", Kind: domain.SoundTick}, {UserID: "u1", Kind: domain.SoundFail}}, r.Calls())
}
