package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

type fakeLister struct {
	mu    sync.Mutex
	convs []model.Conversation
	err   error
	calls int
}

func (l *fakeLister) Conversations(_ context.Context, _ string) ([]model.Conversation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	out := make([]model.Conversation, len(l.convs))
	copy(out, l.convs)
	return out, nil
}

func (l *fakeLister) set(convs []model.Conversation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.convs = convs
}

func newTestView(t *testing.T, lister *fakeLister) *View {
	t.Helper()
	log, err := logger.NewDevelopment()
	require.NoError(t, err)
	return NewView("loja_azul_base_leads", lister, log)
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	lister := &fakeLister{convs: []model.Conversation{{RemoteJID: "a"}}}
	v := newTestView(t, lister)

	require.NoError(t, v.Refresh(context.Background(), "initial"))
	convs, version := v.Snapshot()
	require.Len(t, convs, 1)
	assert.Equal(t, uint64(1), version)

	lister.set([]model.Conversation{{RemoteJID: "a"}, {RemoteJID: "b"}})
	require.NoError(t, v.Refresh(context.Background(), "realtime"))

	convs, version = v.Snapshot()
	assert.Len(t, convs, 2)
	assert.Equal(t, uint64(2), version)
}

func TestRefreshErrorKeepsSnapshot(t *testing.T) {
	lister := &fakeLister{convs: []model.Conversation{{RemoteJID: "a"}}}
	v := newTestView(t, lister)
	require.NoError(t, v.Refresh(context.Background(), "initial"))

	lister.mu.Lock()
	lister.err = errors.New("connection refused")
	lister.mu.Unlock()

	require.Error(t, v.Refresh(context.Background(), "realtime"))
	convs, version := v.Snapshot()
	assert.Len(t, convs, 1)
	assert.Equal(t, uint64(1), version)
}

func TestGet(t *testing.T) {
	lister := &fakeLister{convs: []model.Conversation{{RemoteJID: "a", Name: "Ana"}}}
	v := newTestView(t, lister)
	require.NoError(t, v.Refresh(context.Background(), "initial"))

	conv, ok := v.Get("a")
	require.True(t, ok)
	assert.Equal(t, "Ana", conv.Name)

	_, ok = v.Get("missing")
	assert.False(t, ok)
}

func TestApplyPausePatchesInPlace(t *testing.T) {
	lister := &fakeLister{convs: []model.Conversation{{RemoteJID: "a"}}}
	v := newTestView(t, lister)
	require.NoError(t, v.Refresh(context.Background(), "initial"))

	v.ApplyPause("a", model.PauseState{Paused: true, Reason: "almoço"})

	conv, ok := v.Get("a")
	require.True(t, ok)
	assert.True(t, conv.Pause.Paused)

	_, version := v.Snapshot()
	assert.Equal(t, uint64(2), version)

	// Patching an unknown conversation changes nothing.
	v.ApplyPause("missing", model.PauseState{Paused: true})
	_, version = v.Snapshot()
	assert.Equal(t, uint64(2), version)
}

func TestWaitReturnsImmediatelyWhenNewer(t *testing.T) {
	lister := &fakeLister{convs: []model.Conversation{{RemoteJID: "a"}}}
	v := newTestView(t, lister)
	require.NoError(t, v.Refresh(context.Background(), "initial"))

	convs, version, err := v.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
	assert.Equal(t, uint64(1), version)
}

func TestWaitBlocksUntilChange(t *testing.T) {
	lister := &fakeLister{}
	v := newTestView(t, lister)

	done := make(chan uint64, 1)
	go func() {
		_, version, err := v.Wait(context.Background(), 0)
		if err == nil {
			done <- version
		}
	}()

	// Give the waiter time to park before bumping.
	time.Sleep(20 * time.Millisecond)
	v.ApplyPause("a", model.PauseState{}) // unknown jid, no bump
	require.NoError(t, v.Refresh(context.Background(), "realtime"))

	select {
	case version := <-done:
		assert.Equal(t, uint64(1), version)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	v := newTestView(t, &fakeLister{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := v.Wait(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
