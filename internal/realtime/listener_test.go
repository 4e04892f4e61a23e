package realtime

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

func newTestListener(t *testing.T, debounce time.Duration, refetch func()) *Listener {
	t.Helper()
	log, err := logger.NewDevelopment()
	require.NoError(t, err)
	return NewListener(NewFeed(nil, log), "loja_azul_base_leads", debounce, refetch, log)
}

func TestDebounceCollapsesBursts(t *testing.T) {
	var refetches atomic.Int32
	l := newTestListener(t, 30*time.Millisecond, func() {
		refetches.Add(1)
	})

	// A burst of notifications within the window triggers one refetch.
	for i := 0; i < 5; i++ {
		l.schedule()
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		return refetches.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// Quiet period, then another change triggers a second refetch.
	l.schedule()
	assert.Eventually(t, func() bool {
		return refetches.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestStopCancelsPendingRefetch(t *testing.T) {
	var refetches atomic.Int32
	l := newTestListener(t, 30*time.Millisecond, func() {
		refetches.Add(1)
	})

	l.schedule()
	l.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, refetches.Load())
}

func TestScheduleAfterStopIsIgnored(t *testing.T) {
	var refetches atomic.Int32
	l := newTestListener(t, 10*time.Millisecond, func() {
		refetches.Add(1)
	})

	l.Stop()
	l.schedule()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, refetches.Load())
}

func TestStartWithoutConnectionFails(t *testing.T) {
	l := newTestListener(t, time.Millisecond, func() {})
	assert.ErrorIs(t, l.Start(), ErrDisconnected)
}
