package realtime

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

// Listener owns the debounce-and-refetch loop for one tenant table. Any
// change notification arms a short timer; when it fires the whole snapshot
// is refetched and replaced, rather than patched incrementally, so the
// in-memory state can never diverge from the normalization logic.
type Listener struct {
	feed     *Feed
	table    string
	debounce time.Duration
	refetch  func()
	logger   *logger.Logger

	mu     sync.Mutex
	timer  *time.Timer
	sub    *nats.Subscription
	closed bool
}

// NewListener creates a listener for one table. refetch is invoked after
// the debounce window closes; it must be safe to call repeatedly.
func NewListener(feed *Feed, table string, debounce time.Duration, refetch func(), log *logger.Logger) *Listener {
	return &Listener{
		feed:     feed,
		table:    table,
		debounce: debounce,
		refetch:  refetch,
		logger:   log,
	}
}

// Start subscribes to the change feed. A subscription failure is non-fatal
// for the session: the dashboard keeps working through manual refetches.
func (l *Listener) Start() error {
	sub, err := l.feed.Subscribe(l.table, func(model.ChangeEvent) {
		l.schedule()
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.sub = sub
	l.mu.Unlock()

	l.logger.Info("realtime listener started", zap.String("table", l.table))
	return nil
}

// schedule arms or re-arms the debounce timer. Bursts of notifications from
// multi-step remote writes collapse into one refetch.
func (l *Listener) schedule() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if l.timer != nil {
		l.timer.Reset(l.debounce)
		return
	}
	l.timer = time.AfterFunc(l.debounce, l.fire)
}

func (l *Listener) fire() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.timer = nil
	l.mu.Unlock()

	l.refetch()
}

// Stop tears the listener down. Pending timers are cancelled so a torn-down
// session never refetches into freed state.
func (l *Listener) Stop() {
	l.mu.Lock()
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			l.logger.Warn("failed to unsubscribe", zap.String("table", l.table), zap.Error(err))
		}
	}
}
