// Package pause implements the conversation pause/resume state machine:
// Active -> Paused(reason, expiry?) -> Active, with the persisted flag as
// source of truth and the bot webhook as best-effort automation.
package pause

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/botctl"
	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
	"github.com/afiliado-ai/agent-dashboard/pkg/metrics"
)

// Store is the slice of the lead store the controller writes through.
type Store interface {
	SetPause(ctx context.Context, table, remotejid string, state model.PauseState) (int64, error)
	ClearPause(ctx context.Context, table, remotejid string) (int64, error)
	ListExpired(ctx context.Context, table string, now time.Time) ([]string, error)
}

// durations per supported unit.
var unitSeconds = map[string]int64{
	"seconds": 1,
	"minutes": 60,
	"hours":   3600,
	"days":    86400,
}

// maxPauseSeconds bounds a timed pause to one year. Also guards the
// duration*multiplier product against int64 overflow.
const maxPauseSeconds = int64(365 * 24 * 3600)

// Controller drives pause/resume transitions for one tenant table.
// Transitions are serialized per conversation and stamped with a monotonic
// sequence number so a late webhook outcome for an earlier transition can
// never be attributed to a newer state.
type Controller struct {
	table  string
	store  Store
	bot    botctl.Controller
	logger *logger.Logger

	// onLocalChange propagates a committed state to the session snapshot
	// and the change feed. Optional; invoked only after the write in (a)
	// succeeded.
	onLocalChange func(remotejid string, state model.PauseState)

	// now is replaceable in tests.
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	seq   map[string]uint64
}

// NewController creates a controller for one resolved table.
func NewController(table string, store Store, bot botctl.Controller, log *logger.Logger) *Controller {
	return &Controller{
		table:  table,
		store:  store,
		bot:    bot,
		logger: log,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
		seq:    make(map[string]uint64),
	}
}

// SetOnLocalChange registers the snapshot/change-feed callback.
func (c *Controller) SetOnLocalChange(fn func(remotejid string, state model.PauseState)) {
	c.onLocalChange = fn
}

// Table returns the tenant table this controller operates on.
func (c *Controller) Table() string {
	return c.table
}

// Pause transitions a conversation to Paused. Re-pausing an already-paused
// conversation updates the existing reason and expiry rather than erroring.
// duration of zero with an empty unit means an indefinite pause.
func (c *Controller) Pause(ctx context.Context, remotejid, reason string, duration int64, unit string) (model.PauseState, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		metrics.RecordTransition("pause", "rejected")
		return model.PauseState{}, &ValidationError{Field: "reason", Message: "reason is required"}
	}
	if duration < 0 {
		metrics.RecordTransition("pause", "rejected")
		return model.PauseState{}, &ValidationError{Field: "duration", Message: "duration must be positive"}
	}

	var seconds int64
	if duration > 0 {
		if unit == "" {
			unit = "seconds"
		}
		mult, ok := unitSeconds[unit]
		if !ok {
			metrics.RecordTransition("pause", "rejected")
			return model.PauseState{}, &ValidationError{Field: "unit", Message: "unit must be seconds, minutes, hours or days"}
		}
		if duration > maxPauseSeconds/mult {
			metrics.RecordTransition("pause", "rejected")
			return model.PauseState{}, &ValidationError{Field: "duration", Message: "duration exceeds the one year maximum"}
		}
		seconds = duration * mult
	}

	state := model.PauseState{Paused: true, Reason: reason}
	if seconds > 0 {
		expires := c.now().Add(time.Duration(seconds) * time.Second)
		state.ExpiresAt = &expires
	}

	unlock := c.lockConversation(remotejid)
	seq := c.nextSeq(remotejid)

	rows, err := c.store.SetPause(ctx, c.table, remotejid, state)
	if err != nil {
		unlock()
		metrics.RecordTransition("pause", "persistence_error")
		return model.PauseState{}, &PersistenceError{Err: err}
	}
	if rows == 0 {
		unlock()
		metrics.RecordTransition("pause", "not_found")
		return model.PauseState{}, ErrConversationNotFound
	}

	// Local persistence is authoritative; reflect it before the remote
	// call so the operator's takeover shows immediately.
	if c.onLocalChange != nil {
		c.onLocalChange(remotejid, state)
	}
	unlock()

	if err := c.bot.PauseBot(ctx, remotejid, seconds, reason); err != nil {
		if c.outcomeCurrent(remotejid, seq) {
			c.logger.Warn("bot pause webhook failed; conversation paused locally",
				zap.String("table", c.table),
				zap.String("remotejid", remotejid),
				zap.Error(err),
			)
			metrics.RecordTransition("pause", "degraded")
			return state, &RemoteControlError{Action: "pause", Err: err}
		}
		// A newer transition superseded this one; discard the stale outcome.
		c.logger.Debug("discarding stale pause webhook outcome",
			zap.String("remotejid", remotejid),
		)
		return state, nil
	}

	metrics.RecordTransition("pause", "ok")
	return state, nil
}

// Resume transitions a conversation back to Active. Resuming an
// already-active conversation is a no-op: no write, no webhook, no error.
func (c *Controller) Resume(ctx context.Context, remotejid string) (bool, error) {
	unlock := c.lockConversation(remotejid)
	seq := c.nextSeq(remotejid)

	rows, err := c.store.ClearPause(ctx, c.table, remotejid)
	if err != nil {
		unlock()
		metrics.RecordTransition("resume", "persistence_error")
		return false, &PersistenceError{Err: err}
	}
	if rows == 0 {
		unlock()
		metrics.RecordTransition("resume", "noop")
		return false, nil
	}

	if c.onLocalChange != nil {
		c.onLocalChange(remotejid, model.PauseState{})
	}
	unlock()

	if err := c.bot.ResumeBot(ctx, remotejid); err != nil {
		if c.outcomeCurrent(remotejid, seq) {
			c.logger.Warn("bot resume webhook failed; conversation resumed locally",
				zap.String("table", c.table),
				zap.String("remotejid", remotejid),
				zap.Error(err),
			)
			metrics.RecordTransition("resume", "degraded")
			return true, &RemoteControlError{Action: "resume", Err: err}
		}
		c.logger.Debug("discarding stale resume webhook outcome",
			zap.String("remotejid", remotejid),
		)
		return true, nil
	}

	metrics.RecordTransition("resume", "ok")
	return true, nil
}

// Sweep resumes every conversation whose pause has expired. Safe to run
// concurrently with user-triggered transitions: the conditional clear makes
// a raced resume a no-op rather than a double webhook call.
func (c *Controller) Sweep(ctx context.Context) (int, error) {
	expired, err := c.store.ListExpired(ctx, c.table, c.now())
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, jid := range expired {
		ok, err := c.Resume(ctx, jid)
		if err != nil {
			var remoteErr *RemoteControlError
			if errors.As(err, &remoteErr) {
				// Locally resumed; the degraded webhook is already logged.
				resumed++
				continue
			}
			c.logger.Error("sweep failed to resume conversation",
				zap.String("table", c.table),
				zap.String("remotejid", jid),
				zap.Error(err),
			)
			continue
		}
		if ok {
			resumed++
		}
	}

	if resumed > 0 {
		metrics.SweepResumes.WithLabelValues(c.table).Add(float64(resumed))
		c.logger.Info("sweep auto-resumed expired pauses",
			zap.String("table", c.table),
			zap.Int("resumed", resumed),
		)
	}
	return resumed, nil
}

// lockConversation serializes transitions per remotejid.
func (c *Controller) lockConversation(remotejid string) func() {
	c.mu.Lock()
	lock, ok := c.locks[remotejid]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[remotejid] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (c *Controller) nextSeq(remotejid string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq[remotejid]++
	return c.seq[remotejid]
}

// outcomeCurrent reports whether seq is still the latest transition for the
// conversation. Stale webhook outcomes are discarded.
func (c *Controller) outcomeCurrent(remotejid string, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq[remotejid] == seq
}
