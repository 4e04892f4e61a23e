// Package conversation holds the cached, possibly-stale projection of a
// tenant's conversations, reconciled by full refetches.
package conversation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
	"github.com/afiliado-ai/agent-dashboard/pkg/metrics"
)

// Lister fetches and normalizes the conversations for a table.
type Lister interface {
	Conversations(ctx context.Context, table string) ([]model.Conversation, error)
}

// View is the in-memory conversation snapshot for one tenant. Refetches
// replace the snapshot wholesale; optimistic pause patches are applied in
// place and superseded by the next refetch, since the remote store is
// authoritative.
type View struct {
	table  string
	lister Lister
	logger *logger.Logger

	mu            sync.RWMutex
	conversations []model.Conversation
	version       uint64
	loadedAt      time.Time
	changed       chan struct{}
}

// NewView creates an empty view for a table.
func NewView(table string, lister Lister, log *logger.Logger) *View {
	return &View{
		table:   table,
		lister:  lister,
		logger:  log,
		changed: make(chan struct{}),
	}
}

// Refresh refetches the whole table and replaces the snapshot. trigger
// labels the refetch source for metrics (initial, realtime, manual).
func (v *View) Refresh(ctx context.Context, trigger string) error {
	convs, err := v.lister.Conversations(ctx, v.table)
	if err != nil {
		v.logger.Error("failed to refresh conversations",
			zap.String("table", v.table),
			zap.String("trigger", trigger),
			zap.Error(err),
		)
		return err
	}

	metrics.ConversationRefetches.WithLabelValues(trigger).Inc()

	v.mu.Lock()
	v.conversations = convs
	v.loadedAt = time.Now()
	v.bumpLocked()
	v.mu.Unlock()
	return nil
}

// Snapshot returns the current conversations and snapshot version.
func (v *View) Snapshot() ([]model.Conversation, uint64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]model.Conversation, len(v.conversations))
	copy(out, v.conversations)
	return out, v.version
}

// Get returns one conversation by remote identifier.
func (v *View) Get(remotejid string) (model.Conversation, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for i := range v.conversations {
		if v.conversations[i].RemoteJID == remotejid {
			return v.conversations[i], true
		}
	}
	return model.Conversation{}, false
}

// ApplyPause patches the pause state of one conversation optimistically.
// Called only after the store write committed.
func (v *View) ApplyPause(remotejid string, state model.PauseState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.conversations {
		if v.conversations[i].RemoteJID == remotejid {
			v.conversations[i].Pause = state
			v.conversations[i].UpdatedAt = time.Now()
			v.bumpLocked()
			return
		}
	}
}

// Wait blocks until the snapshot version exceeds after, then returns it.
// Used by the SSE push endpoint.
func (v *View) Wait(ctx context.Context, after uint64) ([]model.Conversation, uint64, error) {
	for {
		v.mu.RLock()
		version := v.version
		ch := v.changed
		v.mu.RUnlock()

		if version > after {
			convs, ver := v.Snapshot()
			return convs, ver, nil
		}

		select {
		case <-ctx.Done():
			return nil, version, ctx.Err()
		case <-ch:
		}
	}
}

// bumpLocked advances the version and wakes waiters. Callers hold mu.
func (v *View) bumpLocked() {
	v.version++
	close(v.changed)
	v.changed = make(chan struct{})
}
