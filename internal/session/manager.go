// Package session owns the per-tenant runtime state: resolved resources,
// the conversation snapshot, the realtime listener and the pause
// controller. One session per tenant regardless of how many dashboard
// views are open.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/botctl"
	"github.com/afiliado-ai/agent-dashboard/internal/conversation"
	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/internal/pause"
	"github.com/afiliado-ai/agent-dashboard/internal/realtime"
	"github.com/afiliado-ai/agent-dashboard/internal/tenant"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
	"github.com/afiliado-ai/agent-dashboard/pkg/metrics"
)

// Session is one tenant's live state.
type Session struct {
	TenantID   string
	Profile    model.TenantProfile
	Resources  model.TenantResources
	View       *conversation.View
	Controller *pause.Controller

	listener  *realtime.Listener
	listening bool
	feed      *realtime.Feed
}

// RealtimeStatus reports the change-feed health for this session:
// "connected" or "disconnected". A disconnected feed is non-fatal; the
// dashboard keeps working through manual refetches.
func (s *Session) RealtimeStatus() string {
	if s.listening && s.feed.Connected() {
		return "connected"
	}
	return "disconnected"
}

func (s *Session) close() {
	if s.listener != nil {
		s.listener.Stop()
	}
}

// ProfileSource supplies tenant profiles and the resolved-table inventory
// for the sweeper.
type ProfileSource interface {
	Get(ctx context.Context, tenantID string) (*model.TenantProfile, error)
	ListResolvedTables(ctx context.Context) ([]string, error)
}

// LeadSource is the slice of the lead store a session reads and writes:
// the conversation snapshot plus pause transitions.
type LeadSource interface {
	conversation.Lister
	pause.Store
}

// Manager resolves, caches and tears down tenant sessions, and supplies
// the sweep targets for the process-wide expiry sweeper.
type Manager struct {
	resolver *tenant.Resolver
	profiles ProfileSource
	leads    LeadSource
	feed     *realtime.Feed
	bot      botctl.Controller
	debounce time.Duration
	logger   *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(
	resolver *tenant.Resolver,
	profiles ProfileSource,
	leads LeadSource,
	feed *realtime.Feed,
	bot botctl.Controller,
	debounce time.Duration,
	log *logger.Logger,
) *Manager {
	return &Manager{
		resolver: resolver,
		profiles: profiles,
		leads:    leads,
		feed:     feed,
		bot:      bot,
		debounce: debounce,
		logger:   log,
		sessions: make(map[string]*Session),
	}
}

// Session returns the tenant's session, creating it on first use.
// Resolution failures (no profile, no derivable names) propagate so the
// handler can render the empty/configuration state; they are re-attempted
// on every call since derivation is cheap and pure.
func (m *Manager) Session(ctx context.Context, tenantID string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[tenantID]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	profile, err := m.profiles.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	res, err := m.resolver.Resources(ctx, profile)
	if err != nil {
		return nil, err
	}

	// Built outside the lock: the initial load and feed subscribe for one
	// tenant must not stall every other tenant's request.
	built := m.buildSession(ctx, *profile, res)

	m.mu.Lock()
	if existing, ok := m.sessions[tenantID]; ok {
		m.mu.Unlock()
		built.close()
		return existing, nil
	}
	m.sessions[tenantID] = built
	m.mu.Unlock()

	metrics.ActiveSessions.Inc()
	return built, nil
}

func (m *Manager) buildSession(ctx context.Context, profile model.TenantProfile, res model.TenantResources) *Session {
	view := conversation.NewView(res.TableName, m.leads, m.logger)
	ctrl := pause.NewController(res.TableName, m.leads, m.bot, m.logger)

	table := res.TableName
	ctrl.SetOnLocalChange(func(remotejid string, state model.PauseState) {
		view.ApplyPause(remotejid, state)
		ev := model.ChangeEvent{
			Table:     table,
			Type:      model.ChangeUpdate,
			RemoteJID: remotejid,
			At:        time.Now(),
		}
		if err := m.feed.PublishChange(ev); err != nil {
			m.logger.Warn("failed to publish change event",
				zap.String("table", table),
				zap.Error(err),
			)
		}
	})

	sess := &Session{
		TenantID:   profile.ID,
		Profile:    profile,
		Resources:  res,
		View:       view,
		Controller: ctrl,
		feed:       m.feed,
	}

	refetch := func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = view.Refresh(refreshCtx, "realtime")
	}
	sess.listener = realtime.NewListener(m.feed, table, m.debounce, refetch, m.logger)
	if err := sess.listener.Start(); err != nil {
		m.logger.Warn("realtime listener unavailable; falling back to manual refetch",
			zap.String("table", table),
			zap.Error(err),
		)
	} else {
		sess.listening = true
	}

	if err := view.Refresh(ctx, "initial"); err != nil {
		m.logger.Warn("initial conversation load failed",
			zap.String("table", table),
			zap.Error(err),
		)
	}

	return sess
}

// SweepTargets returns one pause controller per resolved tenant table.
// Tables with an open session reuse that session's controller so the
// optimistic snapshot stays coherent; the rest get detached controllers
// that still publish change events.
func (m *Manager) SweepTargets(ctx context.Context) []*pause.Controller {
	tables, err := m.profiles.ListResolvedTables(ctx)
	if err != nil {
		m.logger.Error("failed to list sweep targets", zap.Error(err))
		return nil
	}

	m.mu.RLock()
	byTable := make(map[string]*pause.Controller, len(m.sessions))
	for _, sess := range m.sessions {
		byTable[sess.Resources.TableName] = sess.Controller
	}
	m.mu.RUnlock()

	targets := make([]*pause.Controller, 0, len(tables))
	seen := make(map[string]bool, len(tables))
	for _, table := range tables {
		if seen[table] {
			continue
		}
		seen[table] = true

		if ctrl, ok := byTable[table]; ok {
			targets = append(targets, ctrl)
			continue
		}
		ctrl := pause.NewController(table, m.leads, m.bot, m.logger)
		detachedTable := table
		ctrl.SetOnLocalChange(func(remotejid string, state model.PauseState) {
			ev := model.ChangeEvent{
				Table:     detachedTable,
				Type:      model.ChangeUpdate,
				RemoteJID: remotejid,
				At:        time.Now(),
			}
			if err := m.feed.PublishChange(ev); err != nil {
				m.logger.Warn("failed to publish change event",
					zap.String("table", detachedTable),
					zap.Error(err),
				)
			}
		})
		targets = append(targets, ctrl)
	}
	return targets
}

// Close tears down every session: listeners unsubscribed, timers stopped.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		sess.close()
		delete(m.sessions, id)
		metrics.ActiveSessions.Dec()
	}
}
