package pause

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

// ControllerSource supplies the controllers to sweep on each tick: one per
// tenant with a resolved table, deduplicated, regardless of how many
// dashboard views are open for that tenant.
type ControllerSource interface {
	SweepTargets(ctx context.Context) []*Controller
}

// Sweeper runs the expiry sweep on a fixed interval. One sweeper per
// process replaces the original's per-view polling.
type Sweeper struct {
	source   ControllerSource
	interval time.Duration
	logger   *logger.Logger

	cron *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper over a controller source.
func NewSweeper(source ControllerSource, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		source:   source,
		interval: interval,
		logger:   log,
		cron:     cron.New(),
	}
}

// Start begins sweeping. Calling Start twice is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(s.runOnce))
	s.cron.Start()
	s.logger.Info("expiry sweeper started", zap.Duration("interval", s.interval))
}

// Stop halts the sweep and waits for a running tick to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("expiry sweeper stopped")
}

// RunOnce sweeps all targets immediately. Exposed for tests and for a
// forced sweep on startup.
func (s *Sweeper) RunOnce(ctx context.Context) {
	for _, ctrl := range s.source.SweepTargets(ctx) {
		if _, err := ctrl.Sweep(ctx); err != nil {
			s.logger.Error("sweep tick failed",
				zap.String("table", ctrl.Table()),
				zap.Error(err),
			)
		}
	}
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	s.RunOnce(ctx)
}
