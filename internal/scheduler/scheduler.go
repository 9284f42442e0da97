package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/lifecycle"
	"github.com/kjstillabower/weather-refresh/internal/observability"
)

// MaybeRefresher applies the foreground freshness rule. Implemented by the
// refresh orchestrator; MaybeRefresh must not block.
type MaybeRefresher interface {
	MaybeRefresh()
}

// Refresher periodically asks the orchestrator to refresh stale data while
// the app is active. Fresh data never causes an API call, so the interval
// only bounds how long stale data can be shown.
type Refresher struct {
	scheduler *gocron.Scheduler
	target    MaybeRefresher
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a Refresher. An interval of zero or less disables it.
func New(target MaybeRefresher, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		scheduler: gocron.NewScheduler(time.UTC),
		target:    target,
		interval:  interval,
		logger:    observability.OrNop(logger),
	}
}

// Start schedules the periodic check. The first check runs one interval
// after Start; the orchestrator already evaluates freshness when it mounts.
func (r *Refresher) Start() error {
	if r.interval <= 0 {
		r.logger.Info("periodic refresh disabled")
		return nil
	}
	_, err := r.scheduler.Every(r.interval).WaitForSchedule().SingletonMode().Do(r.tick)
	if err != nil {
		return fmt.Errorf("schedule refresh check: %w", err)
	}
	r.scheduler.StartAsync()
	r.logger.Info("periodic refresh started", zap.Duration("interval", r.interval))
	return nil
}

// Stop cancels future checks. Safe to call when Start was a no-op.
func (r *Refresher) Stop() {
	if r.scheduler.IsRunning() {
		r.scheduler.Stop()
	}
}

func (r *Refresher) tick() {
	if lifecycle.IsShuttingDown() {
		return
	}
	if st := lifecycle.State(); st != lifecycle.Active {
		r.logger.Debug("skipping refresh check", zap.String("app_state", string(st)))
		return
	}
	r.target.MaybeRefresh()
}
