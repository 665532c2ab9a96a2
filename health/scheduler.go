package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-integrations/core"
)

// LifecycleManager is the slice of the credential manager the scheduler
// drives: snapshot the credential set, probe connections, and run refreshes.
type LifecycleManager interface {
	Snapshot() []core.Record
	TestConnection(ctx context.Context, provider string) (core.ProbeResult, error)
	RunRefreshWithRetry(ctx context.Context, provider string, opts core.RefreshRunOptions) (core.RefreshRunResult, error)
}

// Scheduler periodically probes authenticated providers and refreshes the
// ones nearing expiry. Ticks never overlap: if a tick is still running when
// the next fires, the new tick is skipped.
type Scheduler struct {
	manager  LifecycleManager
	config   core.SchedulerConfig
	logger   glog.Logger
	metrics  core.MetricsRecorder
	nowFn    func() time.Time
	running  atomic.Bool
	tickBusy atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

type SchedulerOption func(*Scheduler)

func WithLogger(logger glog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithLoggerProvider(provider glog.LoggerProvider) SchedulerOption {
	return func(s *Scheduler) {
		if provider != nil {
			s.logger = glog.Ensure(provider.GetLogger("health"))
		}
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) SchedulerOption {
	return func(s *Scheduler) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

func WithClock(nowFn func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if nowFn != nil {
			s.nowFn = nowFn
		}
	}
}

func NewScheduler(manager LifecycleManager, cfg core.SchedulerConfig, options ...SchedulerOption) (*Scheduler, error) {
	if manager == nil {
		return nil, fmt.Errorf("health: a lifecycle manager is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = core.DefaultTickInterval
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = core.DefaultWorkerPoolSize
	}
	if cfg.StopGracePeriod <= 0 {
		cfg.StopGracePeriod = core.DefaultStopGracePeriod
	}

	scheduler := &Scheduler{
		manager: manager,
		config:  cfg,
		metrics: core.NopMetricsRecorder{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(scheduler)
	}
	scheduler.logger = glog.Ensure(scheduler.logger)
	return scheduler, nil
}

// Start launches the tick loop. It returns an error when already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("health: scheduler is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx)
	s.logger.Info("health scheduler started",
		"tick_interval", s.config.TickInterval.String(),
		"worker_pool_size", s.config.WorkerPoolSize,
	)
	return nil
}

// Stop signals the loop and waits up to the grace period for in-flight work
// to drain. It is safe to call on a stopped scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return nil
	}

	grace := time.NewTimer(s.config.StopGracePeriod)
	defer grace.Stop()

	select {
	case <-done:
		s.logger.Info("health scheduler stopped")
		return nil
	case <-grace.C:
		return fmt.Errorf("health: scheduler did not drain within %s", s.config.StopGracePeriod)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunTick(ctx)
		}
	}
}

// RunTick executes one scheduling pass. Exposed so hosts can trigger an
// immediate pass outside the timer cadence.
func (s *Scheduler) RunTick(ctx context.Context) {
	if !s.tickBusy.CompareAndSwap(false, true) {
		s.logger.Info("health tick skipped, previous tick still running")
		s.metrics.IncCounter(ctx, "integrations.health_tick.skipped", 1, map[string]string{})
		return
	}
	defer s.tickBusy.Store(false)

	startedAt := s.nowFn()
	records := s.manager.Snapshot()

	sem := make(chan struct{}, s.config.WorkerPoolSize)
	var wg sync.WaitGroup
	for _, record := range records {
		switch record.State {
		case core.StateActive, core.StateExpiring:
		default:
			continue
		}
		if ctx.Err() != nil {
			break
		}

		record := record
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.checkProvider(ctx, record)
		}()
	}
	wg.Wait()

	s.metrics.ObserveHistogram(ctx, "integrations.health_tick.duration_ms",
		float64(time.Since(startedAt).Milliseconds()), map[string]string{})
	s.metrics.IncCounter(ctx, "integrations.health_tick.total", 1, map[string]string{})
}

func (s *Scheduler) checkProvider(ctx context.Context, record core.Record) {
	result, err := s.manager.TestConnection(ctx, record.Provider)
	if err != nil {
		s.logger.Error("health probe failed to run",
			"provider", record.Provider,
			"error", err.Error(),
		)
	} else if !result.Success {
		s.logger.Info("health probe reported failure",
			"provider", record.Provider,
			"probe_error", result.Error,
			"latency_ms", result.Latency.Milliseconds(),
		)
	}

	if record.State != core.StateExpiring {
		return
	}
	runResult, refreshErr := s.manager.RunRefreshWithRetry(ctx, record.Provider, core.RefreshRunOptions{})
	if refreshErr != nil {
		s.logger.Error("scheduled refresh failed",
			"provider", record.Provider,
			"attempts", runResult.Attempts,
			"pending_reauth", runResult.PendingReauth,
			"error", refreshErr.Error(),
		)
		return
	}
	s.logger.Info("scheduled refresh succeeded",
		"provider", record.Provider,
		"attempts", runResult.Attempts,
	)
}
