// Package jobs runs background cache maintenance on a cron schedule.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rohankatakam/devpulse/internal/config"
	"github.com/rohankatakam/devpulse/internal/dashboard"
	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/logging"
)

const (
	// Shared by every replica pointed at the same database
	warmLockKey int64 = 0x64657670756c7365

	warmTimeout   = 10 * time.Minute
	sweepSchedule = "17 * * * *"
	stopDeadline  = 30 * time.Second
)

// Warmer recomputes cached dashboard results
type Warmer interface {
	Warm(ctx context.Context) (dashboard.WarmReport, error)
}

// Locker runs fn only if no other process holds key
type Locker interface {
	WithAdvisoryLock(ctx context.Context, key int64, fn func(ctx context.Context) error) (bool, error)
}

// Sweeper drops expired shared cache entries
type Sweeper interface {
	Sweep() (int, error)
}

// ErrWarmRunning is returned while this process already has a warm cycle in flight
var ErrWarmRunning = errors.ConflictErrorf("cache warm already running")

// Scheduler owns the cron runner and its jobs
type Scheduler struct {
	cron    *cron.Cron
	warmer  Warmer
	locker  Locker
	sweeper Sweeper
	logger  *slog.Logger

	// ctx bounds every warm cycle started by the scheduler; Stop cancels it
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
}

// New builds a scheduler from config. locker and sweeper may be nil; without a
// locker every replica warms on its own schedule.
func New(cfg config.JobsConfig, warmer Warmer, locker Locker, sweeper Sweeper) (*Scheduler, error) {
	loc := time.UTC
	if cfg.TZ != "" {
		l, err := time.LoadLocation(cfg.TZ)
		if err != nil {
			return nil, errors.ConfigErrorf("invalid jobs.tz %q: %v", cfg.TZ, err)
		}
		loc = l
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		),
		warmer:  warmer,
		locker:  locker,
		sweeper: sweeper,
		logger:  logging.Component("jobs"),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if cfg.WarmCron != "" {
		if _, err := s.cron.AddFunc(cfg.WarmCron, s.warm); err != nil {
			return nil, errors.ConfigErrorf("invalid jobs.warm_cron %q: %v", cfg.WarmCron, err)
		}
	}
	if sweeper != nil {
		if _, err := s.cron.AddFunc(sweepSchedule, s.sweep); err != nil {
			return nil, errors.InternalErrorf("schedule cache sweep: %v", err)
		}
	}
	return s, nil
}

// Jobs reports how many jobs are scheduled
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", s.Jobs())
}

// Stop halts the schedule, cancels in-flight warm cycles and waits for them,
// up to a deadline
func (s *Scheduler) Stop() {
	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopDeadline):
		s.logger.Warn("scheduler stopped with a job still running")
	}
}

// WarmOnce runs one warm cycle in the caller's goroutine. It reports false when
// another process holds the warm lock and the cycle was skipped, and returns
// ErrWarmRunning when this process is already warming.
func (s *Scheduler) WarmOnce(ctx context.Context) (bool, error) {
	if !s.running.CompareAndSwap(false, true) {
		return false, ErrWarmRunning
	}
	defer s.running.Store(false)
	return s.warmLocked(ctx)
}

// TriggerWarm starts a warm cycle in the background. The cycle is bound to the
// scheduler's lifetime rather than the caller's. It returns ErrWarmRunning
// while another cycle is in flight.
func (s *Scheduler) TriggerWarm() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrWarmRunning
	}
	if s.ctx.Err() != nil {
		s.running.Store(false)
		return errors.InternalErrorf("scheduler stopped")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		ctx, cancel := context.WithTimeout(s.ctx, warmTimeout)
		defer cancel()
		s.logOutcome(s.warmLocked(ctx))
	}()
	return nil
}

func (s *Scheduler) warmLocked(ctx context.Context) (bool, error) {
	run := func(ctx context.Context) error {
		_, err := s.warmer.Warm(ctx)
		return err
	}
	if s.locker == nil {
		return true, run(ctx)
	}
	return s.locker.WithAdvisoryLock(ctx, warmLockKey, run)
}

func (s *Scheduler) warm() {
	ctx, cancel := context.WithTimeout(s.ctx, warmTimeout)
	defer cancel()

	ran, err := s.WarmOnce(ctx)
	if err == ErrWarmRunning {
		s.logger.Info("cache warm skipped, previous run still active")
		return
	}
	s.logOutcome(ran, err)
}

func (s *Scheduler) logOutcome(ran bool, err error) {
	switch {
	case err != nil:
		s.logger.Error("cache warm failed", "error", err)
	case !ran:
		s.logger.Info("cache warm already running elsewhere")
	default:
		s.logger.Info("cache warm finished")
	}
}

func (s *Scheduler) sweep() {
	n, err := s.sweeper.Sweep()
	if err != nil {
		s.logger.Warn("cache sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("cache swept", "expired", n)
	}
}
