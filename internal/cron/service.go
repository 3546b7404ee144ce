package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/adisaputra/tokoku-backend/pkg/logger"
	"github.com/adisaputra/tokoku-backend/pkg/metrics"
)

// Service drives the registered jobs on a fixed interval. Each job run is
// guarded by a distributed lock so multiple worker replicas stay safe.
type Service struct {
	registry *Registry
	locker   *Locker
	metrics  *metrics.CronJobMetrics
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time
}

func NewService(registry *Registry, locker *Locker, m *metrics.CronJobMetrics, log *logger.Logger, interval time.Duration) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	return &Service{
		registry: registry,
		locker:   locker,
		metrics:  m,
		log:      log,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Start runs one tick immediately, then on every interval until the context
// ends. Job failures are logged and counted but never stop the loop.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error(ctx, "cron tick failed", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.Error(ctx, "cron tick failed", err)
			}
		}
	}
}

// RunOnce executes every registered job once, skipping jobs another worker
// currently holds the lock for. It returns the rows each executed job acted
// on, keyed by job name; lock-skipped jobs are absent from the map. Errors are
// collected, not short-circuited.
func (s *Service) RunOnce(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(s.registry.Jobs()))
	var errs error
	for _, job := range s.registry.Jobs() {
		count, ran, err := s.runJob(ctx, job)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
			continue
		}
		if ran {
			counts[job.Name()] = count
		}
	}
	return counts, errs
}

func (s *Service) runJob(ctx context.Context, job Job) (int64, bool, error) {
	name := job.Name()
	jobCtx := s.log.WithField(ctx, "job", name)

	acquired, err := s.locker.Acquire(jobCtx, name)
	if err != nil {
		s.metrics.IncFailure(name)
		return 0, false, err
	}
	if !acquired {
		s.log.Info(jobCtx, "skipping job, lock held elsewhere")
		return 0, false, nil
	}
	defer func() {
		if err := s.locker.Release(jobCtx, name); err != nil {
			s.log.Warn(jobCtx, "failed to release job lock")
		}
	}()

	started := s.now()
	count, runErr := job.Run(jobCtx)
	s.metrics.ObserveDuration(name, s.now().Sub(started))
	if runErr != nil {
		s.metrics.IncFailure(name)
		s.log.Error(jobCtx, "job failed", runErr)
		return 0, true, runErr
	}
	s.metrics.IncSuccess(name)
	s.metrics.AddItems(name, count)
	return count, true, nil
}
