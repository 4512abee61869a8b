// Package scheduler drives the pipeline's periodic ticks.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// NextFunc computes the next fire instant strictly after now.
type NextFunc func(now time.Time) time.Time

// Job is one periodic tick. Run errors are logged and never cancel the job
// or its siblings; ticks are independent units of fault isolation.
type Job struct {
	Name string
	Next NextFunc
	Run  func(ctx context.Context) error
}

// Every fires on wall-clock boundaries of the given interval.
func Every(interval time.Duration) NextFunc {
	return func(now time.Time) time.Time {
		next := now.Truncate(interval)
		for !next.After(now) {
			next = next.Add(interval)
		}
		return next
	}
}

// Hourly fires at the top of every hour.
func Hourly(now time.Time) time.Time {
	return Every(time.Hour)(now)
}

// Daily fires at midnight UTC.
func Daily(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, 1)
}

// MonthlyFirst fires at midnight UTC on the first day of each month.
func MonthlyFirst(now time.Time) time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, 0)
}

// Options tune scheduler behaviour.
type Options struct {
	StartupDelay time.Duration
}

// Scheduler owns the timers for a set of jobs. It is constructed once at
// process start with its jobs injected; there is no global registration.
type Scheduler struct {
	opts   Options
	jobs   []Job
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Add registers a job. Must be called before Run.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Run blocks, firing each job on its own cadence until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runJob(ctx, job)
		}(job)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	logger := s.logger.With().Str("job", job.Name).Logger()

	for {
		next := job.Next(time.Now().UTC())
		logger.Debug().Time("next_fire", next).Msg("waiting for next tick")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		logger.Info().Time("fire", next).Msg("executing scheduled tick")
		if err := job.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("tick execution failed")
		}
	}
}
