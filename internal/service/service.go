// Package service wires the pipeline engines to their scheduled cadences.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pricewatcher/internal/alerting"
	"pricewatcher/internal/rollup"
	"pricewatcher/internal/scheduler"
	"pricewatcher/internal/scraper"
)

// Service owns the scheduled pipeline: scrape-then-alert on the short
// cadence, rollups on their calendar cadences.
type Service struct {
	scheduler *scheduler.Scheduler
	scrapes   *scraper.Orchestrator
	rollups   *rollup.Engine
	alerts    *alerting.Engine
	logger    zerolog.Logger
}

// New constructs the pipeline service and registers its jobs with the
// scheduler.
func New(sched *scheduler.Scheduler, scrapes *scraper.Orchestrator, rollups *rollup.Engine, alerts *alerting.Engine, scrapeInterval time.Duration, logger zerolog.Logger) *Service {
	s := &Service{
		scheduler: sched,
		scrapes:   scrapes,
		rollups:   rollups,
		alerts:    alerts,
		logger:    logger.With().Str("component", "service").Logger(),
	}

	sched.Add(scheduler.Job{Name: "scrape_and_alert", Next: scheduler.Every(scrapeInterval), Run: s.ScrapeAndAlert})
	sched.Add(scheduler.Job{Name: "rollup_hourly", Next: scheduler.Hourly, Run: s.rollups.RollupHourly})
	sched.Add(scheduler.Job{Name: "rollup_daily", Next: scheduler.Daily, Run: s.rollups.RollupDaily})
	sched.Add(scheduler.Job{Name: "rollup_monthly", Next: scheduler.MonthlyFirst, Run: s.rollups.RollupMonthly})

	return s
}

// Run begins the scheduled pipeline loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	s.logger.Info().Msg("starting pipeline")
	return s.scheduler.Run(ctx)
}

// ScrapeAndAlert runs one scrape cycle and then one alert pass, in that
// order, so the pass sees the prices the cycle just wrote. The two stages
// fail independently; a scrape-stage failure does not suppress alerting on
// whatever observations already exist.
func (s *Service) ScrapeAndAlert(ctx context.Context) error {
	scrapeErr := s.scrapes.ScrapeAll(ctx)
	if scrapeErr != nil {
		scrapeErr = fmt.Errorf("scrape stage: %w", scrapeErr)
	}

	alertErr := s.alerts.Process(ctx)
	if alertErr != nil {
		alertErr = fmt.Errorf("alert stage: %w", alertErr)
	}

	return errors.Join(scrapeErr, alertErr)
}
