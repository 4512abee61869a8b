package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pricewatcher/internal/alerting"
	"pricewatcher/internal/config"
	"pricewatcher/internal/diagnostics"
	"pricewatcher/internal/rollup"
	"pricewatcher/internal/scheduler"
	"pricewatcher/internal/scraper"
	"pricewatcher/internal/service"
	"pricewatcher/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openRepository(ctx context.Context) (*storage.Repository, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	repo := storage.NewRepository(pool)
	closer := func() {
		repo.Close()
	}
	return repo, closer, nil
}

// newRegistry binds each supported store to its extraction strategy. The
// set of supported stores is closed at compile time; a store row whose name
// has no binding here is skipped by the orchestrator.
func (a *App) newRegistry() *scraper.Registry {
	registry := scraper.NewRegistry()

	registry.Register("amazon", scraper.NewStaticPage(scraper.StaticPageOptions{
		WholeSelector:    ".a-price-whole",
		FractionSelector: ".a-price-fraction",
		Timeout:          a.Config.Scrape.RequestTimeout,
		UserAgent:        a.Config.Scrape.UserAgent,
	}, a.Logger))

	registry.Register("ebay", scraper.NewRenderedPage(scraper.RenderedPageOptions{
		Selectors: []string{
			".x-price-approx__price .ux-textspans",
			".x-price-primary .ux-textspans",
		},
		Timeout:   a.Config.Scrape.BrowserTimeout,
		UserAgent: a.Config.Scrape.UserAgent,
	}, a.Logger))

	return registry
}

func (a *App) newChannels() ([]alerting.Channel, error) {
	channels := make([]alerting.Channel, 0, 2)

	if a.Config.Alerting.Email.Enabled {
		cfg := a.Config.Alerting.Email
		email, err := alerting.NewEmailChannel(alerting.EmailOptions{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
			To:       cfg.To,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		channels = append(channels, email)
	}

	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		channels = append(channels, alerting.NewTelegramChannel(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}

	return channels, nil
}

type engines struct {
	scrapes *scraper.Orchestrator
	rollups *rollup.Engine
	alerts  *alerting.Engine
}

func (a *App) buildEngines(repo *storage.Repository) (*engines, error) {
	diag := diagnostics.NewDBRecorder(repo, a.Logger)

	channels, err := a.newChannels()
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		a.Logger.Warn().Msg("no notification channels configured; alerts will not be delivered")
	}

	return &engines{
		scrapes: scraper.NewOrchestrator(repo, repo, a.newRegistry(), diag, a.Logger),
		rollups: rollup.NewEngine(repo, repo, a.Logger),
		alerts:  alerting.NewEngine(repo, channels, a.Config.Alerting.Cooldown, diag, a.Logger),
	}, nil
}

// Run executes the long-running pipeline service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	eng, err := a.buildEngines(repo)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(sched, eng.scrapes, eng.rollups, eng.alerts, a.Config.Scheduler.ScrapeInterval, a.Logger)

	a.Logger.Info().Msg("starting pricewatcher")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("pipeline terminated with error")
		return err
	}

	a.Logger.Info().Msg("pricewatcher stopped")
	return nil
}

// ScrapeOnce runs a single scrape cycle and returns when every extraction
// has settled.
func (a *App) ScrapeOnce(ctx context.Context) error {
	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	eng, err := a.buildEngines(repo)
	if err != nil {
		return err
	}
	return eng.scrapes.ScrapeAll(ctx)
}

// RollupOnce runs one rollup stage immediately.
func (a *App) RollupOnce(ctx context.Context, stage string) error {
	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	eng, err := a.buildEngines(repo)
	if err != nil {
		return err
	}

	switch stage {
	case "hourly":
		return eng.rollups.RollupHourly(ctx)
	case "daily":
		return eng.rollups.RollupDaily(ctx)
	case "monthly":
		return eng.rollups.RollupMonthly(ctx)
	default:
		return fmt.Errorf("unknown rollup stage %q (want hourly, daily, or monthly)", stage)
	}
}

// AlertsOnce runs a single reset-then-notify alert pass.
func (a *App) AlertsOnce(ctx context.Context) error {
	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	eng, err := a.buildEngines(repo)
	if err != nil {
		return err
	}
	return eng.alerts.Process(ctx)
}

// ExportOptions hold parameters for exporting aggregate history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// LogsOptions configure the logs command.
type LogsOptions struct {
	Limit int
}
