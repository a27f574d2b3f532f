package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/pianotech/tournee/internal/cli"
	"github.com/pianotech/tournee/internal/config"
	"github.com/pianotech/tournee/internal/db"
	"github.com/pianotech/tournee/internal/logging"
	"github.com/pianotech/tournee/internal/metrics"
	"github.com/pianotech/tournee/internal/repository"
	"github.com/pianotech/tournee/internal/service"
	"github.com/pianotech/tournee/internal/source"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open database
	database, err := db.OpenDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		if _, err := metrics.Serve(ctx, cfg.Metrics.Addr, m, logger); err != nil {
			return fmt.Errorf("starting metrics endpoint: %w", err)
		}
	}

	// Wire repositories
	pianoRepo := repository.NewSQLitePianoRepo(database)
	campaignRepo := repository.NewSQLiteCampaignRepo(database)

	// Wire unit of work for transactional operations
	uow := db.NewSQLiteUnitOfWork(database)

	observer := service.NewMultiUseCaseObserver(
		service.NewLogUseCaseObserver(logger),
		service.NewMetricsUseCaseObserver(m),
	)

	app := &cli.App{
		Merge:            service.NewMergeService(unitSource(cfg, m, logger), pianoRepo, uow, observer),
		Pianos:           service.NewPianoService(pianoRepo, campaignRepo, uow, reportSink(cfg, m, logger), logger, observer),
		Campaigns:        service.NewCampaignService(campaignRepo, uow, cfg.Workflow.EnforceSingleActive, observer),
		Actor:            cfg.Actor,
		Debounce:         cfg.Workflow.Debounce,
		BatchConcurrency: cfg.Workflow.BatchConcurrency,
		Logger:           logger,
		Metrics:          m,
	}

	// Forms and the inventory view need a terminal on stdin.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}

// unitSource returns nil when no source is configured, so refreshes fail
// with service.ErrNoSource.
func unitSource(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) source.UnitSource {
	switch {
	case cfg.Source.URL != "":
		return source.Instrument(source.NewHTTPSource(cfg.Source.URL, cfg.Source.Token, cfg.Source.Timeout, logger), m)
	case cfg.Source.File != "":
		return source.Instrument(source.NewFileSource(cfg.Source.File), m)
	}
	return nil
}

func reportSink(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) source.ReportSink {
	if cfg.Source.ReportURL != "" {
		return source.InstrumentSink(source.NewHTTPReportSink(cfg.Source.ReportURL, cfg.Source.Token, cfg.Source.Timeout, logger), m)
	}
	return source.InstrumentSink(source.NewLogSink(logger), m)
}
