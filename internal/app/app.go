package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"WolverineBrief/internal/config"
	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/infrastructure/artifact"
	"WolverineBrief/internal/infrastructure/brevo"
	"WolverineBrief/internal/infrastructure/parser"
	"WolverineBrief/internal/infrastructure/render"
	"WolverineBrief/internal/infrastructure/storage"
	"WolverineBrief/internal/infrastructure/supabase"
	"WolverineBrief/internal/infrastructure/telegram"
	"WolverineBrief/internal/logging"
	"WolverineBrief/internal/ports"
	"WolverineBrief/internal/usecase"
)

// Application wires configuration and adapters into the three stages.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	now    func() time.Time
}

// New builds an application for one CLI invocation.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	return &Application{cfg: cfg, logger: baseLogger, now: time.Now}
}

// RunCollect fetches every source and stores new items.
func (a *Application) RunCollect(ctx context.Context) (domain.CollectResult, error) {
	if err := a.cfg.Validate(config.StageCollect); err != nil {
		return domain.CollectResult{}, err
	}

	db, repo, err := a.openRepository(ctx)
	if err != nil {
		return domain.CollectResult{}, err
	}
	defer db.Close()

	loc := a.cfg.Digest.Location()
	registry := parser.NewDefaultRegistry(a.logger.With("component", "scanner"))
	source := parser.NewStrategySource(registry, loc, a.logger.With("component", "source"))

	collector := usecase.NewCollector(usecase.CollectorDeps{
		Fetcher:      source,
		Repository:   repo,
		Logger:       a.logger.With("component", "collector"),
		Concurrency:  a.cfg.Collector.Concurrency,
		LookbackDays: a.cfg.Collector.LookbackDays,
		Now:          a.now,
	})
	return collector.Collect(ctx, a.cfg.Sources)
}

// RunCompose renders the seven-day window ending at end, or at now when end is zero.
func (a *Application) RunCompose(ctx context.Context, end time.Time) (domain.Digest, error) {
	if err := a.cfg.Validate(config.StageCompose); err != nil {
		return domain.Digest{}, err
	}

	renderer, err := render.NewMarkdown(a.cfg.Digest.TemplatePath)
	if err != nil {
		return domain.Digest{}, err
	}

	db, repo, err := a.openRepository(ctx)
	if err != nil {
		return domain.Digest{}, err
	}
	defer db.Close()

	if end.IsZero() {
		end = a.now()
	}

	composer := usecase.NewComposer(usecase.ComposerDeps{
		Repository:  repo,
		Renderer:    renderer,
		Artifacts:   a.artifactStore(),
		Logger:      a.logger.With("component", "composer"),
		Title:       a.cfg.Digest.Title,
		CouncilNote: a.cfg.Digest.CouncilNote,
		Location:    a.cfg.Digest.Location(),
		Now:         a.now,
	})
	return composer.Compose(ctx, domain.WeekEnding(end))
}

// RunDistribute delivers the last composed digest to the subscriber list.
func (a *Application) RunDistribute(ctx context.Context, dryRun bool) (domain.DeliveryReport, error) {
	if err := a.cfg.Validate(config.StageDistribute); err != nil {
		return domain.DeliveryReport{}, err
	}

	digest, err := a.artifactStore().Load(ctx)
	if err != nil {
		return domain.DeliveryReport{}, fmt.Errorf("load digest: %w", err)
	}

	subscribers, err := supabase.NewDirectory(a.cfg.Supabase).List(ctx)
	if err != nil {
		return domain.DeliveryReport{}, fmt.Errorf("list subscribers: %w", err)
	}
	a.logger.Info("subscribers loaded", "count", len(subscribers))

	var notifier ports.Notifier
	if a.cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(a.cfg.Notifications.Telegram)
	}

	distributor := usecase.NewDistributor(usecase.DistributorDeps{
		Transport:   brevo.NewTransport(a.cfg.Email),
		Notifier:    notifier,
		Logger:      a.logger.With("component", "distributor"),
		Subject:     a.cfg.Distributor.Subject,
		Concurrency: a.cfg.Distributor.Concurrency,
		DryRun:      dryRun,
	})
	return distributor.Distribute(ctx, digest, subscribers), nil
}

// Run executes collect, compose and distribute in order and stops at the first fatal error.
// Every stage's configuration is checked before any stage starts.
func (a *Application) Run(ctx context.Context, end time.Time, dryRun bool) error {
	for _, stage := range []config.Stage{config.StageCollect, config.StageCompose, config.StageDistribute} {
		if err := a.cfg.Validate(stage); err != nil {
			return err
		}
	}

	if _, err := a.RunCollect(ctx); err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	if _, err := a.RunCompose(ctx, end); err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	if _, err := a.RunDistribute(ctx, dryRun); err != nil {
		return fmt.Errorf("distribute: %w", err)
	}
	return nil
}

func (a *Application) openRepository(ctx context.Context) (*sql.DB, *storage.PostgresRepository, error) {
	db, err := storage.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, nil, &domain.StorageError{Op: "open", Err: err}
	}

	repo, err := storage.NewPostgresRepository(db, a.cfg.Database.Table)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}

// DigestPath is where compose writes the rendered Markdown digest.
func (a *Application) DigestPath() string {
	return a.artifactStore().MarkdownPath()
}

func (a *Application) artifactStore() *artifact.FileStore {
	return artifact.NewFileStore(a.cfg.Digest.OutputDir, a.cfg.Digest.Title, a.cfg.Digest.FeedLink)
}
