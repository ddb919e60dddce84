package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/account-import/internal/adapter/chat"
	"github.com/heartmarshall/account-import/internal/adapter/consultingtype"
	"github.com/heartmarshall/account-import/internal/adapter/dataloader"
	"github.com/heartmarshall/account-import/internal/adapter/identity"
	"github.com/heartmarshall/account-import/internal/adapter/postgres"
	"github.com/heartmarshall/account-import/internal/adapter/postgres/agency"
	"github.com/heartmarshall/account-import/internal/adapter/postgres/consultant"
	"github.com/heartmarshall/account-import/internal/adapter/postgres/importrun"
	"github.com/heartmarshall/account-import/internal/adapter/postgres/session"
	"github.com/heartmarshall/account-import/internal/adapter/postgres/user"
	"github.com/heartmarshall/account-import/internal/app/importer"
	"github.com/heartmarshall/account-import/internal/app/provisioning"
	"github.com/heartmarshall/account-import/internal/config"
	"github.com/heartmarshall/account-import/internal/domain"
)

// Options are command-line overrides applied on top of the loaded
// configuration.
type Options struct {
	ConfigPath string
	DryRun     bool
}

// RunImport wires the adapters and runs one import batch of variant from
// sourcePath.
func RunImport(ctx context.Context, opts Options, variant domain.Variant, sourcePath string) (importer.Summary, error) {
	cfg, err := config.LoadFrom(opts.ConfigPath)
	if err != nil {
		return importer.Summary{}, err
	}
	if opts.DryRun {
		cfg.Import.DryRun = true
	}

	logger := NewLogger(cfg.Log)
	logger.InfoContext(ctx, "starting import",
		slog.String("version", BuildVersion()),
		slog.String("variant", variant.String()),
		slog.String("source", sourcePath),
	)

	registry, err := consultingtype.LoadDir(cfg.Import.ConsultingTypesDir)
	if err != nil {
		return importer.Summary{}, fmt.Errorf("load consulting types: %w", err)
	}
	logger.InfoContext(ctx, "consulting types loaded", slog.Int("count", registry.Len()))

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return importer.Summary{}, fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)
	agencyRepo := agency.New(pool, cfg.Database.CallTimeout)
	userRepo := user.New(pool, cfg.Database.CallTimeout)
	consultantRepo := consultant.New(pool, cfg.Database.CallTimeout)
	sessionRepo := session.New(pool, cfg.Database.CallTimeout)
	runRepo := importrun.New(pool, cfg.Database.CallTimeout)

	identityClient := identity.New(cfg.Identity, logger)
	chatClient := chat.New(cfg.Chat, logger)

	orchestrator := provisioning.NewOrchestrator(
		logger,
		identityClient,
		chatClient,
		agencyRepo,
		registry,
		userRepo,
		consultantRepo,
		sessionRepo,
		txm,
		provisioning.Config{
			DefaultRole: domain.Role(cfg.Identity.DefaultRole),
			PurgeWindow: cfg.Chat.PurgeWindow,
		},
	)

	newAgencyCache := func() provisioning.AgencyReader {
		return dataloader.NewAgencyLoader(agencyRepo)
	}

	driver := importer.NewDriver(
		logger,
		orchestrator,
		chatClient,
		runRepo,
		newAgencyCache,
		importer.NewMetrics(),
		cfg.Import,
		cfg.Chat,
	)

	return driver.Run(ctx, variant, sourcePath)
}

// Migrate applies the embedded database migrations.
func Migrate(ctx context.Context, opts Options) error {
	cfg, err := config.LoadFrom(opts.ConfigPath)
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)
	logger.InfoContext(ctx, "applying migrations", slog.String("version", BuildVersion()))

	if err := postgres.Migrate(ctx, cfg.Database.DSN, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
