package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/siselab/sise-engine/pkg/config"
	"github.com/siselab/sise-engine/pkg/database"
	"github.com/siselab/sise-engine/pkg/logging"
	"github.com/siselab/sise-engine/pkg/models"
	"github.com/siselab/sise-engine/pkg/repositories"
	"github.com/siselab/sise-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	var (
		mode           = flag.String("mode", "incremental", "run mode: full or incremental")
		schedule       = flag.Bool("schedule", false, "keep running and trigger runs on the configured cron schedule")
		migrationsPath = flag.String("migrations", "migrations", "path to migration files")
		trendSKU       = flag.Int64("trend", 0, "print the trend report for a SKU ID and exit")
		trendRegion    = flag.Int64("region", 0, "region ID for -trend (0 = national)")
	)
	flag.Parse()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger, *mode, *schedule, *migrationsPath, *trendSKU, *trendRegion); err != nil {
		logger.Fatal("sise-engine failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, mode string, schedule bool, migrationsPath string, trendSKU, trendRegion int64) error {
	runMode, err := parseMode(mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting sise-engine",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("mode", string(runMode)),
		zap.Bool("schedule", schedule),
		zap.String("bucket", cfg.Pipeline.Bucket),
		zap.String("timezone", cfg.Pipeline.Timezone))

	migrationDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	if err := database.RunMigrations(migrationDB, migrationsPath, logger); err != nil {
		migrationDB.Close()
		return err
	}
	migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             cfg.Database.URL(),
		MaxConnections:  cfg.Database.MaxConnections,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if trendSKU > 0 {
		return printTrend(ctx, db, cfg, trendSKU, trendRegion)
	}

	rebuild, err := services.NewRebuildService(
		repositories.NewSchemaRepository(db),
		repositories.NewItemRepository(db),
		repositories.NewSKURepository(db),
		repositories.NewStatsRepository(db),
		repositories.NewStateRepository(db),
		&cfg.Pipeline,
		logger,
	)
	if err != nil {
		return err
	}

	if !schedule {
		return runOnce(ctx, rebuild, runMode, logger)
	}
	return runScheduled(ctx, cfg, rebuild, logger)
}

func printTrend(ctx context.Context, db *database.DB, cfg *config.Config, skuID, regionID int64) error {
	var region *int64
	if regionID > 0 {
		region = &regionID
	}
	trends := services.NewTrendService(repositories.NewSKURepository(db), repositories.NewStatsRepository(db))
	report, err := trends.Report(ctx, skuID, region, cfg.Pipeline.TrendWindow)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(report)
}

func runOnce(ctx context.Context, rebuild services.RebuildService, mode models.RunMode, logger *zap.Logger) error {
	run, err := rebuild.Run(ctx, mode)
	if err != nil {
		return err
	}
	logger.Info("Run complete", zap.String("run_id", run.ID.String()))
	return nil
}

func runScheduled(ctx context.Context, cfg *config.Config, rebuild services.RebuildService, logger *zap.Logger) error {
	runMode, err := parseMode(cfg.Schedule.Mode)
	if err != nil {
		return fmt.Errorf("invalid schedule.mode: %w", err)
	}
	loc, err := cfg.Pipeline.Location()
	if err != nil {
		return err
	}

	// SkipIfStillRunning drops a tick if the previous run is still going,
	// so a slow full rebuild never stacks incremental passes behind it.
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	_, err = c.AddFunc(cfg.Schedule.Cron, func() {
		if _, err := rebuild.Run(ctx, runMode); err != nil {
			logger.Error("Scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule.cron %q: %w", cfg.Schedule.Cron, err)
	}

	logger.Info("Scheduler started",
		zap.String("cron", cfg.Schedule.Cron),
		zap.String("mode", string(runMode)))
	c.Start()

	<-ctx.Done()
	logger.Info("Shutting down scheduler")
	<-c.Stop().Done()
	return nil
}

func parseMode(s string) (models.RunMode, error) {
	switch s {
	case "full":
		return models.RunModeFull, nil
	case "incremental":
		return models.RunModeIncremental, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want full or incremental)", s)
	}
}
