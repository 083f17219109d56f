package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loopscan/adapters/postgres"
	"loopscan/adapters/postgres/migrations"
	"loopscan/adapters/rng"
	"loopscan/app"
	"loopscan/internal/config"
	apperrors "loopscan/internal/errors"
	"loopscan/internal/logging"
	"loopscan/ports"
)

type globalFlags struct {
	configPath string
	workers    int
	threshold  float64
	ensemble   int
	seed       int64
	store      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var flags globalFlags
	rootCmd := &cobra.Command{
		Use:           "loopscan",
		Short:         "Search sky maps for correlated patch pairs at fixed separations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file (overrides LOOPSCAN_CONFIG)")
	rootCmd.PersistentFlags().IntVar(&flags.workers, "workers", 0, "Worker pool size (0 keeps the configured value)")
	rootCmd.PersistentFlags().Float64Var(&flags.threshold, "threshold", 0, "Match threshold")
	rootCmd.PersistentFlags().IntVar(&flags.ensemble, "ensemble", -1, "Null ensemble size (-1 keeps the configured value)")
	rootCmd.PersistentFlags().Int64Var(&flags.seed, "seed", 0, "Base seed")
	rootCmd.PersistentFlags().BoolVar(&flags.store, "store", false, "Save the report to DATABASE_URL")

	rootCmd.AddCommand(
		newSyntheticCmd(&flags),
		newScanCmd(&flags),
		newValidateCmd(&flags),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

// env bundles what every command needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	ctx    context.Context
	db     *sqlx.DB
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
	_ = e.logger.Sync()
}

func setup(cmd *cobra.Command, flags *globalFlags) (*env, error) {
	if flags.configPath != "" {
		os.Setenv("LOOPSCAN_CONFIG", flags.configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.workers > 0 {
		cfg.Scan.Workers = flags.workers
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Scan.Threshold = flags.threshold
	}
	if flags.ensemble >= 0 {
		cfg.Scan.EnsembleSize = flags.ensemble
	}
	if cmd.Flags().Changed("seed") {
		cfg.Scan.Seed = flags.seed
	}
	if err := cfg.Scan.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, err)
	}
	e := &env{cfg: cfg, logger: logger, ctx: logging.WithLogger(cmd.Context(), logger)}

	if flags.store {
		if cfg.Database.URL == "" {
			return nil, apperrors.ConfigInvalid("--store needs DATABASE_URL")
		}
		db, err := postgres.Open(e.ctx, cfg.Database.URL)
		if err != nil {
			return nil, apperrors.DatabaseError("open result store", err)
		}
		if err := migrations.NewMigrator(db).Up(e.ctx); err != nil {
			db.Close()
			return nil, apperrors.DatabaseError("migrate result store", err)
		}
		e.db = db
	}
	return e, nil
}

func (e *env) validationService() (*app.ValidationService, error) {
	scan, err := app.NewScanService(e.cfg.Scan, nil)
	if err != nil {
		return nil, err
	}
	var repo ports.ResultRepository
	if e.db != nil {
		repo = postgres.NewResultRepository(e.db)
	}
	return app.NewValidationService(scan, rng.New(), repo, nil), nil
}
