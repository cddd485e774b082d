// Package cli is the attendance command line: rule evaluation, work-time
// calculation, schedule conflict checks, punch processing and schema upkeep.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/infrastructure/config"
	"github.com/erp/attendance/internal/infrastructure/logger"
	"github.com/erp/attendance/internal/infrastructure/persistence"
	"github.com/erp/attendance/internal/infrastructure/telemetry"
)

// Version is set at build time with -ldflags
var Version = "dev"

// app is the state shared by every command of one invocation
type app struct {
	configFile string
	logLevel   string

	cfg       *config.Config
	logger    *zap.Logger
	providers *telemetry.Providers
	metrics   *telemetry.EngineMetrics

	// openDB is replaced in tests
	openDB func(cfg *config.Config, log *zap.Logger) (*persistence.Database, error)
}

func openPostgres(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	return persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{openDB: openPostgres})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "attendance",
		Short: "Attendance rule engine and work-time calculator",
		Long: `attendance evaluates attendance rules, calculates worked time for a shift,
checks proposed schedules for conflicts and processes raw punches from devices.`,
		Version:            Version,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to config file (default: ./config.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newEvaluateCommand(a),
		newCalculateCommand(a),
		newConflictsCommand(a),
		newProcessCommand(a),
		newRulesCommand(a),
		newShiftsCommand(a),
		newResultsCommand(a),
		newMigrateCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFile(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		switch strings.ToLower(a.logLevel) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("--log-level must be one of debug, info, warn, error, got %q", a.logLevel)
		}
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	// stdout carries command output
	output := cfg.Log.Output
	if output == "stdout" {
		output = "stderr"
	}
	a.logger, err = logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     output,
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.providers, err = telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		Insecure:          cfg.Telemetry.Insecure,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.metrics, err = telemetry.NewEngineMetrics(a.providers.Meter.Meter("attendance"))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	a.logger.Debug("Command started",
		zap.String("command", cmd.CommandPath()),
		zap.String("env", cfg.App.Env),
	)
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	if a.providers != nil {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := a.providers.Shutdown(ctx); err != nil {
			a.logger.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

// database opens the configured database; the caller closes it
func (a *app) database() (*persistence.Database, error) {
	db, err := a.openDB(a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	err = telemetry.TraceDatabase(db.DB, telemetry.DBTracingConfig{
		Enabled: a.cfg.Telemetry.Enabled && a.cfg.Telemetry.DBTraceEnabled,
	}, a.logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable database tracing: %w", err)
	}
	return db, nil
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
