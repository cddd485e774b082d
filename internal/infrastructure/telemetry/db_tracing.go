package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls per-statement spans on the attendance database
type DBTracingConfig struct {
	Enabled  bool
	DBName   string // db.name attribute, defaults to "attendance"
	WithVars bool   // keep bound values (credentials, employee IDs) in db.statement
}

// TraceDatabase registers the otelgorm plugin on db so every rule, shift,
// punch and result statement runs in a child span of the caller's context.
// Disabled tracing registers nothing.
func TraceDatabase(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled")
		return nil
	}
	if cfg.DBName == "" {
		cfg.DBName = "attendance"
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.WithVars {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_name", cfg.DBName),
		zap.Bool("with_vars", cfg.WithVars),
	)
	return nil
}
