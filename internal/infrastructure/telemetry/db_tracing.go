package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig selects how entity store statements are traced
type DBTracingConfig struct {
	Enabled bool
	// DBSystem names the database in span attributes (postgres, sqlite)
	DBSystem string
	// IncludeVariables puts bound values into the traced statement. Orders
	// carry customer data, so it stays off outside tests.
	IncludeVariables bool
}

// InstrumentDB registers the otelgorm plugin on db. Statements issued with
// a context holding an entity or run span become its children.
func InstrumentDB(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.IncludeVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("failed to register database tracing: %w", err)
	}

	logger.Debug("Entity store tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Bool("include_variables", cfg.IncludeVariables),
	)
	return nil
}
