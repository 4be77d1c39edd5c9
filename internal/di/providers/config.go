// Package providers contains dependency injection providers for the BeatVault server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/beatvault/beatvault-server/internal/config"
	"github.com/beatvault/beatvault-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting BeatVault Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"ledger_backend", cfg.Storage.Backend,
		"license_id_prefix", cfg.License.IDPrefix,
		"issue_timeout", cfg.License.IssueTimeout,
		"issue_rate_per_minute", cfg.License.RatePerMinute,
		"shutdown_timeout", cfg.Server.ShutdownTimeout,
	)

	return log, nil
}
