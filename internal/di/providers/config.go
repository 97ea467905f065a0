package providers

import (
	"github.com/samber/do/v2"

	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/logger"
)

// ProvideConfig loads the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	opts := do.MustInvoke[config.LoadOptions](i)
	return config.Load(opts)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		AddSource:   cfg.App.LogLevel == "debug",
		Environment: cfg.App.Environment,
	})

	log.Debug("configuration loaded",
		"source", cfg.Source,
		"environment", cfg.App.Environment,
		"store_path", cfg.Store.Path,
		"index_path", cfg.Store.IndexPath,
		"jobs", len(cfg.Jobs),
	)
	return log, nil
}
