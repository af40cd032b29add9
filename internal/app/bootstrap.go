package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"horse.fit/paperboy/internal/cli"
	"horse.fit/paperboy/internal/cluster"
	"horse.fit/paperboy/internal/config"
	"horse.fit/paperboy/internal/logging"
	"horse.fit/paperboy/internal/store"
)

// appContext bundles the pieces every command needs: configuration, the
// logger, the shard catalog and the engine on top of them.
type appContext struct {
	cfg     *config.Config
	logger  zerolog.Logger
	catalog *store.Catalog
	engine  *cluster.Engine
}

// bootstrap loads env + config, builds the logger, opens the catalog and
// constructs the engine. With loadIndex set it also brings every on-disk
// shard into the queryable index.
func bootstrap(ctx context.Context, envLoader *cli.EnvLoader, loadIndex bool) (*appContext, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	engineCfg, err := cluster.LoadConfig(cfg.EngineConfigPath)
	if err != nil {
		return nil, err
	}
	catalog, err := store.OpenCatalog(cfg.DataDir, cfg.RetentionMonths)
	if err != nil {
		return nil, err
	}

	app := &appContext{
		cfg:     cfg,
		logger:  logger,
		catalog: catalog,
		engine:  cluster.NewEngine(catalog, engineCfg, logger),
	}
	if loadIndex {
		if err := app.engine.Load(ctx); err != nil {
			catalog.Close()
			return nil, fmt.Errorf("load index: %w", err)
		}
	}
	return app, nil
}

func (a *appContext) Close() {
	if a == nil || a.catalog == nil {
		return
	}
	if err := a.catalog.Close(); err != nil {
		a.logger.Error().Err(err).Msg("close catalog failed")
	}
}
