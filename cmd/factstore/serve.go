package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"carelog/factstore/pkg/api"
	"carelog/factstore/pkg/config"
	"carelog/factstore/pkg/fact/query"
	"carelog/factstore/pkg/fact/retention"
	"carelog/factstore/pkg/telemetry/logging"
	"carelog/factstore/pkg/telemetry/metrics"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fact store report server",
	Long: `Start the fact store report server with the specified configuration.

The server listens on the configured address and serves report queries,
fact ingestion, health probes, and Prometheus metrics.

Examples:
  # Start with default config
  factstore serve

  # Start with custom config
  factstore serve --config /etc/factstore/config.yaml

  # Override listen address
  factstore serve --listen 0.0.0.0:8090

  # Validate config without starting server
  factstore serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging, nil)
	if err != nil {
		return err
	}

	if serveFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	backend, err := openBackend(cfg, registry)
	if err != nil {
		return fmt.Errorf("failed to open storage backend: %w", err)
	}
	defer backend.Close()

	members, _ := backend.(query.CarenetMembership)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	// Start retention pruner if configured
	if cfg.Retention.Days > 0 {
		ageStore, ok := backend.(retention.AgeStore)
		if !ok {
			return fmt.Errorf("storage backend %q does not support retention pruning", cfg.Storage.Backend)
		}
		pruner := retention.NewPruner(ageStore, backend, registry, &retention.Config{
			RetentionDays:       cfg.Retention.Days,
			PruneSchedule:       cfg.Retention.Schedule,
			ArchiveBeforeDelete: cfg.Retention.Archive,
			ArchivePath:         cfg.Retention.ArchivePath,
		})
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				logger.Debug("retention scheduler started", "next_pruning", next)
			}
		}
	}

	// Watch the configuration file for log level changes
	if cfg.Schemas.Watch {
		watcher, err := config.NewWatcher(cfgFile, logger)
		if err != nil {
			logger.Warn("failed to create configuration watcher", "error", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx, func(newCfg *config.Config) {
					logging.SetLevel(newCfg.Telemetry.Logging.Level)
					config.SetConfig(newCfg)
				}); err != nil {
					logger.Warn("configuration watcher stopped", "error", err)
				}
			}()
		}
	}

	srv := api.NewServer(cfg, backend, registry, members, collector)
	return srv.Start(ctx)
}
