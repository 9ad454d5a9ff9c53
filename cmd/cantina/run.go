package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"alameda-hq/cantina/pkg/config"
	"alameda-hq/cantina/pkg/consumption"
	"alameda-hq/cantina/pkg/consumption/ledger"
	"alameda-hq/cantina/pkg/consumption/period"
	"alameda-hq/cantina/pkg/consumption/routing"
	"alameda-hq/cantina/pkg/consumption/storage"
	"alameda-hq/cantina/pkg/directory"
	"alameda-hq/cantina/pkg/telemetry/logging"
)

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the budget engine service",
	Long: `Start the budget engine: open the config and ledger databases,
start the routing sweeper, and serve metrics.

Examples:
  # Start with default config
  cantina run

  # Start with custom config
  cantina run --config /etc/cantina/config.yaml

  # Validate config without starting
  cantina run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}

	closeLogs, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLogs()

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default().With("component", "main")
	logger.Info("starting cantina",
		"version", Version,
		"config", cfgFile,
	)

	for _, path := range []string{cfg.Storage.ConfigPath, cfg.Storage.LedgerPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create data directory for %s: %w", path, err)
		}
	}

	configBackend, err := storage.NewSQLiteBackendWithConfig(storage.SQLiteBackendConfig{
		DBPath:      cfg.Storage.ConfigPath,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open config store: %w", err)
	}

	ledgerStore, err := ledger.NewSQLiteStore(&ledger.SQLiteConfig{
		Path:            cfg.Storage.LedgerPath,
		BusyTimeout:     cfg.Storage.BusyTimeout,
		WALMode:         cfg.Storage.WALEnabled(),
		ReferencePrefix: cfg.Budget.ReferencePrefix,
	})
	if err != nil {
		configBackend.Close()
		return fmt.Errorf("failed to open ledger store: %w", err)
	}

	location := period.LoadLocation(cfg.Budget.Timezone, logger)

	manager, err := consumption.NewManager(consumption.Options{
		Configs:   configBackend,
		Directory: directory.NewMemoryStore(),
		Ledger:    ledgerStore,
		Location:  location,
		Metrics:   consumption.NewMetrics(),
	})
	if err != nil {
		configBackend.Close()
		ledgerStore.Close()
		return err
	}
	defer manager.Close()

	sweeper := routing.NewSweeper(configBackend, manager.Synchronizer(), cfg.Budget.SweepSchedule)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	watcher, err := config.NewWatcher(cfgFile, 0)
	if err != nil {
		return err
	}
	go func() {
		err := watcher.Watch(ctx, func(reloaded *config.Config) {
			// Log level and sweep schedule apply live; everything else
			// needs a restart.
			if err := logging.SetLevel(reloaded.Logging.Level); err != nil {
				logger.Warn("reloaded log level rejected", "error", err)
			} else {
				logger.Info("log level updated", "level", reloaded.Logging.Level)
			}
			if err := sweeper.Reschedule(ctx, reloaded.Budget.SweepSchedule); err != nil {
				logger.Warn("reloaded sweep schedule rejected", "error", err)
			}
		})
		if err != nil {
			logger.Warn("config watcher exited", "error", err)
		}
	}()

	server := &http.Server{
		Addr:         cfg.Server.MetricsListenAddress,
		Handler:      metricsHandler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics listener started", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics listener shutdown failed", "error", err)
	}
	return nil
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}
