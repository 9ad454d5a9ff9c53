package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for consistency. It assumes defaults
// have already been applied.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := validateBudget(&cfg.Budget); err != nil {
		return err
	}
	return validateLogging(&cfg.Logging)
}

func validateServer(s *ServerConfig) error {
	if s.MetricsListenAddress == "" {
		return fmt.Errorf("server.metrics_listen_address must not be empty")
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	if s.ConfigPath == "" {
		return fmt.Errorf("storage.config_path must not be empty")
	}
	if s.LedgerPath == "" {
		return fmt.Errorf("storage.ledger_path must not be empty")
	}
	if s.ConfigPath == s.LedgerPath {
		return fmt.Errorf("storage.config_path and storage.ledger_path must differ")
	}
	if s.BusyTimeout < 0 {
		return fmt.Errorf("storage.busy_timeout must not be negative")
	}
	return nil
}

func validateBudget(b *BudgetConfig) error {
	if _, err := time.LoadLocation(b.Timezone); err != nil {
		return fmt.Errorf("budget.timezone %q is not a valid IANA zone: %w", b.Timezone, err)
	}
	if b.SweepSchedule != "" {
		if _, err := cron.ParseStandard(b.SweepSchedule); err != nil {
			return fmt.Errorf("budget.sweep_schedule %q is not a valid cron expression: %w", b.SweepSchedule, err)
		}
	}
	if b.ReferencePrefix == "" {
		return fmt.Errorf("budget.reference_prefix must not be empty")
	}
	return nil
}

func validateLogging(l *LoggingConfig) error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", l.Level)
	}
	switch l.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q must be json or text", l.Format)
	}
	if l.Output == "" {
		return fmt.Errorf("logging.output must not be empty")
	}
	return nil
}
