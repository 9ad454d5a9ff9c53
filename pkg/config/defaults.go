package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultMetricsListenAddress = ":9465"
	DefaultConfigPath           = "data/configs.db"
	DefaultLedgerPath           = "data/audit.db"
	DefaultBusyTimeout          = 5 * time.Second
	DefaultTimezone             = "UTC"
	DefaultSweepSchedule        = "0 3 * * *"
	DefaultReferencePrefix      = "CON"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
	DefaultLogOutput            = "stdout"
)

// ApplyDefaults fills in zero-valued fields with their defaults. It is
// idempotent and never overrides explicitly set values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.MetricsListenAddress == "" {
		cfg.Server.MetricsListenAddress = DefaultMetricsListenAddress
	}

	if cfg.Storage.ConfigPath == "" {
		cfg.Storage.ConfigPath = DefaultConfigPath
	}
	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = DefaultLedgerPath
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultBusyTimeout
	}

	if cfg.Budget.Timezone == "" {
		cfg.Budget.Timezone = DefaultTimezone
	}
	if cfg.Budget.SweepSchedule == "" {
		cfg.Budget.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.Budget.ReferencePrefix == "" {
		cfg.Budget.ReferencePrefix = DefaultReferencePrefix
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = DefaultLogOutput
	}
}

// DefaultConfig returns a fully defaulted configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
