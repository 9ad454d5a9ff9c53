package config

import "time"

// Config is the root configuration for the cantina service.
type Config struct {
	// Server configures the HTTP surfaces.
	Server ServerConfig `yaml:"server"`

	// Storage configures the SQLite databases.
	Storage StorageConfig `yaml:"storage"`

	// Budget configures the budget engine behavior.
	Budget BudgetConfig `yaml:"budget"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	// MetricsListenAddress is where /metrics and /healthz are served.
	MetricsListenAddress string `yaml:"metrics_listen_address"`
}

// StorageConfig contains the SQLite settings for both databases: the
// config store and the audit ledger.
type StorageConfig struct {
	// ConfigPath is the budget configuration database file.
	ConfigPath string `yaml:"config_path"`

	// LedgerPath is the audit ledger database file.
	LedgerPath string `yaml:"ledger_path"`

	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// WALMode enables Write-Ahead Logging. Nil means enabled.
	WALMode *bool `yaml:"wal_mode"`
}

// WALEnabled resolves the WAL setting with its default.
func (s *StorageConfig) WALEnabled() bool {
	return s.WALMode == nil || *s.WALMode
}

// BudgetConfig contains budget engine settings.
type BudgetConfig struct {
	// Timezone anchors period windows, e.g. "America/Mexico_City".
	// Invalid or empty falls back to UTC.
	Timezone string `yaml:"timezone"`

	// SweepSchedule is the cron expression for the routing self-heal
	// sweep. Empty disables the sweeper.
	SweepSchedule string `yaml:"sweep_schedule"`

	// ReferencePrefix prefixes audit references, e.g. CON/00001.
	ReferencePrefix string `yaml:"reference_prefix"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `yaml:"output"`
}
