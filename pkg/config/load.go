package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults,
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies CANTINA_SECTION_FIELD environment overrides on top. Overrides
// always win over file values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CANTINA_SERVER_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Server.MetricsListenAddress = val
	}

	if val := os.Getenv("CANTINA_STORAGE_CONFIG_PATH"); val != "" {
		cfg.Storage.ConfigPath = val
	}
	if val := os.Getenv("CANTINA_STORAGE_LEDGER_PATH"); val != "" {
		cfg.Storage.LedgerPath = val
	}
	if val := os.Getenv("CANTINA_STORAGE_BUSY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Storage.BusyTimeout = d
		}
	}

	if val := os.Getenv("CANTINA_BUDGET_TIMEZONE"); val != "" {
		cfg.Budget.Timezone = val
	}
	if val := os.Getenv("CANTINA_BUDGET_SWEEP_SCHEDULE"); val != "" {
		cfg.Budget.SweepSchedule = val
	}
	if val := os.Getenv("CANTINA_BUDGET_REFERENCE_PREFIX"); val != "" {
		cfg.Budget.ReferencePrefix = val
	}

	if val := os.Getenv("CANTINA_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("CANTINA_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("CANTINA_LOGGING_OUTPUT"); val != "" {
		cfg.Logging.Output = val
	}
}
