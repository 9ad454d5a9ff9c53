package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cantina.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.MetricsListenAddress != DefaultMetricsListenAddress {
		t.Errorf("metrics address = %s", cfg.Server.MetricsListenAddress)
	}
	if cfg.Storage.ConfigPath != DefaultConfigPath || cfg.Storage.LedgerPath != DefaultLedgerPath {
		t.Errorf("storage paths = %s, %s", cfg.Storage.ConfigPath, cfg.Storage.LedgerPath)
	}
	if cfg.Budget.Timezone != "UTC" || cfg.Budget.ReferencePrefix != "CON" {
		t.Errorf("budget defaults = %+v", cfg.Budget)
	}
	if !cfg.Storage.WALEnabled() {
		t.Error("WAL should default to enabled")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Budget.Timezone = "America/Mexico_City"
	cfg.Logging.Level = "debug"
	ApplyDefaults(cfg)

	if cfg.Budget.Timezone != "America/Mexico_City" {
		t.Errorf("timezone overridden: %s", cfg.Budget.Timezone)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level overridden: %s", cfg.Logging.Level)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  metrics_listen_address: ":9999"
storage:
  config_path: /var/lib/cantina/configs.db
  ledger_path: /var/lib/cantina/audit.db
  busy_timeout: 10s
budget:
  timezone: America/Mexico_City
  sweep_schedule: "0 4 * * *"
logging:
  level: debug
  format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.MetricsListenAddress != ":9999" {
		t.Errorf("metrics address = %s", cfg.Server.MetricsListenAddress)
	}
	if cfg.Storage.BusyTimeout != 10*time.Second {
		t.Errorf("busy timeout = %s", cfg.Storage.BusyTimeout)
	}
	if cfg.Budget.Timezone != "America/Mexico_City" {
		t.Errorf("timezone = %s", cfg.Budget.Timezone)
	}
	// Unset fields still get defaults.
	if cfg.Budget.ReferencePrefix != "CON" {
		t.Errorf("prefix = %s", cfg.Budget.ReferencePrefix)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/cantina.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
`)
	t.Setenv("CANTINA_LOGGING_LEVEL", "error")
	t.Setenv("CANTINA_BUDGET_TIMEZONE", "Europe/Madrid")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("level = %s", cfg.Logging.Level)
	}
	if cfg.Budget.Timezone != "Europe/Madrid" {
		t.Errorf("timezone = %s", cfg.Budget.Timezone)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"bad timezone", func(c *Config) { c.Budget.Timezone = "Mars/Olympus" }, true},
		{"bad cron", func(c *Config) { c.Budget.SweepSchedule = "every day" }, true},
		{"empty sweep is fine", func(c *Config) { c.Budget.SweepSchedule = "" }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"same db paths", func(c *Config) { c.Storage.LedgerPath = c.Storage.ConfigPath }, true},
		{"negative busy timeout", func(c *Config) { c.Storage.BusyTimeout = -time.Second }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
