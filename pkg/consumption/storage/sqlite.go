package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // SQLite driver

	"alameda-hq/cantina/pkg/consumption/period"
)

// SQLiteBackend implements Backend using SQLite for persistence. Suitable
// for single-instance deployments where state must survive restarts.
//
// SQLiteBackend uses a write-ahead log (WAL) for better concurrent
// performance and periodic checkpointing to balance write performance
// with durability.
type SQLiteBackend struct {
	db               *sql.DB
	dbPath           string
	snapshotInterval time.Duration
	done             chan struct{}
	closed           bool
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// SnapshotInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	SnapshotInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a SQLite storage backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom
// configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:               db,
		dbPath:           cfg.DBPath,
		snapshotInterval: cfg.SnapshotInterval,
		done:             make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist. Empty scope
// references are stored as NULL so the partial uniqueness constraints
// allow any number of configs of the other scope kind.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS budget_configs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		account_code TEXT NOT NULL UNIQUE,
		scope_kind TEXT NOT NULL,
		org_unit_id TEXT UNIQUE,
		payer_id TEXT UNIQUE,
		limit_amount TEXT,
		currency TEXT NOT NULL,
		currency_symbol TEXT NOT NULL,
		period_unit TEXT NOT NULL,
		period_multiplier INTEGER NOT NULL,
		account_id TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS config_change_log (
		id TEXT PRIMARY KEY,
		config_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		changed_at INTEGER NOT NULL,
		field TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		description TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_change_log_config ON config_change_log(config_id, changed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveConfig inserts or updates a config. Uniqueness of account code and
// scope bindings is checked before the write so violations surface as the
// Backend sentinel errors rather than raw constraint failures.
func (s *SQLiteBackend) SaveConfig(ctx context.Context, cfg *BudgetConfig) error {
	if cfg == nil || cfg.ID == "" {
		return fmt.Errorf("config and config ID are required")
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM budget_configs WHERE account_code = ? AND id != ?`,
		cfg.AccountCode, cfg.ID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check account code: %w", err)
	}
	if count > 0 {
		return ErrDuplicateAccountCode
	}

	if cfg.ScopeKind == ScopeOrgUnit && cfg.OrgUnitID != "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM budget_configs WHERE org_unit_id = ? AND id != ?`,
			cfg.OrgUnitID, cfg.ID,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check org unit scope: %w", err)
		}
		if count > 0 {
			return ErrDuplicateScope
		}
	}
	if cfg.ScopeKind == ScopePayer && cfg.PayerID != "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM budget_configs WHERE payer_id = ? AND id != ?`,
			cfg.PayerID, cfg.ID,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check payer scope: %w", err)
		}
		if count > 0 {
			return ErrDuplicateScope
		}
	}

	var limit sql.NullString
	if cfg.LimitAmount != nil {
		limit = sql.NullString{String: cfg.LimitAmount.String(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO budget_configs
			(id, name, account_code, scope_kind, org_unit_id, payer_id,
			 limit_amount, currency, currency_symbol, period_unit,
			 period_multiplier, account_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			account_code = excluded.account_code,
			scope_kind = excluded.scope_kind,
			org_unit_id = excluded.org_unit_id,
			payer_id = excluded.payer_id,
			limit_amount = excluded.limit_amount,
			currency = excluded.currency,
			currency_symbol = excluded.currency_symbol,
			period_unit = excluded.period_unit,
			period_multiplier = excluded.period_multiplier,
			account_id = excluded.account_id,
			active = excluded.active,
			updated_at = excluded.updated_at
	`,
		cfg.ID, cfg.Name, cfg.AccountCode, string(cfg.ScopeKind),
		cfg.OrgUnitID, cfg.PayerID, limit, cfg.Currency, cfg.CurrencySymbol,
		string(cfg.PeriodUnit), cfg.PeriodMultiplier, cfg.AccountID,
		boolToInt(cfg.Active), cfg.CreatedAt.UnixMicro(), cfg.UpdatedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// GetConfig returns the config with the given ID.
func (s *SQLiteBackend) GetConfig(ctx context.Context, id string) (*BudgetConfig, error) {
	row := s.db.QueryRowContext(ctx, selectConfig+` WHERE id = ?`, id)
	cfg, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, ErrConfigNotFound
	}
	return cfg, err
}

// DeleteConfig removes a config.
func (s *SQLiteBackend) DeleteConfig(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM budget_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	return nil
}

// ListConfigs returns all configs ordered by name.
func (s *SQLiteBackend) ListConfigs(ctx context.Context) ([]*BudgetConfig, error) {
	rows, err := s.db.QueryContext(ctx, selectConfig+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	var out []*BudgetConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// FindConfigByPayer returns the config scoped to the payer, or nil.
func (s *SQLiteBackend) FindConfigByPayer(ctx context.Context, payerID string) (*BudgetConfig, error) {
	row := s.db.QueryRowContext(ctx,
		selectConfig+` WHERE scope_kind = ? AND payer_id = ?`,
		string(ScopePayer), payerID,
	)
	cfg, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cfg, err
}

// FindConfigByOrgUnit returns the config scoped to the org unit, or nil.
func (s *SQLiteBackend) FindConfigByOrgUnit(ctx context.Context, orgUnitID string) (*BudgetConfig, error) {
	row := s.db.QueryRowContext(ctx,
		selectConfig+` WHERE scope_kind = ? AND org_unit_id = ?`,
		string(ScopeOrgUnit), orgUnitID,
	)
	cfg, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cfg, err
}

// AppendChangeLog appends one change log entry.
func (s *SQLiteBackend) AppendChangeLog(ctx context.Context, entry *ChangeLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_change_log
			(id, config_id, actor_id, changed_at, field, old_value, new_value, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.ConfigID, entry.ActorID, entry.ChangedAt.UnixMicro(),
		entry.Field, entry.OldValue, entry.NewValue, entry.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to append change log: %w", err)
	}
	return nil
}

// ListChangeLog returns the change log for a config, newest first.
func (s *SQLiteBackend) ListChangeLog(ctx context.Context, configID string) ([]*ChangeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, config_id, actor_id, changed_at, field, old_value, new_value, description
		FROM config_change_log
		WHERE config_id = ?
		ORDER BY changed_at DESC, id DESC
	`, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to list change log: %w", err)
	}
	defer rows.Close()

	var out []*ChangeLogEntry
	for rows.Next() {
		var e ChangeLogEntry
		var changedAt int64
		if err := rows.Scan(&e.ID, &e.ConfigID, &e.ActorID, &changedAt,
			&e.Field, &e.OldValue, &e.NewValue, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan change log row: %w", err)
		}
		e.ChangedAt = time.UnixMicro(changedAt).UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DeleteChangeLogByConfig removes a config's change log.
func (s *SQLiteBackend) DeleteChangeLogByConfig(ctx context.Context, configID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM config_change_log WHERE config_id = ?`, configID)
	if err != nil {
		return fmt.Errorf("failed to delete change log: %w", err)
	}
	return nil
}

// Close releases the database. Safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

const selectConfig = `
	SELECT id, name, account_code, scope_kind,
	       COALESCE(org_unit_id, ''), COALESCE(payer_id, ''),
	       limit_amount, currency, currency_symbol, period_unit,
	       period_multiplier, account_id, active, created_at, updated_at
	FROM budget_configs`

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (*BudgetConfig, error) {
	var (
		cfg                  BudgetConfig
		scopeKind, unit      string
		limit                sql.NullString
		active               int
		createdAt, updatedAt int64
	)

	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.AccountCode, &scopeKind,
		&cfg.OrgUnitID, &cfg.PayerID, &limit, &cfg.Currency,
		&cfg.CurrencySymbol, &unit, &cfg.PeriodMultiplier, &cfg.AccountID,
		&active, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	cfg.ScopeKind = ScopeKind(scopeKind)
	cfg.PeriodUnit = period.Unit(unit)
	cfg.Active = active != 0
	cfg.CreatedAt = time.UnixMicro(createdAt).UTC()
	cfg.UpdatedAt = time.UnixMicro(updatedAt).UTC()

	if limit.Valid {
		d, err := decimal.NewFromString(limit.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse limit amount %q: %w", limit.String, err)
		}
		cfg.LimitAmount = &d
	}

	return &cfg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
