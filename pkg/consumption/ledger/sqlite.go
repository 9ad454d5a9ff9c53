package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteConfig contains configuration for the SQLite audit store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// ReferencePrefix is the prefix for sequential references.
	// Default: "CON"
	ReferencePrefix string
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:            "data/audit.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		WALMode:         true,
		BusyTimeout:     5 * time.Second,
		ReferencePrefix: "CON",
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL UNIQUE,
	reference TEXT NOT NULL UNIQUE,
	config_id TEXT NOT NULL,
	payer_id TEXT NOT NULL,
	tx_ref TEXT,
	ts INTEGER NOT NULL,
	currency TEXT NOT NULL,
	amount TEXT NOT NULL,
	period_start INTEGER,
	period_end INTEGER,
	balance_before TEXT NOT NULL,
	balance_after TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_config_ts ON audit_records(config_id, ts);
CREATE INDEX IF NOT EXISTS idx_audit_payer ON audit_records(payer_id);

CREATE TABLE IF NOT EXISTS audit_lines (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL REFERENCES audit_records(id) ON DELETE CASCADE,
	product_ref TEXT NOT NULL,
	qty TEXT NOT NULL,
	unit_price TEXT NOT NULL,
	subtotal TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lines_record ON audit_lines(record_id);

CREATE TABLE IF NOT EXISTS audit_documents (
	record_id TEXT PRIMARY KEY REFERENCES audit_records(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	data BLOB NOT NULL,
	attached_at INTEGER NOT NULL
);
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite audit store. It initializes the
// schema and enables WAL mode if configured.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if config.ReferencePrefix == "" {
		config.ReferencePrefix = "CON"
	}

	logger := slog.Default().With("component", "consumption.ledger.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{db: db, config: config, logger: logger}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("audit store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Append writes the record and its lines in one transaction, assigning
// the next sequence number and reference atomically.
func (s *SQLiteStore) Append(ctx context.Context, rec *AuditRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_records`,
	).Scan(&seq); err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}

	rec.Seq = seq
	rec.Reference = fmt.Sprintf("%s/%05d", s.config.ReferencePrefix, seq)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_records
			(id, seq, reference, config_id, payer_id, tx_ref, ts, currency,
			 amount, period_start, period_end, balance_before, balance_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Seq, rec.Reference, rec.ConfigID, rec.PayerID,
		nullString(rec.TxRef), rec.Timestamp.UnixMicro(), rec.Currency,
		rec.Amount.String(), nullTime(rec.PeriodStart), nullTime(rec.PeriodEnd),
		rec.BalanceBefore.String(), rec.BalanceAfter.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	for _, line := range rec.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO audit_lines (record_id, product_ref, qty, unit_price, subtotal)
			VALUES (?, ?, ?, ?, ?)
		`, rec.ID, line.ProductRef, line.Qty.String(), line.UnitPrice.String(), line.Subtotal.String())
		if err != nil {
			return fmt.Errorf("failed to insert line: %w", err)
		}
	}

	return tx.Commit()
}

// GetRecord returns one record with its lines.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*AuditRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadLines(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByConfig returns a config's records, newest first, with lines.
func (s *SQLiteStore) ListByConfig(ctx context.Context, configID string) ([]*AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+` WHERE config_id = ? ORDER BY ts DESC, seq DESC`, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []*AuditRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, rec := range out {
		if err := s.loadLines(ctx, rec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CountByConfig returns the number of records for a config.
func (s *SQLiteStore) CountByConfig(ctx context.Context, configID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_records WHERE config_id = ?`, configID,
	).Scan(&n)
	return n, err
}

// SumInWindow sums record amounts with ts in [start, end]. Amounts are
// stored as decimal strings and summed in Go to avoid float drift.
func (s *SQLiteStore) SumInWindow(ctx context.Context, configID string, start, end time.Time) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT amount FROM audit_records
		WHERE config_id = ? AND ts >= ? AND ts <= ?
	`, configID, start.UnixMicro(), end.UnixMicro())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query window sum: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", raw, err)
		}
		sum = sum.Add(amount)
	}
	return sum, rows.Err()
}

// DeleteRecord removes one record. Protection against accidental deletes
// lives in the Ledger; the store obeys.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteByConfig removes all records for a config, returning the count.
func (s *SQLiteStore) DeleteByConfig(ctx context.Context, configID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_records WHERE config_id = ?`, configID)
	if err != nil {
		return 0, fmt.Errorf("failed to cascade delete: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// GetDocument returns the record's attached document, or nil.
func (s *SQLiteStore) GetDocument(ctx context.Context, recordID string) (*Document, error) {
	var doc Document
	var attachedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT name, mime_type, data, attached_at FROM audit_documents WHERE record_id = ?
	`, recordID).Scan(&doc.Name, &doc.MIMEType, &doc.Data, &attachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	doc.AttachedAt = time.UnixMicro(attachedAt).UTC()
	return &doc, nil
}

// PutDocument stores the document, failing with ErrDocumentExists when
// the record already has one. The primary key makes attach-once atomic.
func (s *SQLiteStore) PutDocument(ctx context.Context, recordID string, doc *Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_documents (record_id, name, mime_type, data, attached_at)
		VALUES (?, ?, ?, ?, ?)
	`, recordID, doc.Name, doc.MIMEType, doc.Data, doc.AttachedAt.UnixMicro())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDocumentExists
		}
		return fmt.Errorf("failed to attach document: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) loadLines(ctx context.Context, rec *AuditRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_ref, qty, unit_price, subtotal
		FROM audit_lines WHERE record_id = ? ORDER BY id
	`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to load lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line AuditLine
		var qty, unitPrice, subtotal string
		if err := rows.Scan(&line.ProductRef, &qty, &unitPrice, &subtotal); err != nil {
			return err
		}
		if line.Qty, err = decimal.NewFromString(qty); err != nil {
			return err
		}
		if line.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return err
		}
		if line.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return err
		}
		rec.Lines = append(rec.Lines, line)
	}
	return rows.Err()
}

const selectRecord = `
	SELECT id, seq, reference, config_id, payer_id, COALESCE(tx_ref, ''),
	       ts, currency, amount, period_start, period_end,
	       balance_before, balance_after
	FROM audit_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*AuditRecord, error) {
	var (
		rec                    AuditRecord
		ts                     int64
		periodStart, periodEnd sql.NullInt64
		amount, before, after  string
	)
	err := row.Scan(&rec.ID, &rec.Seq, &rec.Reference, &rec.ConfigID,
		&rec.PayerID, &rec.TxRef, &ts, &rec.Currency, &amount,
		&periodStart, &periodEnd, &before, &after)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.Timestamp = time.UnixMicro(ts).UTC()
	if periodStart.Valid {
		rec.PeriodStart = time.UnixMicro(periodStart.Int64).UTC()
	}
	if periodEnd.Valid {
		rec.PeriodEnd = time.UnixMicro(periodEnd.Int64).UTC()
	}
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	if rec.BalanceBefore, err = decimal.NewFromString(before); err != nil {
		return nil, fmt.Errorf("failed to parse balance before %q: %w", before, err)
	}
	if rec.BalanceAfter, err = decimal.NewFromString(after); err != nil {
		return nil, fmt.Errorf("failed to parse balance after %q: %w", after, err)
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMicro(), Valid: true}
}

func isUniqueViolation(err error) bool {
	// Matching on the error text keeps the store free of driver-specific
	// types.
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
