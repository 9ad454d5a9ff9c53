package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alameda-hq/cantina/pkg/consumption/period"
)

// Ledger enforces the audit trail's invariants on top of a Store:
// validated appends, sum queries over a window, one-shot document
// attachment, and delete protection.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// New creates a Ledger over the given store.
func New(store Store) *Ledger {
	return &Ledger{
		store:  store,
		logger: slog.Default().With("component", "consumption.ledger"),
	}
}

// Append validates the request and writes one audit record. The store
// assigns the sequential reference atomically with the insert.
func (l *Ledger) Append(ctx context.Context, req AppendRequest) (*AuditRecord, error) {
	if req.ConfigID == "" {
		return nil, fmt.Errorf("config ID is required")
	}
	if req.PayerID == "" {
		return nil, fmt.Errorf("payer ID is required")
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return nil, fmt.Errorf("amount must be positive, got %s", req.Amount)
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	rec := &AuditRecord{
		ID:            uuid.NewString(),
		ConfigID:      req.ConfigID,
		PayerID:       req.PayerID,
		TxRef:         req.TxRef,
		Timestamp:     ts.UTC(),
		Currency:      req.Currency,
		Amount:        req.Amount,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		BalanceBefore: req.BalanceBefore,
		BalanceAfter:  req.BalanceAfter,
		Lines:         req.Lines,
	}

	if err := l.store.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to append audit record: %w", err)
	}

	l.logger.Info("consumption recorded",
		"reference", rec.Reference,
		"config", rec.ConfigID,
		"payer", rec.PayerID,
		"amount", rec.Amount.String(),
	)
	return rec, nil
}

// SumInWindow returns the total charged for the config inside the window.
// An undefined window sums to zero.
func (l *Ledger) SumInWindow(ctx context.Context, configID string, w period.Window) (decimal.Decimal, error) {
	if w.IsZero() {
		return decimal.Zero, nil
	}
	return l.store.SumInWindow(ctx, configID, w.Start, w.End)
}

// GetRecord returns one record by ID.
func (l *Ledger) GetRecord(ctx context.Context, id string) (*AuditRecord, error) {
	return l.store.GetRecord(ctx, id)
}

// ListByConfig returns a config's records, newest first.
func (l *Ledger) ListByConfig(ctx context.Context, configID string) ([]*AuditRecord, error) {
	return l.store.ListByConfig(ctx, configID)
}

// CountByConfig returns the number of records for a config.
func (l *Ledger) CountByConfig(ctx context.Context, configID string) (int, error) {
	return l.store.CountByConfig(ctx, configID)
}

// DeleteRecord removes one record. Without the override it fails with
// ErrImmutableRecord: individual records are protected; only deleting
// the owning config cascades.
func (l *Ledger) DeleteRecord(ctx context.Context, id string, override bool) error {
	if !override {
		return ErrImmutableRecord
	}
	return l.store.DeleteRecord(ctx, id)
}

// DeleteByConfig cascade-deletes a config's audit trail. Called only
// from config deletion.
func (l *Ledger) DeleteByConfig(ctx context.Context, configID string) (int, error) {
	n, err := l.store.DeleteByConfig(ctx, configID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.logger.Info("audit trail cascade-deleted", "config", configID, "records", n)
	}
	return n, nil
}

// AttachDocument attaches a supporting document to a record, once. A
// second attach fails with ErrDocumentExists.
func (l *Ledger) AttachDocument(ctx context.Context, recordID string, doc Document) error {
	if _, err := l.store.GetRecord(ctx, recordID); err != nil {
		return err
	}
	if doc.AttachedAt.IsZero() {
		doc.AttachedAt = time.Now().UTC()
	}
	if err := l.store.PutDocument(ctx, recordID, &doc); err != nil {
		return err
	}
	l.logger.Info("document attached", "record", recordID, "name", doc.Name)
	return nil
}

// GetDocument returns the record's attached document, or nil.
func (l *Ledger) GetDocument(ctx context.Context, recordID string) (*Document, error) {
	return l.store.GetDocument(ctx, recordID)
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
