package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// AuditRecord is one accepted charge. Immutable once written, except for
// the one-shot document attachment.
type AuditRecord struct {
	ID        string
	Reference string
	Seq       int64

	ConfigID string
	PayerID  string

	// TxRef is the originating transaction reference (e.g. a POS order
	// name). Optional.
	TxRef string

	Timestamp time.Time
	Currency  string
	Amount    decimal.Decimal

	// PeriodStart and PeriodEnd capture the window in effect at charge
	// time. Zero when the config's period settings were undefined.
	PeriodStart time.Time
	PeriodEnd   time.Time

	// BalanceBefore and BalanceAfter are the available amounts around
	// this charge, floored at zero for display.
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal

	Lines []AuditLine
}

// AuditLine is one descriptive product line of a charge. Purely
// informational; the record's Amount is authoritative.
type AuditLine struct {
	ProductRef string
	Qty        decimal.Decimal
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
}

// Document is a supporting document attached to a record, typically the
// receipt captured at the point of sale.
type Document struct {
	Name       string
	MIMEType   string
	Data       []byte
	AttachedAt time.Time
}

// AppendRequest carries the inputs for one ledger append.
type AppendRequest struct {
	ConfigID      string
	PayerID       string
	TxRef         string
	Timestamp     time.Time
	Currency      string
	Amount        decimal.Decimal
	PeriodStart   time.Time
	PeriodEnd     time.Time
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Lines         []AuditLine
}

// Store is the persistence surface for audit records. Implementations
// must be thread-safe, must assign Seq and Reference atomically inside
// Append, and must write the record and its lines in one transaction.
type Store interface {
	Append(ctx context.Context, rec *AuditRecord) error
	GetRecord(ctx context.Context, id string) (*AuditRecord, error)
	ListByConfig(ctx context.Context, configID string) ([]*AuditRecord, error)
	CountByConfig(ctx context.Context, configID string) (int, error)
	SumInWindow(ctx context.Context, configID string, start, end time.Time) (decimal.Decimal, error)
	DeleteRecord(ctx context.Context, id string) error
	DeleteByConfig(ctx context.Context, configID string) (int, error)
	GetDocument(ctx context.Context, recordID string) (*Document, error)
	PutDocument(ctx context.Context, recordID string, doc *Document) error
	Close() error
}

// Sentinel errors.
var (
	// ErrRecordNotFound is returned when no record matches the given ID.
	ErrRecordNotFound = errors.New("audit record not found")

	// ErrImmutableRecord is returned when an individual record delete is
	// attempted without the administrative override.
	ErrImmutableRecord = errors.New("audit records cannot be deleted individually; delete the owning config")

	// ErrDocumentExists is returned on a second attach attempt.
	ErrDocumentExists = errors.New("record already has an attached document")
)
