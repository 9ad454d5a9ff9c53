package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"alameda-hq/cantina/pkg/consumption/period"
)

// ScopeKind selects what a budget configuration is bound to. Exactly one
// scope reference is set; switching kind clears the other reference.
type ScopeKind string

const (
	// ScopeOrgUnit binds the config to an internal organizational unit.
	ScopeOrgUnit ScopeKind = "org_unit"

	// ScopePayer binds the config to an external payer contact.
	ScopePayer ScopeKind = "payer"
)

// BudgetConfig is a named spending policy. The current window, consumed
// amount, and available amount are derived on demand and never stored.
type BudgetConfig struct {
	ID   string
	Name string

	// AccountCode is the chart-of-accounts code of the receivable account
	// provisioned for this config. Globally unique.
	AccountCode string

	ScopeKind ScopeKind
	OrgUnitID string
	PayerID   string

	// LimitAmount is the spending ceiling per period. Nil means unlimited.
	LimitAmount *decimal.Decimal

	Currency       string
	CurrencySymbol string

	PeriodUnit       period.Unit
	PeriodMultiplier int

	// AccountID references the provisioned receivable account.
	AccountID string

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Unlimited reports whether the config has no spending ceiling.
func (c *BudgetConfig) Unlimited() bool {
	return c.LimitAmount == nil
}

// Clone returns a deep copy of the config.
func (c *BudgetConfig) Clone() *BudgetConfig {
	cp := *c
	if c.LimitAmount != nil {
		v := *c.LimitAmount
		cp.LimitAmount = &v
	}
	return &cp
}

// ScopeRef returns the active scope reference ID.
func (c *BudgetConfig) ScopeRef() string {
	if c.ScopeKind == ScopeOrgUnit {
		return c.OrgUnitID
	}
	return c.PayerID
}

// ChangeLogEntry records one tracked field change on a configuration.
// Entries are append-only and removed only when the owning config is
// deleted.
type ChangeLogEntry struct {
	ID          string
	ConfigID    string
	ActorID     string
	ChangedAt   time.Time
	Field       string
	OldValue    string
	NewValue    string
	Description string
}

// Backend is the persistence surface for configs and their change log.
// Implementations must be thread-safe and must enforce the uniqueness
// invariants, returning the sentinel errors below on violation.
type Backend interface {
	// SaveConfig inserts or updates a config.
	SaveConfig(ctx context.Context, cfg *BudgetConfig) error

	// GetConfig returns the config with the given ID.
	GetConfig(ctx context.Context, id string) (*BudgetConfig, error)

	// DeleteConfig removes a config. The caller is responsible for
	// reversing routing and cascading the audit trail first.
	DeleteConfig(ctx context.Context, id string) error

	// ListConfigs returns all configs.
	ListConfigs(ctx context.Context) ([]*BudgetConfig, error)

	// FindConfigByPayer returns the config scoped to the payer, or nil.
	FindConfigByPayer(ctx context.Context, payerID string) (*BudgetConfig, error)

	// FindConfigByOrgUnit returns the config scoped to the org unit, or nil.
	FindConfigByOrgUnit(ctx context.Context, orgUnitID string) (*BudgetConfig, error)

	// AppendChangeLog appends one change log entry.
	AppendChangeLog(ctx context.Context, entry *ChangeLogEntry) error

	// ListChangeLog returns the change log for a config, newest first.
	ListChangeLog(ctx context.Context, configID string) ([]*ChangeLogEntry, error)

	// DeleteChangeLogByConfig removes a config's change log. Called only
	// as part of config deletion.
	DeleteChangeLogByConfig(ctx context.Context, configID string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Sentinel errors returned by backends.
var (
	// ErrConfigNotFound is returned when no config matches the given ID.
	ErrConfigNotFound = errors.New("budget config not found")

	// ErrDuplicateAccountCode is returned when another config already
	// holds the account code.
	ErrDuplicateAccountCode = errors.New("account code already in use by another config")

	// ErrDuplicateScope is returned when the org unit or payer is already
	// bound to another config.
	ErrDuplicateScope = errors.New("scope already bound to another config")
)

// DecimalPtr is a helper for building configs with a limit.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
