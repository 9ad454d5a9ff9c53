package consumption

import (
	"time"

	"github.com/shopspring/decimal"

	"alameda-hq/cantina/pkg/consumption/enforcement"
	"alameda-hq/cantina/pkg/consumption/ledger"
	"alameda-hq/cantina/pkg/consumption/period"
	"alameda-hq/cantina/pkg/consumption/storage"
)

// Decision is the verdict on one proposed charge.
type Decision = enforcement.Decision

// ConsumptionInfo is the display snapshot a point of sale shows for a
// payer. Computed on demand, never cached.
type ConsumptionInfo struct {
	// Found reports whether a budget configuration governs the payer.
	Found bool

	ConfigID   string
	ConfigName string

	// Limit is nil for an unlimited configuration.
	Limit *decimal.Decimal

	// Consumed is the total charged inside the current window.
	Consumed decimal.Decimal

	// Available is the remaining balance, floored at zero for display.
	Available decimal.Decimal

	// Percentage is consumed over limit, 0 to 100+. Zero when unlimited.
	Percentage float64

	Currency       string
	CurrencySymbol string

	// Window bounds the current period. Zero when undefined.
	Window period.Window
}

// ChargeRequest is one consumption charge to validate and record.
type ChargeRequest struct {
	PayerID string

	// TxRef is the originating transaction reference. Optional.
	TxRef string

	Amount decimal.Decimal

	// Timestamp defaults to now.
	Timestamp time.Time

	// Lines describe the products charged. Informational.
	Lines []ledger.AuditLine
}

// ConfigParams carries the editable fields of a budget configuration
// for create and update.
type ConfigParams struct {
	Name        string
	AccountCode string

	ScopeKind storage.ScopeKind
	OrgUnitID string
	PayerID   string

	// LimitAmount nil means unlimited.
	LimitAmount *decimal.Decimal

	Currency       string
	CurrencySymbol string

	PeriodUnit       period.Unit
	PeriodMultiplier int

	Active bool
}
