package enforcement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"alameda-hq/cantina/pkg/consumption/period"
)

// Decision is the outcome of validating one proposed charge.
type Decision struct {
	// Accepted reports whether the charge may proceed.
	Accepted bool

	// Controlled reports whether a budget configuration governs the
	// payer. Uncontrolled payers are always accepted.
	Controlled bool

	// ConfigID and ConfigName identify the governing configuration when
	// Controlled is true.
	ConfigID   string
	ConfigName string

	// Limit is nil for an unlimited configuration.
	Limit *decimal.Decimal

	// Consumed is the total already charged inside the current window.
	Consumed decimal.Decimal

	// Available is Limit minus Consumed. May be negative when earlier
	// charges overshot; callers floor it for display.
	Available decimal.Decimal

	// Requested is the proposed charge amount.
	Requested decimal.Decimal

	// Currency is the configuration's currency code.
	Currency string

	// Window is the period window the decision was computed against.
	// Zero when the configuration's period settings are undefined.
	Window period.Window

	// Reason explains a rejection. Empty on acceptance.
	Reason string
}

// Permission rejection reasons.
var (
	// ErrPayerDisabled means the payer or its linked employee has the
	// budget permission switched off.
	ErrPayerDisabled = errors.New("payer is not allowed to consume against the budget")

	// ErrNoOrgUnit means the linked employee has no org unit, so no
	// budget scope can be established for it.
	ErrNoOrgUnit = errors.New("employee has no org unit assigned")
)

// PermissionError rejects a charge before any balance arithmetic.
type PermissionError struct {
	PayerID string
	Reason  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("payer %s: %v", e.PayerID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return e.Reason
}

// NewPermissionError creates a PermissionError for the given payer.
func NewPermissionError(payerID string, reason error) *PermissionError {
	return &PermissionError{PayerID: payerID, Reason: reason}
}

// LimitExceededError rejects a charge that does not fit the remaining
// balance. It carries everything a point of sale needs to display.
type LimitExceededError struct {
	ConfigName string
	Limit      decimal.Decimal
	Consumed   decimal.Decimal
	Available  decimal.Decimal
	Requested  decimal.Decimal
	Currency   string
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("consumption limit exceeded for %s: requested %s %s, available %s (limit %s, consumed %s)",
		e.ConfigName, e.Requested, e.Currency, e.Available, e.Limit, e.Consumed)
}
