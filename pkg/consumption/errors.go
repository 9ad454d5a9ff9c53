package consumption

import (
	"fmt"

	"alameda-hq/cantina/pkg/consumption/enforcement"
	"alameda-hq/cantina/pkg/consumption/ledger"
	"alameda-hq/cantina/pkg/consumption/storage"
	"alameda-hq/cantina/pkg/directory"
)

// ValidationError reports an invalid field in a config or charge.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Typed errors surfaced from the subsystems, re-exported so callers
// depend on this package alone.
type (
	// LimitExceededError rejects a charge that exceeds the balance.
	LimitExceededError = enforcement.LimitExceededError

	// PermissionError rejects a charge on payer permission grounds.
	PermissionError = enforcement.PermissionError

	// ProvisioningError reports a receivable account code collision.
	ProvisioningError = directory.ProvisioningError
)

// Sentinel errors, re-exported.
var (
	ErrConfigNotFound       = storage.ErrConfigNotFound
	ErrDuplicateScope       = storage.ErrDuplicateScope
	ErrDuplicateAccountCode = storage.ErrDuplicateAccountCode
	ErrPayerNotFound        = directory.ErrPayerNotFound
	ErrRecordNotFound       = ledger.ErrRecordNotFound
	ErrImmutableRecord      = ledger.ErrImmutableRecord
	ErrDocumentExists       = ledger.ErrDocumentExists
	ErrPayerDisabled        = enforcement.ErrPayerDisabled
	ErrNoOrgUnit            = enforcement.ErrNoOrgUnit
)
