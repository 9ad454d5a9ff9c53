// Package directory models the organizational collaborators of the budget
// engine: payers (employees and external contacts), employees, org units,
// companies, and receivable accounts.
//
// The engine does not own payer identity. It owns only the routing-related
// attributes on a payer record: the budget permission flag, the in-scope
// flag, the active receivable account per company, and the backup of the
// original account taken when routing was first applied.
//
// The package provides store interfaces, an in-memory implementation, and a
// Service for the operations with cross-entity invariants: receivable
// account provisioning (all-or-nothing across tenant companies), barcode
// assignment with global uniqueness, and payer/employee flag mirroring.
// Mirroring takes an explicit one-shot mirror parameter instead of an
// ambient re-entry guard: the mirrored write passes mirror=false.
package directory
