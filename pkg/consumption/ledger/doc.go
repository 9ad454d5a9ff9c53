// Package ledger is the append-only audit trail of accepted consumption
// charges.
//
// Every accepted charge produces one AuditRecord with the period window
// and balances in effect at charge time, plus descriptive line items.
// Records are immutable after creation with two exceptions: a supporting
// document may be attached exactly once, and records are removed when the
// owning configuration is deleted. Deleting an individual record requires
// an explicit administrative override; without it the ledger refuses.
//
// References are sequential and human readable (CON/00001, CON/00002, ...)
// and are assigned atomically with the append.
package ledger
