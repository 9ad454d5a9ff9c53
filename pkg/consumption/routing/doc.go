// Package routing keeps payer receivable accounts aligned with budget
// configurations.
//
// When a configuration covers a payer, the payer's receivable account in
// every tenant company is redirected to the configuration's provisioned
// account, and the account it had before is backed up. When coverage
// ends, the backup is restored, or the company default is used when no
// backup exists. Reconciliation is self-healing and idempotent: running
// it twice against an unchanged scope performs zero writes.
//
// Individual payer or company failures degrade to warnings in the
// Report so one broken record never blocks the rest of the scope.
package routing
