// Cantina is an internal consumption budget engine for points of sale.
//
// It tracks what employees and guest companies consume against periodic
// budgets, enforces spending limits at charge time, keeps an append-only
// audit trail, and routes payer receivable accounts to per-budget
// ledger accounts.
//
// Usage:
//
//	# Start the service with default configuration
//	cantina run
//
//	# Start with a custom configuration file
//	cantina run --config /etc/cantina/config.yaml
//
//	# Validate a configuration file
//	cantina validate
//
//	# Show version information
//	cantina version
package main

func main() {
	Execute()
}
