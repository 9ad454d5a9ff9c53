// Package consumption is the budget engine facade.
//
// The Manager ties the pieces together: configuration storage, the
// append-only audit ledger, charge enforcement, payer account routing,
// and the per-field change log. Points of sale call ValidateCharge and
// RecordCharge; administrators call the config lifecycle operations.
//
// # Concurrency
//
// RecordCharge serializes per configuration through a lock registry, so
// two concurrent charges that jointly exceed the remaining balance can
// never both be accepted. Charges against different configurations do
// not contend.
//
// # Example
//
//	mgr, err := consumption.NewManager(consumption.Options{
//	    Configs:   configBackend,
//	    Directory: directoryStore,
//	    Ledger:    ledgerStore,
//	    Location:  loc,
//	})
//
//	decision, err := mgr.ValidateCharge(ctx, payerID, amount)
//	if decision.Accepted {
//	    record, err := mgr.RecordCharge(ctx, consumption.ChargeRequest{
//	        PayerID: payerID,
//	        Amount:  amount,
//	        TxRef:   "POS/0042",
//	    })
//	}
package consumption
