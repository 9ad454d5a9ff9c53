package routing

import (
	"context"
	"fmt"
	"log/slog"

	"alameda-hq/cantina/pkg/consumption/storage"
	"alameda-hq/cantina/pkg/directory"
)

// Report summarizes one reconciliation run.
type Report struct {
	// PayersApplied and PayersRevoked count the payers touched in either
	// direction, whether or not any field actually changed.
	PayersApplied int
	PayersRevoked int

	// AccountWrites counts receivable account redirections and restores.
	AccountWrites int

	// FlagWrites counts budget flag updates.
	FlagWrites int

	// Warnings carries per-payer failures. They never abort the run.
	Warnings []string
}

// TotalWrites returns the number of directory mutations performed.
func (r *Report) TotalWrites() int {
	return r.AccountWrites + r.FlagWrites
}

// Synchronizer reconciles payer account routing with budget configs.
type Synchronizer struct {
	directory directory.Store
	logger    *slog.Logger
}

// NewSynchronizer creates a Synchronizer over the directory store.
func NewSynchronizer(dir directory.Store) *Synchronizer {
	return &Synchronizer{
		directory: dir,
		logger:    slog.Default().With("component", "consumption.routing"),
	}
}

// ScopePayers returns the IDs of the payers the config currently covers:
// the payers of the org unit's employees for an org-unit scope, or the
// payer plus its child contacts for a payer scope.
func (s *Synchronizer) ScopePayers(ctx context.Context, cfg *storage.BudgetConfig) ([]string, error) {
	var payers []*directory.Payer
	var err error
	switch cfg.ScopeKind {
	case storage.ScopeOrgUnit:
		payers, err = s.directory.ListPayersByOrgUnit(ctx, cfg.OrgUnitID)
	case storage.ScopePayer:
		payers, err = s.directory.ListPayersByParent(ctx, cfg.PayerID)
	default:
		return nil, fmt.Errorf("unknown scope kind %q", cfg.ScopeKind)
	}
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(payers))
	for _, p := range payers {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// Reconcile revokes routing from payers that left the scope and asserts
// it on every payer currently in scope. The tenants slice limits the
// companies touched; empty means every company in the directory.
//
// toRevoke is oldPayers minus newPayers. toApply is all of newPayers:
// routing is re-asserted even for payers already covered, which makes the
// run self-healing against out-of-band directory edits.
func (s *Synchronizer) Reconcile(ctx context.Context, cfg *storage.BudgetConfig, oldPayers, newPayers []string, tenants []string) (*Report, error) {
	report := &Report{}

	companies, err := s.resolveTenants(ctx, tenants)
	if err != nil {
		return nil, err
	}

	current := make(map[string]bool, len(newPayers))
	for _, id := range newPayers {
		current[id] = true
	}

	for _, id := range oldPayers {
		if current[id] {
			continue
		}
		if err := s.revoke(ctx, cfg, id, companies, report); err != nil {
			s.warn(report, "revoke", id, err)
		} else {
			report.PayersRevoked++
		}
	}

	for _, id := range newPayers {
		if err := s.apply(ctx, cfg, id, companies, report); err != nil {
			s.warn(report, "apply", id, err)
		} else {
			report.PayersApplied++
		}
	}

	if report.TotalWrites() > 0 || len(report.Warnings) > 0 {
		s.logger.Info("routing reconciled",
			"config", cfg.ID,
			"applied", report.PayersApplied,
			"revoked", report.PayersRevoked,
			"account_writes", report.AccountWrites,
			"flag_writes", report.FlagWrites,
			"warnings", len(report.Warnings),
		)
	}
	return report, nil
}

// RevokeAll removes routing from every payer in the given set. Used on
// config deletion and deactivation.
func (s *Synchronizer) RevokeAll(ctx context.Context, cfg *storage.BudgetConfig, payers []string, tenants []string) (*Report, error) {
	return s.Reconcile(ctx, cfg, payers, nil, tenants)
}

// apply redirects the payer's receivable account to the config account in
// every tenant company, backing up the previous account once. Flags are
// written last and only when they differ.
func (s *Synchronizer) apply(ctx context.Context, cfg *storage.BudgetConfig, payerID string, companies []*directory.Company, report *Report) error {
	if !cfg.Active || cfg.AccountID == "" {
		return nil
	}

	payer, err := s.directory.GetPayer(ctx, payerID)
	if err != nil {
		return err
	}

	dirty := false
	for _, company := range companies {
		currentAccount := payer.ReceivableAccounts[company.ID]
		if currentAccount == cfg.AccountID {
			continue
		}
		// Back up the pre-routing account exactly once. A payer already
		// marked active, or with an existing backup, keeps the original.
		if !payer.BudgetActive && payer.OriginalAccounts[company.ID] == "" && currentAccount != "" {
			payer.OriginalAccounts[company.ID] = currentAccount
		}
		payer.ReceivableAccounts[company.ID] = cfg.AccountID
		report.AccountWrites++
		dirty = true
	}

	if !payer.BudgetActive {
		payer.BudgetActive = true
		report.FlagWrites++
		dirty = true
	}
	if !payer.BudgetEnabled {
		payer.BudgetEnabled = true
		report.FlagWrites++
		dirty = true
	}

	if dirty {
		return s.directory.PutPayer(ctx, payer)
	}
	return nil
}

// revoke restores the payer's backed-up receivable accounts, falling back
// to the company default when no backup exists but the config account is
// still routed.
func (s *Synchronizer) revoke(ctx context.Context, cfg *storage.BudgetConfig, payerID string, companies []*directory.Company, report *Report) error {
	payer, err := s.directory.GetPayer(ctx, payerID)
	if err != nil {
		return err
	}

	dirty := false
	for _, company := range companies {
		backup := payer.OriginalAccounts[company.ID]
		switch {
		case backup != "":
			if payer.ReceivableAccounts[company.ID] != backup {
				payer.ReceivableAccounts[company.ID] = backup
				report.AccountWrites++
			}
			delete(payer.OriginalAccounts, company.ID)
			dirty = true
		case payer.ReceivableAccounts[company.ID] == cfg.AccountID && cfg.AccountID != "":
			if company.DefaultReceivableAccountID != "" {
				payer.ReceivableAccounts[company.ID] = company.DefaultReceivableAccountID
			} else {
				delete(payer.ReceivableAccounts, company.ID)
			}
			report.AccountWrites++
			dirty = true
		}
	}

	if payer.BudgetActive {
		payer.BudgetActive = false
		report.FlagWrites++
		dirty = true
	}

	if dirty {
		return s.directory.PutPayer(ctx, payer)
	}
	return nil
}

func (s *Synchronizer) resolveTenants(ctx context.Context, tenants []string) ([]*directory.Company, error) {
	if len(tenants) == 0 {
		companies, err := s.directory.ListCompanies(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list companies: %w", err)
		}
		return companies, nil
	}
	companies := make([]*directory.Company, 0, len(tenants))
	for _, id := range tenants {
		company, err := s.directory.GetCompany(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load company %s: %w", id, err)
		}
		companies = append(companies, company)
	}
	return companies, nil
}

func (s *Synchronizer) warn(report *Report, op, payerID string, err error) {
	msg := fmt.Sprintf("%s failed for payer %s: %v", op, payerID, err)
	report.Warnings = append(report.Warnings, msg)
	s.logger.Warn("routing sync degraded", "op", op, "payer", payerID, "error", err)
}
