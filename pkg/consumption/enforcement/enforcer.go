package enforcement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"alameda-hq/cantina/pkg/consumption/ledger"
	"alameda-hq/cantina/pkg/consumption/period"
	"alameda-hq/cantina/pkg/consumption/storage"
	"alameda-hq/cantina/pkg/directory"
)

// Enforcer resolves budget configurations and validates charges.
//
// The Enforcer is stateless between calls and safe for concurrent use;
// the period window and the consumed total are recomputed on every
// validation so a decision never rests on a cached balance.
type Enforcer struct {
	configs   storage.Backend
	directory directory.Store
	ledger    *ledger.Ledger
	location  *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// NewEnforcer creates an Enforcer. The location anchors period windows;
// nil falls back to UTC.
func NewEnforcer(configs storage.Backend, dir directory.Store, l *ledger.Ledger, location *time.Location) *Enforcer {
	if location == nil {
		location = time.UTC
	}
	return &Enforcer{
		configs:   configs,
		directory: dir,
		ledger:    l,
		location:  location,
		now:       time.Now,
		logger:    slog.Default().With("component", "consumption.enforcement"),
	}
}

// Resolve returns the active configuration governing the payer, walking
// payer, parent, then employee org unit. Returns nil when the payer is
// not budget-controlled.
func (e *Enforcer) Resolve(ctx context.Context, payerID string) (*storage.BudgetConfig, error) {
	payer, err := e.directory.GetPayer(ctx, payerID)
	if err != nil {
		return nil, err
	}

	cfg, err := e.configs.FindConfigByPayer(ctx, payer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve payer scope: %w", err)
	}
	if active(cfg) {
		return cfg, nil
	}

	// One parent level only. A grandparent config never applies.
	if payer.ParentID != "" {
		cfg, err = e.configs.FindConfigByPayer(ctx, payer.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parent scope: %w", err)
		}
		if active(cfg) {
			return cfg, nil
		}
	}

	emp, err := e.directory.FindEmployeeByPayer(ctx, payer.ID)
	if err != nil {
		return nil, err
	}
	if emp == nil || emp.OrgUnitID == "" {
		return nil, nil
	}
	cfg, err = e.configs.FindConfigByOrgUnit(ctx, emp.OrgUnitID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve org unit scope: %w", err)
	}
	if active(cfg) {
		return cfg, nil
	}
	return nil, nil
}

// Validate decides one proposed charge.
//
// On a rejection the Decision is returned alongside the typed error
// (*PermissionError or *LimitExceededError) so callers have both the
// verdict and the display detail.
func (e *Enforcer) Validate(ctx context.Context, payerID string, amount decimal.Decimal) (*Decision, error) {
	cfg, err := e.Resolve(ctx, payerID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return &Decision{Accepted: true, Requested: amount}, nil
	}

	decision := &Decision{
		Controlled: true,
		ConfigID:   cfg.ID,
		ConfigName: cfg.Name,
		Requested:  amount,
		Currency:   cfg.Currency,
	}

	// Permission gate runs before any balance arithmetic.
	if err := e.checkPermission(ctx, payerID); err != nil {
		decision.Reason = err.Error()
		return decision, err
	}

	if cfg.Unlimited() {
		decision.Accepted = true
		return decision, nil
	}

	limit := *cfg.LimitAmount
	decision.Limit = &limit

	window, defined := period.ComputeWindow(cfg.PeriodUnit, cfg.PeriodMultiplier, e.now(), e.location)
	if defined {
		decision.Window = window
	}

	// Undefined period settings make consumption unmeasurable, so the
	// full limit is available.
	consumed, err := e.ledger.SumInWindow(ctx, cfg.ID, decision.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to sum consumption: %w", err)
	}
	decision.Consumed = consumed
	decision.Available = limit.Sub(consumed)

	if amount.GreaterThan(decision.Available) {
		decision.Reason = "consumption limit exceeded"
		e.logger.Info("charge rejected",
			"payer", payerID,
			"config", cfg.ID,
			"requested", amount.String(),
			"available", decision.Available.String(),
		)
		return decision, &LimitExceededError{
			ConfigName: cfg.Name,
			Limit:      limit,
			Consumed:   consumed,
			Available:  decision.Available,
			Requested:  amount,
			Currency:   cfg.Currency,
		}
	}

	decision.Accepted = true
	return decision, nil
}

// checkPermission gates employee payers: the payer's budget permission
// flag must be set and the employee must belong to an org unit. The
// payer record holds the authoritative flag; routing default-enables it
// there when scope is applied, and the employee copy is only a mirror.
// External payers are never permission-gated.
func (e *Enforcer) checkPermission(ctx context.Context, payerID string) error {
	payer, err := e.directory.GetPayer(ctx, payerID)
	if err != nil {
		return err
	}

	emp, err := e.directory.FindEmployeeByPayer(ctx, payerID)
	if err != nil {
		return err
	}
	if emp == nil {
		return nil
	}

	if !payer.BudgetEnabled {
		return NewPermissionError(payerID, ErrPayerDisabled)
	}
	if emp.OrgUnitID == "" {
		return NewPermissionError(payerID, ErrNoOrgUnit)
	}
	return nil
}

func active(cfg *storage.BudgetConfig) bool {
	return cfg != nil && cfg.Active
}
