package consumption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alameda-hq/cantina/pkg/consumption/changelog"
	"alameda-hq/cantina/pkg/consumption/enforcement"
	"alameda-hq/cantina/pkg/consumption/ledger"
	"alameda-hq/cantina/pkg/consumption/period"
	"alameda-hq/cantina/pkg/consumption/routing"
	"alameda-hq/cantina/pkg/consumption/storage"
	"alameda-hq/cantina/pkg/directory"
)

// Manager coordinates the budget engine: config lifecycle, charge
// validation and recording, account routing, and the change log.
type Manager struct {
	configs   storage.Backend
	directory *directory.Service
	ledger    *ledger.Ledger
	enforcer  *enforcement.Enforcer
	routing   *routing.Synchronizer
	changelog *changelog.Recorder
	metrics   *Metrics
	location  *time.Location
	now       func() time.Time

	// locks serializes charges per config ID. Mutexes are created
	// lazily and live for the config's lifetime.
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	logger *slog.Logger
}

// Options configures a Manager. Configs, Directory, and Ledger are
// required; nil Location means UTC.
type Options struct {
	Configs   storage.Backend
	Directory directory.Store
	Ledger    ledger.Store
	Location  *time.Location
	Metrics   *Metrics
}

// NewManager creates a Manager and its subsystems over the given stores.
func NewManager(opts Options) (*Manager, error) {
	if opts.Configs == nil {
		return nil, fmt.Errorf("config backend is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("directory store is required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	led := ledger.New(opts.Ledger)
	return &Manager{
		configs:   opts.Configs,
		directory: directory.NewService(opts.Directory),
		ledger:    led,
		enforcer:  enforcement.NewEnforcer(opts.Configs, opts.Directory, led, opts.Location),
		routing:   routing.NewSynchronizer(opts.Directory),
		changelog: changelog.NewRecorder(opts.Configs, opts.Directory),
		metrics:   opts.Metrics,
		location:  opts.Location,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
		logger:    slog.Default().With("component", "consumption.manager"),
	}, nil
}

// Synchronizer returns the routing synchronizer, for wiring the sweeper.
func (m *Manager) Synchronizer() *routing.Synchronizer {
	return m.routing
}

// Ledger returns the audit ledger, for reporting callers.
func (m *Manager) Ledger() *ledger.Ledger {
	return m.ledger
}

// Directory returns the directory service.
func (m *Manager) Directory() *directory.Service {
	return m.directory
}

// Close releases the underlying stores.
func (m *Manager) Close() error {
	ledgerErr := m.ledger.Close()
	configErr := m.configs.Close()
	if ledgerErr != nil {
		return ledgerErr
	}
	return configErr
}

// --- Query surface ---

// GetConsumptionInfo returns the display snapshot for a payer. Payers
// without a governing config return Found=false. Always computed fresh
// from the ledger.
func (m *Manager) GetConsumptionInfo(ctx context.Context, payerID string) (*ConsumptionInfo, error) {
	cfg, err := m.enforcer.Resolve(ctx, payerID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return &ConsumptionInfo{}, nil
	}

	info := &ConsumptionInfo{
		Found:          true,
		ConfigID:       cfg.ID,
		ConfigName:     cfg.Name,
		Currency:       cfg.Currency,
		CurrencySymbol: cfg.CurrencySymbol,
	}
	// Window and consumed are reported for unlimited configs too; only
	// the limit arithmetic is skipped.
	window, defined := period.ComputeWindow(cfg.PeriodUnit, cfg.PeriodMultiplier, m.now(), m.location)
	if defined {
		info.Window = window
	}
	consumed, err := m.ledger.SumInWindow(ctx, cfg.ID, info.Window)
	if err != nil {
		return nil, err
	}
	info.Consumed = consumed

	if cfg.Unlimited() {
		return info, nil
	}

	limit := *cfg.LimitAmount
	info.Limit = &limit
	info.Available = floorZero(limit.Sub(consumed))
	if limit.IsPositive() {
		pct, _ := consumed.Div(limit).Mul(decimal.NewFromInt(100)).Float64()
		info.Percentage = pct
	}

	m.metrics.SetUsage(cfg.Name, info.Percentage)
	return info, nil
}

// ValidateCharge pre-checks a charge without writing anything. Same
// rules as RecordCharge.
func (m *Manager) ValidateCharge(ctx context.Context, payerID string, amount decimal.Decimal) (*Decision, error) {
	started := m.now()
	decision, err := m.enforcer.Validate(ctx, payerID, amount)
	m.observeDecision(decision, err, started)
	return decision, err
}

// RecordCharge validates and records one charge atomically with respect
// to other charges on the same config. Returns the audit record for an
// accepted charge against a controlled payer, or nil when the payer is
// not budget-controlled.
func (m *Manager) RecordCharge(ctx context.Context, req ChargeRequest) (*ledger.AuditRecord, error) {
	if req.PayerID == "" {
		return nil, NewValidationError("payer", "payer ID is required")
	}
	if !req.Amount.IsPositive() {
		return nil, NewValidationError("amount", "must be positive")
	}

	cfg, err := m.enforcer.Resolve(ctx, req.PayerID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}

	// Validation and append run under the config lock so the balance
	// read cannot go stale before the write.
	lock := m.lockFor(cfg.ID)
	lock.Lock()
	defer lock.Unlock()

	started := m.now()
	decision, err := m.enforcer.Validate(ctx, req.PayerID, req.Amount)
	m.observeDecision(decision, err, started)
	if err != nil {
		return nil, err
	}
	if !decision.Accepted {
		return nil, fmt.Errorf("charge rejected: %s", decision.Reason)
	}

	rec, err := m.ledger.Append(ctx, ledger.AppendRequest{
		ConfigID:      cfg.ID,
		PayerID:       req.PayerID,
		TxRef:         req.TxRef,
		Timestamp:     req.Timestamp,
		Currency:      cfg.Currency,
		Amount:        req.Amount,
		PeriodStart:   decision.Window.Start,
		PeriodEnd:     decision.Window.End,
		BalanceBefore: floorZero(decision.Available),
		BalanceAfter:  floorZero(decision.Available.Sub(req.Amount)),
		Lines:         req.Lines,
	})
	if err != nil {
		return nil, err
	}

	if decision.Limit != nil && decision.Limit.IsPositive() {
		pct, _ := decision.Consumed.Add(req.Amount).Div(*decision.Limit).Mul(decimal.NewFromInt(100)).Float64()
		m.metrics.SetUsage(cfg.Name, pct)
	}
	return rec, nil
}

// AttachDocument attaches a supporting document to an audit record,
// write-once.
func (m *Manager) AttachDocument(ctx context.Context, recordID string, doc ledger.Document) error {
	return m.ledger.AttachDocument(ctx, recordID, doc)
}

// --- Admin surface ---

// CreateConfig validates the params, provisions the receivable account
// across all tenant companies, saves the config, and asserts routing on
// the initial scope. Provisioning is all-or-nothing: a code collision in
// any company leaves nothing behind.
func (m *Manager) CreateConfig(ctx context.Context, params ConfigParams, actorID string) (*storage.BudgetConfig, error) {
	if err := m.validateParams(ctx, params); err != nil {
		return nil, err
	}

	nowTS := m.now().UTC()
	cfg := &storage.BudgetConfig{
		ID:               uuid.NewString(),
		Name:             params.Name,
		AccountCode:      params.AccountCode,
		ScopeKind:        params.ScopeKind,
		OrgUnitID:        params.OrgUnitID,
		PayerID:          params.PayerID,
		LimitAmount:      cloneLimit(params.LimitAmount),
		Currency:         params.Currency,
		CurrencySymbol:   params.CurrencySymbol,
		PeriodUnit:       params.PeriodUnit,
		PeriodMultiplier: params.PeriodMultiplier,
		Active:           params.Active,
		CreatedAt:        nowTS,
		UpdatedAt:        nowTS,
	}

	account, err := m.directory.ProvisionAccount(ctx, cfg.AccountCode, m.accountName(ctx, cfg), nil)
	if err != nil {
		return nil, err
	}
	cfg.AccountID = account.ID

	if err := m.configs.SaveConfig(ctx, cfg); err != nil {
		// Unwind the provisioned account so a retry with fixed params
		// does not collide with our own leftover.
		if delErr := m.directory.Store().DeleteAccount(ctx, account.ID); delErr != nil {
			m.logger.Warn("failed to unwind provisioned account", "account", account.ID, "error", delErr)
		}
		return nil, err
	}

	m.logger.Info("budget config created",
		"config", cfg.ID,
		"name", cfg.Name,
		"account_code", cfg.AccountCode,
		"actor", actorID,
	)

	m.reconcileScope(ctx, cfg, nil)
	return cfg.Clone(), nil
}

// UpdateConfig re-validates, handles account recode and rename, appends
// change log entries for tracked fields, and reconciles routing over the
// old and new payer sets.
func (m *Manager) UpdateConfig(ctx context.Context, id string, params ConfigParams, actorID string) (*storage.BudgetConfig, error) {
	old, err := m.configs.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.validateParams(ctx, params); err != nil {
		return nil, err
	}

	updated := old.Clone()
	updated.Name = params.Name
	updated.AccountCode = params.AccountCode
	updated.ScopeKind = params.ScopeKind
	updated.OrgUnitID = params.OrgUnitID
	updated.PayerID = params.PayerID
	updated.LimitAmount = cloneLimit(params.LimitAmount)
	updated.Currency = params.Currency
	updated.CurrencySymbol = params.CurrencySymbol
	updated.PeriodUnit = params.PeriodUnit
	updated.PeriodMultiplier = params.PeriodMultiplier
	updated.Active = params.Active
	updated.UpdatedAt = m.now().UTC()

	oldPayers, err := m.routing.ScopePayers(ctx, old)
	if err != nil {
		m.logger.Warn("failed to resolve old scope", "config", id, "error", err)
	}

	if updated.AccountCode != old.AccountCode {
		if err := m.directory.RecodeAccount(ctx, updated.AccountID, updated.AccountCode, nil); err != nil {
			return nil, err
		}
	}
	if updated.ScopeRef() != old.ScopeRef() || updated.ScopeKind != old.ScopeKind {
		if err := m.directory.RenameAccount(ctx, updated.AccountID, m.accountName(ctx, updated)); err != nil {
			m.logger.Warn("account rename failed", "config", id, "error", err)
		}
	}

	if err := m.configs.SaveConfig(ctx, updated); err != nil {
		if updated.AccountCode != old.AccountCode {
			if recodeErr := m.directory.RecodeAccount(ctx, updated.AccountID, old.AccountCode, nil); recodeErr != nil {
				m.logger.Warn("failed to unwind account recode", "config", id, "error", recodeErr)
			}
		}
		return nil, err
	}

	if err := m.changelog.RecordUpdate(ctx, old, updated, actorID); err != nil {
		m.logger.Warn("change log append failed", "config", id, "error", err)
	}

	if old.Active && !updated.Active {
		m.revokeScope(ctx, updated, oldPayers)
	} else {
		m.reconcileScope(ctx, updated, oldPayers)
	}

	m.logger.Info("budget config updated", "config", id, "actor", actorID)
	return updated.Clone(), nil
}

// DeleteConfig revokes routing from the whole scope, cascade-deletes the
// audit trail and change log, removes the provisioned account, and
// finally deletes the config.
func (m *Manager) DeleteConfig(ctx context.Context, id string) error {
	cfg, err := m.configs.GetConfig(ctx, id)
	if err != nil {
		return err
	}

	payers, err := m.routing.ScopePayers(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to resolve scope for revocation: %w", err)
	}
	m.revokeScope(ctx, cfg, payers)

	if _, err := m.ledger.DeleteByConfig(ctx, id); err != nil {
		return fmt.Errorf("failed to cascade audit trail: %w", err)
	}
	if err := m.changelog.DeleteByConfig(ctx, id); err != nil {
		return fmt.Errorf("failed to delete change log: %w", err)
	}
	if cfg.AccountID != "" {
		if err := m.directory.Store().DeleteAccount(ctx, cfg.AccountID); err != nil && !errors.Is(err, directory.ErrAccountNotFound) {
			m.logger.Warn("failed to delete provisioned account", "account", cfg.AccountID, "error", err)
		}
	}
	if err := m.configs.DeleteConfig(ctx, id); err != nil {
		return err
	}

	m.lockMu.Lock()
	delete(m.locks, id)
	m.lockMu.Unlock()

	m.logger.Info("budget config deleted", "config", id, "name", cfg.Name)
	return nil
}

// GetConfig returns one config.
func (m *Manager) GetConfig(ctx context.Context, id string) (*storage.BudgetConfig, error) {
	return m.configs.GetConfig(ctx, id)
}

// ListConfigs returns all configs.
func (m *Manager) ListConfigs(ctx context.Context) ([]*storage.BudgetConfig, error) {
	return m.configs.ListConfigs(ctx)
}

// ChangeLog returns a config's change history, newest first.
func (m *Manager) ChangeLog(ctx context.Context, configID string) ([]*storage.ChangeLogEntry, error) {
	return m.changelog.List(ctx, configID)
}

// SyncPayerScope moves one payer between org unit scopes: revoke from
// the old org unit's config, apply to the new one. An empty new org unit
// means the payer lost budget scope entirely; its permission flag is
// cleared along with the routing.
func (m *Manager) SyncPayerScope(ctx context.Context, payerID, oldOrgUnitID, newOrgUnitID string) error {
	if oldOrgUnitID == newOrgUnitID {
		return nil
	}

	if oldOrgUnitID != "" {
		oldCfg, err := m.configs.FindConfigByOrgUnit(ctx, oldOrgUnitID)
		if err != nil {
			return err
		}
		if oldCfg != nil {
			report, err := m.routing.Reconcile(ctx, oldCfg, []string{payerID}, nil, nil)
			if err != nil {
				return err
			}
			m.metrics.AddReconcileWrites(report.TotalWrites())
		}
	}

	if newOrgUnitID == "" {
		return m.directory.SetBudgetPermission(ctx, payerID, false, true)
	}

	newCfg, err := m.configs.FindConfigByOrgUnit(ctx, newOrgUnitID)
	if err != nil {
		return err
	}
	if newCfg != nil {
		report, err := m.routing.Reconcile(ctx, newCfg, nil, []string{payerID}, nil)
		if err != nil {
			return err
		}
		m.metrics.AddReconcileWrites(report.TotalWrites())
	}
	return nil
}

// --- internals ---

func (m *Manager) lockFor(configID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	lock, ok := m.locks[configID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[configID] = lock
	}
	return lock
}

// reconcileScope asserts routing over the config's current scope.
// Best-effort: routing failures degrade to warnings, the config write
// already landed.
func (m *Manager) reconcileScope(ctx context.Context, cfg *storage.BudgetConfig, oldPayers []string) {
	newPayers, err := m.routing.ScopePayers(ctx, cfg)
	if err != nil {
		m.logger.Warn("failed to resolve scope", "config", cfg.ID, "error", err)
		return
	}
	report, err := m.routing.Reconcile(ctx, cfg, oldPayers, newPayers, nil)
	if err != nil {
		m.logger.Warn("routing reconciliation failed", "config", cfg.ID, "error", err)
		return
	}
	m.metrics.AddReconcileWrites(report.TotalWrites())
}

func (m *Manager) revokeScope(ctx context.Context, cfg *storage.BudgetConfig, payers []string) {
	report, err := m.routing.RevokeAll(ctx, cfg, payers, nil)
	if err != nil {
		m.logger.Warn("routing revocation failed", "config", cfg.ID, "error", err)
		return
	}
	m.metrics.AddReconcileWrites(report.TotalWrites())
}

// accountName builds the provisioned account's display name from the
// scope, e.g. "Internal Consumption (Kitchen Staff)".
func (m *Manager) accountName(ctx context.Context, cfg *storage.BudgetConfig) string {
	scope := cfg.Name
	switch cfg.ScopeKind {
	case storage.ScopeOrgUnit:
		if unit, err := m.directory.Store().GetOrgUnit(ctx, cfg.OrgUnitID); err == nil {
			scope = unit.Name
		}
	case storage.ScopePayer:
		if payer, err := m.directory.Store().GetPayer(ctx, cfg.PayerID); err == nil {
			scope = payer.Name
		}
	}
	return fmt.Sprintf("Internal Consumption (%s)", scope)
}

func (m *Manager) validateParams(ctx context.Context, params ConfigParams) error {
	if params.Name == "" {
		return NewValidationError("name", "is required")
	}
	if params.AccountCode == "" {
		return NewValidationError("account code", "is required")
	}
	if params.Currency == "" {
		return NewValidationError("currency", "is required")
	}

	switch params.ScopeKind {
	case storage.ScopeOrgUnit:
		if params.OrgUnitID == "" {
			return NewValidationError("org unit", "is required for an org unit scope")
		}
		if params.PayerID != "" {
			return NewValidationError("payer", "must be empty for an org unit scope")
		}
		if _, err := m.directory.Store().GetOrgUnit(ctx, params.OrgUnitID); err != nil {
			return NewValidationError("org unit", err.Error())
		}
	case storage.ScopePayer:
		if params.PayerID == "" {
			return NewValidationError("payer", "is required for a payer scope")
		}
		if params.OrgUnitID != "" {
			return NewValidationError("org unit", "must be empty for a payer scope")
		}
		if _, err := m.directory.Store().GetPayer(ctx, params.PayerID); err != nil {
			return NewValidationError("payer", err.Error())
		}
	default:
		return NewValidationError("scope", fmt.Sprintf("unknown scope kind %q", params.ScopeKind))
	}

	if params.LimitAmount != nil && params.LimitAmount.IsNegative() {
		return NewValidationError("limit", "must not be negative")
	}

	// Period settings come as a pair: both defined or both absent.
	unitDefined := params.PeriodUnit != ""
	if unitDefined && !params.PeriodUnit.Valid() {
		return NewValidationError("period unit", fmt.Sprintf("unknown unit %q", params.PeriodUnit))
	}
	if unitDefined != (params.PeriodMultiplier > 0) {
		return NewValidationError("period", "unit and multiplier must be set together")
	}
	return nil
}

func (m *Manager) observeDecision(decision *Decision, err error, started time.Time) {
	elapsed := m.now().Sub(started).Seconds()
	name := "unknown"
	if decision != nil && decision.ConfigName != "" {
		name = decision.ConfigName
	}
	switch {
	case err != nil:
		reason := "error"
		var limitErr *LimitExceededError
		var permErr *PermissionError
		if errors.As(err, &limitErr) {
			reason = "limit_exceeded"
		} else if errors.As(err, &permErr) {
			reason = "permission_denied"
		}
		m.metrics.RecordCheck(name, "rejected", elapsed)
		m.metrics.RecordRejection(name, reason)
	case decision != nil && decision.Accepted:
		m.metrics.RecordCheck(name, "accepted", elapsed)
	default:
		m.metrics.RecordCheck(name, "rejected", elapsed)
	}
}

func cloneLimit(limit *decimal.Decimal) *decimal.Decimal {
	if limit == nil {
		return nil
	}
	v := *limit
	return &v
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
