// Package changelog records who changed what on a budget configuration.
//
// Entries store display values, not raw IDs, so the history stays
// readable after the referenced org unit or payer is gone.
package changelog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alameda-hq/cantina/pkg/consumption/storage"
	"alameda-hq/cantina/pkg/directory"
)

// Tracked field labels as they appear in change log entries.
const (
	FieldName             = "Name"
	FieldLimit            = "Consumption Limit"
	FieldPeriodUnit       = "Period Unit"
	FieldPeriodMultiplier = "Period Multiplier"
	FieldAccountCode      = "Account Code"
	FieldScopeKind        = "Scope"
	FieldOrgUnit          = "Org Unit"
	FieldPayer            = "Payer"
)

// Recorder writes per-field change log entries for config updates.
type Recorder struct {
	backend   storage.Backend
	directory directory.Store
	now       func() time.Time
	logger    *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(backend storage.Backend, dir directory.Store) *Recorder {
	return &Recorder{
		backend:   backend,
		directory: dir,
		now:       time.Now,
		logger:    slog.Default().With("component", "consumption.changelog"),
	}
}

// RecordUpdate diffs the tracked fields of old and new and appends one
// entry per field whose display value changed.
func (r *Recorder) RecordUpdate(ctx context.Context, old, updated *storage.BudgetConfig, actorID string) error {
	type diff struct {
		field    string
		old, new string
	}

	diffs := []diff{
		{FieldName, old.Name, updated.Name},
		{FieldLimit, formatLimit(old.LimitAmount), formatLimit(updated.LimitAmount)},
		{FieldPeriodUnit, formatUnit(old), formatUnit(updated)},
		{FieldPeriodMultiplier, formatMultiplier(old.PeriodMultiplier), formatMultiplier(updated.PeriodMultiplier)},
		{FieldAccountCode, orNone(old.AccountCode), orNone(updated.AccountCode)},
		{FieldScopeKind, string(old.ScopeKind), string(updated.ScopeKind)},
		{FieldOrgUnit, r.orgUnitName(ctx, old.OrgUnitID), r.orgUnitName(ctx, updated.OrgUnitID)},
		{FieldPayer, r.payerName(ctx, old.PayerID), r.payerName(ctx, updated.PayerID)},
	}

	at := r.now().UTC()
	for i, d := range diffs {
		if d.old == d.new {
			continue
		}
		entry := &storage.ChangeLogEntry{
			ID:        uuid.NewString(),
			ConfigID:  updated.ID,
			ActorID:   actorID,
			ChangedAt: at.Add(time.Duration(i) * time.Microsecond),
			Field:     d.field,
			OldValue:  d.old,
			NewValue:  d.new,
		}
		if err := r.backend.AppendChangeLog(ctx, entry); err != nil {
			return fmt.Errorf("failed to append change log entry: %w", err)
		}
	}
	return nil
}

// List returns a config's change history, newest first.
func (r *Recorder) List(ctx context.Context, configID string) ([]*storage.ChangeLogEntry, error) {
	return r.backend.ListChangeLog(ctx, configID)
}

// DeleteByConfig removes a config's change history. Called on config
// deletion.
func (r *Recorder) DeleteByConfig(ctx context.Context, configID string) error {
	return r.backend.DeleteChangeLogByConfig(ctx, configID)
}

func formatLimit(limit *decimal.Decimal) string {
	if limit == nil {
		return "none"
	}
	return limit.String()
}

func formatUnit(cfg *storage.BudgetConfig) string {
	if !cfg.PeriodUnit.Valid() {
		return "none"
	}
	return cfg.PeriodUnit.Label()
}

func formatMultiplier(n int) string {
	if n <= 0 {
		return "none"
	}
	return fmt.Sprintf("%d", n)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// orgUnitName resolves the org unit's display name, falling back to the
// raw ID when the unit is no longer in the directory.
func (r *Recorder) orgUnitName(ctx context.Context, id string) string {
	if id == "" {
		return "none"
	}
	unit, err := r.directory.GetOrgUnit(ctx, id)
	if err != nil {
		return id
	}
	return unit.Name
}

func (r *Recorder) payerName(ctx context.Context, id string) string {
	if id == "" {
		return "none"
	}
	payer, err := r.directory.GetPayer(ctx, id)
	if err != nil {
		return id
	}
	return payer.Name
}
