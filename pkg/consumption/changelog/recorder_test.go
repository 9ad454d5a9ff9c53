package changelog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"alameda-hq/cantina/pkg/consumption/period"
	"alameda-hq/cantina/pkg/consumption/storage"
	"alameda-hq/cantina/pkg/directory"
)

func baseConfig() *storage.BudgetConfig {
	limit := decimal.NewFromInt(1000)
	return &storage.BudgetConfig{
		ID:               "cfg-1",
		Name:             "Kitchen",
		AccountCode:      "105.01.999",
		ScopeKind:        storage.ScopeOrgUnit,
		OrgUnitID:        "kitchen",
		LimitAmount:      &limit,
		Currency:         "MXN",
		PeriodUnit:       period.UnitMonth,
		PeriodMultiplier: 1,
		Active:           true,
	}
}

func entriesByField(entries []*storage.ChangeLogEntry) map[string]*storage.ChangeLogEntry {
	out := make(map[string]*storage.ChangeLogEntry, len(entries))
	for _, e := range entries {
		out[e.Field] = e
	}
	return out
}

func TestRecordUpdate_OnlyChangedFields(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	dir := directory.NewMemoryStore()
	r := NewRecorder(backend, dir)

	old := baseConfig()
	updated := baseConfig()
	newLimit := decimal.NewFromInt(1500)
	updated.LimitAmount = &newLimit
	updated.Name = "Kitchen Crew"

	if err := r.RecordUpdate(ctx, old, updated, "admin"); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := r.List(ctx, "cfg-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}

	byField := entriesByField(entries)
	if e := byField[FieldLimit]; e == nil || e.OldValue != "1000" || e.NewValue != "1500" {
		t.Errorf("limit entry = %+v", e)
	}
	if e := byField[FieldName]; e == nil || e.NewValue != "Kitchen Crew" {
		t.Errorf("name entry = %+v", e)
	}
	if entries[0].ActorID != "admin" {
		t.Errorf("actor = %s", entries[0].ActorID)
	}
}

func TestRecordUpdate_DisplayFormatting(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	dir := directory.NewMemoryStore()
	if err := dir.PutOrgUnit(ctx, &directory.OrgUnit{ID: "kitchen", Name: "Kitchen Staff"}); err != nil {
		t.Fatalf("put org unit: %v", err)
	}
	if err := dir.PutPayer(ctx, &directory.Payer{ID: "acme", Name: "ACME Corp"}); err != nil {
		t.Fatalf("put payer: %v", err)
	}
	r := NewRecorder(backend, dir)

	old := baseConfig()
	updated := baseConfig()
	updated.LimitAmount = nil
	updated.PeriodUnit = period.UnitYear
	updated.ScopeKind = storage.ScopePayer
	updated.OrgUnitID = ""
	updated.PayerID = "acme"

	if err := r.RecordUpdate(ctx, old, updated, "admin"); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, _ := r.List(ctx, "cfg-1")
	byField := entriesByField(entries)

	if e := byField[FieldLimit]; e == nil || e.NewValue != "none" {
		t.Errorf("removed limit should display as none, got %+v", e)
	}
	if e := byField[FieldPeriodUnit]; e == nil || e.OldValue != "Month" || e.NewValue != "Year" {
		t.Errorf("period unit entry = %+v", e)
	}
	if e := byField[FieldOrgUnit]; e == nil || e.OldValue != "Kitchen Staff" || e.NewValue != "none" {
		t.Errorf("org unit entry = %+v", e)
	}
	if e := byField[FieldPayer]; e == nil || e.OldValue != "none" || e.NewValue != "ACME Corp" {
		t.Errorf("payer entry = %+v", e)
	}
}

func TestRecordUpdate_NoChangesNoEntries(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	r := NewRecorder(backend, directory.NewMemoryStore())

	cfg := baseConfig()
	if err := r.RecordUpdate(ctx, cfg, cfg, "admin"); err != nil {
		t.Fatalf("record: %v", err)
	}
	entries, _ := r.List(ctx, "cfg-1")
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %+v", entries)
	}
}

func TestDeleteByConfig(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	r := NewRecorder(backend, directory.NewMemoryStore())

	old := baseConfig()
	updated := baseConfig()
	updated.Name = "Renamed"
	if err := r.RecordUpdate(ctx, old, updated, "admin"); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := r.DeleteByConfig(ctx, "cfg-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	entries, _ := r.List(ctx, "cfg-1")
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %+v", entries)
	}
}
