package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alameda-hq/cantina/pkg/consumption/period"
)

// backendFactory lets every test run against both implementations.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlitePath := filepath.Join(t.TempDir(), "configs.db")
	sqliteBackend, err := NewSQLiteBackend(sqlitePath)
	if err != nil {
		t.Fatalf("create sqlite backend: %v", err)
	}
	t.Cleanup(func() { sqliteBackend.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqliteBackend,
	}
}

func testConfig(name string) *BudgetConfig {
	limit := decimal.NewFromInt(1000)
	now := time.Now().UTC()
	return &BudgetConfig{
		ID:               uuid.NewString(),
		Name:             name,
		AccountCode:      "105." + uuid.NewString()[:8],
		ScopeKind:        ScopeOrgUnit,
		OrgUnitID:        uuid.NewString(),
		LimitAmount:      &limit,
		Currency:         "MXN",
		CurrencySymbol:   "$",
		PeriodUnit:       period.UnitMonth,
		PeriodMultiplier: 1,
		AccountID:        uuid.NewString(),
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestBackend_SaveAndGet(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig("Kitchen")

			if err := backend.SaveConfig(ctx, cfg); err != nil {
				t.Fatalf("save: %v", err)
			}

			got, err := backend.GetConfig(ctx, cfg.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Name != "Kitchen" || got.AccountCode != cfg.AccountCode {
				t.Errorf("got %+v", got)
			}
			if got.LimitAmount == nil || !got.LimitAmount.Equal(decimal.NewFromInt(1000)) {
				t.Errorf("limit = %v", got.LimitAmount)
			}
			if got.PeriodUnit != period.UnitMonth || got.PeriodMultiplier != 1 {
				t.Errorf("period = %s x%d", got.PeriodUnit, got.PeriodMultiplier)
			}
		})
	}
}

func TestBackend_GetMissing(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := backend.GetConfig(context.Background(), "nope")
			if err != ErrConfigNotFound {
				t.Errorf("expected ErrConfigNotFound, got %v", err)
			}
		})
	}
}

func TestBackend_DuplicateAccountCode(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := testConfig("First")
			if err := backend.SaveConfig(ctx, first); err != nil {
				t.Fatalf("save first: %v", err)
			}

			second := testConfig("Second")
			second.AccountCode = first.AccountCode
			if err := backend.SaveConfig(ctx, second); err != ErrDuplicateAccountCode {
				t.Errorf("expected ErrDuplicateAccountCode, got %v", err)
			}

			// Updating the holder itself is fine.
			first.Name = "First Renamed"
			if err := backend.SaveConfig(ctx, first); err != nil {
				t.Errorf("update holder: %v", err)
			}
		})
	}
}

func TestBackend_DuplicateScope(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := testConfig("First")
			if err := backend.SaveConfig(ctx, first); err != nil {
				t.Fatalf("save first: %v", err)
			}

			second := testConfig("Second")
			second.OrgUnitID = first.OrgUnitID
			if err := backend.SaveConfig(ctx, second); err != ErrDuplicateScope {
				t.Errorf("org unit: expected ErrDuplicateScope, got %v", err)
			}

			// Payer-scoped configs do not collide with org-unit configs.
			third := testConfig("Third")
			third.ScopeKind = ScopePayer
			third.OrgUnitID = ""
			third.PayerID = uuid.NewString()
			if err := backend.SaveConfig(ctx, third); err != nil {
				t.Fatalf("save payer-scoped: %v", err)
			}

			fourth := testConfig("Fourth")
			fourth.ScopeKind = ScopePayer
			fourth.OrgUnitID = ""
			fourth.PayerID = third.PayerID
			if err := backend.SaveConfig(ctx, fourth); err != ErrDuplicateScope {
				t.Errorf("payer: expected ErrDuplicateScope, got %v", err)
			}
		})
	}
}

func TestBackend_FindByScope(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			orgCfg := testConfig("Org")
			if err := backend.SaveConfig(ctx, orgCfg); err != nil {
				t.Fatalf("save: %v", err)
			}

			payerCfg := testConfig("Payer")
			payerCfg.ScopeKind = ScopePayer
			payerCfg.OrgUnitID = ""
			payerCfg.PayerID = uuid.NewString()
			if err := backend.SaveConfig(ctx, payerCfg); err != nil {
				t.Fatalf("save: %v", err)
			}

			got, err := backend.FindConfigByOrgUnit(ctx, orgCfg.OrgUnitID)
			if err != nil || got == nil || got.ID != orgCfg.ID {
				t.Errorf("find by org unit = %v, %v", got, err)
			}

			got, err = backend.FindConfigByPayer(ctx, payerCfg.PayerID)
			if err != nil || got == nil || got.ID != payerCfg.ID {
				t.Errorf("find by payer = %v, %v", got, err)
			}

			got, err = backend.FindConfigByPayer(ctx, "unknown")
			if err != nil || got != nil {
				t.Errorf("find unknown payer = %v, %v", got, err)
			}
		})
	}
}

func TestBackend_UnlimitedConfigRoundTrip(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig("NoLimit")
			cfg.LimitAmount = nil

			if err := backend.SaveConfig(ctx, cfg); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := backend.GetConfig(ctx, cfg.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !got.Unlimited() {
				t.Errorf("expected unlimited config, got limit %v", got.LimitAmount)
			}
		})
	}
}

func TestBackend_ChangeLog(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			configID := uuid.NewString()

			base := time.Now().UTC().Truncate(time.Microsecond)
			for i, field := range []string{"Name", "Consumption Limit"} {
				entry := &ChangeLogEntry{
					ID:        uuid.NewString(),
					ConfigID:  configID,
					ActorID:   "admin",
					ChangedAt: base.Add(time.Duration(i) * time.Second),
					Field:     field,
					OldValue:  "old",
					NewValue:  "new",
				}
				if err := backend.AppendChangeLog(ctx, entry); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			entries, err := backend.ListChangeLog(ctx, configID)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(entries))
			}
			// Newest first.
			if entries[0].Field != "Consumption Limit" {
				t.Errorf("order wrong: first = %s", entries[0].Field)
			}

			if err := backend.DeleteChangeLogByConfig(ctx, configID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			entries, _ = backend.ListChangeLog(ctx, configID)
			if len(entries) != 0 {
				t.Errorf("expected empty log after delete, got %d", len(entries))
			}
		})
	}
}

func TestSQLiteBackend_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "configs.db")

	backend, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cfg := testConfig("Persistent")
	if err := backend.SaveConfig(ctx, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetConfig(ctx, cfg.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Name != "Persistent" {
		t.Errorf("got %+v", got)
	}
}
