package directory

import (
	"context"
	"errors"
	"testing"
)

func newTestDirectory(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()

	store.PutCompany(ctx, &Company{ID: "co-main", Name: "Main", DefaultReceivableAccountID: "acct-default-main"})
	store.PutCompany(ctx, &Company{ID: "co-branch", Name: "Branch", DefaultReceivableAccountID: "acct-default-branch"})

	return NewService(store), store
}

func TestProvisionAccount_RegistersAllCompanies(t *testing.T) {
	svc, store := newTestDirectory(t)
	ctx := context.Background()

	account, err := svc.ProvisionAccount(ctx, "105.01.998", "Internal Consumption (Kitchen)", nil)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if len(account.CompanyIDs) != 2 {
		t.Errorf("expected registration to 2 companies, got %d", len(account.CompanyIDs))
	}

	found, err := store.FindAccountByCode(ctx, "co-branch", "105.01.998")
	if err != nil || found == nil {
		t.Fatalf("account not visible in branch company: %v", err)
	}
}

func TestProvisionAccount_CodeCollisionBlocksEverything(t *testing.T) {
	svc, store := newTestDirectory(t)
	ctx := context.Background()

	// Pre-existing account with the code in one company only.
	store.PutAccount(ctx, &Account{ID: "a1", Code: "105.01.998", Name: "Old", CompanyIDs: []string{"co-branch"}})

	_, err := svc.ProvisionAccount(ctx, "105.01.998", "Internal Consumption (Kitchen)", nil)
	var provErr *ProvisioningError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProvisioningError, got %v", err)
	}
	if provErr.Code != "105.01.998" {
		t.Errorf("error code = %q", provErr.Code)
	}

	// Nothing was created.
	if a, _ := store.FindAccountByCode(ctx, "co-main", "105.01.998"); a != nil {
		t.Error("collision must not leave a partially provisioned account")
	}
}

func TestRecodeAccount_CollisionRejected(t *testing.T) {
	svc, store := newTestDirectory(t)
	ctx := context.Background()

	store.PutAccount(ctx, &Account{ID: "a1", Code: "100", CompanyIDs: []string{"co-main", "co-branch"}})
	store.PutAccount(ctx, &Account{ID: "a2", Code: "200", CompanyIDs: []string{"co-branch"}})

	if err := svc.RecodeAccount(ctx, "a1", "200", nil); err == nil {
		t.Fatal("expected collision error")
	}

	a, _ := store.GetAccount(ctx, "a1")
	if a.Code != "100" {
		t.Errorf("code changed despite collision: %q", a.Code)
	}

	// Recoding to itself is a no-op.
	if err := svc.RecodeAccount(ctx, "a1", "100", nil); err != nil {
		t.Errorf("self recode: %v", err)
	}
}

func TestSetBarcode_MirrorsOnce(t *testing.T) {
	svc, store := newTestDirectory(t)
	ctx := context.Background()

	store.PutPayer(ctx, &Payer{ID: "p1", Name: "Ana", Kind: KindEmployee})
	store.PutEmployee(ctx, &Employee{ID: "e1", Name: "Ana", PayerID: "p1", OrgUnitID: "ou1"})

	if err := svc.SetBarcode(ctx, "p1", "777001", true); err != nil {
		t.Fatalf("set barcode: %v", err)
	}

	p, _ := store.GetPayer(ctx, "p1")
	e, _ := store.GetEmployee(ctx, "e1")
	if p.Barcode != "777001" || e.Barcode != "777001" {
		t.Errorf("barcode not mirrored: payer=%q employee=%q", p.Barcode, e.Barcode)
	}
}

func TestSetBarcode_DuplicateRejected(t *testing.T) {
	svc, store := newTestDirectory(t)
	ctx := context.Background()

	store.PutPayer(ctx, &Payer{ID: "p1", Name: "Ana", Barcode: "777001"})
	store.PutPayer(ctx, &Payer{ID: "p2", Name: "Luis"})

	err := svc.SetBarcode(ctx, "p2", "777001", true)
	var bcErr *BarcodeError
	if !errors.As(err, &bcErr) {
		t.Fatalf("expected BarcodeError, got %v", err)
	}
	if bcErr.Holder != "Ana" {
		t.Errorf("holder = %q", bcErr.Holder)
	}
}

func TestSetBarcode_EmployeeHoldingBarcodeRejected(t *testing.T) {
	svc, store := newTestDirectory(t)
	ctx := context.Background()

	store.PutPayer(ctx, &Payer{ID: "p1", Name: "Luis"})
	store.PutEmployee(ctx, &Employee{ID: "e9", Name: "Marta", PayerID: "p9", Barcode: "888"})

	if err := svc.SetBarcode(ctx, "p1", "888", false); err == nil {
		t.Fatal("expected rejection for barcode held by an employee")
	}
}

func TestSetBudgetPermission_MirrorSuppressed(t *testing.T) {
	svc, store := newTestDirectory(t)
	ctx := context.Background()

	store.PutPayer(ctx, &Payer{ID: "p1", Name: "Ana"})
	store.PutEmployee(ctx, &Employee{ID: "e1", Name: "Ana", PayerID: "p1"})

	// mirror=false leaves the employee untouched.
	if err := svc.SetBudgetPermission(ctx, "p1", true, false); err != nil {
		t.Fatalf("set permission: %v", err)
	}
	e, _ := store.GetEmployee(ctx, "e1")
	if e.BudgetEnabled {
		t.Error("employee flag should not change with mirror=false")
	}

	// mirror=true propagates.
	if err := svc.SetBudgetPermission(ctx, "p1", true, true); err != nil {
		t.Fatalf("set permission: %v", err)
	}
	e, _ = store.GetEmployee(ctx, "e1")
	if !e.BudgetEnabled {
		t.Error("employee flag should mirror with mirror=true")
	}
}
