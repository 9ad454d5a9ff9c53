package directory

import (
	"context"
	"errors"
	"fmt"
)

// PayerKind distinguishes internal employees from external contacts.
type PayerKind string

const (
	// KindEmployee marks a payer backed by an employee record.
	KindEmployee PayerKind = "employee"

	// KindExternal marks an external contact (person or company).
	KindExternal PayerKind = "external"
)

// Payer is the party whose charges are measured against a budget config.
// Identity fields belong to the directory; the budget engine writes only
// the routing attributes (flags and account pointers).
type Payer struct {
	ID   string
	Name string
	Kind PayerKind

	// ParentID points at the employer company contact for sub-contacts of
	// an external company. Budget resolution follows it one level up.
	ParentID string

	// Barcode identifies the payer at the point of sale. Globally unique
	// across payers and employees in every company.
	Barcode string

	// BudgetEnabled is the explicit permission to charge against a budget.
	BudgetEnabled bool

	// BudgetActive marks the payer as in-scope for some budget config.
	BudgetActive bool

	// ReceivableAccounts maps company ID to the payer's current receivable
	// account in that company.
	ReceivableAccounts map[string]string

	// OriginalAccounts maps company ID to the receivable account the payer
	// had before routing was applied. Cleared on revocation.
	OriginalAccounts map[string]string
}

// Clone returns a deep copy so store implementations can hand out payers
// without aliasing their internal maps.
func (p *Payer) Clone() *Payer {
	cp := *p
	cp.ReceivableAccounts = make(map[string]string, len(p.ReceivableAccounts))
	for k, v := range p.ReceivableAccounts {
		cp.ReceivableAccounts[k] = v
	}
	cp.OriginalAccounts = make(map[string]string, len(p.OriginalAccounts))
	for k, v := range p.OriginalAccounts {
		cp.OriginalAccounts[k] = v
	}
	return &cp
}

// Employee is the HR-side record linked to a payer contact.
type Employee struct {
	ID            string
	Name          string
	PayerID       string
	OrgUnitID     string
	Barcode       string
	BudgetEnabled bool
}

// OrgUnit is an organizational unit (department) inside one company.
type OrgUnit struct {
	ID        string
	Name      string
	CompanyID string
}

// Company is one tenant in the multi-company directory.
type Company struct {
	ID   string
	Name string

	// DefaultReceivableAccountID is the fallback receivable account used
	// when revoking routing from a payer that has no recorded backup.
	DefaultReceivableAccountID string
}

// Account is a receivable ledger account. One account is provisioned per
// budget config and registered to every tenant company.
type Account struct {
	ID         string
	Code       string
	Name       string
	CompanyIDs []string
}

// RegisteredTo reports whether the account is registered to the company.
func (a *Account) RegisteredTo(companyID string) bool {
	for _, id := range a.CompanyIDs {
		if id == companyID {
			return true
		}
	}
	return false
}

// Store is the directory persistence surface the budget engine depends on.
// Implementations must be safe for concurrent use.
type Store interface {
	GetPayer(ctx context.Context, id string) (*Payer, error)
	PutPayer(ctx context.Context, p *Payer) error
	ListPayersByOrgUnit(ctx context.Context, orgUnitID string) ([]*Payer, error)
	ListPayersByParent(ctx context.Context, parentID string) ([]*Payer, error)
	FindPayerByBarcode(ctx context.Context, barcode string) (*Payer, error)

	GetEmployee(ctx context.Context, id string) (*Employee, error)
	PutEmployee(ctx context.Context, e *Employee) error
	FindEmployeeByPayer(ctx context.Context, payerID string) (*Employee, error)
	FindEmployeeByBarcode(ctx context.Context, barcode string) (*Employee, error)

	GetOrgUnit(ctx context.Context, id string) (*OrgUnit, error)
	ListCompanies(ctx context.Context) ([]*Company, error)
	GetCompany(ctx context.Context, id string) (*Company, error)

	GetAccount(ctx context.Context, id string) (*Account, error)
	PutAccount(ctx context.Context, a *Account) error
	FindAccountByCode(ctx context.Context, companyID, code string) (*Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// Sentinel errors returned by directory stores.
var (
	ErrPayerNotFound    = errors.New("payer not found")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrOrgUnitNotFound  = errors.New("org unit not found")
	ErrCompanyNotFound  = errors.New("company not found")
	ErrAccountNotFound  = errors.New("account not found")
)

// ProvisioningError reports a receivable account code collision. It blocks
// the config save entirely: provisioning is all-or-nothing across tenants.
type ProvisioningError struct {
	Code    string
	Company string
	Cause   error
}

// Error implements the error interface.
func (e *ProvisioningError) Error() string {
	if e.Company != "" {
		return fmt.Sprintf("account code %q already exists in company %q", e.Code, e.Company)
	}
	return fmt.Sprintf("account provisioning failed for code %q: %v", e.Code, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ProvisioningError) Unwrap() error {
	return e.Cause
}

// NewProvisioningError creates a ProvisioningError for a code collision.
func NewProvisioningError(code, company string, cause error) *ProvisioningError {
	return &ProvisioningError{Code: code, Company: company, Cause: cause}
}

// BarcodeError reports a barcode uniqueness violation.
type BarcodeError struct {
	Barcode string
	Holder  string
}

// Error implements the error interface.
func (e *BarcodeError) Error() string {
	return fmt.Sprintf("barcode %q is already assigned to %q", e.Barcode, e.Holder)
}
