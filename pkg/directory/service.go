package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Service implements the directory operations with cross-entity
// invariants: account provisioning, barcode assignment, and flag
// mirroring between payer contacts and employee records.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a directory service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		logger: slog.Default().With("component", "directory"),
	}
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// ProvisionAccount creates one receivable account with the given code and
// registers it to every tenant company. If the code already exists in any
// company, nothing is created and a ProvisioningError is returned: the
// operation is all-or-nothing across tenants.
func (s *Service) ProvisionAccount(ctx context.Context, code, name string, tenants []string) (*Account, error) {
	if code == "" {
		return nil, NewProvisioningError(code, "", fmt.Errorf("account code is empty"))
	}

	tenants, err := s.resolveTenants(ctx, tenants)
	if err != nil {
		return nil, err
	}

	for _, companyID := range tenants {
		existing, err := s.store.FindAccountByCode(ctx, companyID, code)
		if err != nil {
			return nil, NewProvisioningError(code, "", err)
		}
		if existing != nil {
			company := companyID
			if c, err := s.store.GetCompany(ctx, companyID); err == nil {
				company = c.Name
			}
			return nil, NewProvisioningError(code, company, nil)
		}
	}

	account := &Account{
		ID:         uuid.NewString(),
		Code:       code,
		Name:       name,
		CompanyIDs: tenants,
	}
	if err := s.store.PutAccount(ctx, account); err != nil {
		return nil, NewProvisioningError(code, "", err)
	}

	s.logger.Info("receivable account provisioned",
		"code", code,
		"name", name,
		"companies", len(tenants),
	)
	return account, nil
}

// RecodeAccount changes an account's code after verifying the new code is
// unused in every tenant company. Same collision rule as provisioning.
func (s *Service) RecodeAccount(ctx context.Context, accountID, newCode string, tenants []string) error {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Code == newCode {
		return nil
	}

	tenants, err = s.resolveTenants(ctx, tenants)
	if err != nil {
		return err
	}

	for _, companyID := range tenants {
		existing, err := s.store.FindAccountByCode(ctx, companyID, newCode)
		if err != nil {
			return NewProvisioningError(newCode, "", err)
		}
		if existing != nil && existing.ID != accountID {
			company := companyID
			if c, err := s.store.GetCompany(ctx, companyID); err == nil {
				company = c.Name
			}
			return NewProvisioningError(newCode, company, nil)
		}
	}

	account.Code = newCode
	return s.store.PutAccount(ctx, account)
}

// RenameAccount updates the account's display name if it differs.
func (s *Service) RenameAccount(ctx context.Context, accountID, name string) error {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Name == name {
		return nil
	}
	account.Name = name
	return s.store.PutAccount(ctx, account)
}

// SetBarcode assigns a barcode to a payer after checking global
// uniqueness across payers and employees. When mirror is true the barcode
// is propagated to the linked employee record; the propagated write runs
// with mirror=false so the chain stops after one hop.
func (s *Service) SetBarcode(ctx context.Context, payerID, barcode string, mirror bool) error {
	payer, err := s.store.GetPayer(ctx, payerID)
	if err != nil {
		return err
	}

	if barcode != "" {
		if holder, err := s.store.FindPayerByBarcode(ctx, barcode); err != nil {
			return err
		} else if holder != nil && holder.ID != payerID {
			return &BarcodeError{Barcode: barcode, Holder: holder.Name}
		}

		employee, err := s.store.FindEmployeeByBarcode(ctx, barcode)
		if err != nil {
			return err
		}
		if employee != nil && employee.PayerID != payerID {
			return &BarcodeError{Barcode: barcode, Holder: employee.Name}
		}
	}

	if payer.Barcode != barcode {
		payer.Barcode = barcode
		if err := s.store.PutPayer(ctx, payer); err != nil {
			return err
		}
	}

	if !mirror {
		return nil
	}

	employee, err := s.store.FindEmployeeByPayer(ctx, payerID)
	if err != nil || employee == nil {
		return err
	}
	if employee.Barcode != barcode {
		employee.Barcode = barcode
		if err := s.store.PutEmployee(ctx, employee); err != nil {
			// Mirroring is best-effort: the payer write already landed.
			s.logger.Warn("barcode mirror to employee failed",
				"payer", payerID,
				"employee", employee.ID,
				"error", err,
			)
		}
	}
	return nil
}

// SetBudgetPermission sets the payer's budget permission flag and, when
// mirror is true, propagates it to the linked employee record with the
// same one-shot semantics as SetBarcode.
func (s *Service) SetBudgetPermission(ctx context.Context, payerID string, allowed, mirror bool) error {
	payer, err := s.store.GetPayer(ctx, payerID)
	if err != nil {
		return err
	}
	if payer.BudgetEnabled != allowed {
		payer.BudgetEnabled = allowed
		if err := s.store.PutPayer(ctx, payer); err != nil {
			return err
		}
	}

	if !mirror {
		return nil
	}

	employee, err := s.store.FindEmployeeByPayer(ctx, payerID)
	if err != nil || employee == nil {
		return err
	}
	if employee.BudgetEnabled != allowed {
		employee.BudgetEnabled = allowed
		if err := s.store.PutEmployee(ctx, employee); err != nil {
			s.logger.Warn("permission mirror to employee failed",
				"payer", payerID,
				"employee", employee.ID,
				"error", err,
			)
		}
	}
	return nil
}

// DefaultReceivableAccount returns the company's fallback receivable
// account ID, used when revoking routing from a payer without a backup.
func (s *Service) DefaultReceivableAccount(ctx context.Context, companyID string) (string, error) {
	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return "", err
	}
	return company.DefaultReceivableAccountID, nil
}

// resolveTenants expands an empty tenant scope to all companies.
func (s *Service) resolveTenants(ctx context.Context, tenants []string) ([]string, error) {
	if len(tenants) > 0 {
		return tenants, nil
	}
	companies, err := s.store.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(companies))
	for _, c := range companies {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
