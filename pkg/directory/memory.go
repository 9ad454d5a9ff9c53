package directory

import (
	"context"
	"sync"
)

// MemoryStore implements Store in memory. It is the default wiring for
// tests and single-process deployments where the real directory lives in
// an external system synchronized out of band.
//
// MemoryStore is thread-safe using sync.RWMutex.
type MemoryStore struct {
	mu        sync.RWMutex
	payers    map[string]*Payer
	employees map[string]*Employee
	orgUnits  map[string]*OrgUnit
	companies map[string]*Company
	accounts  map[string]*Account
}

// NewMemoryStore creates an empty in-memory directory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payers:    make(map[string]*Payer),
		employees: make(map[string]*Employee),
		orgUnits:  make(map[string]*OrgUnit),
		companies: make(map[string]*Company),
		accounts:  make(map[string]*Account),
	}
}

// GetPayer returns a copy of the payer with the given ID.
func (m *MemoryStore) GetPayer(ctx context.Context, id string) (*Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payers[id]
	if !ok {
		return nil, ErrPayerNotFound
	}
	return p.Clone(), nil
}

// PutPayer inserts or replaces a payer record.
func (m *MemoryStore) PutPayer(ctx context.Context, p *Payer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payers[p.ID] = p.Clone()
	return nil
}

// ListPayersByOrgUnit returns the payers of employees attached to the org
// unit.
func (m *MemoryStore) ListPayersByOrgUnit(ctx context.Context, orgUnitID string) ([]*Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Payer
	for _, e := range m.employees {
		if e.OrgUnitID != orgUnitID || e.PayerID == "" {
			continue
		}
		if p, ok := m.payers[e.PayerID]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// ListPayersByParent returns the payer itself plus its child contacts.
func (m *MemoryStore) ListPayersByParent(ctx context.Context, parentID string) ([]*Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Payer
	if p, ok := m.payers[parentID]; ok {
		out = append(out, p.Clone())
	}
	for _, p := range m.payers {
		if p.ParentID == parentID {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// FindPayerByBarcode returns the payer holding the barcode, or nil.
func (m *MemoryStore) FindPayerByBarcode(ctx context.Context, barcode string) (*Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payers {
		if p.Barcode == barcode {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

// GetEmployee returns the employee with the given ID.
func (m *MemoryStore) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, ErrEmployeeNotFound
	}
	cp := *e
	return &cp, nil
}

// PutEmployee inserts or replaces an employee record.
func (m *MemoryStore) PutEmployee(ctx context.Context, e *Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.employees[e.ID] = &cp
	return nil
}

// FindEmployeeByPayer returns the employee linked to the payer, or nil.
func (m *MemoryStore) FindEmployeeByPayer(ctx context.Context, payerID string) (*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.employees {
		if e.PayerID == payerID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

// FindEmployeeByBarcode returns the employee holding the barcode, or nil.
func (m *MemoryStore) FindEmployeeByBarcode(ctx context.Context, barcode string) (*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.employees {
		if e.Barcode == barcode {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

// GetOrgUnit returns the org unit with the given ID.
func (m *MemoryStore) GetOrgUnit(ctx context.Context, id string) (*OrgUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.orgUnits[id]
	if !ok {
		return nil, ErrOrgUnitNotFound
	}
	cp := *u
	return &cp, nil
}

// PutOrgUnit inserts or replaces an org unit. Test and wiring helper.
func (m *MemoryStore) PutOrgUnit(ctx context.Context, u *OrgUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.orgUnits[u.ID] = &cp
	return nil
}

// ListCompanies returns all tenant companies.
func (m *MemoryStore) ListCompanies(ctx context.Context) ([]*Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Company, 0, len(m.companies))
	for _, c := range m.companies {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// GetCompany returns the company with the given ID.
func (m *MemoryStore) GetCompany(ctx context.Context, id string) (*Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, ErrCompanyNotFound
	}
	cp := *c
	return &cp, nil
}

// PutCompany inserts or replaces a company. Test and wiring helper.
func (m *MemoryStore) PutCompany(ctx context.Context, c *Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.companies[c.ID] = &cp
	return nil
}

// GetAccount returns the account with the given ID.
func (m *MemoryStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	cp.CompanyIDs = append([]string(nil), a.CompanyIDs...)
	return &cp, nil
}

// PutAccount inserts or replaces an account.
func (m *MemoryStore) PutAccount(ctx context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.CompanyIDs = append([]string(nil), a.CompanyIDs...)
	m.accounts[a.ID] = &cp
	return nil
}

// FindAccountByCode returns the account with the code registered to the
// company, or nil if none exists.
func (m *MemoryStore) FindAccountByCode(ctx context.Context, companyID, code string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.Code != code {
			continue
		}
		if companyID == "" || a.RegisteredTo(companyID) {
			cp := *a
			cp.CompanyIDs = append([]string(nil), a.CompanyIDs...)
			return &cp, nil
		}
	}
	return nil, nil
}

// DeleteAccount removes an account. No-op if it does not exist.
func (m *MemoryStore) DeleteAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}
