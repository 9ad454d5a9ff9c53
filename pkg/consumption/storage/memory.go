package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend implements Backend using in-memory maps. All data is lost
// when the process exits.
//
// MemoryBackend is thread-safe using sync.RWMutex.
type MemoryBackend struct {
	mu        sync.RWMutex
	configs   map[string]*BudgetConfig
	changeLog map[string][]*ChangeLogEntry
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		configs:   make(map[string]*BudgetConfig),
		changeLog: make(map[string][]*ChangeLogEntry),
	}
}

// SaveConfig inserts or updates a config, enforcing account code and
// scope uniqueness.
func (m *MemoryBackend) SaveConfig(ctx context.Context, cfg *BudgetConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.configs {
		if other.ID == cfg.ID {
			continue
		}
		if other.AccountCode == cfg.AccountCode {
			return ErrDuplicateAccountCode
		}
		if cfg.ScopeKind == ScopeOrgUnit && cfg.OrgUnitID != "" && other.OrgUnitID == cfg.OrgUnitID {
			return ErrDuplicateScope
		}
		if cfg.ScopeKind == ScopePayer && cfg.PayerID != "" && other.PayerID == cfg.PayerID {
			return ErrDuplicateScope
		}
	}

	m.configs[cfg.ID] = cfg.Clone()
	return nil
}

// GetConfig returns the config with the given ID.
func (m *MemoryBackend) GetConfig(ctx context.Context, id string) (*BudgetConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[id]
	if !ok {
		return nil, ErrConfigNotFound
	}
	return cfg.Clone(), nil
}

// DeleteConfig removes a config. No-op if it does not exist.
func (m *MemoryBackend) DeleteConfig(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, id)
	return nil
}

// ListConfigs returns all configs ordered by name.
func (m *MemoryBackend) ListConfigs(ctx context.Context) ([]*BudgetConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*BudgetConfig, 0, len(m.configs))
	for _, cfg := range m.configs {
		out = append(out, cfg.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindConfigByPayer returns the config scoped to the payer, or nil.
func (m *MemoryBackend) FindConfigByPayer(ctx context.Context, payerID string) (*BudgetConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cfg := range m.configs {
		if cfg.ScopeKind == ScopePayer && cfg.PayerID == payerID {
			return cfg.Clone(), nil
		}
	}
	return nil, nil
}

// FindConfigByOrgUnit returns the config scoped to the org unit, or nil.
func (m *MemoryBackend) FindConfigByOrgUnit(ctx context.Context, orgUnitID string) (*BudgetConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cfg := range m.configs {
		if cfg.ScopeKind == ScopeOrgUnit && cfg.OrgUnitID == orgUnitID {
			return cfg.Clone(), nil
		}
	}
	return nil, nil
}

// AppendChangeLog appends one change log entry.
func (m *MemoryBackend) AppendChangeLog(ctx context.Context, entry *ChangeLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.changeLog[entry.ConfigID] = append(m.changeLog[entry.ConfigID], &cp)
	return nil
}

// ListChangeLog returns the change log for a config, newest first.
func (m *MemoryBackend) ListChangeLog(ctx context.Context, configID string) ([]*ChangeLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.changeLog[configID]
	out := make([]*ChangeLogEntry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChangedAt.After(out[j].ChangedAt) })
	return out, nil
}

// DeleteChangeLogByConfig removes a config's change log.
func (m *MemoryBackend) DeleteChangeLogByConfig(ctx context.Context, configID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.changeLog, configID)
	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}
