package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*AuditRecord
	documents map[string]*Document
	nextSeq   int64
	prefix    string
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*AuditRecord),
		documents: make(map[string]*Document),
		prefix:    "CON",
	}
}

// Append stores the record, assigning the next sequence and reference.
func (m *MemoryStore) Append(_ context.Context, rec *AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	rec.Seq = m.nextSeq
	rec.Reference = fmt.Sprintf("%s/%05d", m.prefix, rec.Seq)

	stored := *rec
	stored.Lines = append([]AuditLine(nil), rec.Lines...)
	m.records[rec.ID] = &stored
	return nil
}

// GetRecord returns one record by ID.
func (m *MemoryStore) GetRecord(_ context.Context, id string) (*AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	out := *rec
	out.Lines = append([]AuditLine(nil), rec.Lines...)
	return &out, nil
}

// ListByConfig returns a config's records, newest first.
func (m *MemoryStore) ListByConfig(_ context.Context, configID string) ([]*AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*AuditRecord
	for _, rec := range m.records {
		if rec.ConfigID != configID {
			continue
		}
		c := *rec
		c.Lines = append([]AuditLine(nil), rec.Lines...)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

// CountByConfig returns the number of records for a config.
func (m *MemoryStore) CountByConfig(_ context.Context, configID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rec := range m.records {
		if rec.ConfigID == configID {
			n++
		}
	}
	return n, nil
}

// SumInWindow sums record amounts with timestamps in [start, end].
func (m *MemoryStore) SumInWindow(_ context.Context, configID string, start, end time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, rec := range m.records {
		if rec.ConfigID != configID {
			continue
		}
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		sum = sum.Add(rec.Amount)
	}
	return sum, nil
}

// DeleteRecord removes one record and its document.
func (m *MemoryStore) DeleteRecord(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrRecordNotFound
	}
	delete(m.records, id)
	delete(m.documents, id)
	return nil
}

// DeleteByConfig removes all records for a config, returning the count.
func (m *MemoryStore) DeleteByConfig(_ context.Context, configID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, rec := range m.records {
		if rec.ConfigID == configID {
			delete(m.records, id)
			delete(m.documents, id)
			n++
		}
	}
	return n, nil
}

// GetDocument returns the record's attached document, or nil.
func (m *MemoryStore) GetDocument(_ context.Context, recordID string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[recordID]
	if !ok {
		return nil, nil
	}
	out := *doc
	out.Data = append([]byte(nil), doc.Data...)
	return &out, nil
}

// PutDocument stores the document once per record.
func (m *MemoryStore) PutDocument(_ context.Context, recordID string, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[recordID]; ok {
		return ErrDocumentExists
	}
	stored := *doc
	stored.Data = append([]byte(nil), doc.Data...)
	m.documents[recordID] = &stored
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
