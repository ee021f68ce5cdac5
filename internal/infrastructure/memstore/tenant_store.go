// Package memstore keeps results and job states in process memory.
// Nothing survives a restart.
package memstore

import (
	"sync"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
)

type partition struct {
	mu      sync.RWMutex
	records map[string]domain.ResultRecord
}

// TenantStore partitions result records by tenant. The store-level lock only
// guards the partition map; record reads and writes lock the partition.
type TenantStore struct {
	mu      sync.RWMutex
	tenants map[string]*partition
}

func NewTenantStore() *TenantStore {
	return &TenantStore{tenants: make(map[string]*partition)}
}

func (s *TenantStore) Get(tenantID, conversationID string) (domain.ResultRecord, bool) {
	p := s.lookup(tenantID)
	if p == nil {
		return domain.ResultRecord{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.records[conversationID]
	if !ok {
		return domain.ResultRecord{}, false
	}
	return rec.Clone(), true
}

// Put overwrites any existing record. Last writer wins.
func (s *TenantStore) Put(tenantID, conversationID string, record domain.ResultRecord) {
	p := s.partitionFor(tenantID)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.records[conversationID] = record.Clone()
}

func (s *TenantStore) Update(tenantID, conversationID string, fn func(*domain.ResultRecord)) bool {
	p := s.lookup(tenantID)
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[conversationID]
	if !ok {
		return false
	}
	rec = rec.Clone()
	fn(&rec)
	p.records[conversationID] = rec
	return true
}

// ListAll copies every partition. Partitions are locked one at a time, so
// the snapshot is consistent per tenant but not across tenants.
func (s *TenantStore) ListAll() domain.StoreSnapshot {
	s.mu.RLock()
	parts := make(map[string]*partition, len(s.tenants))
	for tenantID, p := range s.tenants {
		parts[tenantID] = p
	}
	s.mu.RUnlock()

	snapshot := domain.StoreSnapshot{
		Database:    make(map[string]map[string]domain.ResultRecord, len(parts)),
		TenantCount: len(parts),
	}
	for tenantID, p := range parts {
		p.mu.RLock()
		records := make(map[string]domain.ResultRecord, len(p.records))
		for conversationID, rec := range p.records {
			records[conversationID] = rec.Clone()
		}
		p.mu.RUnlock()

		snapshot.Database[tenantID] = records
		snapshot.TotalRecords += len(records)
	}
	return snapshot
}

// Counts reports partition and record totals without copying records.
func (s *TenantStore) Counts() (tenants, records int) {
	s.mu.RLock()
	parts := make([]*partition, 0, len(s.tenants))
	for _, p := range s.tenants {
		parts = append(parts, p)
	}
	s.mu.RUnlock()

	for _, p := range parts {
		p.mu.RLock()
		records += len(p.records)
		p.mu.RUnlock()
	}
	return len(parts), records
}

func (s *TenantStore) lookup(tenantID string) *partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenants[tenantID]
}

func (s *TenantStore) partitionFor(tenantID string) *partition {
	if p := s.lookup(tenantID); p != nil {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another writer may have created it between the two locks.
	if p, ok := s.tenants[tenantID]; ok {
		return p
	}
	p := &partition{records: make(map[string]domain.ResultRecord)}
	s.tenants[tenantID] = p
	return p
}
