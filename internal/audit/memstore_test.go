package audit_test

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/opencliniq/triage/internal/audit"
	"github.com/opencliniq/triage/internal/domain"
)

// memStore is an in-memory domain.AuditRepository. It mirrors the PostgreSQL
// repo's contract: appends are serialized, seq is store-assigned, the seal
// callback runs inside the critical section, and locked rows refuse mutation.
type memStore struct {
	mu        sync.Mutex
	entries   []*domain.AuditEntry
	nextSeq   int64
	appendErr error // injected failure, returned before anything is written
}

func newMemStore() *memStore {
	return &memStore{nextSeq: 1}
}

func (m *memStore) Append(_ context.Context, entry *domain.AuditEntry, seal domain.SealFunc) (*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return nil, m.appendErr
	}

	var prev *string
	if entry.ResourceType != nil && entry.ResourceID != nil {
		prev = m.latestHashLocked(*entry.ResourceType, *entry.ResourceID)
	}

	if err := seal(entry, prev); err != nil {
		return nil, err
	}

	entry.Seq = m.nextSeq
	m.nextSeq++

	stored := *entry
	m.entries = append(m.entries, &stored)
	return entry, nil
}

func (m *memStore) latestHashLocked(resourceType string, resourceID uuid.UUID) *string {
	var latest *domain.AuditEntry
	for _, e := range m.entries {
		if e.ResourceType == nil || e.ResourceID == nil {
			continue
		}
		if *e.ResourceType != resourceType || *e.ResourceID != resourceID {
			continue
		}
		if latest == nil || e.Seq > latest.Seq {
			latest = e
		}
	}
	if latest == nil {
		return nil
	}
	h := latest.Hash
	return &h
}

func (m *memStore) LatestHash(_ context.Context, resourceType string, resourceID uuid.UUID) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestHashLocked(resourceType, resourceID), nil
}

func (m *memStore) ListByResource(_ context.Context, resourceType string, resourceID uuid.UUID) ([]*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.AuditEntry
	for _, e := range m.entries {
		if e.ResourceType == nil || e.ResourceID == nil {
			continue
		}
		if *e.ResourceType == resourceType && *e.ResourceID == resourceID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *memStore) List(_ context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.AuditEntry
	for _, e := range m.entries {
		if f.ResourceType != "" && (e.ResourceType == nil || *e.ResourceType != f.ResourceType) {
			continue
		}
		if f.ResourceID != nil && (e.ResourceID == nil || *e.ResourceID != *f.ResourceID) {
			continue
		}
		if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.From != nil && e.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && e.Timestamp.After(*f.To) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })

	total := int64(len(out))
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *memStore) Lock(_ context.Context, logID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.LogID == logID {
			e.Locked = true
			return nil
		}
	}
	return domain.ErrNotFound
}

// tamper mutates a stored entry, honoring the locked flag the way the real
// store's trigger does.
func (m *memStore) tamper(logID uuid.UUID, mutate func(*domain.AuditEntry)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.LogID == logID {
			if e.Locked {
				return audit.ErrLockedEntry
			}
			mutate(e)
			return nil
		}
	}
	return domain.ErrNotFound
}

// forceTamper mutates a stored entry bypassing the locked flag, simulating
// direct storage manipulation below the enforcement layer.
func (m *memStore) forceTamper(logID uuid.UUID, mutate func(*domain.AuditEntry)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.LogID == logID {
			mutate(e)
			return
		}
	}
}

func (m *memStore) get(logID uuid.UUID) *domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.LogID == logID {
			cp := *e
			return &cp
		}
	}
	return nil
}
