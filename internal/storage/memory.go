package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"docroute/internal/domain"
)

// MemoryStore keeps documents in process. Updates are optimistic: the
// document is copied under the lock, mutated without it, and written back
// only if its version is unchanged.
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[string]domain.Document
	audit map[string][]domain.AuditEntry
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]domain.Document),
		audit: make(map[string][]domain.AuditEntry),
		now:   time.Now,
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateDocument(_ context.Context, doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	m.docs[doc.ID] = doc.Clone()
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, documentID string) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[documentID]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (m *MemoryStore) ListDocuments(_ context.Context, filter domain.ListFilter) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if filter.Type != "" && doc.Type != filter.Type {
			continue
		}
		if filter.NextDepartment != "" && (doc.NextDepartment == nil || *doc.NextDepartment != filter.NextDepartment) {
			continue
		}
		if filter.Archived != nil && doc.IsArchived != *filter.Archived {
			continue
		}
		out = append(out, doc.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateDocument(_ context.Context, documentID string, mutate func(*domain.Document) error) (domain.Document, error) {
	m.mu.Lock()
	current, ok := m.docs[documentID]
	m.mu.Unlock()
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}

	working := current.Clone()
	if err := mutate(&working); err != nil {
		return domain.Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	latest := m.docs[documentID]
	if latest.Version != current.Version {
		return domain.Document{}, fmt.Errorf("%w: document %s changed concurrently", domain.ErrStorageConflict, documentID)
	}
	// Only workflow state is writable through this path.
	latest.Status = working.Status
	latest.NextDepartment = working.NextDepartment
	latest.CheckedDepartments = working.CheckedDepartments
	latest.IsArchived = working.IsArchived
	latest.IsCancelled = working.IsCancelled
	latest.Version++
	latest.UpdatedAt = m.now()
	m.docs[documentID] = latest
	return latest.Clone(), nil
}

func (m *MemoryStore) SetQRCode(_ context.Context, documentID, qrCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if doc.QRCode != "" && doc.QRCode != qrCode {
		return fmt.Errorf("document %s already has a different qr code", documentID)
	}
	doc.QRCode = qrCode
	doc.UpdatedAt = m.now()
	m.docs[documentID] = doc
	return nil
}

func (m *MemoryStore) SetDocumentImage(_ context.Context, documentID, image string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.Image = image
	doc.UpdatedAt = m.now()
	m.docs[documentID] = doc
	return nil
}

func (m *MemoryStore) InsertAudit(_ context.Context, documentID string, state domain.AuditState, detail any) error {
	payload, err := auditPayload(detail)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit[documentID] = append(m.audit[documentID], domain.AuditEntry{
		DocumentID: documentID,
		State:      state,
		Detail:     json.RawMessage(payload),
		CreatedAt:  m.now(),
	})
	return nil
}

func (m *MemoryStore) ListAudit(_ context.Context, documentID string) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEntry{}, m.audit[documentID]...), nil
}
