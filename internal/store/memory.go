package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store for tests and single-node development.
type Memory struct {
	mu   sync.Mutex
	docs map[uuid.UUID]Document
	now  func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[uuid.UUID]Document), now: time.Now}
}

func (m *Memory) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	prepare(doc)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return fmt.Errorf("create document %s: already exists", doc.ID)
	}
	now := m.now().UTC()
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now
	m.docs[doc.ID] = *doc
	return nil
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (m *Memory) Save(ctx context.Context, doc *Document, expectedVersion int64) error {
	prepare(doc)

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.docs[doc.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: expected %d, stored %d", ErrVersionConflict, expectedVersion, stored.Version)
	}
	stored.Title = doc.Title
	stored.Content = doc.Content
	stored.SourceText = doc.SourceText
	stored.IsComplete = doc.IsComplete
	stored.Version++
	stored.UpdatedAt = m.now().UTC()
	m.docs[doc.ID] = stored
	*doc = stored
	return nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
