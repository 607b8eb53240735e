// Package store persists notes documents with an optimistic-concurrency
// version token.
//
// Every successful write increments Version. Save takes the version the
// caller last read and fails with ErrVersionConflict if someone else wrote in
// between, so two continuation runs on the same document cannot silently
// overwrite each other.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/studyforge/notesd/internal/completion"
)

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned when Save's expected version is stale.
	ErrVersionConflict = errors.New("document version conflict")
)

// Document is a stored set of notes.
type Document struct {
	ID         uuid.UUID `json:"id" yaml:"id"`
	OwnerID    string    `json:"ownerId" yaml:"ownerId"`
	Title      string    `json:"title" yaml:"title"`
	Content    string    `json:"content" yaml:"content"`
	SourceText string    `json:"rawText" yaml:"rawText"`
	// IsComplete records that the notes reached their end. The marker itself
	// is not stored.
	IsComplete bool      `json:"isComplete" yaml:"isComplete"`
	Version    int64     `json:"version" yaml:"version"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Store is the persistence boundary for documents.
type Store interface {
	// Create inserts doc, assigning an id if it has none. On return doc
	// carries Version 1 and its timestamps.
	Create(ctx context.Context, doc *Document) error
	// Get returns the document with id or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	// Save writes doc's title, content, source text and completeness if
	// the stored version equals expectedVersion. On success doc.Version is the new version.
	Save(ctx context.Context, doc *Document, expectedVersion int64) error
	Close() error
}

// prepare strips the completion marker, which is never persisted. Content
// that carried the marker marks the document complete.
func prepare(doc *Document) {
	if completion.IsComplete(doc.Content) {
		doc.IsComplete = true
		doc.Content = completion.StripMarker(doc.Content)
	}
}
