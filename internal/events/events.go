// Package events publishes notes lifecycle events to NATS.
//
// Each finished continuation of a stored document is published to
//
//	{subject}.{owner_id}
//
// so that subscribers can follow one owner (notes.continued.abc123) or all
// of them (notes.continued.>).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/studyforge/notesd/internal/activity"
)

// DefaultSubject is the subject prefix for continuation events.
const DefaultSubject = "notes.continued"

// ContinuedEvent describes one finished continuation run on a document.
type ContinuedEvent struct {
	ID          string           `json:"id"`
	DocumentID  string           `json:"documentId"`
	OwnerID     string           `json:"ownerId"`
	Version     int64            `json:"version"`
	IsComplete  bool             `json:"isComplete"`
	State       string           `json:"state"`
	Attempts    int              `json:"attempts"`
	Error       string           `json:"error,omitempty"`
	ActivityLog []activity.Entry `json:"activityLog"`
	OccurredAt  time.Time        `json:"occurredAt"`
}

// Publisher delivers events.
type Publisher interface {
	PublishContinued(ctx context.Context, ev ContinuedEvent) error
	Close() error
}

// NATSPublisher publishes events on a NATS connection.
type NATSPublisher struct {
	nc       *nats.Conn
	subject  string
	ownsConn bool
}

// NewNATSPublisher publishes on an existing connection. Close does not close nc.
func NewNATSPublisher(nc *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{nc: nc, subject: subject}
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("notesd"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	p := NewNATSPublisher(nc, subject)
	p.ownsConn = true
	return p, nil
}

// PublishContinued fills ID and OccurredAt when unset and publishes ev.
func (p *NATSPublisher) PublishContinued(ctx context.Context, ev ContinuedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if ev.ActivityLog == nil {
		ev.ActivityLog = []activity.Entry{}
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(ev.OwnerID), data); err != nil {
		return fmt.Errorf("publish continued event: %w", err)
	}
	return nil
}

// Subject returns the subject events for ownerID are published on.
func (p *NATSPublisher) Subject(ownerID string) string {
	return p.subject + "." + subjectToken(ownerID)
}

func (p *NATSPublisher) Close() error {
	if p.ownsConn {
		return p.nc.Drain()
	}
	return nil
}

// subjectToken makes s safe as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Noop discards events.
type Noop struct{}

func (Noop) PublishContinued(context.Context, ContinuedEvent) error { return nil }
func (Noop) Close() error                                           { return nil }

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = Noop{}
)
