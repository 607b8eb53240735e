// Package notes runs continuations on stored documents.
//
// A continuation loads the document, extends it with the continuation engine,
// and writes the result back only if nobody else wrote in the meantime. The
// outcome is published as an event whether or not the run succeeded.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/studyforge/notesd/internal/activity"
	"github.com/studyforge/notesd/internal/completion"
	"github.com/studyforge/notesd/internal/continuation"
	"github.com/studyforge/notesd/internal/events"
	"github.com/studyforge/notesd/internal/logging"
	"github.com/studyforge/notesd/internal/metrics"
	"github.com/studyforge/notesd/internal/store"
)

const instrumentationName = "github.com/studyforge/notesd/internal/notes"

var (
	// ErrOwnerRequired is returned when a request has no owner.
	ErrOwnerRequired = errors.New("owner id is required")
	// ErrContentRequired is returned when a new document has no content.
	ErrContentRequired = errors.New("content is required")
)

// CreateRequest describes a new document.
type CreateRequest struct {
	OwnerID    string
	Title      string
	Content    string
	SourceText string
}

// ContinueRequest continues a stored document. ExpectedVersion, when set, is
// the version the caller last saw; a newer stored version is a conflict.
type ContinueRequest struct {
	OwnerID         string
	DocumentID      uuid.UUID
	ExpectedVersion *int64
}

// ContinueResult carries the run outcome. Document is the stored state after
// the run and is nil when the document could not be loaded.
type ContinueResult struct {
	Document *store.Document
	Result   *continuation.Result
}

// Service coordinates the store, the engine and the event publisher.
type Service struct {
	store     store.Store
	engine    *continuation.Engine
	publisher events.Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the provider spans are created from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithClock sets the time source for activity and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. A nil publisher discards events.
func NewService(st store.Store, engine *continuation.Engine, pub events.Publisher, logger *zap.Logger, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if engine == nil {
		return nil, errors.New("continuation engine is required")
	}
	if pub == nil {
		pub = events.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     st,
		engine:    engine,
		publisher: pub,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create stores a new document owned by req.OwnerID.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.Document, error) {
	ctx, span := s.tracer.Start(ctx, "notes.create")
	defer span.End()

	if req.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrContentRequired
	}

	doc := &store.Document{
		OwnerID:    req.OwnerID,
		Title:      req.Title,
		Content:    req.Content,
		SourceText: req.SourceText,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create document: %w", err)
	}
	span.SetAttributes(attribute.String("document_id", doc.ID.String()))

	s.logger.Info("document created",
		append(logging.ContextFields(ctx),
			zap.String("document.id", doc.ID.String()),
			zap.Bool("complete", doc.IsComplete))...)
	return doc, nil
}

// Get returns the document if ownerID owns it. Documents of other owners are
// reported as store.ErrNotFound.
func (s *Service) Get(ctx context.Context, ownerID string, id uuid.UUID) (*store.Document, error) {
	ctx, span := s.tracer.Start(ctx, "notes.get")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", id.String()))

	return s.load(ctx, ownerID, id)
}

func (s *Service) load(ctx context.Context, ownerID string, id uuid.UUID) (*store.Document, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return doc, nil
}

// Continue extends a stored document and saves the result.
//
// The returned ContinueResult always carries a Result with the activity log,
// including on error. Engine failures leave the stored document untouched.
// A concurrent write is reported as a continuation.Error of KindConflict.
func (s *Service) Continue(ctx context.Context, req ContinueRequest) (*ContinueResult, error) {
	ctx, span := s.tracer.Start(ctx, "notes.continue")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", req.DocumentID.String()))

	ctx = logging.WithDocumentID(ctx, req.DocumentID.String())
	logger := s.logger.With(logging.ContextFields(ctx)...)

	log := activity.New(activity.WithClock(s.now), activity.WithLogger(logger))
	log.Recordf(activity.ActionRequestReceived, activity.StatusInfo, "continue document %s", req.DocumentID)

	out := &ContinueResult{Result: &continuation.Result{State: continuation.StateAborted}}
	fail := func(err error) (*ContinueResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		out.Result.Log = log.Entries()
		return out, err
	}

	doc, err := s.load(ctx, req.OwnerID, req.DocumentID)
	if err != nil {
		log.Record(activity.ActionDocumentLoaded, activity.StatusError, "document not available")
		return fail(err)
	}
	log.Recordf(activity.ActionDocumentLoaded, activity.StatusInfo, "version %d", doc.Version)
	out.Document = doc
	out.Result.Notes = doc.Content

	if req.ExpectedVersion != nil && *req.ExpectedVersion != doc.Version {
		err := fmt.Errorf("%w: expected %d, stored %d", store.ErrVersionConflict, *req.ExpectedVersion, doc.Version)
		return fail(s.conflict(ctx, log, doc, out.Result, err))
	}

	notes := doc.Content
	if doc.IsComplete {
		notes = strings.TrimSpace(notes) + "\n\n" + completion.Marker
	}

	res, runErr := s.engine.Continue(ctx, continuation.Request{
		CurrentNotes: notes,
		SourceText:   doc.SourceText,
		Title:        doc.Title,
		Log:          log,
	})
	out.Result = res
	span.SetAttributes(
		attribute.String("state", res.State.String()),
		attribute.Int("attempts", res.Attempts),
	)
	if runErr != nil {
		s.publish(ctx, log, doc, res, runErr)
		return fail(runErr)
	}

	if res.Notes != doc.Content || res.IsComplete != doc.IsComplete {
		updated := *doc
		updated.Content = res.Notes
		updated.IsComplete = res.IsComplete

		if err := s.store.Save(ctx, &updated, doc.Version); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				return fail(s.conflict(ctx, log, doc, res, err))
			}
			log.Record(activity.ActionDocumentSaved, activity.StatusError, "document could not be saved")
			return fail(fmt.Errorf("save document: %w", err))
		}
		log.Recordf(activity.ActionDocumentSaved, activity.StatusSuccess, "version %d", updated.Version)
		doc = &updated
		out.Document = doc
	}

	s.publish(ctx, log, doc, res, nil)
	res.Log = log.Entries()
	return out, nil
}

// conflict records a lost write and converts err to a KindConflict error.
func (s *Service) conflict(ctx context.Context, log *activity.Log, doc *store.Document, res *continuation.Result, err error) error {
	metrics.VersionConflictsTotal.Inc()
	log.Record(activity.ActionVersionConflict, activity.StatusError, "document changed since it was loaded")
	runErr := continuation.NewError(continuation.KindConflict, err)
	s.publish(ctx, log, doc, res, runErr)
	return runErr
}

// publish emits the run's event. Failures are logged and recorded but do not
// fail the run.
func (s *Service) publish(ctx context.Context, log *activity.Log, doc *store.Document, res *continuation.Result, runErr error) {
	ev := events.ContinuedEvent{
		DocumentID:  doc.ID.String(),
		OwnerID:     doc.OwnerID,
		Version:     doc.Version,
		IsComplete:  res.IsComplete,
		State:       res.State.String(),
		Attempts:    res.Attempts,
		ActivityLog: log.Entries(),
		OccurredAt:  s.now().UTC(),
	}
	if runErr != nil {
		ev.Error = continuation.UserMessage(runErr)
	}

	// Publishing outlives a cancelled request; the run already happened.
	if err := s.publisher.PublishContinued(context.WithoutCancel(ctx), ev); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
		s.logger.Warn("failed to publish continued event",
			append(logging.ContextFields(ctx), zap.Error(err))...)
		log.Record(activity.ActionEventPublishFailed, activity.StatusError, "event could not be published")
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues("ok").Inc()
}
