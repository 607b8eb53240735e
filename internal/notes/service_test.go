package notes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/notesd/internal/activity"
	"github.com/studyforge/notesd/internal/continuation"
	"github.com/studyforge/notesd/internal/events"
	"github.com/studyforge/notesd/internal/generation"
	"github.com/studyforge/notesd/internal/store"
	"github.com/studyforge/notesd/internal/telemetry"
)

// scriptedClient returns continuations in order, repeating the last one.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
	// before runs on every call before the reply is returned.
	before func()
}

func (c *scriptedClient) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	c.mu.Lock()
	idx := c.calls
	c.calls++
	c.mu.Unlock()

	if c.before != nil {
		c.before()
	}
	if c.err != nil {
		return nil, c.err
	}
	if idx >= len(c.replies) {
		idx = len(c.replies) - 1
	}
	return &generation.Response{Fields: map[string]string{continuation.Field: c.replies[idx]}}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ContinuedEvent
	err    error
}

func (p *recordingPublisher) PublishContinued(ctx context.Context, ev events.ContinuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.ContinuedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.ContinuedEvent(nil), p.events...)
}

type fixture struct {
	svc    *Service
	store  *store.Memory
	client *scriptedClient
	pub    *recordingPublisher
}

func newFixture(t *testing.T, client *scriptedClient) *fixture {
	t.Helper()
	st := store.NewMemory()
	pub := &recordingPublisher{}
	svc, err := NewService(st, continuation.New(client, continuation.DefaultConfig()), pub, nil)
	require.NoError(t, err)
	return &fixture{svc: svc, store: st, client: client, pub: pub}
}

func (f *fixture) create(t *testing.T, owner, content string) *store.Document {
	t.Helper()
	doc, err := f.svc.Create(context.Background(), CreateRequest{
		OwnerID:    owner,
		Title:      "Photosynthesis",
		Content:    content,
		SourceText: "Light reactions and the Calvin cycle.",
	})
	require.NoError(t, err)
	return doc
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(nil, continuation.New(nil, continuation.DefaultConfig()), nil, nil)
	assert.Error(t, err)
	_, err = NewService(store.NewMemory(), nil, nil, nil)
	assert.Error(t, err)
}

func TestCreate(t *testing.T) {
	f := newFixture(t, &scriptedClient{replies: []string{"x"}})
	ctx := context.Background()

	doc := f.create(t, "owner-a", "# Notes\n\nEND_OF_NOTES")
	assert.Equal(t, "# Notes", doc.Content)
	assert.True(t, doc.IsComplete)
	assert.Equal(t, int64(1), doc.Version)

	_, err := f.svc.Create(ctx, CreateRequest{Content: "x"})
	assert.ErrorIs(t, err, ErrOwnerRequired)

	_, err = f.svc.Create(ctx, CreateRequest{OwnerID: "o", Content: "  "})
	assert.ErrorIs(t, err, ErrContentRequired)
}

func TestGet_ForeignOwnerIsNotFound(t *testing.T) {
	f := newFixture(t, &scriptedClient{replies: []string{"x"}})
	doc := f.create(t, "owner-a", "# Notes")

	got, err := f.svc.Get(context.Background(), "owner-a", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	_, err = f.svc.Get(context.Background(), "owner-b", doc.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestContinue_CompletesAndSaves(t *testing.T) {
	f := newFixture(t, &scriptedClient{replies: []string{"## Calvin cycle", "## Summary\n\nEND_OF_NOTES"}})
	doc := f.create(t, "owner-a", "# Photosynthesis")

	out, err := f.svc.Continue(context.Background(), ContinueRequest{OwnerID: "owner-a", DocumentID: doc.ID})
	require.NoError(t, err)

	assert.Equal(t, continuation.StateCompleted, out.Result.State)
	assert.True(t, out.Result.IsComplete)
	assert.Equal(t, "# Photosynthesis\n\n## Calvin cycle\n\n## Summary", out.Document.Content)
	assert.Equal(t, int64(2), out.Document.Version)
	assert.True(t, out.Document.IsComplete)

	stored, err := f.store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Document.Content, stored.Content)
	assert.Equal(t, int64(2), stored.Version)

	log := out.Result.Log
	require.NotEmpty(t, log)
	assert.Equal(t, activity.ActionRequestReceived, log[0].Action)
	assert.Equal(t, activity.ActionDocumentLoaded, log[1].Action)
	assert.Equal(t, 1, activity.Count(log, activity.ActionRequestReceived))
	assert.Equal(t, 1, activity.Count(log, activity.ActionDocumentSaved))
	assert.Equal(t, 2, activity.Count(log, activity.ActionContinuationAttempt))

	published := f.pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, doc.ID.String(), published[0].DocumentID)
	assert.Equal(t, "owner-a", published[0].OwnerID)
	assert.Equal(t, int64(2), published[0].Version)
	assert.True(t, published[0].IsComplete)
	assert.Equal(t, "completed", published[0].State)
	assert.Empty(t, published[0].Error)
}

func TestContinue_AlreadyCompleteMakesNoCalls(t *testing.T) {
	client := &scriptedClient{replies: []string{"never"}}
	f := newFixture(t, client)
	doc := f.create(t, "owner-a", "# Done\n\nEND_OF_NOTES")

	out, err := f.svc.Continue(context.Background(), ContinueRequest{OwnerID: "owner-a", DocumentID: doc.ID})
	require.NoError(t, err)

	assert.Equal(t, continuation.StateAlreadyComplete, out.Result.State)
	assert.Equal(t, "# Done", out.Result.Notes)
	assert.Equal(t, int64(1), out.Document.Version, "unchanged document is not rewritten")
	assert.Equal(t, 0, client.calls)
}

func TestContinue_ExhaustedSavesProgress(t *testing.T) {
	f := newFixture(t, &scriptedClient{replies: []string{"more"}})
	doc := f.create(t, "owner-a", "# Start")

	out, err := f.svc.Continue(context.Background(), ContinueRequest{OwnerID: "owner-a", DocumentID: doc.ID})
	require.NoError(t, err)

	assert.Equal(t, continuation.StateExhausted, out.Result.State)
	assert.False(t, out.Document.IsComplete)
	assert.Equal(t, int64(2), out.Document.Version)
	assert.Contains(t, out.Document.Content, "more")
}

func TestContinue_StaleExpectedVersion(t *testing.T) {
	client := &scriptedClient{replies: []string{"x"}}
	f := newFixture(t, client)
	doc := f.create(t, "owner-a", "# Start")

	stale := int64(0)
	out, err := f.svc.Continue(context.Background(), ContinueRequest{OwnerID: "owner-a", DocumentID: doc.ID, ExpectedVersion: &stale})

	require.Error(t, err)
	assert.Equal(t, continuation.KindConflict, continuation.KindOf(err))
	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.Equal(t, continuation.MsgConflict, continuation.UserMessage(err))
	assert.Equal(t, 0, client.calls)
	assert.Equal(t, 1, activity.Count(out.Result.Log, activity.ActionVersionConflict))
	assert.Equal(t, "# Start", out.Result.Notes)
}

func TestContinue_ConcurrentWriteIsConflict(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.create(t, "owner-a", "# Start")

	var once sync.Once
	f.client = &scriptedClient{
		replies: []string{"END_OF_NOTES"},
		before: func() {
			once.Do(func() {
				other := *doc
				other.Content = "# Start\n\nedited elsewhere"
				require.NoError(t, f.store.Save(context.Background(), &other, 1))
			})
		},
	}
	svc, err := NewService(f.store, continuation.New(f.client, continuation.DefaultConfig()), f.pub, nil)
	require.NoError(t, err)

	out, err := svc.Continue(context.Background(), ContinueRequest{OwnerID: "owner-a", DocumentID: doc.ID})

	require.Error(t, err)
	assert.Equal(t, continuation.KindConflict, continuation.KindOf(err))
	assert.Equal(t, 1, activity.Count(out.Result.Log, activity.ActionVersionConflict))
	assert.Zero(t, activity.Count(out.Result.Log, activity.ActionDocumentSaved))

	stored, err := f.store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "# Start\n\nedited elsewhere", stored.Content, "the other write survives")
	assert.Equal(t, int64(2), stored.Version)

	published := f.pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, continuation.MsgConflict, published[0].Error)
}

func TestContinue_GatewayFailureLeavesDocument(t *testing.T) {
	client := &scriptedClient{err: &generation.GatewayError{Kind: generation.KindRateLimited, StatusCode: 429}}
	f := newFixture(t, client)
	doc := f.create(t, "owner-a", "# Start")

	out, err := f.svc.Continue(context.Background(), ContinueRequest{OwnerID: "owner-a", DocumentID: doc.ID})

	require.Error(t, err)
	assert.Equal(t, continuation.KindRateLimited, continuation.KindOf(err))
	assert.Equal(t, 1, activity.Count(out.Result.Log, activity.ActionGatewayError))

	stored, err := f.store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)

	published := f.pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, continuation.MsgRateLimited, published[0].Error)
	assert.Equal(t, "aborted", published[0].State)
}

func TestContinue_UnknownOrForeignDocument(t *testing.T) {
	f := newFixture(t, &scriptedClient{replies: []string{"x"}})
	doc := f.create(t, "owner-a", "# Start")

	for name, req := range map[string]ContinueRequest{
		"unknown": {OwnerID: "owner-a", DocumentID: uuid.New()},
		"foreign": {OwnerID: "owner-b", DocumentID: doc.ID},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := f.svc.Continue(context.Background(), req)
			assert.ErrorIs(t, err, store.ErrNotFound)
			require.NotNil(t, out)
			assert.Nil(t, out.Document)
			assert.Equal(t, activity.ActionRequestReceived, out.Result.Log[0].Action)
		})
	}
	assert.Empty(t, f.pub.published())
}

func TestContinue_PublishFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t, &scriptedClient{replies: []string{"END_OF_NOTES"}})
	f.pub.err = errors.New("nats down")
	doc := f.create(t, "owner-a", "# Start")

	out, err := f.svc.Continue(context.Background(), ContinueRequest{OwnerID: "owner-a", DocumentID: doc.ID})

	require.NoError(t, err)
	assert.True(t, out.Result.IsComplete)
	assert.Equal(t, 1, activity.Count(out.Result.Log, activity.ActionEventPublishFailed))
}

func TestContinue_RecordsSpan(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	st := store.NewMemory()
	client := &scriptedClient{replies: []string{"END_OF_NOTES"}}
	svc, err := NewService(st, continuation.New(client, continuation.DefaultConfig()), nil, nil,
		WithTracerProvider(tel.TracerProvider()))
	require.NoError(t, err)

	doc, err := svc.Create(context.Background(), CreateRequest{OwnerID: "o", Content: "# Start", SourceText: "src"})
	require.NoError(t, err)
	_, err = svc.Continue(context.Background(), ContinueRequest{OwnerID: "o", DocumentID: doc.ID})
	require.NoError(t, err)

	tel.AssertSpanExists(t, "notes.create")
	tel.AssertSpanAttribute(t, "notes.continue", "document_id", doc.ID.String())
	tel.AssertSpanAttribute(t, "notes.continue", "state", "completed")
	tel.AssertSpanAttribute(t, "notes.continue", "attempts", int64(1))
}
