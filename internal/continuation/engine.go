// Package continuation extends truncated study notes by repeatedly asking the
// completion service to continue from the tail of the document.
//
// A run is bounded by Config.MaxAttempts calls. Hard service errors abort the
// run; malformed or empty continuations are absorbed and the next attempt is
// made. Every exit path returns a Result carrying the full activity log.
package continuation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/studyforge/notesd/internal/activity"
	"github.com/studyforge/notesd/internal/completion"
	"github.com/studyforge/notesd/internal/generation"
	"github.com/studyforge/notesd/internal/logging"
	"github.com/studyforge/notesd/internal/metrics"
	"github.com/studyforge/notesd/internal/secrets"
	"go.uber.org/zap"
)

// Request is one continuation run.
type Request struct {
	CurrentNotes string
	SourceText   string
	Title        string
	// Log, if set, receives the run's entries after any the caller already
	// recorded. A fresh log is used otherwise. A caller that recorded its own
	// request_received entry keeps it as the only one.
	Log *activity.Log
}

// Result is returned on every path, including errors. On abort, Notes holds
// what had been accumulated so far; callers should keep their original notes.
type Result struct {
	Notes      string
	IsComplete bool
	State      State
	// Attempts is the number of completion calls made.
	Attempts int
	Log      []activity.Entry
}

// Engine runs continuations. It is safe for concurrent use; each run owns its
// accumulator and log.
type Engine struct {
	client   generation.Client
	cfg      Config
	detect   completion.Detector
	scrubber secrets.Scrubber
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDetector replaces the completion marker check.
func WithDetector(d completion.Detector) Option {
	return func(e *Engine) {
		if d != nil {
			e.detect = d
		}
	}
}

// WithScrubber redacts source text and tails before they are sent.
func WithScrubber(s secrets.Scrubber) Option {
	return func(e *Engine) {
		if s != nil {
			e.scrubber = s
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the time source for activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine. A nil client is allowed: every run then fails with
// KindConfiguration after validation.
func New(client generation.Client, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		cfg:      cfg.withDefaults(),
		detect:   completion.IsComplete,
		scrubber: secrets.Noop{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective bounds.
func (e *Engine) Config() Config {
	return e.cfg
}

// Continue extends req.CurrentNotes until the completion marker appears or
// attempts run out. Exhaustion is not an error: the Result has
// IsComplete=false and State StateExhausted.
func (e *Engine) Continue(ctx context.Context, req Request) (*Result, error) {
	start := e.now()
	logger := e.logger.With(logging.ContextFields(ctx)...)

	log := req.Log
	if log == nil {
		log = activity.New(activity.WithClock(e.now), activity.WithLogger(logger))
	}

	res := &Result{Notes: req.CurrentNotes, State: StateAborted}
	finish := func(err error) (*Result, error) {
		res.Log = log.Entries()
		metrics.ContinuationsTotal.WithLabelValues(res.State.String()).Inc()
		metrics.ContinuationAttempts.Observe(float64(res.Attempts))
		metrics.ContinuationDuration.Observe(e.now().Sub(start).Seconds())
		logger.Info("continuation finished",
			zap.Stringer("state", res.State),
			zap.Int("attempts", res.Attempts),
			zap.Bool("complete", res.IsComplete),
			zap.Error(err),
		)
		return res, err
	}

	if log.Count(activity.ActionRequestReceived) == 0 {
		log.Recordf(activity.ActionRequestReceived, activity.StatusInfo,
			"notes: %d chars, source: %d chars", utf8.RuneCountInString(req.CurrentNotes), utf8.RuneCountInString(req.SourceText))
	}

	if err := e.validate(req); err != nil {
		log.Record(activity.ActionValidationError, activity.StatusError, err.Error())
		return finish(NewError(KindValidation, err))
	}

	if e.detect(req.CurrentNotes) {
		log.Record(activity.ActionAlreadyComplete, activity.StatusSuccess, "notes already end with the completion marker")
		res.Notes = completion.StripMarker(req.CurrentNotes)
		res.IsComplete = true
		res.State = StateAlreadyComplete
		return finish(nil)
	}

	if e.client == nil {
		log.Record(activity.ActionConfigError, activity.StatusError, "completion service credential is not configured")
		return finish(NewError(KindConfiguration, generation.ErrNotConfigured))
	}

	title := truncateRunes(req.Title, e.cfg.MaxTitleChars)
	source := e.scrubber.Scrub(req.SourceText).Text
	acc := req.CurrentNotes
	maxAttempts := e.cfg.MaxAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			log.Recordf(activity.ActionCancelled, activity.StatusError, "cancelled before attempt %d", attempt)
			res.Notes = acc
			return finish(NewError(KindCanceled, err))
		}

		res.Attempts = attempt
		log.Recordf(activity.ActionContinuationAttempt, activity.StatusInfo, "attempt %d/%d", attempt, maxAttempts)

		tail := e.scrubber.Scrub(tailRunes(acc, e.cfg.TailWindow)).Text
		if ce := logger.Check(logging.TraceLevel, "continuation request"); ce != nil {
			ce.Write(zap.Int("attempt", attempt), zap.Int("tail_chars", utf8.RuneCountInString(tail)))
		}

		resp, err := e.client.Complete(ctx, buildRequest(title, source, tail))
		if err != nil && !errors.Is(err, generation.ErrMalformedOutput) {
			runErr := gatewayError(err)
			res.Notes = acc
			if runErr.Kind == KindCanceled {
				log.Recordf(activity.ActionCancelled, activity.StatusError, "cancelled during attempt %d", attempt)
				return finish(runErr)
			}
			metrics.GatewayErrorsTotal.WithLabelValues(gatewayKind(err)).Inc()
			logger.Warn("completion service error", zap.Int("attempt", attempt), zap.Error(err))
			log.Recordf(activity.ActionGatewayError, activity.StatusError, "%s on attempt %d", runErr.Kind, attempt)
			return finish(runErr)
		}

		var cont string
		if err == nil {
			cont, err = resp.Field(Field)
		}
		if err != nil {
			metrics.SoftFailuresTotal.WithLabelValues(activity.ActionMalformedOutput).Inc()
			logger.Debug("malformed continuation", zap.Int("attempt", attempt), zap.Error(err))
			log.Recordf(activity.ActionMalformedOutput, activity.StatusError, "attempt %d returned output without a usable %q field", attempt, Field)
			continue
		}

		if strings.TrimSpace(cont) == "" {
			metrics.SoftFailuresTotal.WithLabelValues(activity.ActionEmptyContinuation).Inc()
			log.Recordf(activity.ActionEmptyContinuation, activity.StatusInfo, "attempt %d returned an empty continuation", attempt)
			continue
		}

		acc = strings.TrimSpace(acc) + "\n\n" + strings.TrimSpace(cont)
		log.Recordf(activity.ActionContinuationAppended, activity.StatusSuccess, "notes now %d chars", utf8.RuneCountInString(acc))

		if e.detect(acc) {
			res.Notes = completion.StripMarker(acc)
			res.IsComplete = true
			res.State = StateCompleted
			log.Recordf(activity.ActionContinuationComplete, activity.StatusSuccess, "completed after %d attempt(s)", attempt)
			return finish(nil)
		}
	}

	log.Recordf(activity.ActionMaxContinuationsReached, activity.StatusInfo, "%d attempts made without reaching the end of the notes", maxAttempts)
	res.Notes = acc
	res.State = StateExhausted
	return finish(nil)
}

func (e *Engine) validate(req Request) error {
	if strings.TrimSpace(req.CurrentNotes) == "" {
		return ErrNotesRequired
	}
	if n := utf8.RuneCountInString(req.CurrentNotes); n > e.cfg.MaxNotesChars {
		return fmt.Errorf("%w (%d characters, max %d)", ErrNotesTooLong, n, e.cfg.MaxNotesChars)
	}
	if strings.TrimSpace(req.SourceText) == "" {
		return ErrSourceRequired
	}
	if n := utf8.RuneCountInString(req.SourceText); n > e.cfg.MaxSourceChars {
		return fmt.Errorf("%w (%d characters, max %d)", ErrSourceTooLong, n, e.cfg.MaxSourceChars)
	}
	return nil
}

func gatewayKind(err error) string {
	var gwErr *generation.GatewayError
	if errors.As(err, &gwErr) {
		return string(gwErr.Kind)
	}
	return string(generation.KindUnclassified)
}
