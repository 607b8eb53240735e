package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/studyforge/notesd/internal/activity"
	"github.com/studyforge/notesd/internal/auth"
	"github.com/studyforge/notesd/internal/completion"
	"github.com/studyforge/notesd/internal/continuation"
	"github.com/studyforge/notesd/internal/coverage"
	"github.com/studyforge/notesd/internal/logging"
	"github.com/studyforge/notesd/internal/metrics"
	"github.com/studyforge/notesd/internal/notes"
	"github.com/studyforge/notesd/internal/outline"
	"github.com/studyforge/notesd/internal/store"
)

const msgInvalidBody = "Request body must be a JSON object"

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: "notesd", Version: s.version})
}

// invalid answers a request that failed validation before any work was done.
// Like every continuation failure it is a 200 carrying the activity log.
func (s *Server) invalid(c echo.Context, message string) error {
	req := c.Request()
	log := activity.New()
	log.Recordf(activity.ActionRequestReceived, activity.StatusInfo, "%s %s", req.Method, req.URL.Path)
	log.Record(activity.ActionValidationError, activity.StatusError, message)
	return c.JSON(http.StatusOK, ErrorResponse{Error: message, ActivityLog: log.Entries()})
}

// handleContinue runs the continuation loop on notes supplied in the body.
func (s *Server) handleContinue(c echo.Context) error {
	var req ContinueRequest
	if err := c.Bind(&req); err != nil {
		return s.invalid(c, msgInvalidBody)
	}

	ctx := c.Request().Context()
	res, err := s.engine.Continue(ctx, continuation.Request{
		CurrentNotes: req.CurrentNotes,
		SourceText:   req.RawText,
		Title:        req.Title,
	})
	if err != nil {
		s.logFailure(c, err)
		return c.JSON(http.StatusOK, ErrorResponse{Error: continuation.UserMessage(err), ActivityLog: res.Log})
	}

	return c.JSON(http.StatusOK, ContinueResponse{
		Notes:       res.Notes,
		IsComplete:  res.IsComplete,
		State:       res.State.String(),
		Attempts:    res.Attempts,
		ActivityLog: res.Log,
	})
}

// handleCoverage scores notes against their source text.
func (s *Server) handleCoverage(c echo.Context) error {
	var req CoverageRequest
	if err := c.Bind(&req); err != nil {
		return s.invalid(c, msgInvalidBody)
	}

	report := coverage.Analyze(req.RawText, req.Notes, s.config.CoverageThreshold)
	metrics.CoverageScore.Observe(float64(report.Score))
	return c.JSON(http.StatusOK, report)
}

// handleAnalyze reports completeness, structure and optionally coverage.
func (s *Server) handleAnalyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return s.invalid(c, msgInvalidBody)
	}
	if req.Notes == "" {
		return s.invalid(c, "notes is required")
	}

	structure := outline.Inspect(req.Notes)
	resp := AnalyzeResponse{
		IsComplete:        completion.IsComplete(req.Notes),
		Headings:          structure.Headings,
		HasClosingSection: structure.HasClosingSection,
		ClosingSection:    structure.ClosingSection,
	}
	if req.RawText != "" {
		report := coverage.Analyze(req.RawText, completion.StripMarker(req.Notes), s.config.CoverageThreshold)
		metrics.CoverageScore.Observe(float64(report.Score))
		resp.Coverage = &report
	}
	return c.JSON(http.StatusOK, resp)
}

// handleScrub shows how content would be redacted before it is sent to the
// completion service.
func (s *Server) handleScrub(c echo.Context) error {
	var req ScrubRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid scrub request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	result := s.scrubber.Scrub(req.Content)
	s.logger.Debug("scrubbed content", zap.Int("findings", result.Total()))

	return c.JSON(http.StatusOK, ScrubResponse{
		Content:       result.Text,
		FindingsCount: result.Total(),
		ByRule:        result.ByRule,
	})
}

func (s *Server) handleCreateDocument(c echo.Context) error {
	principal, ok := auth.PrincipalFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	var req CreateDocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	doc, err := s.notes.Create(c.Request().Context(), notes.CreateRequest{
		OwnerID:    principal.OwnerID,
		Title:      req.Title,
		Content:    req.Content,
		SourceText: req.RawText,
	})
	if errors.Is(err, notes.ErrContentRequired) {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

func (s *Server) handleGetDocument(c echo.Context) error {
	principal, ok := auth.PrincipalFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}

	doc, err := s.notes.Get(c.Request().Context(), principal.OwnerID, id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

// handleContinueDocument continues a stored document. Run failures, including
// version conflicts, are 200 responses with the activity log; an unknown
// document is a 404 with the log.
func (s *Server) handleContinueDocument(c echo.Context) error {
	principal, ok := auth.PrincipalFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}

	var req ContinueDocumentRequest
	if err := c.Bind(&req); err != nil {
		return s.invalid(c, msgInvalidBody)
	}

	ctx := logging.WithDocumentID(c.Request().Context(), id.String())
	out, err := s.notes.Continue(ctx, notes.ContinueRequest{
		OwnerID:         principal.OwnerID,
		DocumentID:      id,
		ExpectedVersion: req.Version,
	})
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "Document not found", ActivityLog: out.Result.Log})
	}
	if err != nil {
		s.logFailure(c, err)
		return c.JSON(http.StatusOK, ErrorResponse{Error: continuation.UserMessage(err), ActivityLog: out.Result.Log})
	}

	return c.JSON(http.StatusOK, ContinueDocumentResponse{
		Notes:       out.Document.Content,
		IsComplete:  out.Document.IsComplete,
		Version:     out.Document.Version,
		State:       out.Result.State.String(),
		Attempts:    out.Result.Attempts,
		ActivityLog: out.Result.Log,
	})
}

// logFailure records the underlying cause, which never reaches the client.
func (s *Server) logFailure(c echo.Context, err error) {
	ctx := c.Request().Context()
	s.logger.Warn("continuation failed",
		append(logging.ContextFields(ctx),
			zap.String("kind", string(continuation.KindOf(err))),
			zap.Error(err))...)
}
