package http

import (
	"github.com/studyforge/notesd/internal/activity"
	"github.com/studyforge/notesd/internal/auth"
	"github.com/studyforge/notesd/internal/coverage"
	"github.com/studyforge/notesd/internal/outline"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is returned for every failed continuation and for
// authentication failures. The activity log is always present.
type ErrorResponse = auth.ErrorBody

// ContinueRequest is the request body for POST /continue.
type ContinueRequest struct {
	CurrentNotes string `json:"currentNotes"`
	RawText      string `json:"rawText"`
	Title        string `json:"title,omitempty"`
}

// ContinueResponse is the success body for POST /continue.
type ContinueResponse struct {
	Notes       string           `json:"notes"`
	IsComplete  bool             `json:"isComplete"`
	State       string           `json:"state"`
	Attempts    int              `json:"attempts"`
	ActivityLog []activity.Entry `json:"activityLog"`
}

// CoverageRequest is the request body for POST /api/v1/coverage.
type CoverageRequest struct {
	RawText string `json:"rawText"`
	Notes   string `json:"notes"`
}

// AnalyzeRequest is the request body for POST /api/v1/analyze.
type AnalyzeRequest struct {
	Notes   string `json:"notes"`
	RawText string `json:"rawText,omitempty"`
}

// AnalyzeResponse combines the completion check, the outline and, when
// source text was given, coverage.
type AnalyzeResponse struct {
	IsComplete        bool              `json:"isComplete"`
	Headings          []outline.Heading `json:"headings"`
	HasClosingSection bool              `json:"hasClosingSection"`
	ClosingSection    string            `json:"closingSection,omitempty"`
	Coverage          *coverage.Report  `json:"coverage,omitempty"`
}

// ScrubRequest is the request body for POST /api/v1/scrub.
type ScrubRequest struct {
	Content string `json:"content"`
}

// ScrubResponse shows what would be sent to the completion service.
type ScrubResponse struct {
	Content       string         `json:"content"`
	FindingsCount int            `json:"findings_count"`
	ByRule        map[string]int `json:"by_rule,omitempty"`
}

// CreateDocumentRequest is the request body for POST /api/v1/documents.
type CreateDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	RawText string `json:"rawText"`
}

// ContinueDocumentRequest is the optional body for
// POST /api/v1/documents/:id/continue. Version is the version the caller last
// saw; omit it to continue whatever is stored.
type ContinueDocumentRequest struct {
	Version *int64 `json:"version,omitempty"`
}

// ContinueDocumentResponse is the success body for a document continuation.
type ContinueDocumentResponse struct {
	Notes       string           `json:"notes"`
	IsComplete  bool             `json:"isComplete"`
	Version     int64            `json:"version"`
	State       string           `json:"state"`
	Attempts    int              `json:"attempts"`
	ActivityLog []activity.Entry `json:"activityLog"`
}
