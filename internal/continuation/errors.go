package continuation

import (
	"context"
	"errors"
	"fmt"

	"github.com/studyforge/notesd/internal/generation"
)

// Kind classifies a failed run.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuth           Kind = "auth"
	KindConfiguration  Kind = "configuration"
	KindRateLimited    Kind = "rate_limited"
	KindQuotaExceeded  Kind = "quota_exceeded"
	KindGatewayFailure Kind = "gateway_failure"
	KindConflict       Kind = "conflict"
	KindCanceled       Kind = "canceled"
)

// User-facing messages. Upstream error text never appears in them.
const (
	MsgUnauthorized   = "Unauthorized"
	MsgRateLimited    = "Rate limit exceeded. Please try again in a moment."
	MsgQuotaExceeded  = "AI credits exhausted. Please add credits to your workspace."
	MsgGatewayFailure = "Failed to continue notes generation"
	MsgConfiguration  = "Notes generation is not configured"
	MsgConflict       = "Document was modified by another request; reload and try again"
	MsgCanceled       = "Request was cancelled"
)

// Validation errors.
var (
	ErrNotesRequired  = errors.New("currentNotes is required")
	ErrNotesTooLong   = errors.New("currentNotes exceeds maximum length")
	ErrSourceRequired = errors.New("rawText is required")
	ErrSourceTooLong  = errors.New("rawText exceeds maximum length")
)

// Error is a terminal failure of a run. Message is safe to show to users;
// Err holds the underlying cause for server-side logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error with the standard message for kind. Validation
// errors use the cause's text since it describes the caller's own input.
func NewError(kind Kind, err error) *Error {
	msg := ""
	switch kind {
	case KindValidation:
		if err != nil {
			msg = err.Error()
		} else {
			msg = "Invalid request"
		}
	case KindAuth:
		msg = MsgUnauthorized
	case KindConfiguration:
		msg = MsgConfiguration
	case KindRateLimited:
		msg = MsgRateLimited
	case KindQuotaExceeded:
		msg = MsgQuotaExceeded
	case KindConflict:
		msg = MsgConflict
	case KindCanceled:
		msg = MsgCanceled
	default:
		msg = MsgGatewayFailure
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns the message to show for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return MsgGatewayFailure
}

// gatewayError maps a hard completion-service error to a run error.
func gatewayError(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewError(KindCanceled, err)
	case errors.Is(err, generation.ErrRateLimited):
		return NewError(KindRateLimited, err)
	case errors.Is(err, generation.ErrQuotaExceeded):
		return NewError(KindQuotaExceeded, err)
	default:
		return NewError(KindGatewayFailure, err)
	}
}
