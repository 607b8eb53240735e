// Package completion decides whether a generated notes document is finished.
//
// Generated notes end with a reserved marker line. A document that lacks the
// marker was truncated by the model and needs continuation. The marker is
// never shown to users or persisted, so callers strip it once a document is
// known to be complete.
package completion

import (
	"strings"
	"unicode"
)

// Marker is the terminal line the model must emit when the notes are done.
const Marker = "END_OF_NOTES"

// Detector reports whether text is a finished notes document.
type Detector func(text string) bool

// IsComplete returns true if the last non-blank line of text is exactly Marker.
// Surrounding whitespace on that line is ignored; the comparison is case-sensitive.
func IsComplete(text string) bool {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if !strings.HasSuffix(trimmed, Marker) {
		return false
	}
	return strings.TrimSpace(lastLine(trimmed)) == Marker
}

// StripMarker removes trailing marker lines and the blank lines before them,
// then trims surrounding whitespace. Text without a trailing marker is returned
// unchanged. StripMarker(StripMarker(x)) == StripMarker(x) for every x.
func StripMarker(text string) string {
	if !IsComplete(text) {
		return text
	}

	out := text
	for IsComplete(out) {
		trimmed := strings.TrimRightFunc(out, unicode.IsSpace)
		idx := strings.LastIndexByte(trimmed, '\n')
		if idx < 0 {
			out = ""
			break
		}
		out = trimmed[:idx]
	}
	return strings.TrimSpace(out)
}

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
