package continuation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/studyforge/notesd/internal/generation"
)

func TestNewError_Messages(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindAuth, MsgUnauthorized},
		{KindConfiguration, MsgConfiguration},
		{KindRateLimited, MsgRateLimited},
		{KindQuotaExceeded, MsgQuotaExceeded},
		{KindGatewayFailure, MsgGatewayFailure},
		{KindConflict, MsgConflict},
		{KindCanceled, MsgCanceled},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := NewError(tt.kind, errors.New("internal detail"))
			assert.Equal(t, tt.want, err.Message)
			assert.Equal(t, tt.want, UserMessage(err))
		})
	}
}

func TestNewError_ValidationUsesCause(t *testing.T) {
	err := NewError(KindValidation, ErrNotesRequired)
	assert.Equal(t, "currentNotes is required", err.Message)
	assert.ErrorIs(t, err, ErrNotesRequired)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("notes service: %w", NewError(KindConflict, nil))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, MsgGatewayFailure, UserMessage(errors.New("plain")))
}

func TestGatewayErrorMapping(t *testing.T) {
	assert.Equal(t, KindRateLimited, gatewayError(&generation.GatewayError{Kind: generation.KindRateLimited}).Kind)
	assert.Equal(t, KindQuotaExceeded, gatewayError(&generation.GatewayError{Kind: generation.KindQuotaExceeded}).Kind)
	assert.Equal(t, KindGatewayFailure, gatewayError(&generation.GatewayError{Kind: generation.KindUnclassified}).Kind)
	assert.Equal(t, KindGatewayFailure, gatewayError(errors.New("boom")).Kind)
}

func TestState(t *testing.T) {
	assert.Equal(t, "already_complete", StateAlreadyComplete.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.True(t, StateCompleted.IsComplete())
	assert.False(t, StateExhausted.IsComplete())
	assert.False(t, StateAborted.IsComplete())

	text, err := StateAborted.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "aborted", string(text))
}

func TestRuneHelpers(t *testing.T) {
	assert.Equal(t, "llo", tailRunes("hello", 3))
	assert.Equal(t, "hi", tailRunes("hi", 5))
	assert.Equal(t, "ßü", tailRunes("aßü", 2))
	assert.Equal(t, "aß", truncateRunes("aßü", 2))
	assert.Equal(t, "ab", truncateRunes("ab", 10))
}
