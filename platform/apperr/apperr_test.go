package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKindFollowsWrappedChain(t *testing.T) {
	base := New(KindConflict, "identity key already registered")
	wrapped := fmt.Errorf("create client: %w", base)

	assert.Equal(t, KindConflict, GetKind(wrapped))
	assert.True(t, Is(wrapped, KindConflict))
	assert.False(t, Is(errors.New("plain"), KindConflict))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:    http.StatusNotFound,
		KindValidation:  http.StatusBadRequest,
		KindConflict:    http.StatusConflict,
		KindInternal:    http.StatusInternalServerError,
		KindUnavailable: http.StatusServiceUnavailable,
		KindUnknown:     http.StatusBadRequest,
	}
	for kind, status := range cases {
		assert.Equal(t, status, New(kind, "x").HTTPStatus(), kind.String())
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindUnavailable, "client store unavailable", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "client store unavailable: connection refused", err.Error())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Unavailable("client store unavailable")))
	assert.True(t, Retryable(errors.New("connection reset")))
	assert.True(t, Retryable(New(KindConflict, "identity key already registered")))
	assert.False(t, Retryable(NotFound("lead not found")))
	assert.False(t, Retryable(Validation("contact inactive")))
	assert.False(t, Retryable(New(KindInternal, "billing invariant violated")))
}
