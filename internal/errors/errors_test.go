package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := StaleSession("pending action expired")

	assert.ErrorIs(t, err, ErrStaleSession)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestError_IsThroughWrapping(t *testing.T) {
	base := UpstreamUnavailable("work", "OL1W", stderrors.New("dial tcp: timeout"))
	wrapped := fmt.Errorf("prepare: %w", base)

	assert.ErrorIs(t, wrapped, ErrUpstreamUnavailable)
	assert.Equal(t, CodeUpstreamUnavailable, CodeOf(wrapped))
}

func TestNotFoundUpstream_CarriesEntityRef(t *testing.T) {
	cause := stderrors.New("404")
	err := NotFoundUpstream("contributor", "OL9A", cause)

	require.IsType(t, EntityRef{}, err.Details)
	ref := err.Details.(EntityRef)
	assert.Equal(t, "contributor", ref.Kind)
	assert.Equal(t, "OL9A", ref.ExternalKey)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "OL9A")
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeNotFoundUpstream, http.StatusNotFound},
		{CodeStaleSession, http.StatusConflict},
		{CodeConflict, http.StatusConflict},
		{CodeValidation, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeUpstreamUnavailable, http.StatusBadGateway},
		{CodeStoreFailure, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestCode_Retryable(t *testing.T) {
	assert.True(t, CodeUpstreamUnavailable.Retryable())
	assert.False(t, CodeNotFoundUpstream.Retryable())
	assert.False(t, CodeStoreFailure.Retryable())
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("boom")))
}

func TestWithDetails_DoesNotMutateSentinel(t *testing.T) {
	detailed := ErrStaleSession.WithDetails(EntityRef{Kind: "work", ID: "work-1"})

	assert.Nil(t, ErrStaleSession.Details)
	assert.NotNil(t, detailed.Details)
	assert.ErrorIs(t, detailed, ErrStaleSession)
}
