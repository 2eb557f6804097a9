package validation_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/stagehand/internal/domain"
	domainerrors "github.com/listenupapp/stagehand/internal/errors"
	"github.com/listenupapp/stagehand/internal/validation"
)

type prepareBody struct {
	ExternalKey string `json:"external_key" validate:"required,catalogkey"`
	Intent      string `json:"intent" validate:"required,oneof=rate review add_to_list"`
	Session     string `json:"-"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	for _, key := range []string{"OL27448W", "/works/OL27448W", "W1"} {
		assert.NoError(t, v.Validate(prepareBody{ExternalKey: key, Intent: "rate"}), key)
	}
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       prepareBody
		wantField string
		wantMsg   string
	}{
		{"missing key", prepareBody{Intent: "rate"}, "external_key", "is required"},
		{"key with spaces", prepareBody{ExternalKey: "The Hobbit", Intent: "rate"}, "external_key", "external catalog key"},
		{"key too long", prepareBody{ExternalKey: strings.Repeat("A", 80), Intent: "rate"}, "external_key", "external catalog key"},
		{"unknown intent", prepareBody{ExternalKey: "OL1W", Intent: "like"}, "intent", "must be one of: rate review add_to_list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			fields, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, fields[tt.wantField], tt.wantMsg)
		})
	}
}

func TestValidator_NumericBounds(t *testing.T) {
	v := validation.New()

	err := v.Validate(domain.ActionPayload{Rating: 9})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	fields := domainErr.Details.(map[string]string)
	assert.Equal(t, "must be at most 5", fields["rating"])
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(prepareBody{Intent: "rate"})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "external_key")
	assert.NotContains(t, err.Error(), "ExternalKey")
}
