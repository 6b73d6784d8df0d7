package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"glenn-svanberg-backend/internal/apperr"
)

func TestKindOf_SurvivesWrapping(t *testing.T) {
	err := apperr.Validation("prompt is required")
	wrapped := fmt.Errorf("handling request: %w", err)

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(wrapped))
	assert.True(t, apperr.IsKind(wrapped, apperr.KindValidation))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(errors.New("boom")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Wrap(apperr.KindUpstream, "generation request failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "generation request failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(apperr.Validation("bad prompt")))
	assert.Equal(t, http.StatusNotFound, apperr.HTTPStatus(apperr.NotFound("no reference images")))
	assert.Equal(t, http.StatusGatewayTimeout, apperr.HTTPStatus(apperr.Timeout("timed out")))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(apperr.Configuration("missing key")))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(apperr.Storage("upload failed")))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(apperr.Upstream("provider 500")))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(errors.New("boom")))
}
