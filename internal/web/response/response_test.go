package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/rowfilter/compiler/errors"
)

func TestRenderError(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, http.StatusNotFound, fmt.Errorf("no such column"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no such column", body.Message)
	assert.Equal(t, "not_found", body.Code)
}

func TestRenderFilterError(t *testing.T) {
	fe := errors.New(errors.ErrUnbalancedParen, 8, "Missing ')'").WithExpression("(age = 3")

	rec := httptest.NewRecorder()
	RenderFilterError(rec, fe)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_filter", body["error"])
	assert.Equal(t, "(age = 3", body["expression"])

	filter := body["filter"].(map[string]interface{})
	assert.Equal(t, "E003", filter["code"])
	assert.Equal(t, "lexical", filter["kind"])
	assert.EqualValues(t, 8, filter["offset"])
}

func TestErrorCodeFromStatus(t *testing.T) {
	assert.Equal(t, "bad_request", errorCodeFromStatus(http.StatusBadRequest))
	assert.Equal(t, "request_too_large", errorCodeFromStatus(http.StatusRequestEntityTooLarge))
	assert.Equal(t, "rate_limited", errorCodeFromStatus(http.StatusTooManyRequests))
	assert.Equal(t, "unauthorized", errorCodeFromStatus(http.StatusUnauthorized))
	assert.Equal(t, "error", errorCodeFromStatus(http.StatusTeapot))
}
