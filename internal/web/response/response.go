// Package response renders JSON bodies and errors for the filter API
package response

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/conduit-lang/rowfilter/compiler/errors"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// FilterErrorResponse reports an expression that failed to parse
type FilterErrorResponse struct {
	Error      string              `json:"error"`
	Message    string              `json:"message"`
	Expression string              `json:"expression"`
	Filter     *errors.FilterError `json:"filter"`
}

// RenderJSON writes v as JSON with the given status
func RenderJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// RenderError renders a standard error response
func RenderError(w http.ResponseWriter, statusCode int, err error) {
	RenderJSON(w, statusCode, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    errorCodeFromStatus(statusCode),
	})
}

// RenderFilterError renders a parse failure as 422 with its code and offset
func RenderFilterError(w http.ResponseWriter, fe *errors.FilterError) {
	RenderJSON(w, http.StatusUnprocessableEntity, &FilterErrorResponse{
		Error:      "invalid_filter",
		Message:    fe.Message,
		Expression: fe.Expression,
		Filter:     fe,
	})
}

// RenderBadRequest renders a 400 Bad Request error
func RenderBadRequest(w http.ResponseWriter, message string) {
	RenderError(w, http.StatusBadRequest, fmt.Errorf("%s", message))
}

// RenderNotFound renders a 404 Not Found error
func RenderNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RenderError(w, http.StatusNotFound, fmt.Errorf("%s", message))
}

// RenderInternalError renders a 500 Internal Server Error without exposing
// the underlying error
func RenderInternalError(w http.ResponseWriter) {
	RenderError(w, http.StatusInternalServerError, fmt.Errorf("Internal server error"))
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	case http.StatusGatewayTimeout:
		return "gateway_timeout"
	default:
		return "error"
	}
}
