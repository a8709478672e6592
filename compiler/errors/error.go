package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Kind classifies a FilterError by the stage that rejected the expression
type Kind int

const (
	// Lexical covers unbalanced parentheses, misplaced operators and dangling escapes
	Lexical Kind = iota
	// Semantic covers unknown identifiers and operand/type mismatches
	Semantic
	// Coercion covers value text that cannot become the declared type
	Coercion
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Semantic:
		return "semantic"
	case Coercion:
		return "coercion"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Kind
func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// FilterError is the single error type produced while parsing a filter expression.
// Offset is the byte offset inside Expression where the problem was detected.
type FilterError struct {
	Code       string // "E001", "E100", ...
	Message    string // Human-readable message
	Offset     int    // Byte offset into Expression
	Expression string // Full expression being parsed
	Cause      error  // Optional underlying error (coercion failures)
}

// New creates a FilterError for the given code. An empty message picks the default
// message registered for the code.
func New(code string, offset int, message string) *FilterError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &FilterError{
		Code:    code,
		Message: message,
		Offset:  offset,
	}
}

// Newf creates a FilterError with a formatted message
func Newf(code string, offset int, format string, args ...interface{}) *FilterError {
	return New(code, offset, fmt.Sprintf(format, args...))
}

// Error implements the error interface
func (e *FilterError) Error() string {
	return fmt.Sprintf("offset %d: %s: %s", e.Offset, e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *FilterError) Unwrap() error {
	return e.Cause
}

// Kind returns the taxonomy bucket of the error code
func (e *FilterError) Kind() Kind {
	return KindForCode(e.Code)
}

// WithExpression records the expression the offset refers to
func (e *FilterError) WithExpression(expr string) *FilterError {
	e.Expression = expr
	return e
}

// WithCause attaches the underlying error
func (e *FilterError) WithCause(cause error) *FilterError {
	e.Cause = cause
	return e
}

// Shift moves the offset by base. Coercion callers report offsets relative
// to the value text and shift them into expression coordinates.
func (e *FilterError) Shift(base int) *FilterError {
	e.Offset += base
	return e
}

// MarshalJSON implements json.Marshaler
func (e *FilterError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    Kind   `json:"kind"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Offset  int    `json:"offset"`
	}{
		Kind:    e.Kind(),
		Code:    e.Code,
		Message: e.Message,
		Offset:  e.Offset,
	})
}

// AsFilterError unwraps err looking for a *FilterError
func AsFilterError(err error) (*FilterError, bool) {
	var fe *FilterError
	if stderrors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
