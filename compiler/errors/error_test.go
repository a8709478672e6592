package errors

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultMessage(t *testing.T) {
	err := New(ErrUnbalancedParen, 4, "")
	assert.Equal(t, "Unbalanced parenthesis", err.Message)
	assert.Equal(t, 4, err.Offset)
	assert.Equal(t, "offset 4: E003: Unbalanced parenthesis", err.Error())
}

func TestKindForCode(t *testing.T) {
	tests := []struct {
		code string
		want Kind
	}{
		{ErrUnexpectedCharacter, Lexical},
		{ErrDanglingEscape, Lexical},
		{ErrUnknownIdentifier, Semantic},
		{ErrOperandNotApplicable, Semantic},
		{ErrInvalidValue, Coercion},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, KindForCode(tt.code))
		})
	}
}

func TestShiftAndCause(t *testing.T) {
	cause := fmt.Errorf("strconv: bad digit")
	err := New(ErrInvalidValue, 0, "bad").WithCause(cause).Shift(6)

	assert.Equal(t, 6, err.Offset)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, Coercion, err.Kind())
}

func TestAsFilterError(t *testing.T) {
	wrapped := fmt.Errorf("parse failed: %w", New(ErrIncompleteFilter, 3, ""))

	fe, ok := AsFilterError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrIncompleteFilter, fe.Code)

	_, ok = AsFilterError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestPointer(t *testing.T) {
	err := New(ErrUnexpectedCharacter, 4, "").WithExpression("age >> 3")
	assert.Equal(t, "age >> 3\n    ^", err.Pointer())
	assert.Equal(t, 5, err.Column())

	past := New(ErrIncompleteFilter, 6, "").WithExpression("age > ")
	assert.Equal(t, "age > \n      ^", past.Pointer())
}

func TestMarshalJSON(t *testing.T) {
	err := New(ErrUnknownIdentifier, 0, "Unknown identifier 'agee'")

	data, mErr := json.Marshal(err)
	require.NoError(t, mErr)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "semantic", decoded["kind"])
	assert.Equal(t, "E100", decoded["code"])
	assert.Equal(t, float64(0), decoded["offset"])
}
