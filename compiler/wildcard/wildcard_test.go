package wildcard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern    string
		ignoreCase bool
		input      string
		want       bool
	}{
		{"A?m*s", false, "Arms", true},
		{"A?m*s", false, "Aims", true},
		{"A?m*s", false, "Arm", false},
		{"A?m*s", false, "arms", false},
		{"A?m*s", true, "arms", true},
		{"*", false, "", true},
		{"?", false, "", false},
		{"Ital", false, "Italy", false},
		{"Ital*", false, "Italy", true},
		{"a.b", false, "axb", false},
		{"a.b", false, "a.b", true},
		{"(x)+[y]", false, "(x)+[y]", true},
		{`a\*b`, false, "a*b", true},
		{`a\*b`, false, "axxb", false},
		{`a\?`, false, "a?", true},
		{`a\\`, false, `a\`, true},
		{`trailing\`, false, `trailing\`, true},
		{"multi*line", false, "multi\nline", true},
		{"é?", true, "ÉX", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.input, func(t *testing.T) {
			m, err := Compile(tt.pattern, tt.ignoreCase)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.input))
		})
	}
}

func TestToRegexp(t *testing.T) {
	assert.Equal(t, `(?s)^a.*b.$`, ToRegexp("a*b?", false))
	assert.Equal(t, `(?is)^\$\.$`, ToRegexp("$.", true))
}

func TestHasWildcardsAndLiteral(t *testing.T) {
	assert.True(t, HasWildcards("a*"))
	assert.True(t, HasWildcards("?"))
	assert.False(t, HasWildcards(`a\*`))
	assert.False(t, HasWildcards("plain"))

	assert.Equal(t, "a*", Literal(`a\*`))
	assert.Equal(t, `x\`, Literal(`x\`))
}
