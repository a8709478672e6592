package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/conduit-lang/rowfilter/compiler/errors"
)

func TestFormatError(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		opts     ErrorOptions
		contains []string
	}{
		{
			name: "basic error",
			opts: ErrorOptions{
				Level:   ErrorLevelError,
				Context: "schema error",
				Problem: "column 'age' has unknown type 'integer'",
			},
			contains: []string{
				"❌",
				"SCHEMA ERROR: column 'age' has unknown type 'integer'",
			},
		},
		{
			name: "error with suggestions",
			opts: ErrorOptions{
				Level:       ErrorLevelError,
				Problem:     "unknown column",
				Suggestions: []string{"age", "name"},
			},
			contains: []string{
				"Did you mean: age, name?",
			},
		},
		{
			name: "error with excerpt and help commands",
			opts: ErrorOptions{
				Level:        ErrorLevelError,
				Problem:      "bad",
				Excerpt:      []string{"age >> 3", "     ^"},
				HelpCommands: []string{"Get help: rowfilter check --help"},
			},
			contains: []string{
				"   age >> 3\n        ^\n",
				"→ Get help: rowfilter check --help",
			},
		},
		{
			name: "warning message",
			opts: ErrorOptions{
				Level:   ErrorLevelWarning,
				Problem: "filter was only partly pushed down",
			},
			contains: []string{"⚠️", "filter was only partly pushed down"},
		},
		{
			name: "info message",
			opts: ErrorOptions{
				Level:   ErrorLevelInfo,
				Problem: "no rows matched",
			},
			contains: []string{"ℹ️", "no rows matched"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.NoColor = true
			result := FormatError(tt.opts)
			for _, expected := range tt.contains {
				if !strings.Contains(result, expected) {
					t.Errorf("FormatError() output missing %q\nGot:\n%s", expected, result)
				}
			}
		})
	}
}

func TestCaret(t *testing.T) {
	tests := []struct {
		expr   string
		offset int
		want   string
	}{
		{"age >> 3", 5, "     ^"},
		{"age", 0, "^"},
		{"age > ", 6, "      ^"},
		{"città = x", 8, "       ^"},
		{"x", 99, " ^"},
		{"x", -1, "^"},
	}

	for _, tt := range tests {
		got := Caret(tt.expr, tt.offset)
		if got[0] != tt.expr || got[1] != tt.want {
			t.Errorf("Caret(%q, %d) = %q; want %q", tt.expr, tt.offset, got[1], tt.want)
		}
	}
}

func TestFilterError(t *testing.T) {
	fe := errors.New(errors.ErrUnknownIdentifier, 10, "Unknown identifier 'contry'").WithExpression("age > 3 & contry = Italy")

	out := FilterError(fe, []string{"age", "country", "name"}, true)

	for _, expected := range []string{
		"INVALID FILTER: Unknown identifier 'contry' (E100)",
		"   age > 3 & contry = Italy\n             ^\n",
		"Did you mean: country?",
		"→ See all columns: rowfilter schema",
	} {
		if !strings.Contains(out, expected) {
			t.Errorf("output missing %q\nGot:\n%s", expected, out)
		}
	}
}

func TestFilterError_OperandHelp(t *testing.T) {
	fe := errors.New(errors.ErrOperandNotApplicable, 8, "").WithExpression("active > true")

	out := FilterError(fe, nil, true)
	if strings.Contains(out, "Did you mean") {
		t.Errorf("unexpected suggestions:\n%s", out)
	}
	if !strings.Contains(out, "rowfilter schema") {
		t.Errorf("missing help command:\n%s", out)
	}
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, ErrorOptions{Problem: "boom", NoColor: true})

	if buf.String() != "❌ boom\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestFormatSuccess(t *testing.T) {
	if got := FormatSuccess("valid", true); got != "✓ valid" {
		t.Errorf("FormatSuccess() = %q", got)
	}

	var buf bytes.Buffer
	WriteSuccess(&buf, "done", true)
	if buf.String() != "✓ done\n" {
		t.Errorf("WriteSuccess() = %q", buf.String())
	}
}

func TestConfigError(t *testing.T) {
	out := ConfigError("database.driver must be set", nil, true)
	if !strings.Contains(out, "CONFIGURATION ERROR: database.driver must be set") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "→ View config: cat rowfilter.yml") {
		t.Errorf("missing help command:\n%s", out)
	}
}

func TestWarningAndInfo(t *testing.T) {
	if out := Warning("careful", []string{"x"}, true); !strings.Contains(out, "⚠️ careful") || !strings.Contains(out, "Did you mean: x?") {
		t.Errorf("unexpected warning:\n%s", out)
	}
	if out := Info("note", true); !strings.Contains(out, "ℹ️ note") {
		t.Errorf("unexpected info:\n%s", out)
	}
}
