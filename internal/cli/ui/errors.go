package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/conduit-lang/rowfilter/compiler/errors"
)

// ErrorLevel represents the severity of an error message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level   ErrorLevel
	Context string
	Problem string
	// Excerpt is printed verbatim under the problem, e.g. the expression
	// with a caret line
	Excerpt      []string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates a standardized error message with suggestions and help commands
//
// Example output:
//
//	❌ INVALID FILTER: Unknown identifier 'agee'
//	   agee > 30
//	   ^
//
//	   Did you mean: age?
//
//	   → See all columns: rowfilter schema
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string

	switch opts.Level {
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "⚠️"
	case ErrorLevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "ℹ️"
	default:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "❌"
	}

	if opts.NoColor {
		headerColor.DisableColor()
		bodyColor.DisableColor()
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	for _, line := range opts.Excerpt {
		fmt.Fprintf(&b, "   %s\n", line)
	}

	if opts.Consequence != "" {
		b.WriteString("\n")
		bodyColor.Fprintf(&b, "   %s\n", opts.Consequence)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// Caret returns the expression and a line pointing at the byte offset. The
// pointer is placed by rune count so multi-byte text stays aligned.
func Caret(expr string, offset int) []string {
	if offset < 0 {
		offset = 0
	}
	if offset > len(expr) {
		offset = len(expr)
	}
	return []string{expr, strings.Repeat(" ", utf8.RuneCountInString(expr[:offset])) + "^"}
}

// FilterError formats a parse failure with a caret under the offending text.
// Unknown identifiers get suggestions drawn from names.
func FilterError(fe *errors.FilterError, names []string, noColor bool) string {
	opts := ErrorOptions{
		Level:   ErrorLevelError,
		Context: "INVALID FILTER",
		Problem: fmt.Sprintf("%s (%s)", fe.Message, fe.Code),
		Excerpt: Caret(fe.Expression, fe.Offset),
		NoColor: noColor,
	}

	switch fe.Code {
	case errors.ErrUnknownIdentifier:
		opts.Suggestions = FindSimilar(wordAt(fe.Expression, fe.Offset), names, nil)
		opts.HelpCommands = []string{"See all columns: rowfilter schema"}
	case errors.ErrOperandNotApplicable, errors.ErrNullCheckNotSupported:
		opts.HelpCommands = []string{"See the operands each column accepts: rowfilter schema"}
	}

	return FormatError(opts)
}

// wordAt returns the run of identifier text starting at offset
func wordAt(expr string, offset int) string {
	if offset < 0 || offset >= len(expr) {
		return ""
	}
	rest := expr[offset:]
	end := strings.IndexAny(rest, " \t=!<>~()&|")
	if end < 0 {
		return rest
	}
	return rest[:end]
}

// ConfigError creates a standardized configuration error
func ConfigError(message string, suggestions []string, noColor bool) string {
	opts := ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "CONFIGURATION ERROR",
		Problem:     message,
		Suggestions: suggestions,
		HelpCommands: []string{
			"View config: cat rowfilter.yml",
			"Get help: rowfilter --help",
		},
		NoColor: noColor,
	}
	return FormatError(opts)
}

// Warning creates a standardized warning message
func Warning(message string, suggestions []string, noColor bool) string {
	opts := ErrorOptions{
		Level:       ErrorLevelWarning,
		Problem:     message,
		Suggestions: suggestions,
		NoColor:     noColor,
	}
	return FormatError(opts)
}

// Info creates a standardized info message
func Info(message string, noColor bool) string {
	opts := ErrorOptions{
		Level:   ErrorLevelInfo,
		Problem: message,
		NoColor: noColor,
	}
	return FormatError(opts)
}
