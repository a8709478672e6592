package operand

import (
	"strings"

	"github.com/conduit-lang/rowfilter/compiler/errors"
	"github.com/conduit-lang/rowfilter/compiler/types"
	"github.com/conduit-lang/rowfilter/compiler/wildcard"
)

// Cell gives an operator access to one column of one row
type Cell interface {
	// Value returns the typed value, nil when absent
	Value() interface{}
	// Text returns the rendered display string
	Text() string
}

// Operator is an operand bound to a right-hand value, ready to test cells.
// Operators are immutable and safe for concurrent use.
type Operator struct {
	operand Operand
	typ     types.Type
	typer   Typer
	value   interface{}       // Coerced right-hand value, comparison family
	text    string            // Right-hand text as written
	folded  string            // Lower-cased text for case-insensitive comparisons
	matcher *wildcard.Matcher // Compiled glob for ~ and !~
	null    bool
}

// Operand returns the operand the operator was built from
func (o *Operator) Operand() Operand {
	return o.operand
}

// Type returns the declared type of the left-hand column
func (o *Operator) Type() types.Type {
	return o.typ
}

// Value returns the coerced right-hand value; nil for null checks and
// string-based operands
func (o *Operator) Value() interface{} {
	return o.value
}

// Text returns the right-hand text as written in the expression
func (o *Operator) Text() string {
	return o.text
}

// Pattern returns the glob a wildcard operator matches with, or the text for
// every other operator
func (o *Operator) Pattern() string {
	if o.matcher != nil {
		return o.matcher.Pattern()
	}
	return o.text
}

// IsNullCheck reports whether the operator tests for absence
func (o *Operator) IsNullCheck() bool {
	return o.null
}

// Apply tests a cell
func (o *Operator) Apply(c Cell) bool {
	if o.null {
		absent := c.Value() == nil || strings.TrimSpace(c.Text()) == ""
		return absent != o.operand.IsNegated()
	}
	if o.operand.StringBased() {
		return o.applyText(c.Text())
	}
	return o.applyValue(c.Value())
}

// ApplyText tests a rendered string, as the any-column leaf does
func (o *Operator) ApplyText(s string) bool {
	if o.null {
		return (strings.TrimSpace(s) == "") != o.operand.IsNegated()
	}
	if o.operand.StringBased() {
		return o.applyText(s)
	}
	return o.applyValue(s)
}

func (o *Operator) applyText(s string) bool {
	if o.matcher != nil {
		return o.matcher.Match(s) != o.operand.IsNegated()
	}
	return o.operand.Symbol.holds(strings.Compare(strings.ToLower(s), o.folded))
}

func (o *Operator) applyValue(v interface{}) bool {
	c, ok := o.typer.Compare(o.typ, v, o.value)
	if !ok {
		return o.operand.Symbol == Ne
	}
	return o.operand.Symbol.holds(c)
}

// Factory recognizes operands and builds operators over a type factory
type Factory struct {
	typer      Typer
	ignoreCase bool
}

// NewFactory creates an operand factory backed by typer
func NewFactory(typer Typer) *Factory {
	return &Factory{typer: typer}
}

// SetIgnoreCase makes the default operand for strings case-insensitive
func (f *Factory) SetIgnoreCase(ignoreCase bool) {
	f.ignoreCase = ignoreCase
}

// IgnoreCase returns the global ignore-case flag
func (f *Factory) IgnoreCase() bool {
	return f.ignoreCase
}

// Match recognizes the operand starting with lead. See Recognize.
func (f *Factory) Match(lead, next1, next2 rune) (Operand, bool) {
	return Recognize(lead, next1, next2)
}

// Default returns the operand used when an expression names none: a glob
// match for strings, equality for everything else.
func (f *Factory) Default(t types.Type) Operand {
	if t.IsString() {
		return Operand{Symbol: Like, IgnoreCase: f.ignoreCase}
	}
	return Operand{Symbol: Eq}
}

// AppliesTo reports whether the operand can be used on a column of type t
func (f *Factory) AppliesTo(o Operand, t types.Type) bool {
	if o.StringBased() || !o.IsOrdering() {
		return true
	}
	return f.typer.Ordered(t)
}

// Bind coerces text to t and binds it to the operand. String-based operands
// keep the text as written and wildcard operands read it as a glob. Coercion
// errors are positioned relative to text.
func (f *Factory) Bind(o Operand, t types.Type, text string) (*Operator, error) {
	return f.BindPattern(o, t, text, text)
}

// BindPattern is Bind with a separate glob for wildcard operands. The parser
// passes the text with escapes resolved and a pattern in which backslashes
// escaped in the expression are kept as literal \\ pairs.
func (f *Factory) BindPattern(o Operand, t types.Type, text, pattern string) (*Operator, error) {
	op := &Operator{operand: o, typ: t, typer: f.typer, text: text}

	switch {
	case o.IsWildcard():
		m, err := wildcard.Compile(pattern, o.IgnoreCase)
		if err != nil {
			return nil, errors.Newf(errors.ErrInvalidValue, 0, "Invalid pattern '%s'", text).WithCause(err)
		}
		op.matcher = m
	case o.IgnoreCase:
		op.folded = strings.ToLower(text)
	default:
		v, err := f.typer.Build(t, text)
		if err != nil {
			return nil, err
		}
		op.value = v
	}

	return op, nil
}

// BindNull builds a null check. Only equality and wildcard operands qualify.
func (f *Factory) BindNull(o Operand, t types.Type) (*Operator, error) {
	if !o.SupportsNull() {
		return nil, errors.Newf(errors.ErrNullCheckNotSupported, 0, "Operand '%s' cannot be used for a null check", o)
	}
	return &Operator{operand: o, typ: t, typer: f.typer, null: true}, nil
}

// Compare applies the operand to two values of type t, as column-to-column
// comparisons do
func (f *Factory) Compare(o Operand, t types.Type, left, right interface{}) bool {
	c, ok := f.typer.Compare(t, left, right)
	if !ok {
		return o.Symbol == Ne
	}
	return o.Symbol.holds(c)
}
