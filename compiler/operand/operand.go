// Package operand recognizes the relational operator symbols of the filter
// language and binds them to right-hand values.
package operand

import "github.com/conduit-lang/rowfilter/compiler/types"

// Symbol is the relational part of an operand, without the case suffix
type Symbol int

const (
	Gt Symbol = iota
	Lt
	Ge
	Le
	Eq
	Ne
	Like
	NotLike
)

var symbolText = map[Symbol]string{
	Gt:      ">",
	Lt:      "<",
	Ge:      ">=",
	Le:      "<=",
	Eq:      "=",
	Ne:      "!=",
	Like:    "~",
	NotLike: "!~",
}

// String returns the symbol as written in expressions
func (s Symbol) String() string {
	if text, ok := symbolText[s]; ok {
		return text
	}
	return "?"
}

// IgnoreCaseSuffix turns any operand into its case-insensitive variant
const IgnoreCaseSuffix = '@'

// Operand is a recognized operator symbol not yet bound to a value.
// IgnoreCase operands compare lower-cased string representations.
type Operand struct {
	Symbol     Symbol
	IgnoreCase bool
}

// String returns the operand as written in expressions
func (o Operand) String() string {
	if o.IgnoreCase {
		return o.Symbol.String() + string(IgnoreCaseSuffix)
	}
	return o.Symbol.String()
}

// Len returns the number of characters the operand occupies
func (o Operand) Len() int {
	return len(o.String())
}

// StringBased reports whether the operand works on string representations
// instead of typed values. Such operands never coerce their right-hand text.
func (o Operand) StringBased() bool {
	return o.IgnoreCase || o.IsWildcard()
}

// IsWildcard reports whether the operand is a glob match
func (o Operand) IsWildcard() bool {
	return o.Symbol == Like || o.Symbol == NotLike
}

// IsOrdering reports whether the operand needs an ordered type
func (o Operand) IsOrdering() bool {
	switch o.Symbol {
	case Gt, Lt, Ge, Le:
		return true
	default:
		return false
	}
}

// IsNegated reports whether the operand is != or !~
func (o Operand) IsNegated() bool {
	return o.Symbol == Ne || o.Symbol == NotLike
}

// SupportsNull reports whether the operand may be used for a null check
func (o Operand) SupportsNull() bool {
	return !o.IsOrdering()
}

// holds evaluates the symbol against a comparison result
func (s Symbol) holds(c int) bool {
	switch s {
	case Gt:
		return c > 0
	case Lt:
		return c < 0
	case Ge:
		return c >= 0
	case Le:
		return c <= 0
	case Eq, Like:
		return c == 0
	case Ne, NotLike:
		return c != 0
	default:
		return false
	}
}

// Recognize returns the longest operand starting with lead, consulting up to
// two following characters. Pass 0 for characters that are absent or escaped.
func Recognize(lead, next1, next2 rune) (Operand, bool) {
	var sym Symbol
	suffix := next1

	switch lead {
	case '>':
		sym = Gt
		if next1 == '=' {
			sym, suffix = Ge, next2
		}
	case '<':
		sym = Lt
		if next1 == '=' {
			sym, suffix = Le, next2
		}
	case '=':
		sym = Eq
	case '~':
		sym = Like
	case '!':
		switch next1 {
		case '=':
			sym = Ne
		case '~':
			sym = NotLike
		default:
			return Operand{}, false
		}
		suffix = next2
	default:
		return Operand{}, false
	}

	return Operand{Symbol: sym, IgnoreCase: suffix == IgnoreCaseSuffix}, true
}

// All returns every operand, case-sensitive variants first
func All() []Operand {
	out := make([]Operand, 0, 2*len(symbolText))
	for _, ic := range []bool{false, true} {
		for s := Gt; s <= NotLike; s++ {
			out = append(out, Operand{Symbol: s, IgnoreCase: ic})
		}
	}
	return out
}

// Typer supplies the type knowledge operands need
type Typer interface {
	Ordered(t types.Type) bool
	Build(t types.Type, text string) (interface{}, error)
	Compare(t types.Type, a, b interface{}) (int, bool)
}
