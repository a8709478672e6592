package lexer

import "fmt"

// CharKind classifies a character of a filter expression
type CharKind int

const (
	// Special kinds
	CHAR_EOF CharKind = iota

	// Literal text, including every escaped character
	CHAR_TEXT

	// Unescaped whitespace
	CHAR_SPACE

	// Structural characters
	CHAR_LPAREN // (
	CHAR_RPAREN // )
	CHAR_AND    // &
	CHAR_OR     // |
	CHAR_QUOTE  // "
)

// String returns the string representation of the char kind
func (k CharKind) String() string {
	switch k {
	case CHAR_EOF:
		return "EOF"
	case CHAR_TEXT:
		return "TEXT"
	case CHAR_SPACE:
		return "SPACE"
	case CHAR_LPAREN:
		return "LPAREN"
	case CHAR_RPAREN:
		return "RPAREN"
	case CHAR_AND:
		return "AND"
	case CHAR_OR:
		return "OR"
	case CHAR_QUOTE:
		return "QUOTE"
	default:
		return fmt.Sprintf("CharKind(%d)", k)
	}
}

// Char is one scanned character of the source expression
type Char struct {
	Rune    rune
	Kind    CharKind
	Offset  int  // Byte offset in the source; for escapes, the offset of the backslash
	Width   int  // Bytes consumed in the source, backslash included
	Escaped bool // True when the character was preceded by a backslash
}

// String returns a string representation of the char for debugging
func (c Char) String() string {
	if c.Escaped {
		return fmt.Sprintf("%s(\\%q)@%d", c.Kind, c.Rune, c.Offset)
	}
	return fmt.Sprintf("%s(%q)@%d", c.Kind, c.Rune, c.Offset)
}

// IsStructural reports whether the char ends a filter leaf
func (c Char) IsStructural() bool {
	switch c.Kind {
	case CHAR_LPAREN, CHAR_RPAREN, CHAR_AND, CHAR_OR, CHAR_EOF:
		return true
	default:
		return false
	}
}

// escapeTargets lists the characters a backslash turns into literal text.
// Any other character after a backslash keeps the backslash.
var escapeTargets = map[rune]bool{
	'(':  true,
	')':  true,
	'&':  true,
	'|':  true,
	'\\': true,
	' ':  true,
	'"':  true,
}

// IsEscapeTarget reports whether a backslash before r escapes it
func IsEscapeTarget(r rune) bool {
	return escapeTargets[r]
}

// kindOf classifies an unescaped rune
func kindOf(r rune) CharKind {
	switch r {
	case '(':
		return CHAR_LPAREN
	case ')':
		return CHAR_RPAREN
	case '&':
		return CHAR_AND
	case '|':
		return CHAR_OR
	case '"':
		return CHAR_QUOTE
	case ' ', '\t', '\r', '\n':
		return CHAR_SPACE
	default:
		return CHAR_TEXT
	}
}
