package lexer

import (
	"unicode/utf8"

	"github.com/conduit-lang/rowfilter/compiler/errors"
)

// Lexer resolves escapes and classifies the characters of a filter expression.
// The parser drives recognition character by character, so the lexer stops at
// classification instead of building tokens.
type Lexer struct {
	source  string // Expression being scanned
	current int    // Current byte offset in source
	chars   []Char // Collected characters
}

// New creates a new Lexer for the given expression
func New(source string) *Lexer {
	return &Lexer{
		source: source,
		chars:  make([]Char, 0, len(source)),
	}
}

// Scan classifies every character of the source. The only lexical failure at
// this stage is a backslash with nothing after it.
func (l *Lexer) Scan() ([]Char, error) {
	for !l.isAtEnd() {
		start := l.current
		r := l.advance()

		if r != '\\' {
			l.chars = append(l.chars, Char{
				Rune:   r,
				Kind:   kindOf(r),
				Offset: start,
				Width:  l.current - start,
			})
			continue
		}

		if l.isAtEnd() {
			return nil, errors.New(errors.ErrDanglingEscape, start, "").WithExpression(l.source)
		}

		next, _ := utf8.DecodeRuneInString(l.source[l.current:])
		if IsEscapeTarget(next) {
			l.advance()
			l.chars = append(l.chars, Char{
				Rune:    next,
				Kind:    CHAR_TEXT,
				Offset:  start,
				Width:   l.current - start,
				Escaped: true,
			})
			continue
		}

		// Not an escape target: the backslash stays as plain text
		l.chars = append(l.chars, Char{
			Rune:   '\\',
			Kind:   CHAR_TEXT,
			Offset: start,
			Width:  1,
		})
	}

	return l.chars, nil
}

// isAtEnd checks if we've reached the end of the source
func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

// advance consumes and returns the current rune
func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.current:])
	l.current += size
	return r
}

// Stream is a read cursor over scanned characters used by the parser
type Stream struct {
	source string
	chars  []Char
	pos    int
}

// NewStream scans source and returns a cursor positioned at its first character
func NewStream(source string) (*Stream, error) {
	chars, err := New(source).Scan()
	if err != nil {
		return nil, err
	}
	return &Stream{source: source, chars: chars}, nil
}

// Source returns the original expression
func (s *Stream) Source() string {
	return s.source
}

// AtEnd reports whether every character has been consumed
func (s *Stream) AtEnd() bool {
	return s.pos >= len(s.chars)
}

// Peek returns the current character without consuming it. At the end of the
// stream it returns a CHAR_EOF positioned at the length of the source.
func (s *Stream) Peek() Char {
	return s.PeekAt(0)
}

// PeekAt returns the character n positions ahead of the cursor
func (s *Stream) PeekAt(n int) Char {
	i := s.pos + n
	if i < 0 || i >= len(s.chars) {
		return Char{Kind: CHAR_EOF, Offset: len(s.source)}
	}
	return s.chars[i]
}

// Advance consumes and returns the current character
func (s *Stream) Advance() Char {
	c := s.Peek()
	if !s.AtEnd() {
		s.pos++
	}
	return c
}

// Skip consumes n characters
func (s *Stream) Skip(n int) {
	s.pos += n
	if s.pos > len(s.chars) {
		s.pos = len(s.chars)
	}
}

// SkipSpaces consumes unescaped whitespace
func (s *Stream) SkipSpaces() {
	for s.Peek().Kind == CHAR_SPACE {
		s.pos++
	}
}

// Offset returns the byte offset of the current character
func (s *Stream) Offset() int {
	return s.Peek().Offset
}

// Mark returns the cursor position for a later Reset
func (s *Stream) Mark() int {
	return s.pos
}

// Reset moves the cursor back to a position returned by Mark
func (s *Stream) Reset(mark int) {
	s.pos = mark
}
