package parser

import (
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/compiler/ast"
	"github.com/conduit-lang/rowfilter/compiler/errors"
	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/lexer"
	"github.com/conduit-lang/rowfilter/compiler/operand"
	"github.com/conduit-lang/rowfilter/compiler/types"
)

// anyColumnType is the type the any-column leaf coerces its text to
var anyColumnType = types.Of(types.String)

// leafHead is the identifier/operand part of a leaf
type leafHead struct {
	name       string
	nameOffset int
	operand    operand.Operand
	opOffset   int
	found      bool
}

// leafValue is the operand-text part of a leaf. pattern is the same text as
// a glob: escaped backslashes stay escaped so they match themselves.
type leafValue struct {
	text    string
	pattern string
	offset  int
	quoted  bool
}

// parseLeaf parses [identifier] [operand] operand-text
func (s *state) parseLeaf() (ast.Node, error) {
	start := s.stream.Offset()

	head := s.scanHead()

	var target *ident.Identifier
	if head.found && head.name != "" {
		id, err := s.resolve(head.name, head.nameOffset)
		if err != nil {
			return nil, err
		}
		target = &id
	} else {
		target = s.def
	}

	value, err := s.scanValue()
	if err != nil {
		return nil, err
	}

	if target == nil {
		return s.anyColumnLeaf(head, value, start)
	}
	return s.columnLeaf(*target, head, value, start)
}

// scanHead looks for an operand before the next structural character. The
// characters before it, trimmed, name the identifier. When no operand is
// found the stream is rewound so the whole leaf is read as operand text.
func (s *state) scanHead() leafHead {
	mark := s.stream.Mark()
	var name []lexer.Char

	if s.stream.Peek().Kind == lexer.CHAR_QUOTE {
		return leafHead{}
	}

	for {
		c := s.stream.Peek()
		if c.IsStructural() {
			break
		}
		if isOperandChar(c) {
			if o, ok := s.parser.operands.Match(c.Rune, s.operandRune(1), s.operandRune(2)); ok {
				s.stream.Skip(o.Len())
				text, offset := trimChars(name, c.Offset)
				return leafHead{
					name:       text,
					nameOffset: offset,
					operand:    o,
					opOffset:   c.Offset,
					found:      true,
				}
			}
		}
		name = append(name, s.stream.Advance())
	}

	s.stream.Reset(mark)
	return leafHead{}
}

// operandRune returns the n-th character ahead when it can continue an
// operand, 0 otherwise
func (s *state) operandRune(n int) rune {
	for i := 1; i <= n; i++ {
		if !isOperandChar(s.stream.PeekAt(i)) {
			return 0
		}
	}
	return s.stream.PeekAt(n).Rune
}

func isOperandChar(c lexer.Char) bool {
	return c.Kind == lexer.CHAR_TEXT && !c.Escaped
}

// scanValue reads the operand text up to the next structural character,
// trimming unescaped whitespace on both ends. A text wholly enclosed in
// double quotes is taken literally.
func (s *state) scanValue() (leafValue, error) {
	s.stream.SkipSpaces()
	first := s.stream.Peek()

	if first.Kind == lexer.CHAR_QUOTE {
		return s.scanQuoted()
	}

	var chars []lexer.Char
	for {
		c := s.stream.Peek()
		if c.IsStructural() {
			break
		}
		chars = append(chars, s.stream.Advance())
	}

	chars = trimSpaces(chars)
	return leafValue{text: joinChars(chars), pattern: globChars(chars), offset: first.Offset}, nil
}

// scanQuoted reads "..." where everything up to the closing unescaped quote
// is literal text
func (s *state) scanQuoted() (leafValue, error) {
	open := s.stream.Advance()

	var chars []lexer.Char
	for {
		c := s.stream.Peek()
		if c.Kind == lexer.CHAR_EOF {
			return leafValue{}, errors.New(errors.ErrUnterminatedQuote, open.Offset, "Unterminated quoted value")
		}
		s.stream.Advance()
		if c.Kind == lexer.CHAR_QUOTE {
			break
		}
		chars = append(chars, c)
	}

	s.stream.SkipSpaces()
	if c := s.stream.Peek(); !c.IsStructural() {
		return leafValue{}, errors.Newf(errors.ErrUnexpectedCharacter, c.Offset, "Unexpected character '%c' after quoted value", c.Rune)
	}

	return leafValue{text: joinChars(chars), pattern: globChars(chars), offset: open.Offset, quoted: true}, nil
}

// resolve finds a named identifier
func (s *state) resolve(name string, offset int) (ident.Identifier, error) {
	registry := s.parser.registry
	if id, ok := registry.ResolveExact(name); ok {
		return id, nil
	}
	id, ok := registry.Resolve(name)
	if !ok {
		return ident.Identifier{}, errors.Newf(errors.ErrUnknownIdentifier, offset, "Unknown identifier '%s'", name)
	}
	s.parser.logger.Debug("identifier resolved ignoring case",
		zap.String("name", name),
		zap.String("identifier", id.Name))
	return id, nil
}

// isNull reports whether the value asks for an absence check: no text at all,
// or the configured null marker. Quoted text never does.
func (s *state) isNull(v leafValue) bool {
	return !v.quoted && (v.text == "" || v.text == s.parser.config.NullMarker)
}

// columnLeaf builds the leaf for a single identifier
func (s *state) columnLeaf(id ident.Identifier, head leafHead, value leafValue, start int) (ast.Node, error) {
	operands := s.parser.operands

	op := head.operand
	if !head.found {
		op = operands.Default(id.Type)
	}

	if s.isNull(value) {
		operator, err := operands.BindNull(op, id.Type)
		if err != nil {
			return nil, shift(err, value.offset)
		}
		return &ast.Leaf{Identifier: id, Operator: operator, Pos: start}, nil
	}

	if !operands.AppliesTo(op, id.Type) {
		return nil, errors.Newf(errors.ErrOperandNotApplicable, head.opOffset,
			"Operand '%s' not applicable to identifier '%s' of type %s", op, id.Name, id.Type)
	}

	if other, ok := s.comparableColumn(id, op, value); ok {
		s.parser.logger.Debug("comparing identifiers",
			zap.String("left", id.Name),
			zap.String("operand", op.String()),
			zap.String("right", other.Name))
		return &ast.ColumnLeaf{Left: id, Right: other, Operand: op, Comparer: operands, Pos: start}, nil
	}

	operator, err := operands.BindPattern(op, id.Type, value.text, value.pattern)
	if err != nil {
		return nil, shift(err, value.offset)
	}
	return &ast.Leaf{Identifier: id, Operator: operator, Pos: start}, nil
}

// comparableColumn checks whether the operand text names another identifier
// the column can be compared against. Only non-string columns of the same
// type compared with a typed operand qualify.
func (s *state) comparableColumn(id ident.Identifier, op operand.Operand, value leafValue) (ident.Identifier, bool) {
	if id.Type.IsString() || op.StringBased() || value.quoted || value.text == "" {
		return ident.Identifier{}, false
	}
	other, ok := s.parser.registry.Resolve(value.text)
	if !ok || other.Type.IsString() || !other.Type.Equal(id.Type) {
		return ident.Identifier{}, false
	}
	return other, true
}

// anyColumnLeaf builds a leaf testing every column's display string
func (s *state) anyColumnLeaf(head leafHead, value leafValue, start int) (ast.Node, error) {
	operands := s.parser.operands

	op := head.operand
	if !head.found {
		op = operands.Default(anyColumnType)
	}

	var (
		operator *operand.Operator
		err      error
	)
	if s.isNull(value) {
		operator, err = operands.BindNull(op, anyColumnType)
	} else {
		operator, err = operands.BindPattern(op, anyColumnType, value.text, value.pattern)
	}
	if err != nil {
		return nil, shift(err, value.offset)
	}

	return &ast.AnyColumnLeaf{Identifiers: s.parser.registry.All(), Operator: operator, Pos: start}, nil
}

// shift moves a FilterError positioned relative to the operand text into
// expression coordinates
func shift(err error, base int) error {
	if fe, ok := errors.AsFilterError(err); ok {
		return fe.Shift(base)
	}
	return err
}

// trimChars joins chars into a string without leading or trailing unescaped
// whitespace. It returns the text and the offset of its first character,
// or fallback when nothing is left.
func trimChars(chars []lexer.Char, fallback int) (string, int) {
	chars = trimSpaces(chars)
	if len(chars) == 0 {
		return "", fallback
	}
	return joinChars(chars), chars[0].Offset
}

// trimSpaces drops leading and trailing unescaped whitespace
func trimSpaces(chars []lexer.Char) []lexer.Char {
	lo, hi := 0, len(chars)
	for lo < hi && chars[lo].Kind == lexer.CHAR_SPACE {
		lo++
	}
	for hi > lo && chars[hi-1].Kind == lexer.CHAR_SPACE {
		hi--
	}
	return chars[lo:hi]
}

func joinChars(chars []lexer.Char) string {
	var sb strings.Builder
	for _, c := range chars {
		sb.WriteRune(c.Rune)
	}
	return sb.String()
}

// globChars joins chars for the wildcard matcher. A backslash the lexer
// already consumed as an escape is written back as \\ so the glob reads it
// as a literal backslash rather than as an escape of the next character.
func globChars(chars []lexer.Char) string {
	var sb strings.Builder
	for _, c := range chars {
		if c.Escaped && c.Rune == '\\' {
			sb.WriteString(`\\`)
			continue
		}
		sb.WriteRune(c.Rune)
	}
	return sb.String()
}
