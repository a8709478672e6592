package parser

import (
	"github.com/conduit-lang/rowfilter/compiler/ast"
	"github.com/conduit-lang/rowfilter/compiler/errors"
	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/lexer"
)

// state holds everything one Parse call needs; the Parser itself stays
// read-only while expressions are parsed
type state struct {
	parser *Parser
	stream *lexer.Stream
	def    *ident.Identifier // Default identifier, nil for any column
	depth  int               // Open parentheses
}

// parseExpr parses terms joined by & and |, folding to the left. It returns
// at end of input or, inside a group, in front of the closing parenthesis.
func (s *state) parseExpr() (ast.Node, error) {
	left, err := s.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		s.stream.SkipSpaces()
		c := s.stream.Peek()

		switch c.Kind {
		case lexer.CHAR_EOF:
			return left, nil
		case lexer.CHAR_RPAREN:
			if s.depth == 0 {
				return nil, errors.Newf(errors.ErrUnbalancedParen, c.Offset, "Unexpected ')' without matching '('")
			}
			return left, nil
		case lexer.CHAR_AND, lexer.CHAR_OR:
			s.stream.Advance()
			right, err := s.parseTerm()
			if err != nil {
				return nil, err
			}
			op := ast.And
			if c.Kind == lexer.CHAR_OR {
				op = ast.Or
			}
			left = ast.NewBinary(op, left, right)
		default:
			return nil, errors.Newf(errors.ErrUnexpectedCharacter, c.Offset, "Unexpected character '%c'", c.Rune)
		}
	}
}

// parseTerm parses a parenthesized group or a single leaf
func (s *state) parseTerm() (ast.Node, error) {
	s.stream.SkipSpaces()
	c := s.stream.Peek()

	switch c.Kind {
	case lexer.CHAR_EOF:
		return nil, errors.New(errors.ErrIncompleteFilter, c.Offset, "Incomplete filter, expected more input")
	case lexer.CHAR_AND, lexer.CHAR_OR:
		return nil, errors.Newf(errors.ErrMisplacedOperator, c.Offset, "Logical operator '%c' without a preceding filter", c.Rune)
	case lexer.CHAR_RPAREN:
		return nil, errors.Newf(errors.ErrUnexpectedCharacter, c.Offset, "Unexpected ')', expected a filter")
	case lexer.CHAR_LPAREN:
		return s.parseGroup()
	default:
		return s.parseLeaf()
	}
}

// parseGroup parses '(' expr ')'
func (s *state) parseGroup() (ast.Node, error) {
	open := s.stream.Advance()
	s.depth++

	node, err := s.parseExpr()
	if err != nil {
		return nil, err
	}

	c := s.stream.Peek()
	if c.Kind != lexer.CHAR_RPAREN {
		return nil, errors.Newf(errors.ErrUnbalancedParen, c.Offset, "Missing ')' for '(' at offset %d", open.Offset)
	}
	s.stream.Advance()
	s.depth--
	return node, nil
}
