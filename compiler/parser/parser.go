// Package parser turns free-text filter expressions such as
//
//	age > 30 & country = Italy
//
// into predicate trees. Grammar:
//
//	expr      := term (logicalOp term)*
//	term      := '(' expr ')' | leafExpr
//	logicalOp := '&' | '|'
//	leafExpr  := [identifier] [operand] operand-text
//
// & and | share one precedence level and fold left to right.
package parser

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/compiler/ast"
	"github.com/conduit-lang/rowfilter/compiler/errors"
	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/lexer"
	"github.com/conduit-lang/rowfilter/compiler/operand"
	"github.com/conduit-lang/rowfilter/compiler/types"
)

// Config holds the settings read during parsing
type Config struct {
	// IgnoreCase makes the default operand for string columns ~@ instead of ~
	IgnoreCase bool
	// NullMarker is the operand text that turns a leaf into an absence check
	NullMarker string
	// DateLayout is the time layout used to read dates
	DateLayout string
	// CompareRenderedDates compares dates at the precision DateLayout renders
	CompareRenderedDates bool
}

// DefaultConfig returns the default parser configuration
func DefaultConfig() Config {
	return Config{
		NullMarker: "",
		DateLayout: types.DefaultDateLayout,
	}
}

// Option configures a Parser
type Option func(*Parser)

// WithLogger sets the logger used for debug traces
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithIdentifiers registers the identifiers expressions may reference
func WithIdentifiers(identifiers ...ident.Identifier) Option {
	return func(p *Parser) {
		p.registry.SetIdentifiers(identifiers)
	}
}

// Parser parses filter expressions. A Parser is built once and reused for
// many Parse calls; Parse is safe for concurrent use as long as no setter runs
// at the same time.
type Parser struct {
	config   Config
	registry *ident.Registry
	types    *types.Factory
	operands *operand.Factory
	logger   *zap.Logger
}

// New creates a Parser
func New(config Config, opts ...Option) *Parser {
	tf := types.NewFactory(types.Config{
		DateLayout:           config.DateLayout,
		CompareRenderedDates: config.CompareRenderedDates,
	})
	config.DateLayout = tf.Config().DateLayout

	p := &Parser{
		config:   config,
		registry: ident.NewRegistry(),
		types:    tf,
		operands: operand.NewFactory(tf),
		logger:   zap.NewNop(),
	}
	p.operands.SetIgnoreCase(config.IgnoreCase)

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the parser configuration
func (p *Parser) Config() Config {
	return p.config
}

// SetIdentifiers replaces the identifiers expressions may reference
func (p *Parser) SetIdentifiers(identifiers []ident.Identifier) {
	p.registry.SetIdentifiers(identifiers)
}

// Identifiers returns the identifier registry
func (p *Parser) Identifiers() *ident.Registry {
	return p.registry
}

// Types returns the coercion factory, shared with row sources that need to
// read and render values the same way expressions do
func (p *Parser) Types() *types.Factory {
	return p.types
}

// Operands returns the operand factory, which knows the default operand and
// the operands each type accepts
func (p *Parser) Operands() *operand.Factory {
	return p.operands
}

// SetComparator overrides the ordering of a type
func (p *Parser) SetComparator(t types.Type, c types.Comparator) {
	p.types.SetComparator(t, c)
}

// SetTypeBuilder overrides how text becomes a value of a type
func (p *Parser) SetTypeBuilder(t types.Type, b types.Builder) {
	p.types.SetBuilder(t, b)
}

// SetIgnoreCase sets the global ignore-case flag
func (p *Parser) SetIgnoreCase(ignoreCase bool) {
	p.config.IgnoreCase = ignoreCase
	p.operands.SetIgnoreCase(ignoreCase)
}

// SetNullMarker sets the text that denotes an absent value
func (p *Parser) SetNullMarker(marker string) {
	p.config.NullMarker = marker
}

// Parse parses an expression whose identifier-free leaves match when any
// column satisfies them
func (p *Parser) Parse(expr string) (ast.Node, error) {
	return p.ParseColumn(expr, ident.NoPosition)
}

// ParseFor parses an expression whose identifier-free leaves apply to the
// named column. An empty name means any column.
func (p *Parser) ParseFor(expr, column string) (ast.Node, error) {
	if column == "" {
		return p.Parse(expr)
	}
	id, ok := p.registry.Resolve(column)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	return p.ParseColumn(expr, id.Position)
}

// ParseColumn parses an expression whose identifier-free leaves apply to the
// column at position. ident.NoPosition means any column.
func (p *Parser) ParseColumn(expr string, position int) (ast.Node, error) {
	var def *ident.Identifier
	if position != ident.NoPosition {
		id, ok := p.registry.ResolveByPosition(position)
		if !ok {
			return nil, errors.Newf(errors.ErrUnknownIdentifier, 0, "No identifier at position %d", position).WithExpression(expr)
		}
		def = &id
	}

	node, err := p.parse(expr, def)
	if err != nil {
		if fe, ok := errors.AsFilterError(err); ok {
			fe.WithExpression(expr)
			p.logger.Debug("filter expression rejected",
				zap.String("expression", expr),
				zap.String("code", fe.Code),
				zap.Int("offset", fe.Offset),
				zap.String("message", fe.Message))
		}
		return nil, err
	}
	if ce := p.logger.Check(zap.DebugLevel, "filter expression parsed"); ce != nil {
		ce.Write(zap.String("expression", expr), zap.Int("leaves", len(ast.Leaves(node))))
	}
	return node, nil
}

func (p *Parser) parse(expr string, def *ident.Identifier) (ast.Node, error) {
	stream, err := lexer.NewStream(expr)
	if err != nil {
		return nil, err
	}

	st := &state{parser: p, stream: stream, def: def}
	node, err := st.parseExpr()
	if err != nil {
		return nil, err
	}

	// parseExpr only returns early at EOF or at a ')' inside a group
	if c := stream.Peek(); c.Kind == lexer.CHAR_RPAREN {
		return nil, errors.Newf(errors.ErrUnbalancedParen, c.Offset, "Unexpected ')' without matching '('")
	}
	return node, nil
}
