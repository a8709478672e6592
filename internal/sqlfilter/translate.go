package sqlfilter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conduit-lang/rowfilter/compiler/ast"
	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/operand"
	"github.com/conduit-lang/rowfilter/compiler/types"
	"github.com/conduit-lang/rowfilter/compiler/wildcard"
)

// ErrNotTranslatable is returned for trees SQL cannot evaluate the way the
// in-process evaluator does. Callers fall back to evaluating rows themselves.
var ErrNotTranslatable = errors.New("filter cannot be translated to SQL")

// Translator turns filter trees into WHERE clauses for one dialect
type Translator struct {
	dialect Dialect
	types   *types.Factory
	columns map[string]string
}

// Option configures a Translator
type Option func(*Translator)

// WithColumns maps identifier names to SQL column names. Unmapped identifiers
// use their own name.
func WithColumns(columns map[string]string) Option {
	return func(t *Translator) {
		for k, v := range columns {
			t.columns[k] = v
		}
	}
}

// New creates a Translator. The factory renders dates the way expressions
// read them and tells which types carry application comparators.
func New(dialect Dialect, tf *types.Factory, opts ...Option) *Translator {
	if tf == nil {
		tf = types.NewFactory(types.DefaultConfig())
	}
	t := &Translator{dialect: dialect, types: tf, columns: make(map[string]string)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dialect returns the target dialect
func (t *Translator) Dialect() Dialect {
	return t.dialect
}

// Where translates the whole tree. The clause accepts exactly the rows the
// tree accepts, or the error wraps ErrNotTranslatable.
func (t *Translator) Where(node ast.Node) (string, []interface{}, error) {
	p, err := t.translate(node)
	if err != nil {
		return "", nil, err
	}
	return t.render(p)
}

// WherePartial translates as much of the tree as possible. When a subtree of
// an AND cannot be translated it is left out, so the clause may accept more
// rows than the tree; exact reports whether it accepts precisely the same
// rows. An empty clause means nothing could be pushed down.
func (t *Translator) WherePartial(node ast.Node) (clause string, args []interface{}, exact bool, err error) {
	p, exact, ok := t.partial(node)
	if !ok {
		return "", nil, false, nil
	}
	clause, args, err = t.render(p)
	return clause, args, exact, err
}

// Select builds a query reading the given columns of table, filtered by as
// much of the tree as translates
func (t *Translator) Select(table string, columns []ident.Identifier, node ast.Node) (query string, args []interface{}, exact bool, err error) {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = t.column(c.Name)
	}

	query = fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), quote(table))
	if node == nil {
		return query, nil, true, nil
	}

	where, args, exact, err := t.WherePartial(node)
	if err != nil {
		return "", nil, false, err
	}
	if where != "" {
		query += " WHERE " + where
	}
	return query, args, exact, nil
}

func (t *Translator) render(p Predicate) (string, []interface{}, error) {
	paramCounter := 1
	args := make([]interface{}, 0)
	sql, err := p.ToSQL(t.dialect, &paramCounter, &args)
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

func (t *Translator) partial(node ast.Node) (Predicate, bool, bool) {
	b, ok := node.(*ast.Binary)
	if !ok {
		p, err := t.translate(node)
		return p, err == nil, err == nil
	}

	left, lexact, lok := t.partial(b.Left)
	right, rexact, rok := t.partial(b.Right)

	if b.Op == ast.Or {
		if !lok || !rok {
			return nil, false, false
		}
		return NewPredicateGroup(true, left, right), lexact && rexact, true
	}

	switch {
	case lok && rok:
		return NewPredicateGroup(false, left, right), lexact && rexact, true
	case lok:
		return left, false, true
	case rok:
		return right, false, true
	default:
		return nil, false, false
	}
}

func (t *Translator) translate(node ast.Node) (Predicate, error) {
	switch n := node.(type) {
	case *ast.Binary:
		left, err := t.translate(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := t.translate(n.Right)
		if err != nil {
			return nil, err
		}
		return NewPredicateGroup(n.Op == ast.Or, left, right), nil
	case *ast.Leaf:
		return t.leaf(n.Identifier, n.Operator, false)
	case *ast.ColumnLeaf:
		return t.columnLeaf(n)
	case *ast.AnyColumnLeaf:
		return t.anyColumnLeaf(n)
	default:
		return nil, fmt.Errorf("%w: unsupported node %T", ErrNotTranslatable, node)
	}
}

func (t *Translator) leaf(id ident.Identifier, op *operand.Operator, coalesce bool) (*Condition, error) {
	typ := id.Type
	o := op.Operand()
	c := &Condition{Field: t.column(id.Name), Text: typ.IsString(), Coalesce: coalesce}

	if op.IsNullCheck() {
		c.Operator = OpIsNull
		if o.IsNegated() {
			c.Operator = OpIsNotNull
		}
		return c, nil
	}

	if o.StringBased() {
		// Display strings of other types differ between Go and SQL
		if !typ.IsString() {
			return nil, notTranslatable(id, o)
		}
		c.Fold = o.IgnoreCase
		c.Operator = operatorFor(o.Symbol)
		value := op.Text()
		if o.IsWildcard() {
			value = op.Pattern()
			// A glob without wildcards is a whole-text comparison
			if !wildcard.HasWildcards(value) {
				value = wildcard.Literal(value)
				c.Operator = OpEqual
				if o.IsNegated() {
					c.Operator = OpNotEqual
				}
				c.Coalesce = true
			}
		}
		if c.Fold {
			value = strings.ToLower(value)
		}
		c.Value = value
		return c, nil
	}

	if !t.pushable(typ, o) {
		return nil, notTranslatable(id, o)
	}
	c.Operator = operatorFor(o.Symbol)
	c.Value = t.arg(typ, op.Value())
	return c, nil
}

func (t *Translator) columnLeaf(n *ast.ColumnLeaf) (*Condition, error) {
	if !t.pushable(n.Left.Type, n.Operand) {
		return nil, notTranslatable(n.Left, n.Operand)
	}
	return &Condition{
		Field:    t.column(n.Left.Name),
		Operator: operatorFor(n.Operand.Symbol),
		Other:    t.column(n.Right.Name),
	}, nil
}

// anyColumnLeaf ORs the leaf over every column; only all-string layouts
// render the same text in SQL as in Go
func (t *Translator) anyColumnLeaf(n *ast.AnyColumnLeaf) (*PredicateGroup, error) {
	group := NewPredicateGroup(true)
	for _, id := range n.Identifiers {
		if !id.Type.IsString() {
			return nil, notTranslatable(id, n.Operator.Operand())
		}
		c, err := t.leaf(id, n.Operator, true)
		if err != nil {
			return nil, err
		}
		group.AddPredicate(c)
	}
	return group, nil
}

// pushable reports whether SQL orders values of typ the way the comparators do
func (t *Translator) pushable(typ types.Type, o operand.Operand) bool {
	if _, custom := t.types.Comparator(typ); custom {
		return false
	}
	switch typ.Kind {
	case types.Custom:
		return false
	case types.Enum:
		// Stored as names, which do not sort in declaration order
		return !o.IsOrdering()
	default:
		return true
	}
}

// arg converts a coerced value into a driver value
func (t *Translator) arg(typ types.Type, v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return t.types.Format(typ, val)
	case types.EnumValue:
		return val.Name
	case rune:
		if typ.Kind == types.Char {
			return string(val)
		}
	}
	return v
}

func (t *Translator) column(name string) string {
	if mapped, ok := t.columns[name]; ok {
		return quote(mapped)
	}
	return quote(name)
}

func operatorFor(s operand.Symbol) Operator {
	switch s {
	case operand.Gt:
		return OpGreaterThan
	case operand.Lt:
		return OpLessThan
	case operand.Ge:
		return OpGreaterThanOrEqual
	case operand.Le:
		return OpLessThanOrEqual
	case operand.Ne:
		return OpNotEqual
	case operand.Like:
		return OpLike
	case operand.NotLike:
		return OpNotLike
	default:
		return OpEqual
	}
}

func notTranslatable(id ident.Identifier, o operand.Operand) error {
	return fmt.Errorf("%w: %s %s on %s", ErrNotTranslatable, id.Name, o, id.Type)
}

// quote quotes an SQL identifier
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
