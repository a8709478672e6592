// Package ast defines the predicate tree produced by parsing a filter
// expression, and evaluates it against rows.
package ast

import (
	"strings"

	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/lexer"
	"github.com/conduit-lang/rowfilter/compiler/operand"
	"github.com/conduit-lang/rowfilter/compiler/types"
)

// Row is the data-access contract evaluation needs from a row source
type Row interface {
	// Value returns the typed value at a column position, nil when absent
	Value(position int) interface{}
	// StringValue returns the display string at a column position
	StringValue(position int) string
}

// Node is the base interface for all predicate tree nodes.
// Trees are immutable once parsed and safe for concurrent evaluation.
type Node interface {
	// Evaluate tests the row
	Evaluate(row Row) bool
	// String renders the node as an expression that parses back to an
	// equivalent tree
	String() string
	// Offset is the byte offset where the node starts in the expression
	Offset() int
	node()
}

// LogicalOp combines two subtrees
type LogicalOp int

const (
	And LogicalOp = iota
	Or
)

// String returns the operator as written in expressions
func (op LogicalOp) String() string {
	if op == Or {
		return "|"
	}
	return "&"
}

// Binary is an AND/OR combination of two subtrees. Both operators have the
// same precedence; the parser folds them left to right.
type Binary struct {
	Op    LogicalOp
	Left  Node
	Right Node
	Pos   int
}

func (b *Binary) node() {}

// Offset returns the offset of the left operand
func (b *Binary) Offset() int {
	return b.Pos
}

// Evaluate short-circuits the right subtree
func (b *Binary) Evaluate(row Row) bool {
	if b.Op == And {
		return b.Left.Evaluate(row) && b.Right.Evaluate(row)
	}
	return b.Left.Evaluate(row) || b.Right.Evaluate(row)
}

// String renders both sides inside parentheses
func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

// NewBinary combines left and right
func NewBinary(op LogicalOp, left, right Node) *Binary {
	return &Binary{Op: op, Left: left, Right: right, Pos: left.Offset()}
}

// Leaf compares one column against a constant (or tests it for absence)
type Leaf struct {
	Identifier ident.Identifier
	Operator   *operand.Operator
	Pos        int
}

func (l *Leaf) node() {}

// Offset returns the offset of the leaf
func (l *Leaf) Offset() int {
	return l.Pos
}

// Evaluate applies the operator to the identifier's column
func (l *Leaf) Evaluate(row Row) bool {
	return l.Operator.Apply(cell{row: row, position: l.Identifier.Position})
}

// String renders the leaf
func (l *Leaf) String() string {
	return renderLeaf(Escape(l.Identifier.Name), l.Operator)
}

// Comparer compares two values of a type with an operand
type Comparer interface {
	Compare(o operand.Operand, t types.Type, left, right interface{}) bool
}

// ColumnLeaf compares two columns of the same non-string type
type ColumnLeaf struct {
	Left     ident.Identifier
	Right    ident.Identifier
	Operand  operand.Operand
	Comparer Comparer
	Pos      int
}

func (c *ColumnLeaf) node() {}

// Offset returns the offset of the leaf
func (c *ColumnLeaf) Offset() int {
	return c.Pos
}

// Evaluate compares the typed values of both columns
func (c *ColumnLeaf) Evaluate(row Row) bool {
	return c.Comparer.Compare(c.Operand, c.Left.Type, row.Value(c.Left.Position), row.Value(c.Right.Position))
}

// String renders the leaf
func (c *ColumnLeaf) String() string {
	return Escape(c.Left.Name) + " " + c.Operand.String() + " " + Escape(c.Right.Name)
}

// AnyColumnLeaf matches when any column's display string satisfies the
// operator. This is the only node whose cost grows with the column count.
type AnyColumnLeaf struct {
	Identifiers []ident.Identifier
	Operator    *operand.Operator
	Pos         int
}

func (a *AnyColumnLeaf) node() {}

// Offset returns the offset of the leaf
func (a *AnyColumnLeaf) Offset() int {
	return a.Pos
}

// Evaluate tests every column in registration order, stopping at the first match
func (a *AnyColumnLeaf) Evaluate(row Row) bool {
	for _, id := range a.Identifiers {
		if a.Operator.ApplyText(row.StringValue(id.Position)) {
			return true
		}
	}
	return false
}

// String renders the leaf without an identifier
func (a *AnyColumnLeaf) String() string {
	return renderLeaf("", a.Operator)
}

func renderLeaf(name string, op *operand.Operator) string {
	var sb strings.Builder
	if name != "" {
		sb.WriteString(name)
		sb.WriteByte(' ')
	}
	sb.WriteString(op.Operand().String())
	if !op.IsNullCheck() {
		sb.WriteByte(' ')
		switch {
		case op.Text() == "":
			sb.WriteString(`""`)
		case op.Operand().IsWildcard():
			sb.WriteString(EscapePattern(op.Pattern()))
		default:
			sb.WriteString(Escape(op.Text()))
		}
	}
	return sb.String()
}

// Escape prefixes every character the lexer treats specially with a backslash
func Escape(text string) string {
	var sb strings.Builder
	for _, r := range text {
		if lexer.IsEscapeTarget(r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// EscapePattern renders a glob so that parsing it yields the same glob. A \\
// pair is a literal backslash and is written as the escape that produces it;
// a lone backslash escapes the glob character after it and is kept as is.
func EscapePattern(pattern string) string {
	var sb strings.Builder
	r := []rune(pattern)
	for i := 0; i < len(r); i++ {
		if r[i] == '\\' {
			sb.WriteRune('\\')
			if i+1 < len(r) && r[i+1] == '\\' {
				sb.WriteRune('\\')
				i++
			}
			continue
		}
		if lexer.IsEscapeTarget(r[i]) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r[i])
	}
	return sb.String()
}

// cell adapts a row column to operand.Cell
type cell struct {
	row      Row
	position int
}

func (c cell) Value() interface{} {
	return c.row.Value(c.position)
}

func (c cell) Text() string {
	return c.row.StringValue(c.position)
}

// Walk visits the tree depth-first, left before right. Returning false from
// fn stops the descent below that node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if b, ok := n.(*Binary); ok {
		Walk(b.Left, fn)
		Walk(b.Right, fn)
	}
}

// Leaves returns the leaf nodes in written order
func Leaves(n Node) []Node {
	var out []Node
	Walk(n, func(n Node) bool {
		if _, ok := n.(*Binary); !ok {
			out = append(out, n)
		}
		return true
	})
	return out
}
