// Package table provides in-memory row sources for filter evaluation: typed
// records built by hand, loaded from CSV files or scanned from SQL queries.
package table

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/rowfilter/compiler/ast"
	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/types"
)

// Table is an ordered set of records sharing one column layout. Each
// identifier's Position is the index of its value inside a record.
type Table struct {
	columns []ident.Identifier
	types   *types.Factory
	width   int
	typeAt  map[int]types.Type
	records []*Record
}

// New creates an empty table. A nil factory uses the default coercions.
func New(columns []ident.Identifier, tf *types.Factory) *Table {
	if tf == nil {
		tf = types.NewFactory(types.DefaultConfig())
	}

	t := &Table{
		columns: make([]ident.Identifier, len(columns)),
		types:   tf,
		typeAt:  make(map[int]types.Type, len(columns)),
	}
	copy(t.columns, columns)

	for _, c := range columns {
		if c.Position+1 > t.width {
			t.width = c.Position + 1
		}
		if _, exists := t.typeAt[c.Position]; !exists {
			t.typeAt[c.Position] = c.Type
		}
	}
	return t
}

// Columns returns the column identifiers in declaration order
func (t *Table) Columns() []ident.Identifier {
	out := make([]ident.Identifier, len(t.columns))
	copy(out, t.columns)
	return out
}

// Headers returns the column names in declaration order
func (t *Table) Headers() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Types returns the factory used to coerce and render values
func (t *Table) Types() *types.Factory {
	return t.types
}

// Len returns the number of records
func (t *Table) Len() int {
	return len(t.records)
}

// Record returns the i-th record
func (t *Table) Record(i int) *Record {
	return t.records[i]
}

// Records returns every record in insertion order
func (t *Table) Records() []*Record {
	out := make([]*Record, len(t.records))
	copy(out, t.records)
	return out
}

// Append adds a record holding one value per column, in declaration order.
// Nil marks an absent value.
func (t *Table) Append(values ...interface{}) (*Record, error) {
	if len(values) != len(t.columns) {
		return nil, fmt.Errorf("expected %d values, got %d", len(t.columns), len(values))
	}

	r := t.newRecord()
	for i, c := range t.columns {
		r.values[c.Position] = values[i]
	}
	t.records = append(t.records, r)
	return r, nil
}

// AppendText adds a record from display strings, coercing each one to its
// column type. Empty fields are stored as absent values.
func (t *Table) AppendText(fields ...string) (*Record, error) {
	if len(fields) != len(t.columns) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(t.columns), len(fields))
	}

	r := t.newRecord()
	for i, c := range t.columns {
		if fields[i] == "" {
			continue
		}
		v, err := t.types.Build(c.Type, fields[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		r.values[c.Position] = v
	}
	t.records = append(t.records, r)
	return r, nil
}

func (t *Table) newRecord() *Record {
	return &Record{table: t, values: make([]interface{}, t.width)}
}

// Filter returns the indexes of the records the tree accepts
func (t *Table) Filter(node ast.Node) []int {
	var matches []int
	for i, r := range t.records {
		if node.Evaluate(r) {
			matches = append(matches, i)
		}
	}
	return matches
}

// FilterConcurrent is Filter spread over workers goroutines. Zero workers
// uses GOMAXPROCS. The result keeps record order.
func (t *Table) FilterConcurrent(ctx context.Context, node ast.Node, workers int) ([]int, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(t.records) {
		workers = len(t.records)
	}
	if workers <= 1 {
		return t.Filter(node), nil
	}

	accepted := make([]bool, len(t.records))
	chunk := (len(t.records) + workers - 1) / workers

	eg, egCtx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(t.records); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(t.records))
		eg.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%256 == 0 {
					if err := egCtx.Err(); err != nil {
						return err
					}
				}
				accepted[i] = node.Evaluate(t.records[i])
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var matches []int
	for i, ok := range accepted {
		if ok {
			matches = append(matches, i)
		}
	}
	return matches, nil
}

// Select returns a table sharing this table's layout holding only the
// records the tree accepts
func (t *Table) Select(node ast.Node) *Table {
	return t.Subset(t.Filter(node))
}

// Subset returns a table sharing this table's layout holding the records at
// the given indexes, in that order. Records share their values.
func (t *Table) Subset(indexes []int) *Table {
	out := New(t.columns, t.types)
	for _, i := range indexes {
		r := t.records[i]
		out.records = append(out.records, &Record{table: out, values: r.values})
	}
	return out
}

// Rows renders every record as display strings in declaration order
func (t *Table) Rows() [][]string {
	rows := make([][]string, len(t.records))
	for i, r := range t.records {
		rows[i] = r.Strings()
	}
	return rows
}

// Record is one row of a Table. It implements ast.Row.
type Record struct {
	table  *Table
	values []interface{}
}

// Value returns the typed value at a column position, nil when absent or out
// of range
func (r *Record) Value(position int) interface{} {
	if position < 0 || position >= len(r.values) {
		return nil
	}
	return r.values[position]
}

// StringValue renders the value at a column position the way the table
// displays it
func (r *Record) StringValue(position int) string {
	v := r.Value(position)
	if v == nil {
		return ""
	}
	return r.table.types.Format(r.table.typeAt[position], v)
}

// Strings renders the record in column declaration order
func (r *Record) Strings() []string {
	out := make([]string, len(r.table.columns))
	for i, c := range r.table.columns {
		out[i] = r.StringValue(c.Position)
	}
	return out
}

// Map returns the values keyed by column name
func (r *Record) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.table.columns))
	for _, c := range r.table.columns {
		out[c.Name] = r.Value(c.Position)
	}
	return out
}
