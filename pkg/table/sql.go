package table

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/types"
)

// Querier is an interface for executing SQL queries, satisfied by *sql.DB,
// *sql.Conn and *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// QuerySQL runs a query and loads its result into a table with the given
// columns. Result columns are matched to identifiers by name ignoring case;
// result columns without an identifier are skipped.
func QuerySQL(ctx context.Context, db Querier, query string, args []interface{}, columns []ident.Identifier, tf *types.Factory) (*Table, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	t := New(columns, tf)
	return t, t.scanRows(rows)
}

// scanRows appends every row of the result set
func (t *Table) scanRows(rows *sql.Rows) error {
	names, err := rows.Columns()
	if err != nil {
		return err
	}

	// target[i] is the index in t.columns fed by result column i, -1 if none
	target := make([]int, len(names))
	seen := make(map[int]bool, len(t.columns))
	for i, name := range names {
		target[i] = -1
		for j, c := range t.columns {
			if strings.EqualFold(c.Name, name) {
				target[i] = j
				seen[j] = true
				break
			}
		}
	}
	for j, c := range t.columns {
		if !seen[j] {
			return fmt.Errorf("query result has no column %q", c.Name)
		}
	}

	for rows.Next() {
		values := make([]interface{}, len(names))
		valuePtrs := make([]interface{}, len(names))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}

		r := t.newRecord()
		for i, j := range target {
			if j < 0 {
				continue
			}
			c := t.columns[j]
			v, err := t.normalize(c.Type, values[i])
			if err != nil {
				return fmt.Errorf("column %s: %w", c.Name, err)
			}
			r.values[c.Position] = v
		}
		t.records = append(t.records, r)
	}

	return rows.Err()
}

// normalize converts a driver value into the representation the comparators
// expect for the column type
func (t *Table) normalize(typ types.Type, v interface{}) (interface{}, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if typ.IsString() {
			return val, nil
		}
		if val == "" {
			return nil, nil
		}
		return t.types.Build(typ, val)
	case int64:
		// Drivers without a boolean type store flags as integers
		if typ.Kind == types.Bool {
			return val != 0, nil
		}
		if typ.Kind == types.Enum {
			if val < 0 || int(val) >= len(typ.Values) {
				return nil, fmt.Errorf("ordinal %d out of range for %s", val, typ)
			}
			return types.EnumValue{Type: typ.Name, Name: typ.Values[val], Ordinal: int(val)}, nil
		}
	}
	return v, nil
}
