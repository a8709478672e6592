// Package sqlfilter translates filter trees into parameterised SQL WHERE
// clauses so row sources backed by a database can filter server-side
package sqlfilter

import (
	"fmt"
	"strings"
)

// Dialect selects placeholder style and pattern matching syntax
type Dialect int

const (
	// Postgres uses $n placeholders and LIKE ... ESCAPE
	Postgres Dialect = iota
	// SQLite uses ? placeholders and GLOB for case-sensitive patterns
	SQLite
)

// String returns the dialect name
func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// DialectFor maps a database/sql driver name to its dialect
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "pgx", "postgresql":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func (d Dialect) placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpLike
	OpNotLike
	OpIsNull
	OpIsNotNull
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpLike:
		return "LIKE"
	case OpNotLike:
		return "NOT LIKE"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return "UNKNOWN"
	}
}

// Predicate is one translatable part of a WHERE clause
type Predicate interface {
	ToSQL(d Dialect, paramCounter *int, args *[]interface{}) (string, error)
}

// Condition represents a single column test
type Condition struct {
	Field    string // Quoted column expression
	Operator Operator
	Value    interface{}
	// Other is the quoted column compared against instead of Value
	Other string
	// Text marks string columns, where blank text counts as absent
	Text bool
	// Fold compares lower-cased text
	Fold bool
	// Coalesce reads NULL as the empty string
	Coalesce bool
}

// ordering reports whether the operator compares by sort order
func (o Operator) ordering() bool {
	switch o {
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return true
	default:
		return false
	}
}

// PredicateGroup represents predicates combined with AND/OR, in written order
type PredicateGroup struct {
	Predicates []Predicate
	Or         bool // true for OR, false for AND
}

// NewPredicateGroup creates a new predicate group
func NewPredicateGroup(or bool, predicates ...Predicate) *PredicateGroup {
	return &PredicateGroup{Predicates: predicates, Or: or}
}

// AddPredicate adds a condition or a nested group
func (pg *PredicateGroup) AddPredicate(p Predicate) {
	pg.Predicates = append(pg.Predicates, p)
}

// ToSQL converts the predicate group to SQL
func (pg *PredicateGroup) ToSQL(d Dialect, paramCounter *int, args *[]interface{}) (string, error) {
	if len(pg.Predicates) == 0 {
		if pg.Or {
			return "1 = 0", nil
		}
		return "1 = 1", nil
	}

	parts := make([]string, 0, len(pg.Predicates))
	for _, p := range pg.Predicates {
		sql, err := p.ToSQL(d, paramCounter, args)
		if err != nil {
			return "", err
		}
		if _, nested := p.(*PredicateGroup); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
	}

	connector := " AND "
	if pg.Or {
		connector = " OR "
	}
	return strings.Join(parts, connector), nil
}

// ToSQL converts the condition to SQL with parameterized values
func (c *Condition) ToSQL(d Dialect, paramCounter *int, args *[]interface{}) (string, error) {
	field := c.Field
	switch {
	case c.Fold:
		field = fmt.Sprintf("LOWER(COALESCE(%s, ''))", c.Field)
	case c.Coalesce, c.Operator == OpLike, c.Operator == OpNotLike:
		field = fmt.Sprintf("COALESCE(%s, '')", c.Field)
	}

	// Postgres orders text by the column collation; "C" compares bytes the
	// way the evaluator does. SQLite's default BINARY collation already does.
	if c.Text && d == Postgres && c.Operator.ordering() {
		field += ` COLLATE "C"`
	}

	bind := func(v interface{}) string {
		*args = append(*args, v)
		p := d.placeholder(*paramCounter)
		*paramCounter++
		return p
	}

	switch c.Operator {
	case OpIsNull:
		if c.Text {
			return fmt.Sprintf("(%s IS NULL OR TRIM(%s) = '')", c.Field, c.Field), nil
		}
		return fmt.Sprintf("%s IS NULL", c.Field), nil

	case OpIsNotNull:
		if c.Text {
			return fmt.Sprintf("(%s IS NOT NULL AND TRIM(%s) <> '')", c.Field, c.Field), nil
		}
		return fmt.Sprintf("%s IS NOT NULL", c.Field), nil

	case OpLike, OpNotLike:
		pattern, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("%s operator requires a string pattern", c.Operator)
		}
		var sql string
		if d == SQLite && !c.Fold {
			sql = fmt.Sprintf("%s GLOB %s", field, bind(GlobPattern(pattern)))
		} else {
			sql = fmt.Sprintf("%s LIKE %s ESCAPE '\\'", field, bind(LikePattern(pattern)))
		}
		if c.Operator == OpNotLike {
			return "NOT (" + sql + ")", nil
		}
		return sql, nil

	case OpEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		if c.Other != "" {
			return fmt.Sprintf("%s %s %s", field, c.Operator, c.Other), nil
		}
		return fmt.Sprintf("%s %s %s", field, c.Operator, bind(c.Value)), nil

	case OpNotEqual:
		// Absent values are unequal to everything
		if c.Other != "" {
			return fmt.Sprintf("(%s IS NULL OR %s IS NULL OR %s <> %s)", field, c.Other, field, c.Other), nil
		}
		if c.Fold || c.Coalesce {
			return fmt.Sprintf("%s <> %s", field, bind(c.Value)), nil
		}
		return fmt.Sprintf("(%s IS NULL OR %s <> %s)", field, field, bind(c.Value)), nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", c.Operator)
	}
}

// LikePattern converts a glob into a LIKE pattern escaped with backslash
func LikePattern(glob string) string {
	var sb strings.Builder
	escaped := false
	for _, r := range glob {
		if escaped {
			writeLikeLiteral(&sb, r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*':
			sb.WriteByte('%')
		case '?':
			sb.WriteByte('_')
		default:
			writeLikeLiteral(&sb, r)
		}
	}
	if escaped {
		writeLikeLiteral(&sb, '\\')
	}
	return sb.String()
}

func writeLikeLiteral(sb *strings.Builder, r rune) {
	if r == '%' || r == '_' || r == '\\' {
		sb.WriteByte('\\')
	}
	sb.WriteRune(r)
}

// GlobPattern converts a glob into SQLite GLOB syntax, where the only way to
// match a literal metacharacter is a one-character class
func GlobPattern(glob string) string {
	var sb strings.Builder
	escaped := false
	for _, r := range glob {
		if escaped {
			writeGlobLiteral(&sb, r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*', '?':
			sb.WriteRune(r)
		default:
			writeGlobLiteral(&sb, r)
		}
	}
	if escaped {
		sb.WriteByte('\\')
	}
	return sb.String()
}

func writeGlobLiteral(sb *strings.Builder, r rune) {
	switch r {
	case '*', '?', '[':
		sb.WriteByte('[')
		sb.WriteRune(r)
		sb.WriteByte(']')
	default:
		sb.WriteRune(r)
	}
}
