package sqlfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperator_String(t *testing.T) {
	tests := []struct {
		op       Operator
		expected string
	}{
		{OpEqual, "="},
		{OpNotEqual, "<>"},
		{OpGreaterThan, ">"},
		{OpGreaterThanOrEqual, ">="},
		{OpLessThan, "<"},
		{OpLessThanOrEqual, "<="},
		{OpLike, "LIKE"},
		{OpNotLike, "NOT LIKE"},
		{OpIsNull, "IS NULL"},
		{OpIsNotNull, "IS NOT NULL"},
		{Operator(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.op.String())
	}
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"postgres", "pgx", "PostgreSQL"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, Postgres, d)
	}

	d, err := DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)
	assert.Equal(t, "sqlite", d.String())

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		glob string
		want string
	}{
		{"Sm*", "Sm%"},
		{"A?m*s", "A_m%s"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`a\*b`, "a*b"},
		{`a\?`, "a?"},
		{`a\\b`, `a\\b`},
		{`end\`, `end\\`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LikePattern(tt.glob), tt.glob)
	}
}

func TestGlobPattern(t *testing.T) {
	tests := []struct {
		glob string
		want string
	}{
		{"Sm*", "Sm*"},
		{"A?m*s", "A?m*s"},
		{"100%", "100%"},
		{`a\*b`, "a[*]b"},
		{`a\?`, "a[?]"},
		{"[x]", "[[]x]"},
		{`end\`, `end\`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GlobPattern(tt.glob), tt.glob)
	}
}

func TestConditionToSQL(t *testing.T) {
	tests := []struct {
		name    string
		cond    *Condition
		dialect Dialect
		sql     string
		args    []interface{}
	}{
		{"equal", &Condition{Field: `"status"`, Operator: OpEqual, Value: "published"}, Postgres, `"status" = $1`, []interface{}{"published"}},
		{"equal sqlite", &Condition{Field: `"status"`, Operator: OpEqual, Value: "published"}, SQLite, `"status" = ?`, []interface{}{"published"}},
		{"not equal", &Condition{Field: `"views"`, Operator: OpNotEqual, Value: 3}, Postgres, `("views" IS NULL OR "views" <> $1)`, []interface{}{3}},
		{"folded not equal", &Condition{Field: `"name"`, Operator: OpNotEqual, Value: "x", Fold: true}, Postgres, `LOWER(COALESCE("name", '')) <> $1`, []interface{}{"x"}},
		{"greater", &Condition{Field: `"views"`, Operator: OpGreaterThan, Value: 100}, Postgres, `"views" > $1`, []interface{}{100}},
		{"columns", &Condition{Field: `"a"`, Operator: OpLessThanOrEqual, Other: `"b"`}, Postgres, `"a" <= "b"`, []interface{}{}},
		{"columns not equal", &Condition{Field: `"a"`, Operator: OpNotEqual, Other: `"b"`}, Postgres, `("a" IS NULL OR "b" IS NULL OR "a" <> "b")`, []interface{}{}},
		{"like", &Condition{Field: `"name"`, Operator: OpLike, Value: "Sm*"}, Postgres, `COALESCE("name", '') LIKE $1 ESCAPE '\'`, []interface{}{"Sm%"}},
		{"glob", &Condition{Field: `"name"`, Operator: OpLike, Value: "Sm*"}, SQLite, `COALESCE("name", '') GLOB ?`, []interface{}{"Sm*"}},
		{"folded like sqlite", &Condition{Field: `"name"`, Operator: OpLike, Value: "sm*", Fold: true}, SQLite, `LOWER(COALESCE("name", '')) LIKE ? ESCAPE '\'`, []interface{}{"sm%"}},
		{"not like", &Condition{Field: `"name"`, Operator: OpNotLike, Value: "x"}, Postgres, `NOT (COALESCE("name", '') LIKE $1 ESCAPE '\')`, []interface{}{"x"}},
		{"null text", &Condition{Field: `"name"`, Operator: OpIsNull, Text: true}, Postgres, `("name" IS NULL OR TRIM("name") = '')`, []interface{}{}},
		{"null", &Condition{Field: `"age"`, Operator: OpIsNull}, Postgres, `"age" IS NULL`, []interface{}{}},
		{"not null text", &Condition{Field: `"name"`, Operator: OpIsNotNull, Text: true}, Postgres, `("name" IS NOT NULL AND TRIM("name") <> '')`, []interface{}{}},
		{"text less postgres", &Condition{Field: `"name"`, Operator: OpLessThan, Value: "m", Text: true}, Postgres, `"name" COLLATE "C" < $1`, []interface{}{"m"}},
		{"text less sqlite", &Condition{Field: `"name"`, Operator: OpLessThan, Value: "m", Text: true}, SQLite, `"name" < ?`, []interface{}{"m"}},
		{"coalesced less", &Condition{Field: `"name"`, Operator: OpLessThan, Value: "m", Coalesce: true}, SQLite, `COALESCE("name", '') < ?`, []interface{}{"m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paramCounter := 1
			args := make([]interface{}, 0)

			sql, err := tt.cond.ToSQL(tt.dialect, &paramCounter, &args)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
			assert.Equal(t, len(tt.args)+1, paramCounter)
		})
	}
}

func TestConditionToSQL_BadPattern(t *testing.T) {
	paramCounter := 1
	args := make([]interface{}, 0)
	_, err := (&Condition{Field: "a", Operator: OpLike, Value: 3}).ToSQL(Postgres, &paramCounter, &args)
	assert.Error(t, err)
}

func TestPredicateGroup_ToSQL(t *testing.T) {
	inner := NewPredicateGroup(true,
		&Condition{Field: `"a"`, Operator: OpEqual, Value: 1},
		&Condition{Field: `"b"`, Operator: OpEqual, Value: 2},
	)
	outer := NewPredicateGroup(false, inner)
	outer.AddPredicate(&Condition{Field: `"c"`, Operator: OpIsNull})

	paramCounter := 1
	args := make([]interface{}, 0)
	sql, err := outer.ToSQL(Postgres, &paramCounter, &args)
	require.NoError(t, err)
	assert.Equal(t, `("a" = $1 OR "b" = $2) AND "c" IS NULL`, sql)
	assert.Equal(t, []interface{}{1, 2}, args)

	empty, err := NewPredicateGroup(true).ToSQL(Postgres, &paramCounter, &args)
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", empty)
}
