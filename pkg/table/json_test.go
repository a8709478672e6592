package table

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AppendJSON(t *testing.T) {
	tbl, p := newPeople(t)

	rows := []string{
		`["Rossi", 41, true, "2020-01-01"]`,
		`{"NAME": "Dupont", "age": "29", "active": false}`,
		`{"name": null, "joined": "2022-12-31"}`,
	}
	for _, row := range rows {
		_, err := tbl.AppendJSON(json.RawMessage(row))
		require.NoError(t, err, row)
	}
	require.Equal(t, 6, tbl.Len())

	assert.Equal(t, []string{"Rossi", "41", "true", "2020-01-01"}, tbl.Record(3).Strings())
	assert.Equal(t, int64(29), tbl.Record(4).Value(1))
	assert.Nil(t, tbl.Record(4).Value(3))
	assert.Nil(t, tbl.Record(5).Value(0))

	node, err := p.Parse("age > 30 & active = true")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, tbl.Filter(node))
}

func TestTable_AppendJSON_Errors(t *testing.T) {
	tbl, _ := newPeople(t)

	tests := []struct {
		name string
		row  string
		err  string
	}{
		{"short array", `["Rossi", 41]`, "expected 4 values, got 2"},
		{"scalar", `42`, "must be an array or an object"},
		{"unknown key", `{"salary": 10}`, `unknown column "salary"`},
		{"bad value", `{"age": "old"}`, "column age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tbl.AppendJSON(json.RawMessage(tt.row))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
	assert.Equal(t, 3, tbl.Len())
}

func TestJSONText(t *testing.T) {
	assert.Equal(t, "", jsonText(nil))
	assert.Equal(t, "true", jsonText(true))
	assert.Equal(t, "1.50", jsonText(json.Number("1.50")))
	assert.Equal(t, `{"a":1}`, jsonText(map[string]interface{}{"a": json.Number("1")}))
}
