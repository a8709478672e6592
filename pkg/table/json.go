package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AppendJSON adds a record from a JSON row. A row is either an array holding
// one value per column in declaration order, or an object keyed by column
// name. Object keys match names case-insensitively; null and missing keys
// are absent values.
func (t *Table) AppendJSON(raw json.RawMessage) (*Record, error) {
	fields, err := t.jsonFields(raw)
	if err != nil {
		return nil, err
	}
	return t.AppendText(fields...)
}

func (t *Table) jsonFields(raw json.RawMessage) ([]string, error) {
	fields := make([]string, len(t.columns))

	var values []interface{}
	if err := decodeNumbers(raw, &values); err == nil {
		if len(values) != len(t.columns) {
			return nil, fmt.Errorf("expected %d values, got %d", len(t.columns), len(values))
		}
		for i, v := range values {
			fields[i] = jsonText(v)
		}
		return fields, nil
	}

	var object map[string]interface{}
	if err := decodeNumbers(raw, &object); err != nil {
		return nil, fmt.Errorf("must be an array or an object")
	}
	for name, v := range object {
		i := t.columnIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		fields[i] = jsonText(v)
	}
	return fields, nil
}

// columnIndex prefers an exact name over the first case-insensitive match
func (t *Table) columnIndex(name string) int {
	folded := -1
	for i, c := range t.columns {
		if c.Name == name {
			return i
		}
		if folded < 0 && strings.EqualFold(c.Name, name) {
			folded = i
		}
	}
	return folded
}

func decodeNumbers(raw json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// jsonText renders a JSON value the way a CSV cell would carry it
func jsonText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
