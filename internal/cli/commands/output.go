package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/conduit-lang/rowfilter/internal/cli/ui"
	"github.com/conduit-lang/rowfilter/pkg/table"
)

// Output formats accepted by --format
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

func validFormat(format string) error {
	switch format {
	case formatTable, formatCSV, formatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported format %q (expected table, csv or json)", format)
	}
}

// writeTable renders the rows of t in the requested format
func writeTable(w io.Writer, t *table.Table, format string, noColor bool) error {
	switch format {
	case formatCSV:
		return table.WriteCSV(w, t)
	case formatJSON:
		records := make([]map[string]interface{}, 0, t.Len())
		for _, r := range t.Records() {
			records = append(records, jsonRecord(t, r))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(records)
	default:
		out := ui.NewTable(w, t.Headers(), &ui.TableOptions{NoColor: noColor})
		for _, row := range t.Rows() {
			out.AddRow(row...)
		}
		out.Render()
		return nil
	}
}

// jsonRecord keeps numbers and booleans typed and renders everything else
// (dates, enums, chars, custom values) as display text
func jsonRecord(t *table.Table, r *table.Record) map[string]interface{} {
	out := r.Map()
	for _, c := range t.Columns() {
		switch out[c.Name].(type) {
		case nil, bool, string, int64, uint64, float64:
		default:
			out[c.Name] = r.StringValue(c.Position)
		}
	}
	return out
}
