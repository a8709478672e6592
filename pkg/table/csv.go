package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/types"
)

// ReadCSV loads a table from CSV data whose first record is a header.
// Header names resolve against the registry the way expression identifiers
// do. A nil or empty registry declares one string column per header, at the
// header's index.
func ReadCSV(r io.Reader, registry *ident.Registry, tf *types.Factory) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV input has no header")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns, err := headerColumns(header, registry)
	if err != nil {
		return nil, err
	}

	t := New(columns, tf)
	reader.FieldsPerRecord = len(header)

	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if _, err := t.AppendText(fields...); err != nil {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	return t, nil
}

func headerColumns(header []string, registry *ident.Registry) ([]ident.Identifier, error) {
	columns := make([]ident.Identifier, len(header))

	if registry == nil || registry.Len() == 0 {
		for i, name := range header {
			columns[i] = ident.Identifier{
				Name:     strings.TrimSpace(name),
				Type:     types.Of(types.String),
				Position: i,
			}
		}
		return columns, nil
	}

	for i, name := range header {
		id, ok := registry.Resolve(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("CSV column %q is not declared in the schema", name)
		}
		columns[i] = id
	}
	return columns, nil
}

// WriteCSV writes the table with a header record, rendering values the way
// the table displays them
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Headers()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range t.Rows() {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
