// Package schema loads column declarations from YAML files and turns them
// into the identifiers filter expressions resolve against.
//
//	columns:
//	  - name: age
//	    type: int
//	  - name: status
//	    type: enum
//	    values: [Draft, Published, Archived]
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/types"
)

// Schema is the decoded form of a schema file
type Schema struct {
	Table   string   `yaml:"table,omitempty"`
	Columns []Column `yaml:"columns"`
}

// Column declares one column
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	// TypeName names enum and custom types; defaults to the column name
	TypeName string   `yaml:"type_name,omitempty"`
	Values   []string `yaml:"values,omitempty"`
	// Position overrides the column index; nil means declaration order
	Position *int `yaml:"position,omitempty"`
}

// Load reads and validates a schema file
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates schema YAML. Unknown keys are rejected.
func Parse(data []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Schema
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("schema is empty")
		}
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks names, types and positions
func (s *Schema) Validate() error {
	if len(s.Columns) == 0 {
		return errors.New("schema declares no columns")
	}

	names := make(map[string]bool, len(s.Columns))
	positions := make(map[int]string, len(s.Columns))

	for i, c := range s.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("column %d: name is required", i+1)
		}
		if names[name] {
			return fmt.Errorf("column %q declared twice", name)
		}
		names[name] = true

		kind, ok := types.ParseKind(c.Type)
		if !ok {
			return fmt.Errorf("column %q: unknown type %q", name, c.Type)
		}
		if kind == types.Enum && len(c.Values) == 0 {
			return fmt.Errorf("column %q: enum needs at least one value", name)
		}
		if kind != types.Enum && len(c.Values) > 0 {
			return fmt.Errorf("column %q: values are only allowed for enums", name)
		}

		pos := c.position(i)
		if pos < 0 {
			return fmt.Errorf("column %q: position must not be negative", name)
		}
		if other, taken := positions[pos]; taken {
			return fmt.Errorf("columns %q and %q share position %d", other, name, pos)
		}
		positions[pos] = name
	}
	return nil
}

func (c Column) position(index int) int {
	if c.Position != nil {
		return *c.Position
	}
	return index
}

// ColumnType returns the declared type of the column. Call Validate first.
func (c Column) ColumnType() types.Type {
	kind, _ := types.ParseKind(c.Type)

	typeName := c.TypeName
	if typeName == "" {
		typeName = strings.TrimSpace(c.Name)
	}

	switch kind {
	case types.Enum:
		return types.EnumOf(typeName, c.Values...)
	case types.Custom:
		return types.CustomOf(typeName)
	default:
		return types.Of(kind)
	}
}

// Identifiers returns one identifier per column in declaration order
func (s *Schema) Identifiers() []ident.Identifier {
	ids := make([]ident.Identifier, len(s.Columns))
	for i, c := range s.Columns {
		ids[i] = ident.Identifier{
			Name:     strings.TrimSpace(c.Name),
			Type:     c.ColumnType(),
			Position: c.position(i),
		}
	}
	return ids
}

// Marshal renders the schema back to YAML
func (s *Schema) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// FromIdentifiers builds a schema describing existing identifiers
func FromIdentifiers(ids []ident.Identifier) *Schema {
	s := &Schema{Columns: make([]Column, len(ids))}
	for i, id := range ids {
		c := Column{Name: id.Name, Type: id.Type.Kind.String()}
		if id.Type.Kind == types.Enum || id.Type.Kind == types.Custom {
			c.TypeName = id.Type.Name
			c.Values = id.Type.Values
		}
		if id.Position != i {
			pos := id.Position
			c.Position = &pos
		}
		s.Columns[i] = c
	}
	return s
}
