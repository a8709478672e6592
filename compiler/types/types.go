// Package types describes the declared column types a filter can compare
// against, and converts raw expression text into typed values.
package types

import (
	"fmt"
	"strings"
)

// Kind is the closed set of column kinds the coercion factory understands.
type Kind int

const (
	String Kind = iota
	Bool
	Int
	Uint
	Float
	Char
	Date
	Enum
	Custom
)

// String returns the lower-case name of the kind, also used as the registry key
// for built-in kinds.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Uint:
		return "uint"
	case Float:
		return "float"
	case Char:
		return "char"
	case Date:
		return "date"
	case Enum:
		return "enum"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a kind name (as written in schema files) to a Kind.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "text":
		return String, true
	case "bool", "boolean":
		return Bool, true
	case "int", "integer", "long":
		return Int, true
	case "uint", "unsigned":
		return Uint, true
	case "float", "double", "decimal":
		return Float, true
	case "char", "character":
		return Char, true
	case "date", "time", "timestamp":
		return Date, true
	case "enum":
		return Enum, true
	case "custom":
		return Custom, true
	default:
		return 0, false
	}
}

// Type is the declared type of a column.
// Enum and Custom types are identified by Name; built-in kinds ignore it.
type Type struct {
	Kind   Kind
	Name   string
	Values []string // Enum constants in declaration order
}

// Of returns the Type for a built-in kind
func Of(kind Kind) Type {
	return Type{Kind: kind}
}

// EnumOf declares an enum type with its constants in declaration order
func EnumOf(name string, values ...string) Type {
	return Type{Kind: Enum, Name: name, Values: values}
}

// CustomOf declares an application type handled by a registered builder
func CustomOf(name string) Type {
	return Type{Kind: Custom, Name: name}
}

// Key returns the registry key used for builders, comparators and formatters
func (t Type) Key() string {
	if (t.Kind == Enum || t.Kind == Custom) && t.Name != "" {
		return t.Name
	}
	return t.Kind.String()
}

// IsString reports whether values of this type are plain strings
func (t Type) IsString() bool {
	return t.Kind == String
}

// Equal reports whether two types resolve to the same declared type
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind || t.Key() != other.Key() {
		return false
	}
	if len(t.Values) != len(other.Values) {
		return false
	}
	for i := range t.Values {
		if t.Values[i] != other.Values[i] {
			return false
		}
	}
	return true
}

// String returns a human-readable representation of the type
func (t Type) String() string {
	switch t.Kind {
	case Enum:
		return "enum " + t.Name
	case Custom:
		return t.Name
	default:
		return t.Kind.String()
	}
}

// Ordinal returns the declaration index of an enum constant, matching exactly
// first and ignoring case second.
func (t Type) Ordinal(name string) (int, bool) {
	for i, v := range t.Values {
		if v == name {
			return i, true
		}
	}
	for i, v := range t.Values {
		if strings.EqualFold(v, name) {
			return i, true
		}
	}
	return -1, false
}

// EnumValue is a coerced enum constant
type EnumValue struct {
	Type    string
	Name    string
	Ordinal int
}

// String returns the constant name
func (e EnumValue) String() string {
	return e.Name
}
