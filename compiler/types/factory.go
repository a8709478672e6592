package types

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/conduit-lang/rowfilter/compiler/errors"
)

// DefaultDateLayout is the layout used to read and render dates
const DefaultDateLayout = "2006-01-02"

// Builder converts trimmed expression text into a typed value
type Builder func(text string) (interface{}, error)

// Formatter renders a typed value the way it is displayed in a table
type Formatter func(v interface{}) string

// Config holds the settings that influence coercion and comparison
type Config struct {
	// DateLayout is the time layout used to parse and render dates
	DateLayout string
	// CompareRenderedDates compares dates at the precision DateLayout renders,
	// so values differing only in hidden fields (milliseconds) are equal
	CompareRenderedDates bool
}

// DefaultConfig returns the default coercion configuration
func DefaultConfig() Config {
	return Config{
		DateLayout: DefaultDateLayout,
	}
}

// Factory converts text into typed values per declared column type, and orders
// values of the same type. Registrations must happen before the factory is
// shared with concurrent parses.
type Factory struct {
	config      Config
	builders    map[string]Builder
	comparators map[string]Comparator
	formatters  map[string]Formatter
}

// NewFactory creates a factory with the built-in coercions
func NewFactory(config Config) *Factory {
	if config.DateLayout == "" {
		config.DateLayout = DefaultDateLayout
	}
	return &Factory{
		config:      config,
		builders:    make(map[string]Builder),
		comparators: make(map[string]Comparator),
		formatters:  make(map[string]Formatter),
	}
}

// Config returns the factory configuration
func (f *Factory) Config() Config {
	return f.config
}

// SetBuilder registers a coercion for a type, replacing the built-in one.
// A nil builder removes the registration.
func (f *Factory) SetBuilder(t Type, b Builder) {
	if b == nil {
		delete(f.builders, t.Key())
		return
	}
	f.builders[t.Key()] = b
}

// SetComparator registers an ordering for a type, replacing the natural one.
// A nil comparator removes the registration.
func (f *Factory) SetComparator(t Type, c Comparator) {
	if c == nil {
		delete(f.comparators, t.Key())
		return
	}
	f.comparators[t.Key()] = c
}

// SetFormatter registers how values of a type are rendered
func (f *Factory) SetFormatter(t Type, fm Formatter) {
	if fm == nil {
		delete(f.formatters, t.Key())
		return
	}
	f.formatters[t.Key()] = fm
}

// Comparator returns the registered comparator for a type, if any
func (f *Factory) Comparator(t Type) (Comparator, bool) {
	c, ok := f.comparators[t.Key()]
	return c, ok
}

// Build converts text into a value of type t. Failures are coercion errors
// positioned relative to the start of text; callers shift them into
// expression coordinates.
func (f *Factory) Build(t Type, text string) (interface{}, error) {
	if b, ok := f.builders[t.Key()]; ok {
		v, err := b(text)
		if err != nil {
			return nil, invalidValue(t, text, err)
		}
		return v, nil
	}

	v, err := f.buildBuiltin(t, text)
	if err != nil {
		return nil, invalidValue(t, text, err)
	}
	return v, nil
}

func (f *Factory) buildBuiltin(t Type, text string) (interface{}, error) {
	switch t.Kind {
	case String:
		return text, nil
	case Bool:
		return strconv.ParseBool(text)
	case Int:
		return strconv.ParseInt(text, 10, 64)
	case Uint:
		return strconv.ParseUint(text, 10, 64)
	case Float:
		return strconv.ParseFloat(text, 64)
	case Char:
		if utf8.RuneCountInString(text) != 1 {
			return nil, fmt.Errorf("expected a single character")
		}
		r, _ := utf8.DecodeRuneInString(text)
		return r, nil
	case Date:
		return time.Parse(f.config.DateLayout, text)
	case Enum:
		i, ok := t.Ordinal(text)
		if !ok {
			return nil, fmt.Errorf("not a constant of %s", t.Name)
		}
		return EnumValue{Type: t.Name, Name: t.Values[i], Ordinal: i}, nil
	default:
		// Unregistered types keep the raw text
		return text, nil
	}
}

func invalidValue(t Type, text string, cause error) *errors.FilterError {
	return errors.Newf(errors.ErrInvalidValue, 0, "Invalid %s value '%s'", t, text).WithCause(cause)
}

// Ordered reports whether values of t support <, <=, > and >=
func (f *Factory) Ordered(t Type) bool {
	if _, ok := f.comparators[t.Key()]; ok {
		return true
	}
	switch t.Kind {
	case Bool, Custom:
		return false
	default:
		return true
	}
}

// Compare orders a and b as values of type t. The second result is false when
// either value is nil or the values cannot be compared.
func (f *Factory) Compare(t Type, a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if c, ok := f.comparators[t.Key()]; ok {
		return c(a, b), true
	}
	return f.naturalCompare(t, a, b)
}

// Format renders a value of type t. Nil renders as the empty string.
func (f *Factory) Format(t Type, v interface{}) string {
	if v == nil {
		return ""
	}
	if fm, ok := f.formatters[t.Key()]; ok {
		return fm(v)
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(f.config.DateLayout)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case rune:
		if t.Kind == Char {
			return string(val)
		}
	}
	return stringOf(v)
}
