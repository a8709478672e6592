package types

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// Comparator orders two non-nil values of the same declared type, returning a
// negative number, zero or a positive number.
type Comparator func(a, b interface{}) int

// number is a normalized numeric value
type number struct {
	i     int64
	f     float64
	isInt bool
}

// toNumber normalizes every Go numeric representation a row may hold
func toNumber(v interface{}) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{i: int64(n), isInt: true}, true
	case int8:
		return number{i: int64(n), isInt: true}, true
	case int16:
		return number{i: int64(n), isInt: true}, true
	case int32:
		return number{i: int64(n), isInt: true}, true
	case int64:
		return number{i: n, isInt: true}, true
	case uint:
		return fromUint(uint64(n)), true
	case uint8:
		return fromUint(uint64(n)), true
	case uint16:
		return fromUint(uint64(n)), true
	case uint32:
		return fromUint(uint64(n)), true
	case uint64:
		return fromUint(n), true
	case float32:
		return number{f: float64(n)}, true
	case float64:
		return number{f: n}, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return number{i: i, isInt: true}, true
		}
		if f, err := n.Float64(); err == nil {
			return number{f: f}, true
		}
	}
	return number{}, false
}

func fromUint(u uint64) number {
	if u > math.MaxInt64 {
		return number{f: float64(u)}
	}
	return number{i: int64(u), isInt: true}
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func compareNumbers(a, b interface{}) (int, bool) {
	na, ok := toNumber(a)
	if !ok {
		return 0, false
	}
	nb, ok := toNumber(b)
	if !ok {
		return 0, false
	}
	if na.isInt && nb.isInt {
		return compareOrdered(na.i, nb.i), true
	}
	fa, fb := na.float(), nb.float()
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return 0, false
	}
	return compareOrdered(fa, fb), true
}

func compareOrdered[T int64 | float64 | rune | int](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toRune(v interface{}) (rune, bool) {
	switch c := v.(type) {
	case rune:
		return c, true
	case byte:
		return rune(c), true
	case string:
		r := []rune(c)
		if len(r) == 1 {
			return r[0], true
		}
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// enumOrdinal resolves a row value of an enum column to its declaration index.
// Rows may carry EnumValue, the constant name, or the ordinal itself.
func enumOrdinal(t Type, v interface{}) (int, bool) {
	switch e := v.(type) {
	case EnumValue:
		return e.Ordinal, true
	case *EnumValue:
		if e != nil {
			return e.Ordinal, true
		}
	case string:
		return t.Ordinal(e)
	case fmt.Stringer:
		return t.Ordinal(e.String())
	}
	if n, ok := toNumber(v); ok && n.isInt {
		return int(n.i), true
	}
	return 0, false
}

func toBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case *bool:
		if b != nil {
			return *b, true
		}
	}
	return false, false
}

// naturalCompare is the ordering used when no comparator is registered for a
// type. The second result is false when the values cannot be compared.
func (f *Factory) naturalCompare(t Type, a, b interface{}) (int, bool) {
	switch t.Kind {
	case String:
		return strings.Compare(stringOf(a), stringOf(b)), true
	case Bool:
		ba, ok := toBool(a)
		if !ok {
			return 0, false
		}
		bb, ok := toBool(b)
		if !ok {
			return 0, false
		}
		if ba == bb {
			return 0, true
		}
		if !ba {
			return -1, true
		}
		return 1, true
	case Int, Uint, Float:
		return compareNumbers(a, b)
	case Char:
		ra, ok := toRune(a)
		if !ok {
			return 0, false
		}
		rb, ok := toRune(b)
		if !ok {
			return 0, false
		}
		return compareOrdered(ra, rb), true
	case Date:
		ta, ok := toTime(a)
		if !ok {
			return 0, false
		}
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		if f.config.CompareRenderedDates {
			ta, tb = f.truncate(ta), f.truncate(tb)
		}
		return compareTimes(ta, tb), true
	case Enum:
		oa, ok := enumOrdinal(t, a)
		if !ok {
			return 0, false
		}
		ob, ok := enumOrdinal(t, b)
		if !ok {
			return 0, false
		}
		return compareOrdered(oa, ob), true
	default:
		if reflect.DeepEqual(a, b) {
			return 0, true
		}
		return strings.Compare(stringOf(a), stringOf(b)), true
	}
}

// truncate drops the precision the date layout does not render
func (f *Factory) truncate(t time.Time) time.Time {
	rendered, err := time.ParseInLocation(f.config.DateLayout, t.Format(f.config.DateLayout), t.Location())
	if err != nil {
		return t
	}
	return rendered
}

func stringOf(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
