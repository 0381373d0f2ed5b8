package condition

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnconvertible is returned by a Converter that cannot parse a raw value.
var ErrUnconvertible = errors.New("condition: value cannot be converted")

// Converter turns a raw column value into a typed one. Failures must wrap
// ErrUnconvertible.
type Converter func(raw string) (any, error)

// MySQLDatetimeLayout is the layout the binlog uses for DATETIME columns.
const MySQLDatetimeLayout = "2006-01-02 15:04:05"

var (
	String Converter = func(raw string) (any, error) {
		return raw, nil
	}

	// Bool accepts strconv.ParseBool input, so TINYINT(1) "0"/"1" works.
	Bool Converter = func(raw string) (any, error) {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, unconvertible(raw, "bool")
		}
		return b, nil
	}

	Int64 Converter = func(raw string) (any, error) {
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, unconvertible(raw, "int64")
		}
		return i, nil
	}

	Uint64 Converter = func(raw string) (any, error) {
		u, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, unconvertible(raw, "uint64")
		}
		return u, nil
	}

	Float64 Converter = func(raw string) (any, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, unconvertible(raw, "float64")
		}
		return f, nil
	}

	Decimal Converter = func(raw string) (any, error) {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, unconvertible(raw, "decimal")
		}
		return d, nil
	}
)

// Time parses values with the given layout in UTC.
func Time(layout string) Converter {
	return func(raw string) (any, error) {
		t, err := time.ParseInLocation(layout, strings.TrimSpace(raw), time.UTC)
		if err != nil {
			return nil, unconvertible(raw, "time")
		}
		return t, nil
	}
}

// ConverterByName maps the type names used in rule files to converters.
func ConverterByName(name string) (Converter, error) {
	switch strings.ToLower(name) {
	case "", "string", "text":
		return String, nil
	case "bool", "boolean":
		return Bool, nil
	case "int", "int64":
		return Int64, nil
	case "uint", "uint64":
		return Uint64, nil
	case "float", "float64", "double":
		return Float64, nil
	case "decimal":
		return Decimal, nil
	case "time", "datetime":
		return Time(MySQLDatetimeLayout), nil
	case "date":
		return Time("2006-01-02"), nil
	}
	return nil, errors.New("condition: unknown value type " + strconv.Quote(name))
}

type unconvertibleError struct {
	raw    string
	target string
}

func (e *unconvertibleError) Error() string {
	return "condition: cannot convert " + strconv.Quote(e.raw) + " to " + e.target
}

func (e *unconvertibleError) Unwrap() error {
	return ErrUnconvertible
}

func unconvertible(raw, target string) error {
	return &unconvertibleError{raw: raw, target: target}
}

func equalValues(a, b any) bool {
	switch av := a.(type) {
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Equal(bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	}
	return a == b
}

// compareValues orders two values of the same converted type. ok is false
// for values that have no order or differ in type.
func compareValues(a, b any) (cmp int, ok bool) {
	switch av := a.(type) {
	case int64:
		bv, isSame := b.(int64)
		if !isSame {
			return 0, false
		}
		return compareOrdered(av, bv), true
	case uint64:
		bv, isSame := b.(uint64)
		if !isSame {
			return 0, false
		}
		return compareOrdered(av, bv), true
	case float64:
		bv, isSame := b.(float64)
		if !isSame {
			return 0, false
		}
		return compareOrdered(av, bv), true
	case string:
		bv, isSame := b.(string)
		if !isSame {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case decimal.Decimal:
		bv, isSame := b.(decimal.Decimal)
		if !isSame {
			return 0, false
		}
		return av.Cmp(bv), true
	case time.Time:
		bv, isSame := b.(time.Time)
		if !isSame {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func compareOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
