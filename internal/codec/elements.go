package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/kbind/internal/k"
	"github.com/roach88/kbind/internal/kval"
)

// epoch is q's zero for every temporal type.
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func build[T any](d Descriptor, conv func(any) (T, error), wrap func(kval.Data[T]) kval.Value) (kval.Value, error) {
	if d.Atom != nil {
		x, err := conv(d.Atom)
		if err != nil {
			return nil, fmt.Errorf("atom: %w", err)
		}
		return wrap(kval.Atom(x)), nil
	}
	xs := make([]T, len(d.List))
	for i, e := range d.List {
		x, err := conv(e)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		xs[i] = x
	}
	return wrap(kval.List(xs...)), nil
}

func decodeScalar(at k.Type, d Descriptor) (kval.Value, error) {
	switch at {
	case k.TypeBoolAtom:
		return build(d, boolean, func(x kval.Data[bool]) kval.Value { return kval.Bool{Data: x} })
	case k.TypeGUIDAtom:
		return build(d, guid, func(x kval.Data[uuid.UUID]) kval.Value { return kval.GUID{Data: x} })
	case k.TypeByteAtom:
		return build(d, bounded[uint8](0, math.MaxUint8), func(x kval.Data[uint8]) kval.Value { return kval.Byte{Data: x} })
	case k.TypeShortAtom:
		return build(d, bounded[int16](math.MinInt16, math.MaxInt16), func(x kval.Data[int16]) kval.Value { return kval.Short{Data: x} })
	case k.TypeIntAtom:
		return build(d, bounded[int32](math.MinInt32, math.MaxInt32), func(x kval.Data[int32]) kval.Value { return kval.Int{Data: x} })
	case k.TypeLongAtom:
		return build(d, bounded[int64](math.MinInt64, math.MaxInt64), func(x kval.Data[int64]) kval.Value { return kval.Long{Data: x} })
	case k.TypeRealAtom:
		return build(d, real32, func(x kval.Data[float32]) kval.Value { return kval.Real{Data: x} })
	case k.TypeFloatAtom:
		return build(d, floating, func(x kval.Data[float64]) kval.Value { return kval.Float{Data: x} })
	case k.TypeSymbolAtom:
		return build(d, symbol, func(x kval.Data[string]) kval.Value { return kval.Symbol{Data: x} })
	case k.TypeTimestampAtom:
		return build(d, temporal[int64](math.MinInt64, math.MaxInt64, parseTimestamp), func(x kval.Data[int64]) kval.Value { return kval.Timestamp{Data: x} })
	case k.TypeMonthAtom:
		return build(d, temporal[int32](math.MinInt32, math.MaxInt32, parseMonth), func(x kval.Data[int32]) kval.Value { return kval.Month{Data: x} })
	case k.TypeDateAtom:
		return build(d, temporal[int32](math.MinInt32, math.MaxInt32, parseDate), func(x kval.Data[int32]) kval.Value { return kval.Date{Data: x} })
	case k.TypeDatetimeAtom:
		return build(d, datetime, func(x kval.Data[float64]) kval.Value { return kval.Datetime{Data: x} })
	case k.TypeTimespanAtom:
		return build(d, temporal[int64](math.MinInt64, math.MaxInt64, parseTimespan), func(x kval.Data[int64]) kval.Value { return kval.Timespan{Data: x} })
	case k.TypeMinuteAtom:
		return build(d, temporal[int32](math.MinInt32, math.MaxInt32, clockIn(time.Minute)), func(x kval.Data[int32]) kval.Value { return kval.Minute{Data: x} })
	case k.TypeSecondAtom:
		return build(d, temporal[int32](math.MinInt32, math.MaxInt32, clockIn(time.Second)), func(x kval.Data[int32]) kval.Value { return kval.Second{Data: x} })
	case k.TypeTimeAtom:
		return build(d, temporal[int32](math.MinInt32, math.MaxInt32, clockIn(time.Millisecond)), func(x kval.Data[int32]) kval.Value { return kval.Time{Data: x} })
	case k.TypeEnumAtom:
		return build(d, bounded[int64](math.MinInt64, math.MaxInt64), func(x kval.Data[int64]) kval.Value { return kval.Enum{Data: x, Source: d.Source} })
	}
	return nil, invalid("type %q has no scalar form", d.Type)
}

// number converts the numeric types YAML and JSON decoders produce.
func number(x any) (int64, error) {
	switch v := x.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, invalid("%d overflows a long", v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, invalid("%d overflows a long", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return 0, invalid("%v is not an integer", v)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, invalid("%s is not an integer", v)
		}
		return n, nil
	}
	return 0, invalid("expected a number, got %T", x)
}

// special resolves q's null and infinity literals, with or without a type
// letter ("0N", "0Nd", "-0W").
func special(s string, null, inf int64) (int64, bool) {
	switch {
	case strings.HasPrefix(s, "0N") && len(s) <= 3:
		return null, true
	case strings.HasPrefix(s, "0W") && len(s) <= 3:
		return inf, true
	case strings.HasPrefix(s, "-0W") && len(s) <= 4:
		return -inf, true
	}
	return 0, false
}

func integer(x any, lo, hi int64) (int64, error) {
	var n int64
	switch v := x.(type) {
	case nil:
		return lo, nil
	case string:
		if s, ok := special(v, lo, hi); ok {
			return s, nil
		}
		p, err := strconv.ParseInt(v, 0, 64)
		if err != nil {
			return 0, invalid("%q is not an integer", v)
		}
		n = p
	default:
		p, err := number(x)
		if err != nil {
			return 0, err
		}
		n = p
	}
	if n < lo || n > hi {
		return 0, invalid("%d is out of range [%d, %d]", n, lo, hi)
	}
	return n, nil
}

// bounded converts to an integer type whose null is lo and infinity hi.
func bounded[T ~uint8 | ~int16 | ~int32 | ~int64](lo, hi int64) func(any) (T, error) {
	return func(x any) (T, error) {
		n, err := integer(x, lo, hi)
		return T(n), err
	}
}

// temporal is bounded, but strings that are not null literals or plain
// integers are parsed as q text.
func temporal[T ~int32 | ~int64](lo, hi int64, parse func(string) (int64, error)) func(any) (T, error) {
	return func(x any) (T, error) {
		s, ok := x.(string)
		if !ok {
			n, err := integer(x, lo, hi)
			return T(n), err
		}
		if n, ok := special(s, lo, hi); ok {
			return T(n), nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return bounded[T](lo, hi)(n)
		}
		n, err := parse(s)
		if err != nil {
			return 0, err
		}
		if n < lo || n > hi {
			return 0, invalid("%q is out of range", s)
		}
		return T(n), nil
	}
}

func boolean(x any) (bool, error) {
	switch v := x.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "1b", "true":
			return true, nil
		case "0b", "false":
			return false, nil
		}
		return false, invalid("%q is not a boolean", v)
	}
	n, err := number(x)
	if err != nil || (n != 0 && n != 1) {
		return false, invalid("%v is not a boolean", x)
	}
	return n == 1, nil
}

func guid(x any) (uuid.UUID, error) {
	switch v := x.(type) {
	case nil:
		return uuid.Nil, nil
	case string:
		if v == "0Ng" || v == "0N" {
			return uuid.Nil, nil
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, invalid("%q is not a guid: %v", v, err)
		}
		return id, nil
	}
	return uuid.Nil, invalid("expected a guid string, got %T", x)
}

func floating(x any) (float64, error) {
	switch v := x.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		switch strings.ToLower(strings.TrimRight(v, "efz")) {
		case "0n":
			return math.NaN(), nil
		case "0w":
			return math.Inf(1), nil
		case "-0w":
			return math.Inf(-1), nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, invalid("%q is not a float", v)
		}
		return f, nil
	}
	n, err := number(x)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

func real32(x any) (float32, error) {
	f, err := floating(x)
	return float32(f), err
}

func symbol(x any) (string, error) {
	switch v := x.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimPrefix(v, "`"), nil
	case bool, int, int64, float64:
		return fmt.Sprint(v), nil
	}
	return "", invalid("expected a symbol, got %T", x)
}

func datetime(x any) (float64, error) {
	s, ok := x.(string)
	if !ok {
		return floating(x)
	}
	if f, err := floating(s); err == nil {
		return f, nil
	}
	t, err := time.Parse("2006.01.02T15:04:05", s)
	if err != nil {
		return 0, invalid("%q is not a datetime", s)
	}
	return float64(t.Sub(epoch)) / float64(24*time.Hour), nil
}

func parseTimestamp(s string) (int64, error) {
	t, err := time.Parse("2006.01.02D15:04:05", s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return 0, invalid("%q is not a timestamp", s)
	}
	return int64(t.Sub(epoch)), nil
}

func parseMonth(s string) (int64, error) {
	t, err := time.Parse("2006.01", strings.TrimSuffix(s, "m"))
	if err != nil {
		return 0, invalid("%q is not a month", s)
	}
	return int64(t.Year()-2000)*12 + int64(t.Month()) - 1, nil
}

func parseDate(s string) (int64, error) {
	t, err := time.Parse("2006.01.02", s)
	if err != nil {
		return 0, invalid("%q is not a date", s)
	}
	return (t.Unix() - epoch.Unix()) / 86400, nil
}

// parseClock reads [-]hh:mm[:ss[.fraction]] as nanoseconds.
func parseClock(s string) (int64, error) {
	neg := strings.HasPrefix(s, "-")
	whole, frac, hasFrac := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	fields := strings.Split(whole, ":")
	if len(fields) < 2 || len(fields) > 3 || (hasFrac && len(fields) != 3) {
		return 0, invalid("%q is not a clock time", s)
	}
	var secs int64
	for _, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil || n < 0 {
			return 0, invalid("%q is not a clock time", s)
		}
		secs = secs*60 + n
	}
	if len(fields) == 2 {
		secs *= 60
	}
	ns := secs * int64(time.Second)
	if hasFrac {
		if frac == "" || len(frac) > 9 {
			return 0, invalid("%q has a bad fraction", s)
		}
		n, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || n < 0 {
			return 0, invalid("%q has a bad fraction", s)
		}
		for range 9 - len(frac) {
			n *= 10
		}
		ns += n
	}
	if neg {
		ns = -ns
	}
	return ns, nil
}

// clockIn parses a clock time and counts it in units of unit.
func clockIn(unit time.Duration) func(string) (int64, error) {
	return func(s string) (int64, error) {
		ns, err := parseClock(s)
		if err != nil {
			return 0, err
		}
		return ns / int64(unit), nil
	}
}

// parseTimespan reads [-][nD]hh:mm:ss[.fraction], or a Go duration.
func parseTimespan(s string) (int64, error) {
	neg := strings.HasPrefix(s, "-")
	rest := strings.TrimPrefix(s, "-")
	var days int64
	if before, after, ok := strings.Cut(rest, "D"); ok {
		n, err := strconv.ParseInt(before, 10, 64)
		if err != nil {
			return 0, invalid("%q is not a timespan", s)
		}
		days, rest = n, after
	}
	ns, err := parseClock(rest)
	if err != nil {
		d, derr := time.ParseDuration(s)
		if derr != nil {
			return 0, invalid("%q is not a timespan", s)
		}
		return int64(d), nil
	}
	ns += days * int64(24*time.Hour)
	if neg {
		ns = -ns
	}
	return ns, nil
}

func encodeData[T any](name string, d kval.Data[T], elem func(T) any) Descriptor {
	if x, ok := d.Value(); ok {
		return Descriptor{Type: name, Atom: elem(x)}
	}
	xs := d.Values()
	list := make([]any, len(xs))
	for i, x := range xs {
		list[i] = elem(x)
	}
	return Descriptor{Type: name, List: list}
}

func intOut[T ~int16 | ~int32 | ~int64](null, inf int64) func(T) any {
	return func(x T) any {
		switch n := int64(x); n {
		case null:
			return "0N"
		case inf:
			return "0W"
		case -inf:
			return "-0W"
		default:
			return n
		}
	}
}

func floatOut[T ~float32 | ~float64](x T) any {
	f := float64(x)
	switch {
	case math.IsNaN(f):
		return "0n"
	case math.IsInf(f, 1):
		return "0w"
	case math.IsInf(f, -1):
		return "-0w"
	}
	return f
}

func encodeScalar(v kval.Value) (Descriptor, error) {
	name := TypeName(v)
	switch x := v.(type) {
	case kval.Bool:
		return encodeData(name, x.Data, func(b bool) any { return b }), nil
	case kval.GUID:
		return encodeData(name, x.Data, func(g uuid.UUID) any { return g.String() }), nil
	case kval.Byte:
		return encodeData(name, x.Data, func(b uint8) any { return int64(b) }), nil
	case kval.Short:
		return encodeData(name, x.Data, intOut[int16](math.MinInt16, math.MaxInt16)), nil
	case kval.Int:
		return encodeData(name, x.Data, intOut[int32](math.MinInt32, math.MaxInt32)), nil
	case kval.Long:
		return encodeData(name, x.Data, intOut[int64](math.MinInt64, math.MaxInt64)), nil
	case kval.Real:
		return encodeData(name, x.Data, floatOut[float32]), nil
	case kval.Float:
		return encodeData(name, x.Data, floatOut[float64]), nil
	case kval.Symbol:
		return encodeData(name, x.Data, func(s string) any { return s }), nil
	case kval.Timestamp:
		return encodeData(name, x.Data, intOut[int64](math.MinInt64, math.MaxInt64)), nil
	case kval.Month:
		return encodeData(name, x.Data, intOut[int32](math.MinInt32, math.MaxInt32)), nil
	case kval.Date:
		return encodeData(name, x.Data, intOut[int32](math.MinInt32, math.MaxInt32)), nil
	case kval.Datetime:
		return encodeData(name, x.Data, floatOut[float64]), nil
	case kval.Timespan:
		return encodeData(name, x.Data, intOut[int64](math.MinInt64, math.MaxInt64)), nil
	case kval.Minute:
		return encodeData(name, x.Data, intOut[int32](math.MinInt32, math.MaxInt32)), nil
	case kval.Second:
		return encodeData(name, x.Data, intOut[int32](math.MinInt32, math.MaxInt32)), nil
	case kval.Time:
		return encodeData(name, x.Data, intOut[int32](math.MinInt32, math.MaxInt32)), nil
	case kval.Enum:
		d := encodeData(name, x.Data, func(n int64) any { return n })
		d.Source = x.Source
		return d, nil
	}
	return Descriptor{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
}
