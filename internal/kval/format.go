package kval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/kbind/internal/k"
)

// epoch is q's zero for every temporal type.
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Datetimes outside years 0001 to 9999 print as infinities.
const (
	minDatetime = -730119.0 // 0001.01.01
	maxDatetime = 2921940.0 // 10000.01.01
)

const (
	nullInt32 = math.MinInt32
	nullInt64 = math.MinInt64
	nullInt16 = math.MinInt16
)

// Format renders v in q syntax, the way the q console prints it on one
// line (what -3! returns).
func Format(v Value) string {
	if v == nil {
		return "::"
	}
	return v.String()
}

func cloneString(s string) string {
	return strings.Clone(s)
}

// integral renders q's null and infinities for the integer-backed types.
func integral(x, null, inf int64, char string) (string, bool) {
	switch x {
	case null:
		return "0N" + char, true
	case inf:
		return "0W" + char, true
	case -inf:
		return "-0W" + char, true
	}
	return "", false
}

func floatText(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "0n"
	case math.IsInf(f, 1):
		return "0w"
	case math.IsInf(f, -1):
		return "-0w"
	}
	return strconv.FormatFloat(f, 'g', 7, bits)
}

func pad(n int64, width int) string {
	s := strconv.FormatInt(n, 10)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// clock renders x as hh:mm (parts 2) or hh:mm:ss (parts 3). When
// fracPerSecond is set, x counts sub-second units and fracDigits of them
// are printed after the seconds.
func clock(x int64, parts int, fracDigits int, fracPerSecond int64) string {
	neg := x < 0
	if neg {
		x = -x
	}
	var frac int64
	if fracPerSecond > 0 {
		frac, x = x%fracPerSecond, x/fracPerSecond
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	switch parts {
	case 2:
		b.WriteString(pad(x/60, 2) + ":" + pad(x%60, 2))
	default:
		b.WriteString(pad(x/3600, 2) + ":" + pad(x/60%60, 2) + ":" + pad(x%60, 2))
	}
	if fracDigits > 0 {
		b.WriteString("." + pad(frac, fracDigits))
	}
	return b.String()
}

// elemText renders one element of an atom tag without any type suffix.
// The second result reports whether the element is a null or infinity,
// which carry their own suffix.
func elemText(at k.Type, x any) (string, bool) {
	switch at {
	case k.TypeBoolAtom:
		if x.(bool) {
			return "1", false
		}
		return "0", false
	case k.TypeGUIDAtom:
		return x.(uuid.UUID).String(), false
	case k.TypeByteAtom:
		return fmt.Sprintf("%02x", x.(uint8)), false
	case k.TypeShortAtom:
		v := x.(int16)
		if s, ok := integral(int64(v), nullInt16, math.MaxInt16, ""); ok {
			return s, true
		}
		return strconv.Itoa(int(v)), false
	case k.TypeIntAtom:
		v := x.(int32)
		if s, ok := integral(int64(v), nullInt32, math.MaxInt32, ""); ok {
			return s, true
		}
		return strconv.Itoa(int(v)), false
	case k.TypeLongAtom:
		v := x.(int64)
		if s, ok := integral(v, nullInt64, math.MaxInt64, ""); ok {
			return s, true
		}
		return strconv.FormatInt(v, 10), false
	case k.TypeRealAtom:
		v := float64(x.(float32))
		if math.IsNaN(v) {
			return "0N", true
		}
		if math.IsInf(v, 0) {
			return strings.Replace(floatText(v, 32), "w", "W", 1), true
		}
		return floatText(v, 32), false
	case k.TypeFloatAtom:
		v := x.(float64)
		return floatText(v, 64), math.IsNaN(v) || math.IsInf(v, 0)
	case k.TypeSymbolAtom:
		return "`" + x.(string), false
	case k.TypeTimestampAtom:
		v := x.(int64)
		if s, ok := integral(v, nullInt64, math.MaxInt64, "p"); ok {
			return s, true
		}
		return epoch.Add(time.Duration(v)).Format("2006.01.02D15:04:05.000000000"), false
	case k.TypeMonthAtom:
		v := x.(int32)
		if s, ok := integral(int64(v), nullInt32, math.MaxInt32, "m"); ok {
			return s, true
		}
		y, m := 2000+floorDiv(int64(v), 12), floorMod(int64(v), 12)+1
		return pad(y, 4) + "." + pad(m, 2), false
	case k.TypeDateAtom:
		v := x.(int32)
		if s, ok := integral(int64(v), nullInt32, math.MaxInt32, "d"); ok {
			return s, true
		}
		return epoch.AddDate(0, 0, int(v)).Format("2006.01.02"), false
	case k.TypeDatetimeAtom:
		v := x.(float64)
		if math.IsNaN(v) {
			return "0Nz", true
		}
		switch {
		case math.IsInf(v, 0):
			return strings.Replace(floatText(v, 64), "w", "Wz", 1), true
		case v < minDatetime:
			return "-0Wz", true
		case v >= maxDatetime:
			return "0Wz", true
		}
		const msPerDay = 86400000
		ms := int64(math.Round(v * msPerDay))
		day := epoch.AddDate(0, 0, int(floorDiv(ms, msPerDay)))
		return day.Add(time.Duration(floorMod(ms, msPerDay)) * time.Millisecond).Format("2006.01.02T15:04:05.000"), false
	case k.TypeTimespanAtom:
		v := x.(int64)
		if s, ok := integral(v, nullInt64, math.MaxInt64, "n"); ok {
			return s, true
		}
		neg := ""
		if v < 0 {
			neg, v = "-", -v
		}
		day := int64(86400 * time.Second)
		return neg + strconv.FormatInt(v/day, 10) + "D" + clock(v%day, 3, 9, int64(time.Second)), false
	case k.TypeMinuteAtom:
		v := x.(int32)
		if s, ok := integral(int64(v), nullInt32, math.MaxInt32, "u"); ok {
			return s, true
		}
		return clock(int64(v), 2, 0, 0), false
	case k.TypeSecondAtom:
		v := x.(int32)
		if s, ok := integral(int64(v), nullInt32, math.MaxInt32, "v"); ok {
			return s, true
		}
		return clock(int64(v), 3, 0, 0), false
	case k.TypeTimeAtom:
		v := x.(int32)
		if s, ok := integral(int64(v), nullInt32, math.MaxInt32, "t"); ok {
			return s, true
		}
		return clock(int64(v), 3, 3, 1000), false
	}
	return fmt.Sprint(x), false
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

// suffix returns the type letter q appends to atoms and lists of at.
func suffix(at k.Type, texts []string, special []bool) string {
	switch at {
	case k.TypeBoolAtom:
		return "b"
	case k.TypeShortAtom:
		return "h"
	case k.TypeIntAtom:
		return "i"
	case k.TypeRealAtom:
		return "e"
	case k.TypeMonthAtom:
		if allSpecial(special) {
			return ""
		}
		return "m"
	case k.TypeFloatAtom:
		for i, s := range texts {
			if special[i] || strings.ContainsAny(s, ".e") {
				return ""
			}
		}
		return "f"
	}
	return ""
}

func allSpecial(special []bool) bool {
	for _, s := range special {
		if !s {
			return false
		}
	}
	return true
}

func formatTyped[T Scalar](at k.Type, d Data[T]) string {
	if x, ok := d.Value(); ok {
		s, sp := elemText(at, x)
		switch {
		case at == k.TypeByteAtom:
			return "0x" + s
		case sp && at != k.TypeShortAtom && at != k.TypeIntAtom && at != k.TypeRealAtom:
			return s
		}
		return s + suffix(at, []string{s}, []bool{sp})
	}

	xs := d.Values()
	if len(xs) == 0 {
		return "`" + at.String() + "$()"
	}
	texts := make([]string, len(xs))
	special := make([]bool, len(xs))
	for i, x := range xs {
		texts[i], special[i] = elemText(at, x)
	}

	var body string
	switch at {
	case k.TypeBoolAtom, k.TypeSymbolAtom:
		body = strings.Join(texts, "") + suffix(at, texts, special)
	case k.TypeByteAtom:
		body = "0x" + strings.Join(texts, "")
	default:
		body = strings.Join(texts, " ") + suffix(at, texts, special)
	}
	if len(xs) == 1 {
		return "," + body
	}
	return body
}

func formatEnum(e Enum) string {
	prefix := "`" + e.Source + "!"
	if x, ok := e.Value(); ok {
		return prefix + strconv.FormatInt(x, 10)
	}
	xs := e.Values()
	if len(xs) == 0 {
		return prefix + "`long$()"
	}
	texts := make([]string, len(xs))
	for i, x := range xs {
		texts[i] = strconv.FormatInt(x, 10)
	}
	if len(xs) == 1 {
		return prefix + "," + texts[0]
	}
	return prefix + strings.Join(texts, " ")
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&b, `\%03o`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func formatString(s string) string {
	if len(s) == 1 {
		return "," + quote(s)
	}
	return quote(s)
}

func formatCompound(l CompoundList) string {
	switch len(l) {
	case 0:
		return "()"
	case 1:
		return "," + Format(l[0])
	}
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = Format(v)
	}
	return "(" + strings.Join(parts, ";") + ")"
}

func formatDict(d Dict) string {
	prefix := ""
	if d.sorted {
		prefix = "`s#"
	}
	keys := Format(d.keys)
	if strings.HasPrefix(keys, ",") || strings.HasPrefix(keys, "+") {
		keys = "(" + keys + ")"
	}
	return prefix + keys + "!" + Format(d.values)
}
