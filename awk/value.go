package awk

import (
	"math"
	"strconv"
	"strings"
)

// kind tags which of AWK's three value flavors a Value holds: POSIX
// distinguishes plain numbers, plain strings, and "numeric strings" (a
// string that arrived from input and also parses as a number), since the
// latter compares numerically against a number while a plain string never
// does (spec.md §4.6.3).
type kind int

const (
	kindUninit kind = iota
	kindNum
	kindStr
	kindStrnum
)

// Value is AWK's dynamic value: number, string, numeric-string, or
// uninitialized.
type Value struct {
	kind kind
	num  float64
	str  string
}

// Uninit is the zero value of an AWK variable or unset array element.
func Uninit() Value { return Value{kind: kindUninit} }

// Num wraps a plain numeric value.
func Num(f float64) Value { return Value{kind: kindNum, num: f} }

// Str wraps a plain string value (never compares numerically).
func Str(s string) Value { return Value{kind: kindStr, str: s} }

// Strnum wraps a value that came from input (a field, getline, ARGV,
// ENVIRON, or a -v assignment): if it looks like a number, it is tagged as
// a numeric-string and participates in numeric comparisons.
func Strnum(s string) Value {
	if f, ok := looksNumeric(s); ok {
		return Value{kind: kindStrnum, str: s, num: f}
	}
	return Value{kind: kindStr, str: s}
}

func looksNumeric(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsUninit reports whether v is an uninitialized variable/element.
func (v Value) IsUninit() bool { return v.kind == kindUninit }

// IsNumeric reports whether v should compare numerically against a number:
// true for plain numbers, numeric-strings and uninitialized values, false
// for plain strings. An uninitialized value therefore compares as 0 against
// a number and as "" against a plain string.
func (v Value) IsNumeric() bool {
	return v.kind == kindNum || v.kind == kindStrnum || v.kind == kindUninit
}

// Num coerces v to a number: arithmetic context. Non-numeric strings yield
// the leading numeric prefix, or 0 if there is none (POSIX strtod-style).
func (v Value) Num() float64 {
	switch v.kind {
	case kindNum, kindStrnum:
		return v.num
	case kindUninit:
		return 0
	default:
		return prefixNum(v.str)
	}
}

func prefixNum(s string) float64 {
	s = strings.TrimLeft(s, " \t\n")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	sawDigit := false
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		sawDigit = true
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			sawDigit = true
		}
	}
	if !sawDigit {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && s[j] >= '0' && s[j] <= '9' {
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			i = j
		}
	}
	_ = start
	f, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0
	}
	return f
}

// Str coerces v to a string. Non-integral numbers are formatted with format,
// a "%.6g"-style spec: callers pass OFMT for print and CONVFMT for
// everything else (concatenation, array subscripts, string comparisons).
func (v Value) Str(format string) string {
	switch v.kind {
	case kindStr, kindStrnum:
		return v.str
	case kindUninit:
		return ""
	default:
		return formatNum(v.num, format)
	}
}

func formatNum(f float64, format string) string {
	if math.IsNaN(f) {
		return "nan"
	}
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return sprintfOne(format, f)
}

// Bool reports v's truthiness: nonzero number, numeric-string whose number
// is nonzero, or non-empty string.
func (v Value) Bool() bool {
	switch v.kind {
	case kindNum:
		return v.num != 0
	case kindStrnum:
		return v.num != 0
	case kindUninit:
		return false
	default:
		return v.str != ""
	}
}

// Compare implements spec.md §4.6.3/§8's numeric-string law: numeric
// comparison iff both operands are numeric (number, numeric-string or
// uninitialized), string comparison otherwise. Returns <0, 0, >0.
func Compare(a, b Value, convfmt string) int {
	if a.IsNumeric() && b.IsNumeric() {
		an, bn := a.Num(), b.Num()
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	as, bs := a.Str(convfmt), b.Str(convfmt)
	return strings.Compare(as, bs)
}
