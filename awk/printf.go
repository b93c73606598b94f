package awk

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// sprintfOne formats a single float using an AWK OFMT/CONVFMT-style spec
// such as "%.6g", trimming nothing extra (AWK's own trailing-zero trim is
// handled by formatNum's integer fast path instead).
func sprintfOne(format string, f float64) string {
	return fmt.Sprintf(format, f)
}

// Sprintf implements AWK's printf/sprintf directive set (spec.md §4.6.7):
// %c %s %d %i %o %u %x %X %e %E %f %g %G %%, flags - + # 0 space, width and
// precision (including "*"), with excess arguments re-applying the format
// string (a POSIX requirement) and no support for positional "%N$" args.
func Sprintf(format string, args []Value, convfmt string) (string, error) {
	var out strings.Builder
	argi := 0
	nextArg := func() Value {
		if argi < len(args) {
			v := args[argi]
			argi++
			return v
		}
		return Str("")
	}

	runOnce := func(f string) error {
		i := 0
		for i < len(f) {
			c := f[i]
			if c != '%' {
				out.WriteByte(c)
				i++
				continue
			}
			start := i
			i++
			if i < len(f) && f[i] == '%' {
				out.WriteByte('%')
				i++
				continue
			}
			// flags
			for i < len(f) && strings.ContainsRune("-+ 0#", rune(f[i])) {
				i++
			}
			// width
			if i < len(f) && f[i] == '*' {
				i++
			} else {
				for i < len(f) && f[i] >= '0' && f[i] <= '9' {
					i++
				}
			}
			// precision
			if i < len(f) && f[i] == '.' {
				i++
				if i < len(f) && f[i] == '*' {
					i++
				} else {
					for i < len(f) && f[i] >= '0' && f[i] <= '9' {
						i++
					}
				}
			}
			if i >= len(f) {
				out.WriteString(f[start:i])
				return nil
			}
			verb := f[i]
			spec := f[start : i+1]
			i++

			// Resolve any "*" width/precision by substituting the next
			// argument's integer value before handing off to fmt.
			spec = resolveStars(spec, nextArg)

			switch verb {
			case 'c':
				v := nextArg()
				var s string
				if v.kind == kindStr || v.kind == kindStrnum {
					if v.str == "" {
						s = ""
					} else {
						r, _ := utf8.DecodeRuneInString(v.str)
						s = string(r)
					}
				} else {
					s = string(rune(int64(v.Num())))
				}
				out.WriteString(fmt.Sprintf(strings.Replace(spec, "c", "s", 1), s))
			case 's':
				out.WriteString(fmt.Sprintf(spec, nextArg().Str(convfmt)))
			case 'd', 'i':
				n := int64(nextArg().Num())
				out.WriteString(fmt.Sprintf(strings.NewReplacer("d", "d", "i", "d").Replace(spec), n))
			case 'o', 'x', 'X', 'u':
				n := int64(nextArg().Num())
				gv := verb
				if gv == 'u' {
					gv = 'd'
				}
				goSpec := spec[:len(spec)-1] + string(gv)
				if verb == 'u' {
					out.WriteString(fmt.Sprintf(goSpec, uint64(n)))
				} else {
					out.WriteString(fmt.Sprintf(goSpec, n))
				}
			case 'e', 'E', 'f', 'F', 'g', 'G':
				out.WriteString(fmt.Sprintf(spec, nextArg().Num()))
			default:
				out.WriteString(spec)
			}
		}
		return nil
	}

	if err := runOnce(format); err != nil {
		return "", err
	}
	// POSIX: if there are leftover arguments, re-apply the format string
	// until they're consumed.
	for argi < len(args) {
		if err := runOnce(format); err != nil {
			return "", err
		}
	}
	return out.String(), nil
}

// resolveStars substitutes a literal "*" width or precision marker in spec
// with the integer value of the next argument.
func resolveStars(spec string, nextArg func() Value) string {
	if !strings.ContainsRune(spec, '*') {
		return spec
	}
	var b strings.Builder
	for _, c := range spec {
		if c == '*' {
			n := int64(nextArg().Num())
			b.WriteString(strconv.FormatInt(n, 10))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
