package sed

import "strings"

// doSubst implements s///, including the Nth-match and combined Nth+g
// flags and & / \N / \U \L \E case-conversion escapes in the replacement
// text (spec.md §4.7). It reports whether any replacement was made, which
// is what t/T branch on — not whether the resulting text differs from the
// original (a same-text match still counts, per the REDESIGN FLAG in
// spec.md §9's Open Questions).
func (m *Machine) doSubst(cmd *Command) (bool, error) {
	matches := cmd.SubRe.FindAllStringSubmatchIndex(m.pattern, -1)
	if len(matches) == 0 {
		return false, nil
	}
	nth := cmd.SubNth
	if nth <= 0 {
		nth = 1
	}
	if nth > len(matches) {
		return false, nil
	}
	var b strings.Builder
	last := 0
	replaced := false
	for i, loc := range matches {
		matchIdx := i + 1
		if matchIdx < nth {
			continue
		}
		if matchIdx > nth && !cmd.SubGlobal {
			break
		}
		b.WriteString(m.pattern[last:loc[0]])
		b.WriteString(expandSedRepl(cmd.SubRepl, m.pattern, loc))
		last = loc[1]
		replaced = true
	}
	if !replaced {
		return false, nil
	}
	b.WriteString(m.pattern[last:])
	m.pattern = b.String()
	return true, nil
}

// expandSedRepl expands & (whole match), \N (Nth group), \& \\ escapes,
// and the \U \L \u \l \E case-conversion directives GNU sed supports.
func expandSedRepl(repl, src string, loc []int) string {
	var b strings.Builder
	mode := caseNone
	oneShot := caseNone
	write := func(s string) {
		for _, r := range s {
			c := string(r)
			if oneShot != caseNone {
				c = applyCase(c, oneShot)
				oneShot = caseNone
			} else if mode != caseNone {
				c = applyCase(c, mode)
			}
			b.WriteString(c)
		}
	}
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c == '&' {
			write(src[loc[0]:loc[1]])
			continue
		}
		if c == '\\' && i+1 < len(repl) {
			n := repl[i+1]
			switch {
			case n >= '0' && n <= '9':
				g := int(n - '0')
				if 2*g+1 < len(loc) && loc[2*g] >= 0 {
					write(src[loc[2*g]:loc[2*g+1]])
				}
				i++
				continue
			case n == '&':
				write("&")
				i++
				continue
			case n == '\\':
				write(`\`)
				i++
				continue
			case n == 'U':
				mode = caseUpper
				i++
				continue
			case n == 'L':
				mode = caseLower
				i++
				continue
			case n == 'E':
				mode = caseNone
				i++
				continue
			case n == 'u':
				oneShot = caseUpper
				i++
				continue
			case n == 'l':
				oneShot = caseLower
				i++
				continue
			default:
				write(string(n))
				i++
				continue
			}
		}
		write(string(c))
	}
	return b.String()
}

type caseMode int

const (
	caseNone caseMode = iota
	caseUpper
	caseLower
)

func applyCase(s string, mode caseMode) string {
	switch mode {
	case caseUpper:
		return strings.ToUpper(s)
	case caseLower:
		return strings.ToLower(s)
	default:
		return s
	}
}
