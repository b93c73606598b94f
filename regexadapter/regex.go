// Package regexadapter expands POSIX bracket character classes and
// normalizes BRE/ERE escape differences before compiling with the standard
// library's RE2 engine, so AWK, SED, and the shell's [[ =~ ]] all share one
// compile-and-cache path (spec.md §4.2).
//
// RE2 is the only regex engine in the retrieval pack's dependency surface
// (no example repo vendors an alternative); see DESIGN.md for why this one
// concern is built on the standard library rather than a third-party engine.
package regexadapter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var posixClasses = map[string]string{
	"alpha":  "A-Za-z",
	"digit":  "0-9",
	"alnum":  "A-Za-z0-9",
	"space":  " \\t\\n\\r\\f\\v",
	"upper":  "A-Z",
	"lower":  "a-z",
	"punct":  "!-/:-@\\[-`{-~",
	"blank":  " \\t",
	"xdigit": "0-9A-Fa-f",
	"graph":  "!-~",
	"print":  " -~",
	"cntrl":  "\\x00-\\x1f\\x7f",
}

// ExpandClasses replaces every `[:name:]` POSIX class reference (valid only
// inside a bracket expression) with its equivalent character set.
func ExpandClasses(pattern string) string {
	if !strings.Contains(pattern, "[:") {
		return pattern
	}
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		if pattern[i] == '\\' && i+1 < len(pattern) {
			b.WriteByte(pattern[i])
			b.WriteByte(pattern[i+1])
			i += 2
			continue
		}
		if strings.HasPrefix(pattern[i:], "[:") {
			end := strings.Index(pattern[i:], ":]")
			if end >= 0 {
				name := pattern[i+2 : i+end]
				if repl, ok := posixClasses[name]; ok {
					b.WriteString(repl)
					i += end + 2
					continue
				}
			}
		}
		b.WriteByte(pattern[i])
		i++
	}
	return b.String()
}

// braKindEscapes are the BRE metacharacters that, when backslash-escaped,
// mean "treat as ERE special" (and the reverse when the caller is already
// in ERE mode).
var braKindEscapes = []byte{'+', '?', '|', '(', ')', '{', '}'}

// normalizeBRE rewrites a Basic Regular Expression's escaped metacharacters
// (`\+ \? \| \( \) \{n,m\}`) into their ERE (unescaped) form, and escapes
// the bare ERE metacharacters so they're treated literally, since Go's
// regexp package only understands ERE/PCRE-ish syntax.
func normalizeBRE(pattern string) string {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		if c == '\\' && i+1 < len(pattern) {
			next := pattern[i+1]
			if isBREMeta(next) {
				b.WriteByte(next) // \+ -> + (ERE meaning)
				i += 2
				continue
			}
			b.WriteByte(c)
			b.WriteByte(next)
			i += 2
			continue
		}
		if isBREMeta(c) {
			b.WriteByte('\\')
			b.WriteByte(c) // bare + ? | ( ) { } are literal in BRE
			i++
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func isBREMeta(c byte) bool {
	for _, m := range braKindEscapes {
		if m == c {
			return true
		}
	}
	return false
}

type cacheKey struct {
	pattern string
	ere     bool
	icase   bool
}

var (
	cacheMu sync.Mutex
	cache   = map[cacheKey]*regexp.Regexp{}
)

// Compile expands POSIX classes and, when ere is false, rewrites BRE escapes
// into the ERE form Go's regexp engine expects, then compiles (caching by
// (pattern, ere, icase)). Every caller must route through here rather than
// calling regexp.Compile directly, so the cache and class expansion stay
// uniform across AWK/SED/Bash.
func Compile(pattern string, ere bool, icase bool) (*regexp.Regexp, error) {
	key := cacheKey{pattern: pattern, ere: ere, icase: icase}
	cacheMu.Lock()
	if re, ok := cache[key]; ok {
		cacheMu.Unlock()
		return re, nil
	}
	cacheMu.Unlock()

	expanded := ExpandClasses(pattern)
	if !ere {
		expanded = normalizeBRE(expanded)
	}
	if icase {
		expanded = "(?i)" + expanded
	}
	re, err := regexp.Compile(expanded)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression %q: %w", pattern, err)
	}
	cacheMu.Lock()
	cache[key] = re
	cacheMu.Unlock()
	return re, nil
}

// MustCompile is like Compile but panics on error; used for fixed,
// known-good internal patterns only.
func MustCompile(pattern string, ere bool, icase bool) *regexp.Regexp {
	re, err := Compile(pattern, ere, icase)
	if err != nil {
		panic(err)
	}
	return re
}
