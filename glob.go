package hermit

import (
	"path"
	"sort"
	"strings"

	"github.com/hermit-sh/hermit/fs"
)

// matchGlob matches a shell glob pattern (*, ?, [...]) against a plain
// string, without path.Match's "/" segment restriction — used by the ##/%%
// parameter-expansion trims, which operate on arbitrary strings.
func matchGlob(pattern, s string) bool {
	return matchGlobRunes([]rune(pattern), []rune(s))
}

func matchGlobRunes(pat, s []rune) bool {
	if len(pat) == 0 {
		return len(s) == 0
	}
	switch pat[0] {
	case '*':
		for i := 0; i <= len(s); i++ {
			if matchGlobRunes(pat[1:], s[i:]) {
				return true
			}
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return matchGlobRunes(pat[1:], s[1:])
	case '[':
		if len(s) == 0 {
			return false
		}
		end := indexRune(pat, ']', 1)
		if end < 0 {
			return pat[0] == s[0] && matchGlobRunes(pat[1:], s[1:])
		}
		set := pat[1:end]
		negate := len(set) > 0 && (set[0] == '!' || set[0] == '^')
		if negate {
			set = set[1:]
		}
		matched := false
		for i := 0; i < len(set); i++ {
			if i+2 < len(set) && set[i+1] == '-' {
				if s[0] >= set[i] && s[0] <= set[i+2] {
					matched = true
				}
				i += 2
			} else if set[i] == s[0] {
				matched = true
			}
		}
		if matched == negate {
			return false
		}
		return matchGlobRunes(pat[end+1:], s[1:])
	default:
		if len(s) == 0 || pat[0] != s[0] {
			return false
		}
		return matchGlobRunes(pat[1:], s[1:])
	}
}

func indexRune(s []rune, r rune, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == r {
			return i
		}
	}
	return -1
}

// hasGlobMeta reports whether s contains an unescaped shell glob
// metacharacter (spec.md §4.5 step 6).
func hasGlobMeta(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// globExpand expands pattern (relative to dir, which may itself contain a
// leading "/") against the virtual filesystem, matching one path segment at
// a time with [path.Match]'s bracket-expression/star/question semantics.
// There is no third-party glob library in the retrieval pack that targets
// POSIX shell pathname expansion (gobwas/glob there is pulled in only as a
// lint-tool transitive dependency, and implements a different, non-shell
// glob syntax), so this single concern is built on the standard library;
// see DESIGN.md.
func globExpand(fsys fs.FileSystem, dir, pattern string) []string {
	abs := pattern
	if !path.IsAbs(abs) {
		abs = path.Join(dir, abs)
	}
	segments := strings.Split(strings.TrimPrefix(abs, "/"), "/")

	matches := []string{"/"}
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		var next []string
		literal := !hasGlobMeta(seg)
		for _, base := range matches {
			if literal {
				cand := path.Join(base, seg)
				if _, err := fsys.Lstat(cand); err == nil {
					next = append(next, cand)
				}
				continue
			}
			entries, err := fsys.ReadDir(base)
			if err != nil {
				continue
			}
			for _, e := range entries {
				name := e.Name()
				if !strings.HasPrefix(seg, ".") && strings.HasPrefix(name, ".") {
					continue
				}
				if matchGlob(seg, name) {
					next = append(next, path.Join(base, name))
				}
			}
		}
		matches = next
		if len(matches) == 0 {
			return nil
		}
	}
	sort.Strings(matches)
	return matches
}
