package hermit

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

func (r *Runner) fillExpandConfig(ctx context.Context) {
	r.ectx = ctx
	r.ecfg = &expand.Config{Env: r.writeEnv}
}

// piece is one expanded fragment of a word, tagged with whether it came
// from a quoted context (spec.md §4.5 steps 5-7: quoting controls whether
// IFS splitting and pathname expansion apply to the fragment).
type piece struct {
	text   string
	quoted bool
}

// expandLiteral expands a word to a single string with no IFS splitting and
// no pathname expansion — used for assignment right-hand sides, case
// patterns' subject word, `local`/`declare` names, and arithmetic contexts.
func (r *Runner) expandLiteral(ctx context.Context, w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	pieces, err := r.expandParts(ctx, w.Parts, false)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range pieces {
		sb.WriteString(p.text)
	}
	return sb.String(), nil
}

// expandFields runs the full word-expansion pipeline (spec.md §4.5) over a
// list of words, producing the final argv-style field list.
func (r *Runner) expandFields(ctx context.Context, words []*syntax.Word) ([]string, error) {
	var fields []string
	for _, w := range words {
		if only := soleParamAt(w); only != "" {
			fields = append(fields, r.expandParamsList(only)...)
			continue
		}
		pieces, err := r.expandParts(ctx, w.Parts, false)
		if err != nil {
			return nil, err
		}
		fields = append(fields, r.splitAndGlob(pieces)...)
	}
	return fields, nil
}

// soleParamAt reports whether w is exactly a bare $@ or $* parameter
// expansion (the one case that can expand to more than one field on its
// own), returning "@" or "*".
func soleParamAt(w *syntax.Word) string {
	if w == nil || len(w.Parts) != 1 {
		return ""
	}
	pe, ok := w.Parts[0].(*syntax.ParamExp)
	if !ok || pe.Param == nil {
		return ""
	}
	if pe.Param.Value == "@" || pe.Param.Value == "*" {
		return pe.Param.Value
	}
	return ""
}

func (r *Runner) expandParamsList(kind string) []string {
	return append([]string{}, r.Params...)
}

// splitAndGlob applies IFS word-splitting to the unquoted spans of pieces,
// then pathname expansion to each resulting field (spec.md §4.5 steps 5-6).
func (r *Runner) splitAndGlob(pieces []piece) []string {
	var text strings.Builder
	var mask []bool
	for _, p := range pieces {
		for _, c := range p.text {
			text.WriteRune(c)
			mask = append(mask, p.quoted)
		}
	}
	runes := []rune(text.String())

	ifs := " \t\n"
	if vr := r.writeEnv.Get("IFS"); vr.IsSet() {
		ifs = vr.String()
	}

	type rawField struct {
		text       string
		allQuoted  bool
		sawQuoted  bool
		nonEmptySrc bool
	}
	var raws []rawField
	var cur strings.Builder
	curHasAny := false
	curAllQuoted := true
	flush := func() {
		if curHasAny {
			raws = append(raws, rawField{text: cur.String(), allQuoted: curAllQuoted, nonEmptySrc: true})
		}
		cur.Reset()
		curHasAny = false
		curAllQuoted = true
	}
	i := 0
	for i < len(runes) {
		c := runes[i]
		if !mask[i] && ifs != "" && strings.ContainsRune(ifs, c) {
			flush()
			i++
			continue
		}
		cur.WriteRune(c)
		curHasAny = true
		if !mask[i] {
			curAllQuoted = false
		}
		i++
	}
	flush()
	if len(raws) == 0 && len(runes) == 0 {
		// an entirely empty, quoted word still yields one empty field
		return nil
	}

	var out []string
	for _, rf := range raws {
		if !rf.allQuoted && !r.opts[optNoGlob] && hasGlobMeta(rf.text) {
			matches := globExpand(r.FileSystem, r.Dir, rf.text)
			if len(matches) > 0 {
				out = append(out, matches...)
				continue
			}
		}
		out = append(out, rf.text)
	}
	return out
}

// expandParts walks a list of word parts (spec.md §4.5 steps 1-4: tilde,
// parameter/variable, command substitution, arithmetic expansion).
// quoted forces every produced piece to be marked quoted, for recursion
// into double-quoted contexts.
func (r *Runner) expandParts(ctx context.Context, parts []syntax.WordPart, quoted bool) ([]piece, error) {
	var out []piece
	for i, part := range parts {
		switch x := part.(type) {
		case *syntax.Lit:
			val := x.Value
			if !quoted && i == 0 {
				val = r.expandTilde(val)
			}
			out = append(out, piece{text: unescapeLit(val, quoted), quoted: quoted})
		case *syntax.SglQuoted:
			out = append(out, piece{text: x.Value, quoted: true})
		case *syntax.DblQuoted:
			inner, err := r.expandParts(ctx, x.Parts, true)
			if err != nil {
				return nil, err
			}
			var sb strings.Builder
			for _, p := range inner {
				sb.WriteString(p.text)
			}
			out = append(out, piece{text: sb.String(), quoted: true})
		case *syntax.ParamExp:
			val, err := r.expandParam(ctx, x, quoted)
			if err != nil {
				return nil, err
			}
			out = append(out, piece{text: val, quoted: quoted})
		case *syntax.CmdSubst:
			val, err := r.expandCmdSubst(ctx, x)
			if err != nil {
				return nil, err
			}
			if !quoted {
				val = strings.TrimRight(val, "\n")
			}
			out = append(out, piece{text: val, quoted: quoted})
		case *syntax.ArithmExp:
			out = append(out, piece{text: strconv.Itoa(r.arithm(ctx, x.X)), quoted: quoted})
		case *syntax.ExtGlob:
			out = append(out, piece{text: x.Pattern.Value, quoted: quoted})
		case *syntax.ProcSubst:
			out = append(out, piece{text: "", quoted: quoted})
		default:
			out = append(out, piece{text: "", quoted: quoted})
		}
	}
	return out, nil
}

func (r *Runner) expandTilde(s string) string {
	if s == "~" {
		return r.writeEnv.Get("HOME").String()
	}
	if strings.HasPrefix(s, "~/") {
		return r.writeEnv.Get("HOME").String() + s[1:]
	}
	if s == "~root" {
		return "/root"
	}
	if strings.HasPrefix(s, "~root/") {
		return "/root" + s[len("~root"):]
	}
	return s
}

// unescapeLit removes backslash escapes from an unquoted literal fragment;
// double-quoted literals only treat \$ \` \" \\ \newline specially, which
// the parser already resolves into the Lit's Value for us in most cases, so
// this just strips stray leading escapes the parser left in for globbing
// purposes outside of quotes.
func unescapeLit(s string, quoted bool) string {
	if quoted || !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			sb.WriteByte(s[i])
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func (r *Runner) expandCmdSubst(ctx context.Context, cs *syntax.CmdSubst) (string, error) {
	if err := r.Limits.Enter(); err != nil {
		return "", err
	}
	defer r.Limits.Leave()
	sub := r.Subshell()
	var buf bytes.Buffer
	sub.stdout = &buf
	sub.stderr = r.stderr
	sub.fillExpandConfig(ctx)
	sub.stmts(ctx, cs.Stmts)
	r.lastExpandExit = sub.exit
	return buf.String(), nil
}

// expandParam implements ${...} / $name (spec.md §4.4's ParameterExpansion
// operator list): length, removal (#/##/%/%%), substitution (/ //),
// case-conversion (^ ^^ , ,,), default/assign/error/alt (:- := :? :+),
// and substring (:N:M). The @ transforms (@Q, @E, @A, @a) are not applied:
// the value is returned unchanged.
func (r *Runner) expandParam(ctx context.Context, pe *syntax.ParamExp, quoted bool) (string, error) {
	name := ""
	if pe.Param != nil {
		name = pe.Param.Value
	}
	if pe.Excl {
		// ${!name} indirection; the ${!prefix*} name-listing form is not
		// told apart from it
		target := r.lookupVar(name).String()
		return r.lookupVar(target).String(), nil
	}

	raw := r.paramRaw(name)

	if pe.Length {
		return strconv.Itoa(len([]rune(raw))), nil
	}

	if pe.Index != nil {
		// indexed/associative element access: not modeled beyond scalars.
		return raw, nil
	}

	val := raw

	if pe.Slice != nil {
		offset := 0
		if pe.Slice.Offset != nil {
			offset = r.arithm(ctx, pe.Slice.Offset)
		}
		runes := []rune(val)
		if offset < 0 {
			offset += len(runes)
		}
		if offset < 0 {
			offset = 0
		}
		if offset > len(runes) {
			offset = len(runes)
		}
		length := len(runes) - offset
		if pe.Slice.Length != nil {
			length = r.arithm(ctx, pe.Slice.Length)
			if length < 0 {
				length = 0
			}
		}
		end := offset + length
		if end > len(runes) {
			end = len(runes)
		}
		val = string(runes[offset:end])
	}

	if pe.Repl != nil {
		orig, _ := r.expandLiteral(ctx, pe.Repl.Orig)
		with, _ := r.expandLiteral(ctx, pe.Repl.With)
		if orig != "" {
			if pe.Repl.All {
				val = strings.ReplaceAll(val, orig, with)
			} else {
				val = strings.Replace(val, orig, with, 1)
			}
		}
	}

	if pe.Exp != nil {
		word, _ := r.expandLiteral(ctx, pe.Exp.Word)
		op := pe.Exp.Op.String()
		switch op {
		case "-", ":-":
			if val == "" && (op == ":-" || !r.lookupVar(name).IsSet()) {
				val = word
			}
		case "=", ":=":
			if val == "" && (op == ":=" || !r.lookupVar(name).IsSet()) {
				val = word
				r.setVarString(name, val)
			}
		case "?", ":?":
			if val == "" && (op == ":?" || !r.lookupVar(name).IsSet()) {
				msg := word
				if msg == "" {
					msg = "parameter null or not set"
				}
				r.errf("%s: %s\n", name, msg)
				r.exit = 1
				r.setErrExit()
				return "", nil
			}
		case "+", ":+":
			if val != "" || (op == "+" && r.lookupVar(name).IsSet()) {
				val = word
			} else {
				val = ""
			}
		case "#":
			if strings.HasPrefix(val, word) {
				val = val[len(word):]
			}
		case "##":
			val = trimLongestPrefix(val, word)
		case "%":
			if strings.HasSuffix(val, word) {
				val = val[:len(val)-len(word)]
			}
		case "%%":
			val = trimLongestSuffix(val, word)
		case "^":
			val = mapFirst(val, strings.ToUpper)
		case "^^":
			val = strings.ToUpper(val)
		case ",":
			val = mapFirst(val, strings.ToLower)
		case ",,":
			val = strings.ToLower(val)
		}
	}

	return val, nil
}

func (r *Runner) paramRaw(name string) string {
	switch name {
	case "@", "*":
		return strings.Join(r.Params, " ")
	case "#":
		return strconv.Itoa(len(r.Params))
	case "?":
		return strconv.Itoa(r.lastExit)
	case "$":
		return "1"
	case "0":
		return r.filename
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 1 {
		if n-1 < len(r.Params) {
			return r.Params[n-1]
		}
		return ""
	}
	return r.lookupVar(name).String()
}

func mapFirst(s string, fn func(string) string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return fn(string(r[0])) + string(r[1:])
}

// trimLongestPrefix and trimLongestSuffix implement the ## and %% glob
// trims by matching progressively shorter/longer candidate substrings with
// matchGlob's shell-glob semantics (`*`/`?`/`[...]`, with no special
// treatment of "/").
func trimLongestPrefix(s, pattern string) string {
	for i := len(s); i >= 0; i-- {
		if ok, _ := globLikeMatch(pattern, s[:i]); ok {
			return s[i:]
		}
	}
	return s
}

func trimLongestSuffix(s, pattern string) string {
	for i := 0; i <= len(s); i++ {
		if ok, _ := globLikeMatch(pattern, s[i:]); ok {
			return s[:i]
		}
	}
	return s
}

func globLikeMatch(pattern, s string) (bool, error) {
	return matchGlob(pattern, s), nil
}
