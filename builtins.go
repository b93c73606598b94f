package hermit

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// runBuiltin implements spec.md §4.6's builtin set. It reports whether name
// was recognized as a builtin at all (regardless of whether it succeeded),
// so the dispatcher can fall through to external builtins otherwise.
func (r *Runner) runBuiltin(ctx context.Context, name string, args []string) bool {
	switch name {
	case ":", "true":
		r.exit = 0
	case "false":
		r.exit = 1
	case "exit":
		code := r.lastExit
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				code = n
			}
		}
		r.exit = code
		r.exiting = true
	case "return":
		code := r.exit
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				code = n
			}
		}
		r.exit = code
		r.returning = true
	case "break":
		n := 1
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil {
				n = v
			}
		}
		r.breakEnclosing = n
		r.exit = 0
	case "continue":
		n := 1
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil {
				n = v
			}
		}
		r.contnEnclosing = n
		r.exit = 0
	case "cd":
		r.builtinCd(args)
	case "pwd":
		r.outf("%s\n", r.Dir)
		r.exit = 0
	case "echo":
		r.builtinEcho(args)
	case "printf":
		r.builtinPrintf(args)
	case "export":
		r.builtinExport(args)
	case "unset":
		r.builtinUnset(args)
	case "local":
		r.builtinLocal(ctx, args)
	case "declare", "typeset", "readonly":
		r.builtinDeclare(name, args)
	case "set":
		if err := WithParams(args...)(r); err != nil {
			r.errf("set: %v\n", err)
			r.exit = 1
			return true
		}
		r.exit = 0
	case "shift":
		n := 1
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil {
				n = v
			}
		}
		if n > len(r.Params) {
			r.exit = 1
			return true
		}
		r.Params = r.Params[n:]
		r.exit = 0
	case "read":
		r.builtinRead(args)
	case "eval":
		r.builtinEval(ctx, args)
	case ".", "source":
		r.builtinSource(ctx, args)
	case "alias":
		r.builtinAlias(args)
	case "unalias":
		for _, a := range args {
			delete(r.alias, a)
		}
		r.exit = 0
	case "trap":
		r.builtinTrap(args)
	case "getopts":
		if len(args) < 2 {
			r.exit = 2
			return true
		}
		optArgs := args[2:]
		if len(args) == 2 {
			optArgs = r.Params
		}
		r.exit = r.runGetopts(args[0], args[1], optArgs)
	case "pushd":
		r.builtinPushd(args)
	case "popd":
		r.builtinPopd()
	case "dirs":
		r.outf("%s\n", strings.Join(reverseStrings(r.dirStack), " "))
		r.exit = 0
	case "type":
		r.builtinType(args)
	case "command":
		if len(args) == 0 {
			r.exit = 0
			return true
		}
		r.dispatch(ctx, args[0], args[1:])
	case "exec":
		if len(args) == 0 {
			r.exit = 0
			return true
		}
		r.dispatch(ctx, args[0], args[1:])
	case "wait":
		r.exit = 0
	default:
		return false
	}
	return true
}

func (r *Runner) builtinCd(args []string) {
	dir := r.writeEnv.Get("HOME").String()
	if len(args) > 0 {
		dir = args[0]
	}
	abs := r.absPath(dir)
	info, err := r.FileSystem.Stat(abs)
	if err != nil || !info.IsDir() {
		r.errf("cd: %s: not a directory\n", dir)
		r.exit = 1
		return
	}
	r.dirStack[len(r.dirStack)-1] = abs
	r.Dir = abs
	r.setVarString("PWD", abs)
	r.exit = 0
}

func (r *Runner) builtinEcho(args []string) {
	interpretEscapes := false
	suppressNewline := false
	for len(args) > 0 {
		switch args[0] {
		case "-e":
			interpretEscapes = true
		case "-n":
			suppressNewline = true
		case "-E":
			interpretEscapes = false
		default:
			goto done
		}
		args = args[1:]
	}
done:
	out := strings.Join(args, " ")
	if interpretEscapes {
		out = expandBackslashEscapes(out)
	}
	if !suppressNewline {
		out += "\n"
	}
	r.outf("%s", out)
	r.exit = 0
}

func expandBackslashEscapes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func (r *Runner) builtinPrintf(args []string) {
	if len(args) == 0 {
		r.exit = 0
		return
	}
	format := expandBackslashEscapes(args[0])
	rest := args[1:]
	out := sprintfShell(format, rest)
	r.outf("%s", out)
	r.exit = 0
}

// sprintfShell implements a practical subset of POSIX printf(1)'s
// directives over string arguments, re-applying the format on excess
// arguments the same way AWK's printf does (spec.md §4.6.7).
func sprintfShell(format string, args []string) string {
	var sb strings.Builder
	for len(args) > 0 || sb.Len() == 0 {
		consumed := 0
		i := 0
		for i < len(format) {
			c := format[i]
			if c != '%' {
				sb.WriteByte(c)
				i++
				continue
			}
			j := i + 1
			for j < len(format) && strings.ContainsRune("-+ 0#123456789.", rune(format[j])) {
				j++
			}
			if j >= len(format) {
				sb.WriteByte('%')
				i++
				continue
			}
			verb := format[j]
			spec := format[i : j+1]
			var arg string
			if consumed < len(args) {
				arg = args[consumed]
				consumed++
			}
			switch verb {
			case 'd', 'i':
				n, _ := strconv.Atoi(arg)
				fmt.Fprintf(&sb, spec[:len(spec)-1]+"d", n)
			case 's':
				fmt.Fprintf(&sb, spec, arg)
			case 'b':
				fmt.Fprintf(&sb, "%s", expandBackslashEscapes(arg))
			case '%':
				sb.WriteByte('%')
				consumed--
			default:
				fmt.Fprintf(&sb, spec, arg)
			}
			i = j + 1
		}
		if consumed == 0 {
			break
		}
		args = args[consumed:]
	}
	return sb.String()
}

func (r *Runner) builtinExport(args []string) {
	if len(args) == 0 {
		var names []string
		r.writeEnv.Each(func(name string, vr expand.Variable) bool {
			if vr.Exported {
				names = append(names, name)
			}
			return true
		})
		sort.Strings(names)
		for _, n := range names {
			r.outf("export %s=%q\n", n, r.writeEnv.Get(n).String())
		}
		r.exit = 0
		return
	}
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		vr := r.writeEnv.Get(name)
		if hasVal {
			vr = expandVariableFor(val)
		}
		vr.Exported = true
		vr.Set = true
		r.setVar(name, vr)
	}
	r.exit = 0
}

func (r *Runner) builtinUnset(args []string) {
	for _, a := range args {
		r.setVar(a, expand.Variable{})
		delete(r.Funcs, a)
	}
	r.exit = 0
}

func (r *Runner) builtinLocal(ctx context.Context, args []string) {
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		r.markLocal(name)
		if hasVal {
			r.setVarString(name, val)
		} else if !r.writeEnv.Get(name).IsSet() {
			r.setVarString(name, "")
		}
	}
	r.exit = 0
}

func (r *Runner) builtinDeclare(kind string, args []string) {
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		name, val, hasVal := strings.Cut(a, "=")
		vr := r.writeEnv.Get(name)
		if hasVal {
			vr = expandVariableFor(val)
		} else if !vr.IsSet() {
			vr = expandVariableFor("")
		}
		if kind == "readonly" {
			vr.ReadOnly = true
		}
		if kind == "local" {
			r.markLocal(name)
		}
		r.setVar(name, vr)
	}
	r.exit = 0
}

func (r *Runner) builtinRead(args []string) {
	names := args
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	if r.stdin == nil {
		r.exit = 1
		return
	}
	line, err := readLine(r.stdin)
	if err != nil && line == "" {
		r.exit = 1
		return
	}
	ifs := " \t\n"
	if vr := r.writeEnv.Get("IFS"); vr.IsSet() {
		ifs = vr.String()
	}
	fields := splitOnAny(line, ifs, len(names))
	for i, n := range names {
		if i < len(fields) {
			r.setVarString(n, fields[i])
		} else {
			r.setVarString(n, "")
		}
	}
	r.exit = 0
}

func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return sb.String(), nil
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			return sb.String(), err
		}
	}
}

func splitOnAny(s, chars string, maxFields int) []string {
	if chars == "" {
		return []string{s}
	}
	var fields []string
	cur := strings.Builder{}
	for _, c := range s {
		if strings.ContainsRune(chars, c) && (maxFields <= 0 || len(fields) < maxFields-1) {
			fields = append(fields, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(c)
	}
	fields = append(fields, cur.String())
	return fields
}

func (r *Runner) builtinEval(ctx context.Context, args []string) {
	src := strings.Join(args, " ")
	prog, err := syntax.NewParser().Parse(strings.NewReader(src), "")
	if err != nil {
		r.errf("eval: %v\n", err)
		r.exit = 1
		return
	}
	r.stmts(ctx, prog.Stmts)
}

func (r *Runner) builtinSource(ctx context.Context, args []string) {
	if len(args) == 0 {
		r.exit = 1
		return
	}
	data, err := r.FileSystem.ReadFile(r.absPath(args[0]))
	if err != nil {
		r.errf("source: %s: %v\n", args[0], err)
		r.exit = 1
		return
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(string(data)), args[0])
	if err != nil {
		r.errf("source: %v\n", err)
		r.exit = 1
		return
	}
	origParams := r.Params
	wasInSource := r.inSource
	r.inSource = true
	r.sourceSetParams = false
	if len(args) > 1 {
		r.Params = args[1:]
	}
	r.stmts(ctx, prog.Stmts)
	if !r.sourceSetParams {
		r.Params = origParams
	}
	r.inSource = wasInSource
}

func (r *Runner) builtinAlias(args []string) {
	if r.alias == nil {
		r.alias = map[string]alias{}
	}
	if len(args) == 0 {
		var names []string
		for n := range r.alias {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			r.outf("alias %s=...\n", n)
		}
		r.exit = 0
		return
	}
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		if !hasVal {
			continue
		}
		prog, err := syntax.NewParser().Parse(strings.NewReader(val), "")
		if err != nil || len(prog.Stmts) == 0 {
			continue
		}
		if ce, ok := prog.Stmts[0].Cmd.(*syntax.CallExpr); ok {
			r.alias[name] = alias{args: ce.Args}
		}
	}
	r.exit = 0
}

func (r *Runner) builtinTrap(args []string) {
	if len(args) < 2 {
		r.exit = 0
		return
	}
	action := args[0]
	for _, sig := range args[1:] {
		r.traps[sig] = action
	}
	r.exit = 0
}

func (r *Runner) builtinPushd(args []string) {
	if len(args) == 0 {
		if len(r.dirStack) < 2 {
			r.exit = 1
			return
		}
		r.dirStack[len(r.dirStack)-1], r.dirStack[len(r.dirStack)-2] =
			r.dirStack[len(r.dirStack)-2], r.dirStack[len(r.dirStack)-1]
		r.Dir = r.dirStack[len(r.dirStack)-1]
		r.exit = 0
		return
	}
	abs := r.absPath(args[0])
	info, err := r.FileSystem.Stat(abs)
	if err != nil || !info.IsDir() {
		r.errf("pushd: %s: not a directory\n", args[0])
		r.exit = 1
		return
	}
	r.dirStack = append(r.dirStack, abs)
	r.Dir = abs
	r.setVarString("PWD", abs)
	r.exit = 0
}

func (r *Runner) builtinPopd() {
	if len(r.dirStack) < 2 {
		r.exit = 1
		return
	}
	r.dirStack = r.dirStack[:len(r.dirStack)-1]
	r.Dir = r.dirStack[len(r.dirStack)-1]
	r.setVarString("PWD", r.Dir)
	r.exit = 0
}

func (r *Runner) builtinType(args []string) {
	for _, name := range args {
		if _, ok := r.Funcs[name]; ok {
			r.outf("%s is a function\n", name)
			continue
		}
		if _, ok := r.Commands[name]; ok {
			r.outf("%s is a registered command\n", name)
			continue
		}
		switch name {
		case "cd", "echo", "export", "set", "unset", "read", "exit", "eval", ":",
			"true", "false", "printf", "local", "declare", "source", ".", "trap",
			"getopts", "pushd", "popd", "dirs", "shift", "break", "continue", "return":
			r.outf("%s is a shell builtin\n", name)
		default:
			r.errf("type: %s: not found\n", name)
			r.exit = 1
			return
		}
	}
	r.exit = 0
}

func reverseStrings(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
