package hermit

import (
	"fmt"
	"path"

	"github.com/hermit-sh/hermit/fs"

	"mvdan.cc/sh/v3/expand"
)

func pathClean(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}

// absPath resolves rel against the interpreter's current directory and the
// virtual filesystem's symlink-aware resolver (spec.md §4.1).
func (r *Runner) absPath(rel string) string {
	home := r.writeEnv.Get("HOME").String()
	if home == "" {
		home = "/"
	}
	resolved, err := fs.ResolvePath(r.FileSystem, r.Dir, rel, home)
	if err != nil {
		if path.IsAbs(rel) {
			return path.Clean(rel)
		}
		return path.Clean(path.Join(r.Dir, rel))
	}
	return resolved
}

func (r *Runner) setVarString(name, value string) {
	r.setVar(name, expand.Variable{Set: true, Kind: expand.String, Str: value})
}

func expandVariableFor(value string) expand.Variable {
	return expand.Variable{Set: true, Kind: expand.String, Str: value}
}

func (r *Runner) setVar(name string, vr expand.Variable) {
	if err := r.writeEnv.Set(name, vr); err != nil {
		r.errf("%s: %v\n", name, err)
	}
}

// lookupVar reads a variable, raising a nounset error via fatalErr when the
// shell's `set -u` option is active and the name is unset.
func (r *Runner) lookupVar(name string) expand.Variable {
	vr := r.writeEnv.Get(name)
	if !vr.IsSet() && r.opts[optNoUnset] {
		r.errf("%s: unbound variable\n", name)
		r.exit = 1
		r.setErrExit()
	}
	return vr
}

func (r *Runner) outf(format string, args ...any) {
	out := fmt.Sprintf(format, args...)
	if err := r.Limits.Output(len(out)); err != nil {
		r.fatalErr = err
		return
	}
	fmt.Fprint(r.stdout, out)
}

func (r *Runner) errf(format string, args ...any) {
	out := fmt.Sprintf(format, args...)
	if err := r.Limits.Output(len(out)); err != nil {
		r.fatalErr = err
		return
	}
	fmt.Fprint(r.stderr, out)
}

// setErrExit stops the current statement list when `errexit` is set, by
// marking the runner as fatally exiting with the current code.
func (r *Runner) setErrExit() {
	if r.opts[optErrExit] && !r.noErrExit {
		r.exiting = true
		r.lastExit = r.exit
	}
}
