package hermit

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/hermit-sh/hermit/fs"
	"github.com/hermit-sh/hermit/limits"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// RunnerContext is the data passed to every registered [CommandFunc],
// mirroring spec.md §4.8 step 3's CommandContext: args, env, fs, cwd,
// stdin/stdout/stderr, limits, and a re-entrant exec capability.
type RunnerContext struct {
	Context context.Context

	Env expand.Environ

	FileSystem fs.FileSystem
	Dir        string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Limits *limits.Guard

	// Exec re-enters the top-level evaluator on the given command line,
	// bounded by the recursion limit (spec.md §4.8 step 3).
	Exec func(ctx context.Context, cmdline string) (int, error)
}

func (r *Runner) runnerContext(ctx context.Context) RunnerContext {
	return RunnerContext{
		Context:    ctx,
		Env:        r.writeEnv,
		FileSystem: r.FileSystem,
		Dir:        r.Dir,
		Stdin:      r.stdin,
		Stdout:     r.stdout,
		Stderr:     r.stderr,
		Limits:     r.Limits,
		Exec:       r.reenter,
	}
}

// reenter implements the dispatcher's re-entrant exec capability: parse and
// run cmdline as a brand-new top-level program against a subshell of the
// current environment, bounded by the recursion limit.
func (r *Runner) reenter(ctx context.Context, cmdline string) (int, error) {
	if err := r.Limits.Enter(); err != nil {
		return 1, err
	}
	defer r.Limits.Leave()

	prog, err := syntax.NewParser().Parse(strings.NewReader(cmdline), "")
	if err != nil {
		return 1, err
	}
	sub := r.Subshell()
	err = sub.Run(ctx, prog)
	return sub.exit, err
}

// dispatch implements spec.md §4.8 step 2: function, then builtin, then
// registered external builtin, then a path pointing at one; otherwise
// exit 127.
func (r *Runner) dispatch(ctx context.Context, name string, args []string) {
	if body, ok := r.Funcs[name]; ok {
		r.callFunc(ctx, name, body, args)
		return
	}

	if r.runBuiltin(ctx, name, args) {
		return
	}

	if fn, ok := r.Commands[name]; ok {
		r.runExternal(ctx, fn, args)
		return
	}

	if strings.ContainsRune(name, '/') {
		base := path.Base(name)
		if fn, ok := r.Commands[base]; ok {
			if _, err := r.FileSystem.Stat(r.absPath(name)); err == nil {
				r.runExternal(ctx, fn, args)
				return
			}
		}
	} else if found, err := lookPathDir(r.FileSystem, r.Dir, r.writeEnv, name); err == nil {
		if fn, ok := r.Commands[path.Base(found)]; ok {
			r.runExternal(ctx, fn, args)
			return
		}
	}

	lookupErr := newLookupError(name)
	r.errf("%s\n", lookupErr.Error())
	r.exit = lookupErr.ExitCode
}

func (r *Runner) runExternal(ctx context.Context, fn CommandFunc, args []string) {
	if err := r.Limits.Enter(); err != nil {
		r.fatalErr = err
		return
	}
	defer r.Limits.Leave()
	err := fn(r.runnerContext(ctx), args)
	if err != nil {
		if es, ok := asExitStatus(err); ok {
			r.exit = int(es)
			return
		}
		r.errf("%v\n", err)
		r.exit = 1
		return
	}
	r.exit = 0
}

func (r *Runner) callFunc(ctx context.Context, name string, body *syntax.Stmt, args []string) {
	if err := r.Limits.Enter(); err != nil {
		r.fatalErr = err
		return
	}
	defer r.Limits.Leave()

	origParams := r.Params
	wasInFunc := r.inFunc
	r.Params = args
	r.inFunc = true
	r.local = append(r.local, map[string]expand.Variable{})

	r.stmt(ctx, body)

	scope := r.local[len(r.local)-1]
	r.local = r.local[:len(r.local)-1]
	for varName, prior := range scope {
		r.setVar(varName, prior)
	}

	r.Params = origParams
	r.inFunc = wasInFunc
	r.returning = false
}

func asExitStatus(err error) (ExitStatus, bool) {
	es, ok := err.(ExitStatus)
	return es, ok
}
