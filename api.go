package hermit

import (
	"context"
	"fmt"
	"io"
	iofs "io/fs"
	"maps"

	"github.com/hermit-sh/hermit/fs"
	"github.com/hermit-sh/hermit/limits"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// CommandFunc is the signature every external builtin (registered command)
// satisfies, whether it is a VFS utility shim (cat, ls, mkdir, ...) or one
// of the embedded language cores (awk, sed).
type CommandFunc func(RunnerContext, []string) error

// A Runner interprets shell programs against a virtual filesystem. It can be
// reused, but it is not safe for concurrent use. Use [NewRunner] to build a
// new Runner.
//
// Runner's exported fields are meant to be configured via [runnerOption];
// once a Runner has been created, the fields should be treated as read-only.
type Runner struct {
	// Env specifies the initial environment for the interpreter, which must
	// not be nil. It can only be set via [WithEnv].
	Env expand.Environ

	writeEnv expand.WriteEnviron

	// Dir specifies the working directory of the command, which must be an
	// absolute path. It can only be set via [WithDir].
	Dir string

	// Params are the current shell parameters, e.g. from running a shell
	// file or calling a function. Accessible via the $@/$* family of vars.
	Params []string

	Vars  map[string]expand.Variable
	Funcs map[string]*syntax.Stmt

	FileSystem fs.FileSystem

	// Commands holds every external builtin known to this Runner: VFS
	// utility shims plus the embedded AWK/SED cores, looked up by the
	// command dispatcher (spec.md §4.8 step 2c).
	Commands map[string]CommandFunc

	// Limits bounds loop iterations, call/exec-reentry depth, and combined
	// stdout+stderr size, shared with the AWK and SED interpreters when
	// they're invoked as external builtins.
	Limits *limits.Guard

	alias map[string]alias

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	ecfg *expand.Config
	ectx context.Context

	lastExpandExit int

	didReset bool

	filename string

	breakEnclosing, contnEnclosing int

	inLoop       bool
	inFunc       bool
	inSource     bool
	handlingTrap bool

	sourceSetParams bool

	noErrExit bool

	fatalErr  error
	returning bool
	exiting   bool

	nonFatalHandlerErr error

	exit     int
	lastExit int

	opts runnerOpts

	origDir    string
	origParams []string
	origOpts   runnerOpts
	origStdin  io.Reader
	origStdout io.Writer
	origStderr io.Writer

	dirStack     []string
	dirBootstrap [1]string

	optState getopts

	keepRedirs bool

	// traps holds the shell command string registered by `trap cmd SIG`,
	// keyed by the trap's name (EXIT, ERR, or a signal name). Only EXIT and
	// ERR are actually fired (spec.md's non-goals exclude signal delivery).
	traps map[string]string

	// openedForWrite tracks, for the current top-level Run invocation, which
	// VFS paths a `>` redirection has already truncated: the first write
	// overwrites, every subsequent one within the same exec appends
	// (spec.md §4.5/§5 "openedFiles state is per-exec invocation").
	openedForWrite map[string]bool

	// local holds one frame per active function call. Each frame maps a
	// name declared local/declare/readonly in that call to the value it
	// shadowed in the enclosing scope at the moment it was first marked
	// local (the zero expand.Variable if the name was previously unset),
	// so callFunc can restore it instead of unconditionally unsetting it.
	local []map[string]expand.Variable
}

type alias struct {
	args  []*syntax.Word
	blank bool
}

func (r *Runner) optByFlag(flag byte) *bool {
	for i, opt := range &shellOptsTable {
		if opt.flag == flag {
			return &r.opts[i]
		}
	}
	return nil
}

// NewRunner creates a new Runner, applying a number of options. If applying
// any of the options results in an error, it is returned.
func NewRunner(opts ...runnerOption) (*Runner, error) {
	r := &Runner{
		FileSystem: fs.NewMemFS(),
		Dir:        "/",
		Commands:   map[string]CommandFunc{},
		Limits:     limits.NewGuard(limits.Default()),
	}
	r.dirStack = r.dirBootstrap[:0]

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// runnerOption can be passed to [NewRunner] to alter a [Runner]'s behaviour.
type runnerOption func(*Runner) error

// Option is the exported alias for runnerOption, so callers outside this
// package (cmd/hermit, hermit/config) can hold a slice of options built up
// dynamically before passing them to [NewRunner].
type Option = runnerOption

// WithCommand registers an external builtin under name (spec.md §4.8 2c).
func WithCommand(name string, fn CommandFunc) runnerOption {
	return func(r *Runner) error {
		r.Commands[name] = fn
		return nil
	}
}

// WithEnv sets the interpreter's environment.
func WithEnv(env expand.Environ) runnerOption {
	return func(r *Runner) error {
		r.Env = env
		return nil
	}
}

// WithFileSystem sets the interpreter's virtual filesystem.
func WithFileSystem(f fs.FileSystem) runnerOption {
	return func(r *Runner) error {
		r.FileSystem = f
		return nil
	}
}

// WithLimits overrides the default execution-limit guard.
func WithLimits(l limits.Limits) runnerOption {
	return func(r *Runner) error {
		r.Limits = limits.NewGuard(l)
		return nil
	}
}

// WithDir sets the interpreter's working directory.
func WithDir(f fs.FileSystem, path string) runnerOption {
	return func(r *Runner) error {
		if path == "" {
			return nil
		}
		r.FileSystem = f
		info, err := iofs.Stat(r.FileSystem, pathClean(path))
		if err != nil {
			return fmt.Errorf("could not stat: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		r.Dir = pathClean(path)
		return nil
	}
}

// WithParams populates the shell options and parameters.
func WithParams(args ...string) runnerOption {
	return func(r *Runner) error {
		fp := flagParser{remaining: args}
		for fp.more() {
			flag := fp.flag()
			if flag == "-" {
				if args := fp.args(); len(args) > 0 {
					r.Params = args
				}
				return nil
			}
			enable := flag[0] == '-'
			if flag[1] != 'o' {
				opt := r.optByFlag(flag[1])
				if opt == nil {
					return fmt.Errorf("invalid option: %q", flag)
				}
				*opt = enable
				continue
			}
			value := fp.value()
			if value == "" && enable {
				for i, opt := range &shellOptsTable {
					r.printOptLine(opt.name, r.opts[i], true)
				}
				continue
			}
			if value == "" && !enable {
				for i, opt := range &shellOptsTable {
					setFlag := "+o"
					if r.opts[i] {
						setFlag = "-o"
					}
					r.outf("set %s %s\n", setFlag, opt.name)
				}
				continue
			}
			_, opt := r.optByName(value)
			if opt == nil {
				return fmt.Errorf("invalid option: %q", value)
			}
			*opt = enable
		}
		if args := fp.args(); args != nil {
			r.Params = args
			if r.inSource {
				r.sourceSetParams = true
			}
		}
		return nil
	}
}

// WithStdIO configures an interpreter's standard input, standard output, and
// standard error. If out or err are nil, they default to a writer that
// discards the output.
func WithStdIO(in io.Reader, out, err io.Writer) runnerOption {
	return func(r *Runner) error {
		r.stdin = in
		if out == nil {
			out = io.Discard
		}
		r.stdout = out
		if err == nil {
			err = io.Discard
		}
		r.stderr = err
		return nil
	}
}

func (r *Runner) optByName(name string) (index int, status *bool) {
	for i, opt := range &shellOptsTable {
		if opt.name == name {
			return i, &r.opts[i]
		}
	}
	return 0, nil
}

type runnerOpts [len(shellOptsTable)]bool

type shellOpt struct {
	flag byte
	name string
}

var shellOptsTable = [...]shellOpt{
	{'a', "allexport"},
	{'e', "errexit"},
	{'n', "noexec"},
	{'f', "noglob"},
	{'u', "nounset"},
	{'x', "xtrace"},
	{' ', "pipefail"},
}

const (
	optAllExport = iota
	optErrExit
	optNoExec
	optNoGlob
	optNoUnset
	optXTrace
	optPipeFail
)

// Reset returns a runner to its initial state, right before the first call
// to Run or Reset.
func (r *Runner) Reset() {
	if !r.didReset {
		r.origDir = r.Dir
		r.origParams = r.Params
		r.origOpts = r.opts
		r.origStdin = r.stdin
		r.origStdout = r.stdout
		r.origStderr = r.stderr
	}
	*r = Runner{
		Env: r.Env,

		Dir:    r.origDir,
		Params: r.origParams,
		opts:   r.origOpts,
		stdin:  r.origStdin,
		stdout: r.origStdout,
		stderr: r.origStderr,

		origDir:    r.origDir,
		origParams: r.origParams,
		origOpts:   r.origOpts,
		origStdin:  r.origStdin,
		origStdout: r.origStdout,
		origStderr: r.origStderr,

		Vars: r.Vars,

		dirStack: r.dirStack[:0],

		FileSystem: r.FileSystem,
		Commands:   r.Commands,
		Limits:     r.Limits,
	}
	if r.Dir == "" {
		r.Dir = "/"
	}

	if r.Vars == nil {
		r.Vars = make(map[string]expand.Variable)
	} else {
		clear(r.Vars)
	}
	r.writeEnv = &overlayEnviron{parent: r.Env}
	if !r.writeEnv.Get("HOME").IsSet() {
		r.setVarString("HOME", "/")
	}
	if !r.writeEnv.Get("UID").IsSet() {
		r.setVar("UID", expand.Variable{Set: true, Kind: expand.String, ReadOnly: true, Str: "0"})
	}
	if !r.writeEnv.Get("PWD").IsSet() {
		r.setVarString("PWD", r.Dir)
	} else {
		r.setVarString("PWD", r.Dir)
	}
	r.setVarString("IFS", " \t\n")
	r.setVarString("OPTIND", "1")

	r.dirStack = append(r.dirStack, r.Dir)

	r.traps = map[string]string{}

	r.didReset = true
}

// ExitStatus is a non-zero status code resulting from running a shell node.
type ExitStatus uint8

func (s ExitStatus) Error() string { return fmt.Sprintf("exit status %d", s) }

// Run interprets a node, which can be a [*syntax.File], [*syntax.Stmt], or
// [syntax.Command]. If a non-nil error is returned, it will typically
// contain a command's exit status, retrievable with [errors.As].
func (r *Runner) Run(ctx context.Context, node syntax.Node) error {
	if !r.didReset {
		r.Reset()
	}
	r.fillExpandConfig(ctx)
	r.fatalErr = nil
	r.nonFatalHandlerErr = nil
	r.returning = false
	r.exiting = false
	r.filename = ""
	r.openedForWrite = map[string]bool{}
	switch node := node.(type) {
	case *syntax.File:
		r.filename = node.Name
		r.stmts(ctx, node.Stmts)
		if !r.exiting {
			r.runTrap(ctx, "EXIT")
		}
	case *syntax.Stmt:
		r.stmt(ctx, node)
	case syntax.Command:
		r.cmd(ctx, node)
	default:
		return fmt.Errorf("node can only be File, Stmt, or Command: %T", node)
	}
	maps.Insert(r.Vars, r.writeEnv.Each)
	if r.fatalErr != nil {
		return r.fatalErr
	}
	if r.nonFatalHandlerErr != nil {
		return r.nonFatalHandlerErr
	}
	if r.exit != 0 {
		return ExitStatus(r.exit)
	}
	return nil
}

// Exited reports whether the last Run call should exit an entire shell.
func (r *Runner) Exited() bool { return r.exiting }

func (r *Runner) FatalErr() error { return r.fatalErr }

// Subshell makes a copy of the given [Runner] for use in `( ... )`,
// command substitution, and pipeline stages. It shares the VFS and a
// copy-on-write environment; writes to variables in the copy never affect
// the original (spec.md §4.5 step 3).
func (r *Runner) Subshell() *Runner {
	if !r.didReset {
		r.Reset()
	}
	r2 := &Runner{
		Dir:      r.Dir,
		Params:   r.Params,
		stdin:    r.stdin,
		stdout:   r.stdout,
		stderr:   r.stderr,
		filename: r.filename,
		opts:     r.opts,
		exit:     r.exit,
		lastExit: r.lastExit,

		origStdout: r.origStdout,

		FileSystem: r.FileSystem,
		Commands:   r.Commands,
		Limits:     r.Limits,
	}
	r2.writeEnv = newOverlayEnviron(r.writeEnv)
	r2.Funcs = maps.Clone(r.Funcs)
	r2.Vars = make(map[string]expand.Variable)
	r2.alias = maps.Clone(r.alias)
	r2.traps = maps.Clone(r.traps)

	r2.dirStack = append(r2.dirBootstrap[:0], r.dirStack...)
	r2.fillExpandConfig(r.ectx)
	r2.didReset = true
	return r2
}
