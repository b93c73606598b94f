package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"mvdan.cc/sh/v3/syntax"

	"github.com/hermit-sh/hermit"
	"github.com/hermit-sh/hermit/awk"
	"github.com/hermit-sh/hermit/builtin"
	"github.com/hermit-sh/hermit/config"
	"github.com/hermit-sh/hermit/sed"
)

var (
	command    = flag.String("c", "", "command to be executed")
	configPath = flag.String("config", "", "path to a hermit/config YAML preset")
)

func main() {
	flag.Parse()
	err := runAll()
	var es hermit.ExitStatus
	if errors.As(err, &es) {
		os.Exit(int(es))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAll() error {
	preset, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	opts := []hermit.Option{
		hermit.WithStdIO(os.Stdin, os.Stdout, os.Stderr),
		hermit.WithCommand("ls", builtin.Ls),
		hermit.WithCommand("cat", builtin.Cat),
		hermit.WithCommand("mkdir", builtin.Mkdir),
		hermit.WithCommand("rm", builtin.Rm),
		hermit.WithCommand("date", builtin.Date),
		hermit.WithCommand("sleep", builtin.Sleep),
		hermit.WithCommand("awk", runAwk),
		hermit.WithCommand("sed", runSed),
	}
	presetOpts, err := preset.RunnerOptions()
	if err != nil {
		return err
	}
	opts = append(opts, presetOpts...)

	r, err := hermit.NewRunner(opts...)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if *command != "" {
		return run(ctx, r, strings.NewReader(*command), "")
	}
	if flag.NArg() == 0 {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return runInteractive(ctx, r, os.Stdin, os.Stdout, os.Stderr)
		}
		return run(ctx, r, os.Stdin, "")
	}
	for _, path := range flag.Args() {
		if err := runPath(ctx, r, path); err != nil {
			return err
		}
	}
	return nil
}

// runAwk bridges the dispatcher's CommandFunc contract to awk.Run: the
// first argument is the program source; -F fs and -v var=val pairs that
// directly follow it are taken as options, and the remaining arguments are
// ARGV (spec.md §4.6.1).
func runAwk(hc hermit.RunnerContext, args []string) error {
	if len(args) == 0 {
		return hermit.ExitStatus(2)
	}
	src, rest := args[0], args[1:]
	fieldSep := ""
	var assigns []string
	for len(rest) > 0 {
		switch {
		case rest[0] == "-F" && len(rest) > 1:
			fieldSep = rest[1]
			rest = rest[2:]
		case rest[0] == "-v" && len(rest) > 1:
			assigns = append(assigns, rest[1])
			rest = rest[2:]
		default:
			goto doneFlags
		}
	}
doneFlags:
	code, err := awk.Run(src, awk.Config{
		FS:       hc.FileSystem,
		Stdin:    hc.Stdin,
		Stdout:   hc.Stdout,
		Stderr:   hc.Stderr,
		Args:     rest,
		Assigns:  assigns,
		FieldSep: fieldSep,
		Limits:   hc.Limits,
		// system()/getline-pipe/print-pipe all re-enter the dispatcher
		// against the interpreter's current stdio; redirecting a pipe's
		// own stdin/stdout separately isn't modeled (spec.md §5 non-goals
		// exclude true subprocess plumbing).
		Exec: func(cmdline string, stdin io.Reader, stdout io.Writer) (int, error) {
			return hc.Exec(hc.Context, cmdline)
		},
	})
	if err != nil {
		fmt.Fprintf(hc.Stderr, "awk: %v\n", err)
	}
	if code != 0 {
		return hermit.ExitStatus(code)
	}
	return nil
}

// runSed bridges the dispatcher's CommandFunc contract to sed.Run: the
// first argument is the script (unless -f names a script file), the rest
// are input file names (spec.md §4.7.1).
func runSed(hc hermit.RunnerContext, args []string) error {
	quiet := false
	var script string
	haveScript := false
	var files []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-n":
			quiet = true
		case args[i] == "-e" && i+1 < len(args):
			script = args[i+1]
			haveScript = true
			i++
		case args[i] == "-f" && i+1 < len(args):
			data, err := hc.FileSystem.ReadFile(args[i+1])
			if err != nil {
				return err
			}
			script = string(data)
			haveScript = true
			i++
		case !haveScript:
			script = args[i]
			haveScript = true
		default:
			files = append(files, args[i])
		}
	}

	code, err := sed.Run(script, sed.Config{
		FS:     hc.FileSystem,
		Stdin:  hc.Stdin,
		Stdout: hc.Stdout,
		Stderr: hc.Stderr,
		Args:   files,
		Quiet:  quiet,
		Limits: hc.Limits,
	})
	if err != nil {
		fmt.Fprintf(hc.Stderr, "sed: %v\n", err)
	}
	if code != 0 {
		return hermit.ExitStatus(code)
	}
	return nil
}

func run(ctx context.Context, r *hermit.Runner, reader io.Reader, name string) error {
	prog, err := syntax.NewParser().Parse(reader, name)
	if err != nil {
		return err
	}
	r.Reset()
	return r.Run(ctx, prog)
}

func runPath(ctx context.Context, r *hermit.Runner, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return run(ctx, r, f, path)
}

func runInteractive(ctx context.Context, r *hermit.Runner, stdin io.Reader, stdout, stderr io.Writer) error {
	parser := syntax.NewParser()
	fmt.Fprintf(stdout, "$ ")
	var runErr error
	fn := func(stmts []*syntax.Stmt) bool {
		if parser.Incomplete() {
			fmt.Fprintf(stdout, "> ")
			return true
		}
		ctx := context.Background()
		for _, stmt := range stmts {
			runErr = r.Run(ctx, stmt)
			if r.Exited() {
				return false
			}

			if err := r.FatalErr(); err != nil {
				fmt.Fprintf(stderr, "%s", err.Error())
				return false
			}
		}
		fmt.Fprintf(stdout, "$ ")
		return true
	}
	if err := parser.Interactive(stdin, fn); err != nil {
		return err
	}
	return runErr
}
