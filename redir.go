package hermit

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// applyRedirs opens and wires up every redirection on a simple command
// (spec.md §4.5's Redirections list), returning a restore func that undoes
// the stdin/stdout/stderr swaps once the command finishes.
func (r *Runner) applyRedirs(ctx context.Context, redirs []*syntax.Redirect) (func(), error) {
	if len(redirs) == 0 {
		return func() {}, nil
	}

	origStdin, origStdout, origStderr := r.stdin, r.stdout, r.stderr
	restore := func() {
		r.stdin, r.stdout, r.stderr = origStdin, origStdout, origStderr
	}

	for _, rd := range redirs {
		if err := r.applyOneRedir(ctx, rd); err != nil {
			restore()
			return func() {}, err
		}
	}
	return restore, nil
}

func (r *Runner) applyOneRedir(ctx context.Context, rd *syntax.Redirect) error {
	fd := 1
	if rd.N != nil {
		if n, err := strconv.Atoi(rd.N.Value); err == nil {
			fd = n
		}
	}
	op := rd.Op.String()

	switch op {
	case ">", ">|", ">>":
		name, err := r.expandLiteral(ctx, rd.Word)
		if err != nil {
			return err
		}
		w, err := r.openForRedirect(name, op == ">>")
		if err != nil {
			fsErr := newFilesystemError(name, err)
			r.errf("%s\n", fsErr.Error())
			return fsErr
		}
		r.setFD(fd, w)
		return nil

	case "&>", "&>>":
		name, err := r.expandLiteral(ctx, rd.Word)
		if err != nil {
			return err
		}
		w, err := r.openForRedirect(name, op == "&>>")
		if err != nil {
			fsErr := newFilesystemError(name, err)
			r.errf("%s\n", fsErr.Error())
			return fsErr
		}
		r.stdout = w
		r.stderr = w
		return nil

	case "<":
		name, err := r.expandLiteral(ctx, rd.Word)
		if err != nil {
			return err
		}
		f, err := r.FileSystem.Open(r.absPath(name))
		if err != nil {
			fsErr := newFilesystemError(name, err)
			r.errf("%s\n", fsErr.Error())
			return fsErr
		}
		r.stdin = f
		return nil

	case "<>":
		name, err := r.expandLiteral(ctx, rd.Word)
		if err != nil {
			return err
		}
		f, err := r.FileSystem.Open(r.absPath(name))
		if err != nil {
			fsErr := newFilesystemError(name, err)
			r.errf("%s\n", fsErr.Error())
			return fsErr
		}
		r.stdin = f
		return nil

	case "<<", "<<-":
		body := rd.Hdoc
		text := ""
		if body != nil {
			if len(body.Parts) == 1 {
				if lit, ok := body.Parts[0].(*syntax.Lit); ok {
					text = lit.Value
				}
			}
			if text == "" {
				expanded, err := r.expandLiteral(ctx, body)
				if err == nil {
					text = expanded
				}
			}
		}
		if op == "<<-" {
			lines := strings.Split(text, "\n")
			for i, l := range lines {
				lines[i] = strings.TrimLeft(l, "\t")
			}
			text = strings.Join(lines, "\n")
		}
		r.stdin = strings.NewReader(text)
		return nil

	case "<<<":
		text, err := r.expandLiteral(ctx, rd.Word)
		if err != nil {
			return err
		}
		r.stdin = strings.NewReader(text + "\n")
		return nil

	case "<&", ">&":
		name, err := r.expandLiteral(ctx, rd.Word)
		if err != nil {
			return err
		}
		src, err := strconv.Atoi(name)
		if err != nil {
			return fmt.Errorf("invalid fd %q", name)
		}
		target := r.getFD(src)
		r.setFD(fd, target)
		return nil

	default:
		return fmt.Errorf("unsupported redirection: %s", op)
	}
}

// openForRedirect implements the "first write overwrites, subsequent writes
// within the same exec append" rule (spec.md §4.5/§5).
func (r *Runner) openForRedirect(name string, forceAppend bool) (io.Writer, error) {
	abs := r.absPath(name)
	if abs == "/dev/stdout" {
		return r.stdout, nil
	}
	if abs == "/dev/stderr" {
		return r.stderr, nil
	}
	if abs == "/dev/null" {
		return io.Discard, nil
	}
	appendMode := forceAppend || r.openedForWrite[abs]
	flag := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	f, err := r.FileSystem.OpenFile(abs, flag, 0o644)
	if err != nil {
		return nil, err
	}
	r.openedForWrite[abs] = true
	return f, nil
}

func (r *Runner) getFD(n int) any {
	switch n {
	case 0:
		return r.stdin
	case 1:
		return r.stdout
	case 2:
		return r.stderr
	}
	return nil
}

func (r *Runner) setFD(n int, v any) {
	switch n {
	case 0:
		if rd, ok := v.(io.Reader); ok {
			r.stdin = rd
		}
	case 1:
		if w, ok := v.(io.Writer); ok {
			r.stdout = w
		}
	case 2:
		if w, ok := v.(io.Writer); ok {
			r.stderr = w
		}
	}
}
