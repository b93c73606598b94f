package hermit

import (
	"context"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// stmts runs a statement list in source order, stopping early on exit,
// return, break/continue, or a fatal error (spec.md §4.5).
func (r *Runner) stmts(ctx context.Context, stmts []*syntax.Stmt) {
	for _, st := range stmts {
		r.stmt(ctx, st)
		if r.shouldStop() {
			return
		}
	}
}

// shouldStop reports whether the enclosing statement list should stop
// iterating: the shell is exiting, a function is returning, or a loop is
// breaking/continuing out of an enclosing level.
func (r *Runner) shouldStop() bool {
	return r.exiting || r.returning || r.breakEnclosing > 0 || r.contnEnclosing > 0 || r.fatalErr != nil
}

func (r *Runner) stmt(ctx context.Context, st *syntax.Stmt) {
	if r.shouldStop() {
		return
	}
	if r.opts[optNoExec] {
		return
	}

	restore, err := r.applyRedirs(ctx, st.Redirs)
	defer restore()
	if err != nil {
		r.exit = 1
		r.setErrExit()
		return
	}

	if st.Cmd == nil {
		r.exit = 0
		return
	}

	r.cmd(ctx, st.Cmd)

	if st.Negated {
		if r.exit == 0 {
			r.exit = 1
		} else {
			r.exit = 0
		}
	}
	r.lastExit = r.exit

	if r.exit != 0 && !st.Negated {
		r.runTrap(ctx, "ERR")
	}
	if r.exit != 0 {
		r.setErrExit()
	}
}

func (r *Runner) runTrap(ctx context.Context, name string) {
	if r.handlingTrap || r.traps == nil {
		return
	}
	cmd, ok := r.traps[name]
	if !ok || cmd == "" {
		return
	}
	r.handlingTrap = true
	defer func() { r.handlingTrap = false }()
	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd), "")
	if err != nil {
		return
	}
	r.stmts(ctx, prog.Stmts)
}
