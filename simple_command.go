package hermit

import (
	"context"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// callExpr evaluates a [syntax.CallExpr]: a plain assignment-only statement,
// or a simple command with temp-env bindings, following the dispatcher
// contract of spec.md §4.8.
func (r *Runner) callExpr(ctx context.Context, ce *syntax.CallExpr) {
	if len(ce.Args) == 0 {
		// assignment(s) with no command word: mutate the current scope.
		for _, as := range ce.Assigns {
			if err := r.applyAssign(ctx, as, false); err != nil {
				r.exit = 1
				return
			}
		}
		r.exit = 0
		return
	}

	fields, err := r.expandFields(ctx, ce.Args)
	if err != nil {
		r.errf("%v\n", err)
		r.exit = 1
		return
	}
	if len(fields) == 0 {
		r.exit = 0
		return
	}
	name, args := fields[0], fields[1:]

	// step 1: assigns become temp-env bindings, visible only to this
	// command, restored once it returns.
	var restores []func()
	for _, as := range ce.Assigns {
		restore, err := r.applyAssign(ctx, as, true)
		if err != nil {
			r.exit = 1
			return
		}
		restores = append(restores, restore)
	}
	defer func() {
		for _, restore := range restores {
			restore()
		}
	}()

	r.dispatch(ctx, name, args)
}

// applyAssign evaluates a single assignment word. When temp is true, it
// pushes a shadowing value onto the current scope and returns a restore
// func that pops it back off; otherwise it mutates the current scope
// directly and the returned restore func is a no-op.
func (r *Runner) applyAssign(ctx context.Context, as *syntax.Assign, temp bool) (func(), error) {
	name := as.Name.Value
	val := ""
	if as.Value != nil {
		v, err := r.expandLiteral(ctx, as.Value)
		if err != nil {
			return func() {}, err
		}
		val = v
	}

	if !temp {
		// A plain assignment (no local/declare/readonly keyword) mutates
		// whatever scope already owns name and survives the call's return,
		// even inside a function body (spec.md §3.2/§4.5 scope only
		// local/declare/readonly, not every assignment executed inside a
		// function).
		r.setVarString(name, val)
		return func() {}, nil
	}

	had := r.writeEnv.Get(name)
	hadSet := had.IsSet()
	r.setVarString(name, val)
	return func() {
		if hadSet {
			r.setVar(name, had)
		} else {
			r.setVar(name, expand.Variable{})
		}
	}, nil
}
