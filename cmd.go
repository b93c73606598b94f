package hermit

import (
	"context"

	"mvdan.cc/sh/v3/syntax"
)

// cmd evaluates a single [syntax.Command] node (spec.md §4.4's AST node
// kinds), setting r.exit and possibly r.exiting/r.returning/r.fatalErr.
func (r *Runner) cmd(ctx context.Context, c syntax.Command) {
	if r.shouldStop() {
		return
	}
	switch x := c.(type) {
	case *syntax.CallExpr:
		r.callExpr(ctx, x)
	case *syntax.Block:
		r.stmts(ctx, x.Stmts)
	case *syntax.Subshell:
		r.runSubshellStmts(ctx, x.Stmts)
	case *syntax.BinaryCmd:
		r.binaryCmd(ctx, x)
	case *syntax.IfClause:
		r.ifClause(ctx, x)
	case *syntax.WhileClause:
		r.whileClause(ctx, x)
	case *syntax.ForClause:
		r.forClause(ctx, x)
	case *syntax.CaseClause:
		r.caseClause(ctx, x)
	case *syntax.FuncDecl:
		r.funcDecl(x)
	case *syntax.ArithmCmd:
		v := r.arithm(ctx, x.X)
		r.exit = boolInt(v == 0)
	case *syntax.TestClause:
		ok, err := r.testExpr(ctx, x.X)
		if err != nil {
			r.exit = 2
			return
		}
		r.exit = boolInt(!ok)
	case *syntax.DeclClause:
		r.declClause(ctx, x)
	case *syntax.LetClause:
		last := 0
		for _, e := range x.Exprs {
			last = r.arithm(ctx, e)
		}
		r.exit = boolInt(last == 0)
	default:
		r.errf("unsupported construct: %T\n", c)
		r.exit = 1
	}
}

func (r *Runner) runSubshellStmts(ctx context.Context, stmts []*syntax.Stmt) {
	if err := r.Limits.Enter(); err != nil {
		r.fatalErr = err
		return
	}
	defer r.Limits.Leave()
	sub := r.Subshell()
	sub.stmts(ctx, stmts)
	r.exit = sub.exit
	if sub.fatalErr != nil {
		r.fatalErr = sub.fatalErr
	}
}

func (r *Runner) binaryCmd(ctx context.Context, b *syntax.BinaryCmd) {
	switch b.Op.String() {
	case "&&":
		r.stmt(ctx, b.X)
		if r.exit == 0 && !r.shouldStop() {
			r.stmt(ctx, b.Y)
		}
	case "||":
		r.stmt(ctx, b.X)
		if r.exit != 0 && !r.shouldStop() {
			old := r.noErrExit
			r.noErrExit = old
			r.stmt(ctx, b.Y)
		}
	case "|", "|&":
		r.pipeline(ctx, flattenPipe(b))
	default:
		r.errf("unsupported binary operator: %s\n", b.Op.String())
		r.exit = 1
	}
}

// flattenPipe collects every stage of a left-associative chain of `|`
// BinaryCmd nodes into an ordered slice of statements.
func flattenPipe(b *syntax.BinaryCmd) []*syntax.Stmt {
	var out []*syntax.Stmt
	collectPipe(b, &out)
	return out
}

func collectPipe(c syntax.Command, out *[]*syntax.Stmt) {
	b, ok := c.(*syntax.BinaryCmd)
	if !ok {
		return
	}
	if bx, ok := b.X.Cmd.(*syntax.BinaryCmd); ok && (bx.Op.String() == "|" || bx.Op.String() == "|&") {
		collectPipe(bx, out)
	} else {
		*out = append(*out, b.X)
	}
	*out = append(*out, b.Y)
}

func (r *Runner) ifClause(ctx context.Context, ic *syntax.IfClause) {
	r.stmts(ctx, ic.Cond.Stmts)
	if r.shouldStop() {
		return
	}
	if r.exit == 0 {
		r.stmts(ctx, ic.Then.Stmts)
		return
	}
	for _, elif := range ic.Elifs {
		r.stmts(ctx, elif.Cond.Stmts)
		if r.shouldStop() {
			return
		}
		if r.exit == 0 {
			r.stmts(ctx, elif.Then.Stmts)
			return
		}
	}
	if len(ic.Else.Stmts) == 0 {
		r.exit = 0
		return
	}
	r.stmts(ctx, ic.Else.Stmts)
}

func (r *Runner) whileClause(ctx context.Context, wc *syntax.WhileClause) {
	wasInLoop := r.inLoop
	r.inLoop = true
	defer func() { r.inLoop = wasInLoop }()

	for {
		if err := r.Limits.Iteration(); err != nil {
			r.fatalErr = err
			return
		}
		r.stmts(ctx, wc.Cond.Stmts)
		if r.shouldStop() {
			return
		}
		cond := r.exit == 0
		if wc.Until {
			cond = r.exit != 0
		}
		if !cond {
			r.exit = 0
			return
		}
		r.stmts(ctx, wc.Do.Stmts)
		if r.contnEnclosing > 0 {
			r.contnEnclosing--
			if r.contnEnclosing > 0 {
				return
			}
		}
		if r.breakEnclosing > 0 {
			r.breakEnclosing--
			return
		}
		if r.shouldStop() {
			return
		}
	}
}

func (r *Runner) forClause(ctx context.Context, fc *syntax.ForClause) {
	wasInLoop := r.inLoop
	r.inLoop = true
	defer func() { r.inLoop = wasInLoop }()

	runBody := func() bool {
		r.stmts(ctx, fc.Do.Stmts)
		if r.contnEnclosing > 0 {
			r.contnEnclosing--
			if r.contnEnclosing > 0 {
				return false
			}
		}
		if r.breakEnclosing > 0 {
			r.breakEnclosing--
			return false
		}
		return !r.shouldStop()
	}

	switch loop := fc.Loop.(type) {
	case *syntax.WordIter:
		var items []string
		if len(loop.Items) > 0 {
			vals, err := r.expandFields(ctx, loop.Items)
			if err != nil {
				r.exit = 1
				return
			}
			items = vals
		} else {
			items = r.Params
		}
		for _, it := range items {
			if err := r.Limits.Iteration(); err != nil {
				r.fatalErr = err
				return
			}
			r.setVarString(loop.Name.Value, it)
			if !runBody() {
				return
			}
		}
	case *syntax.CStyleLoop:
		if loop.Init != nil {
			r.arithm(ctx, loop.Init)
		}
		for loop.Cond == nil || r.arithm(ctx, loop.Cond) != 0 {
			if err := r.Limits.Iteration(); err != nil {
				r.fatalErr = err
				return
			}
			if !runBody() {
				return
			}
			if loop.Post != nil {
				r.arithm(ctx, loop.Post)
			}
		}
	}
	r.exit = 0
}

func (r *Runner) caseClause(ctx context.Context, cc *syntax.CaseClause) {
	subject, err := r.expandLiteral(ctx, cc.Word)
	if err != nil {
		r.exit = 1
		return
	}
	for _, item := range cc.Items {
		matched := false
		for _, pat := range item.Patterns {
			p, err := r.expandLiteral(ctx, pat)
			if err != nil {
				continue
			}
			if matchGlob(p, subject) || p == subject {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		r.stmts(ctx, item.Stmts)
		return
	}
	r.exit = 0
}

func (r *Runner) funcDecl(fd *syntax.FuncDecl) {
	if r.Funcs == nil {
		r.Funcs = map[string]*syntax.Stmt{}
	}
	r.Funcs[fd.Name.Value] = fd.Body
	r.exit = 0
}

func (r *Runner) declClause(ctx context.Context, dc *syntax.DeclClause) {
	variant := "declare"
	if dc.Variant != nil {
		variant = dc.Variant.Value
	}
	for _, as := range dc.Args {
		name := as.Name.Value
		if as.Naked {
			vr := r.writeEnv.Get(name)
			switch variant {
			case "export":
				vr.Exported = true
				r.setVar(name, vr)
			case "readonly":
				vr.ReadOnly = true
				r.setVar(name, vr)
			case "local":
				r.markLocal(name)
			}
			continue
		}
		val := ""
		if as.Value != nil {
			v, err := r.expandLiteral(ctx, as.Value)
			if err != nil {
				r.exit = 1
				return
			}
			val = v
		}
		vr := expandVariableFor(val)
		switch variant {
		case "export":
			vr.Exported = true
		case "readonly":
			vr.ReadOnly = true
		case "local":
			r.markLocal(name)
		}
		r.setVar(name, vr)
	}
	r.exit = 0
}

// markLocal records name as local to the innermost active function call,
// snapshotting whatever value it currently holds in the enclosing scope so
// callFunc can restore it on return (spec.md §3.2). Must be called before
// the caller writes the new local value; a name already marked local in
// this same call keeps its first (outermost) snapshot.
func (r *Runner) markLocal(name string) {
	if len(r.local) == 0 {
		return
	}
	scope := r.local[len(r.local)-1]
	if _, already := scope[name]; already {
		return
	}
	scope[name] = r.writeEnv.Get(name)
}

