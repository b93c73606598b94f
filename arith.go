package hermit

import (
	"context"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// arithm evaluates a $(( )) / (( )) / C-style-for expression (spec.md
// §4.5.1). Names inside need not be $-prefixed; an unset or non-numeric
// name/literal evaluates to 0.
func (r *Runner) arithm(ctx context.Context, expr syntax.ArithmExpr) int {
	switch x := expr.(type) {
	case *syntax.Word:
		return r.arithmWord(ctx, x)
	case *syntax.BinaryArithm:
		return r.arithmBinary(ctx, x)
	case *syntax.UnaryArithm:
		return r.arithmUnary(ctx, x)
	case *syntax.ParenArithm:
		return r.arithm(ctx, x.X)
	default:
		return 0
	}
}

func (r *Runner) arithmWord(ctx context.Context, w *syntax.Word) int {
	if lit, ok := soleLit(w); ok {
		if n, err := parseArithLiteral(lit); err == nil {
			return n
		}
		// Not a numeric literal: treat it as a bare variable name.
		vr := r.lookupVar(lit)
		if s := strings.TrimSpace(vr.String()); s != "" {
			if n, err := parseArithLiteral(s); err == nil {
				return n
			}
		}
		return 0
	}
	s, err := r.expandLiteral(ctx, w)
	if err != nil {
		return 0
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return 0
}

func soleLit(w *syntax.Word) (string, bool) {
	if w == nil || len(w.Parts) != 1 {
		return "", false
	}
	lit, ok := w.Parts[0].(*syntax.Lit)
	if !ok {
		return "", false
	}
	return lit.Value, true
}

func parseArithLiteral(s string) (int, error) {
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		n, err := strconv.ParseInt(s[2:], 16, 64)
		return int(n), err
	case len(s) > 1 && s[0] == '0':
		n, err := strconv.ParseInt(s[1:], 8, 64)
		return int(n), err
	default:
		n, err := strconv.ParseInt(s, 10, 64)
		return int(n), err
	}
}

func (r *Runner) arithmUnary(ctx context.Context, x *syntax.UnaryArithm) int {
	op := x.Op.String()
	switch op {
	case "++", "--":
		cur := r.arithm(ctx, x.X)
		delta := 1
		if op == "--" {
			delta = -1
		}
		next := cur + delta
		r.arithmAssign(ctx, x.X, next)
		if x.Post {
			return cur
		}
		return next
	case "-":
		return -r.arithm(ctx, x.X)
	case "+":
		return r.arithm(ctx, x.X)
	case "!":
		if r.arithm(ctx, x.X) == 0 {
			return 1
		}
		return 0
	case "~":
		return ^r.arithm(ctx, x.X)
	default:
		return 0
	}
}

func (r *Runner) arithmBinary(ctx context.Context, x *syntax.BinaryArithm) int {
	op := x.Op.String()
	switch op {
	case "&&":
		if r.arithm(ctx, x.X) != 0 && r.arithm(ctx, x.Y) != 0 {
			return 1
		}
		return 0
	case "||":
		if r.arithm(ctx, x.X) != 0 || r.arithm(ctx, x.Y) != 0 {
			return 1
		}
		return 0
	case ",":
		r.arithm(ctx, x.X)
		return r.arithm(ctx, x.Y)
	case "?":
		if inner, ok := x.Y.(*syntax.BinaryArithm); ok && inner.Op.String() == ":" {
			if r.arithm(ctx, x.X) != 0 {
				return r.arithm(ctx, inner.X)
			}
			return r.arithm(ctx, inner.Y)
		}
		return 0
	case "=", "+=", "-=", "*=", "/=", "%=", "<<=", ">>=", "&=", "^=", "|=":
		cur := 0
		if op != "=" {
			cur = r.arithm(ctx, x.X)
		}
		rhs := r.arithm(ctx, x.Y)
		var next int
		switch op {
		case "=":
			next = rhs
		case "+=":
			next = cur + rhs
		case "-=":
			next = cur - rhs
		case "*=":
			next = cur * rhs
		case "/=":
			next = safeDiv(cur, rhs, r)
		case "%=":
			next = safeMod(cur, rhs, r)
		case "<<=":
			next = cur << uint(rhs)
		case ">>=":
			next = cur >> uint(rhs)
		case "&=":
			next = cur & rhs
		case "^=":
			next = cur ^ rhs
		case "|=":
			next = cur | rhs
		}
		r.arithmAssign(ctx, x.X, next)
		return next
	}

	a, b := r.arithm(ctx, x.X), r.arithm(ctx, x.Y)
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return safeDiv(a, b, r)
	case "%":
		return safeMod(a, b, r)
	case "**":
		result := 1
		for i := 0; i < b; i++ {
			result *= a
		}
		return result
	case "<<":
		return a << uint(b)
	case ">>":
		return a >> uint(b)
	case "<":
		return boolInt(a < b)
	case "<=":
		return boolInt(a <= b)
	case ">":
		return boolInt(a > b)
	case ">=":
		return boolInt(a >= b)
	case "==":
		return boolInt(a == b)
	case "!=":
		return boolInt(a != b)
	case "&":
		return a & b
	case "^":
		return a ^ b
	case "|":
		return a | b
	default:
		return 0
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func safeDiv(a, b int, r *Runner) int {
	if b == 0 {
		divErr := newDivisionByZeroError()
		r.errf("%s\n", divErr.Error())
		r.exit = divErr.ExitCode
		r.setErrExit()
		return 0
	}
	return a / b
}

func safeMod(a, b int, r *Runner) int {
	if b == 0 {
		divErr := newDivisionByZeroError()
		r.errf("%s\n", divErr.Error())
		r.exit = divErr.ExitCode
		r.setErrExit()
		return 0
	}
	return a % b
}

// arithmAssign writes the result of an arithmetic assignment/inc-dec back to
// the named variable that expr refers to (only a bare-name Word is valid on
// the left of an arithmetic assignment).
func (r *Runner) arithmAssign(ctx context.Context, expr syntax.ArithmExpr, value int) {
	w, ok := expr.(*syntax.Word)
	if !ok {
		return
	}
	name, ok := soleLit(w)
	if !ok {
		return
	}
	r.setVarString(name, strconv.Itoa(value))
}
