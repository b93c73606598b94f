package hermit

import (
	"context"
	"fmt"
	iofs "io/fs"
	"strconv"

	"github.com/hermit-sh/hermit/regexadapter"

	"mvdan.cc/sh/v3/syntax"
)

// testExpr evaluates a `[[ ... ]]` conditional expression (spec.md §4.4's
// CondCommand node).
func (r *Runner) testExpr(ctx context.Context, x syntax.TestExpr) (bool, error) {
	switch e := x.(type) {
	case *syntax.Word:
		s, err := r.expandLiteral(ctx, e)
		if err != nil {
			return false, err
		}
		return s != "", nil
	case *syntax.ParenTest:
		return r.testExpr(ctx, e.X)
	case *syntax.UnaryTest:
		return r.unaryTest(ctx, e)
	case *syntax.BinaryTest:
		return r.binaryTest(ctx, e)
	default:
		return false, fmt.Errorf("unsupported test expression: %T", x)
	}
}

func (r *Runner) unaryTest(ctx context.Context, e *syntax.UnaryTest) (bool, error) {
	if e.Op.String() == "!" {
		v, err := r.testExpr(ctx, e.X)
		return !v, err
	}
	w, ok := e.X.(*syntax.Word)
	if !ok {
		return false, fmt.Errorf("unsupported unary test operand")
	}
	s, err := r.expandLiteral(ctx, w)
	if err != nil {
		return false, err
	}
	switch e.Op.String() {
	case "-z":
		return s == "", nil
	case "-n":
		return s != "", nil
	case "-e", "-a":
		_, err := r.FileSystem.Stat(r.absPath(s))
		return err == nil, nil
	case "-f":
		info, err := r.FileSystem.Stat(r.absPath(s))
		return err == nil && !info.IsDir(), nil
	case "-d":
		info, err := r.FileSystem.Stat(r.absPath(s))
		return err == nil && info.IsDir(), nil
	case "-r", "-w":
		_, err := r.FileSystem.Stat(r.absPath(s))
		return err == nil, nil
	case "-x":
		info, err := r.FileSystem.Stat(r.absPath(s))
		return err == nil && info.Mode()&0o111 != 0, nil
	case "-s":
		info, err := r.FileSystem.Stat(r.absPath(s))
		return err == nil && info.Size() > 0, nil
	case "-L", "-h":
		info, err := r.FileSystem.Lstat(r.absPath(s))
		return err == nil && info.Mode()&iofs.ModeSymlink != 0, nil
	default:
		return false, fmt.Errorf("unsupported unary test operator: %s", e.Op.String())
	}
}

func (r *Runner) binaryTest(ctx context.Context, e *syntax.BinaryTest) (bool, error) {
	op := e.Op.String()
	switch op {
	case "&&":
		l, err := r.testExpr(ctx, e.X)
		if err != nil || !l {
			return false, err
		}
		return r.testExpr(ctx, e.Y)
	case "||":
		l, err := r.testExpr(ctx, e.X)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return r.testExpr(ctx, e.Y)
	}

	lw, ok1 := e.X.(*syntax.Word)
	rw, ok2 := e.Y.(*syntax.Word)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("unsupported binary test operands")
	}
	lhs, err := r.expandLiteral(ctx, lw)
	if err != nil {
		return false, err
	}

	if op == "=~" {
		pattern, err := r.expandLiteral(ctx, rw)
		if err != nil {
			return false, err
		}
		re, err := regexadapter.Compile(pattern, true, false)
		if err != nil {
			return false, err
		}
		return re.MatchString(lhs), nil
	}

	rhs, err := r.expandLiteral(ctx, rw)
	if err != nil {
		return false, err
	}

	switch op {
	case "==", "=":
		return matchGlob(rhs, lhs) || rhs == lhs, nil
	case "!=":
		return !(matchGlob(rhs, lhs) || rhs == lhs), nil
	case "<":
		return lhs < rhs, nil
	case ">":
		return lhs > rhs, nil
	}

	ln, lerr := strconv.Atoi(lhs)
	rn, rerr := strconv.Atoi(rhs)
	if lerr != nil || rerr != nil {
		return false, fmt.Errorf("integer expression expected")
	}
	switch op {
	case "-eq":
		return ln == rn, nil
	case "-ne":
		return ln != rn, nil
	case "-lt":
		return ln < rn, nil
	case "-le":
		return ln <= rn, nil
	case "-gt":
		return ln > rn, nil
	case "-ge":
		return ln >= rn, nil
	default:
		return false, fmt.Errorf("unsupported binary test operator: %s", op)
	}
}
