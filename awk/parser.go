package awk

import "fmt"

// Parser builds a Program AST from pre-lexed tokens using recursive
// descent with precedence climbing, matching the classic AWK grammar
// (spec.md §4.6). print/printf argument lists are parsed with a "no bare
// '>'" flag so that `print a > "f"` parses the trailing '>' as a
// redirection rather than a comparison, mirroring real awk's grammar
// split between unary_expr and non_unary_print_expr.
type Parser struct {
	toks   []token
	pos    int
	noGT   int // >0 disables '>' and '>>' as binary operators
}

// Parse lexes and parses src into a Program.
func Parse(src string) (*Program, error) {
	lx := newLexer(src)
	var toks []token
	for {
		t, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tEOF {
			break
		}
	}
	p := &Parser{toks: toks}
	return p.parseProgram()
}

func (p *Parser) cur() token  { return p.toks[p.pos] }
func (p *Parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) advance() token { t := p.toks[p.pos]; if p.pos < len(p.toks)-1 { p.pos++ }; return t }

func (p *Parser) skipNewlines() {
	for p.cur().kind == tNewline || p.cur().kind == tSemi {
		p.advance()
	}
}

// skipOptNewlines skips newlines only (used after tokens like , { && || do else)
func (p *Parser) skipOptNewlines() {
	for p.cur().kind == tNewline {
		p.advance()
	}
}

func (p *Parser) expect(k tokKind, what string) (token, error) {
	if p.cur().kind != k {
		return token{}, fmt.Errorf("awk: parse error at line %d: expected %s", p.cur().line, what)
	}
	return p.advance(), nil
}

func (p *Parser) parseProgram() (*Program, error) {
	prog := &Program{Functions: map[string]*Function{}}
	p.skipNewlines()
	for p.cur().kind != tEOF {
		switch p.cur().kind {
		case tFunction:
			fn, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			prog.Functions[fn.Name] = fn
		case tBegin:
			p.advance()
			p.skipOptNewlines()
			body, err := p.parseBraceBlock()
			if err != nil {
				return nil, err
			}
			prog.Begin = append(prog.Begin, body)
		case tEnd:
			p.advance()
			p.skipOptNewlines()
			body, err := p.parseBraceBlock()
			if err != nil {
				return nil, err
			}
			prog.End = append(prog.End, body)
		default:
			rule, err := p.parseRule()
			if err != nil {
				return nil, err
			}
			prog.Rules = append(prog.Rules, rule)
		}
		p.skipNewlines()
	}
	return prog, nil
}

func (p *Parser) parseFunction() (*Function, error) {
	p.advance() // function
	nameTok := p.advance()
	if nameTok.kind != tName && nameTok.kind != tFuncName {
		return nil, fmt.Errorf("awk: parse error at line %d: expected function name", nameTok.line)
	}
	if _, err := p.expect(tLParen, "'('"); err != nil {
		return nil, err
	}
	var params []string
	for p.cur().kind != tRParen {
		t, err := p.expect(tName, "parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, t.str)
		if p.cur().kind == tComma {
			p.advance()
			p.skipOptNewlines()
		}
	}
	p.advance() // )
	p.skipOptNewlines()
	body, err := p.parseBraceBlock()
	if err != nil {
		return nil, err
	}
	return &Function{Name: nameTok.str, Params: params, Body: body}, nil
}

func (p *Parser) parseRule() (Rule, error) {
	var pat Pattern = AlwaysPattern{}
	if p.cur().kind != tLBrace {
		first, err := p.parseExpr()
		if err != nil {
			return Rule{}, err
		}
		if p.cur().kind == tComma {
			p.advance()
			p.skipOptNewlines()
			second, err := p.parseExpr()
			if err != nil {
				return Rule{}, err
			}
			pat = &RangePattern{Start: first, End: second}
		} else if re, ok := first.(*RegexLit); ok {
			pat = &ExprPattern{X: re}
		} else {
			pat = &ExprPattern{X: first}
		}
	}
	var action []Stmt
	if p.cur().kind == tLBrace {
		var err error
		action, err = p.parseBraceBlock()
		if err != nil {
			return Rule{}, err
		}
		if action == nil {
			action = []Stmt{}
		}
	}
	return Rule{Pattern: pat, Action: action}, nil
}

func (p *Parser) parseBraceBlock() ([]Stmt, error) {
	if _, err := p.expect(tLBrace, "'{'"); err != nil {
		return nil, err
	}
	stmts, err := p.parseStmtList(tRBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tRBrace, "'}'"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseStmtList(end tokKind) ([]Stmt, error) {
	var stmts []Stmt
	p.skipNewlines()
	for p.cur().kind != end && p.cur().kind != tEOF {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		p.skipNewlines()
	}
	return stmts, nil
}

func (p *Parser) stmtTerminator() {
	for p.cur().kind == tSemi || p.cur().kind == tNewline {
		p.advance()
	}
}

func (p *Parser) parseStmt() (Stmt, error) {
	switch p.cur().kind {
	case tLBrace:
		body, err := p.parseBraceBlock()
		if err != nil {
			return nil, err
		}
		return &BlockStmt{Stmts: body}, nil
	case tIf:
		return p.parseIf()
	case tWhile:
		return p.parseWhile()
	case tDo:
		return p.parseDoWhile()
	case tFor:
		return p.parseFor()
	case tBreak:
		p.advance()
		p.stmtTerminator()
		return &BreakStmt{}, nil
	case tContinue:
		p.advance()
		p.stmtTerminator()
		return &ContinueStmt{}, nil
	case tNext:
		p.advance()
		p.stmtTerminator()
		return &NextStmt{}, nil
	case tNextfile:
		p.advance()
		p.stmtTerminator()
		return &NextfileStmt{}, nil
	case tExit:
		p.advance()
		var code Expr
		if !p.atStmtEnd() {
			var err error
			code, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		p.stmtTerminator()
		return &ExitStmt{Code: code}, nil
	case tReturn:
		p.advance()
		var v Expr
		if !p.atStmtEnd() {
			var err error
			v, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		p.stmtTerminator()
		return &ReturnStmt{Value: v}, nil
	case tDelete:
		p.advance()
		nameTok, err := p.expect(tName, "array name")
		if err != nil {
			return nil, err
		}
		var idx []Expr
		if p.cur().kind == tLBracket {
			p.advance()
			for {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				idx = append(idx, e)
				if p.cur().kind == tComma {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(tRBracket, "']'"); err != nil {
				return nil, err
			}
		}
		p.stmtTerminator()
		return &DeleteStmt{Name: nameTok.str, Index: idx}, nil
	case tPrint, tPrintf:
		return p.parsePrint()
	case tSemi:
		p.advance()
		return &BlockStmt{}, nil
	default:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.stmtTerminator()
		return &ExprStmt{X: e}, nil
	}
}

func (p *Parser) atStmtEnd() bool {
	k := p.cur().kind
	return k == tSemi || k == tNewline || k == tRBrace || k == tEOF
}

func (p *Parser) parseSimpleOrBlockStmt() ([]Stmt, error) {
	p.skipOptNewlines()
	if p.cur().kind == tLBrace {
		return p.parseBraceBlock()
	}
	s, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return []Stmt{s}, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	p.advance()
	if _, err := p.expect(tLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tRParen, "')'"); err != nil {
		return nil, err
	}
	then, err := p.parseSimpleOrBlockStmt()
	if err != nil {
		return nil, err
	}
	save := p.pos
	p.skipNewlines()
	if p.cur().kind == tElse {
		p.advance()
		els, err := p.parseSimpleOrBlockStmt()
		if err != nil {
			return nil, err
		}
		return &IfStmt{Cond: cond, Then: then, Else: els}, nil
	}
	p.pos = save
	return &IfStmt{Cond: cond, Then: then}, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	p.advance()
	if _, err := p.expect(tLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tRParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseSimpleOrBlockStmt()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body}, nil
}

func (p *Parser) parseDoWhile() (Stmt, error) {
	p.advance()
	body, err := p.parseSimpleOrBlockStmt()
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.expect(tWhile, "'while'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tRParen, "')'"); err != nil {
		return nil, err
	}
	p.stmtTerminator()
	return &DoWhileStmt{Body: body, Cond: cond}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	p.advance()
	if _, err := p.expect(tLParen, "'('"); err != nil {
		return nil, err
	}
	// for (name in array)
	if p.cur().kind == tName && p.peekAt(1).kind == tIn {
		name := p.advance().str
		p.advance() // in
		arrTok, err := p.expect(tName, "array name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		body, err := p.parseSimpleOrBlockStmt()
		if err != nil {
			return nil, err
		}
		return &ForInStmt{Var: name, Array: arrTok.str, Body: body}, nil
	}
	var init Stmt
	if p.cur().kind != tSemi {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		init = &ExprStmt{X: e}
	}
	if _, err := p.expect(tSemi, "';'"); err != nil {
		return nil, err
	}
	var cond Expr
	if p.cur().kind != tSemi {
		var err error
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tSemi, "';'"); err != nil {
		return nil, err
	}
	var post Stmt
	if p.cur().kind != tRParen {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		post = &ExprStmt{X: e}
	}
	if _, err := p.expect(tRParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseSimpleOrBlockStmt()
	if err != nil {
		return nil, err
	}
	return &ForStmt{Init: init, Cond: cond, Post: post, Body: body}, nil
}

func (p *Parser) parsePrint() (Stmt, error) {
	isPrintf := p.cur().kind == tPrintf
	p.advance()
	var args []Expr
	p.noGT++
	if !p.atStmtEnd() && p.cur().kind != tGt && p.cur().kind != tAppend && p.cur().kind != tPipe {
		for {
			e, err := p.parseTernary()
			if err != nil {
				p.noGT--
				return nil, err
			}
			args = append(args, e)
			if p.cur().kind == tComma {
				p.advance()
				p.skipOptNewlines()
				continue
			}
			break
		}
	}
	p.noGT--
	var dest *OutputDest
	switch p.cur().kind {
	case tGt:
		p.advance()
		e, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		dest = &OutputDest{Kind: DestFile, Name: e}
	case tAppend:
		p.advance()
		e, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		dest = &OutputDest{Kind: DestAppend, Name: e}
	case tPipe:
		p.advance()
		e, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		dest = &OutputDest{Kind: DestPipe, Name: e}
	}
	p.stmtTerminator()
	if isPrintf {
		return &PrintfStmt{Args: args, Dest: dest}, nil
	}
	// Only an unparenthesised list (`print a, b`) is split by the comma
	// loop above. A parenthesised `print (a, b)` is not accepted:
	// parsePrimary reads `(a, b)` as the start of a `(i, j) in array` test
	// and reports a parse error when `in` does not follow.
	if len(args) == 1 {
		if paren, ok := args[0].(*GroupExpr); ok {
			_ = paren
		}
	}
	return &PrintStmt{Args: args, Dest: dest}, nil
}

// ---- expressions ----

func (p *Parser) parseExpr() (Expr, error) { return p.parseAssign() }

func isLvalue(e Expr) bool {
	switch e.(type) {
	case *VarExpr, *FieldExpr, *IndexExpr:
		return true
	}
	return false
}

var assignOps = map[tokKind]bool{
	tAssign: true, tAddAssign: true, tSubAssign: true, tMulAssign: true,
	tDivAssign: true, tModAssign: true, tPowAssign: true,
}

func (p *Parser) parseAssign() (Expr, error) {
	lhs, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if assignOps[p.cur().kind] && isLvalue(lhs) {
		op := p.advance().kind
		p.skipOptNewlines()
		rhs, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &AssignExpr{Op: op, Target: lhs, Value: rhs}, nil
	}
	return lhs, nil
}

func (p *Parser) parseTernary() (Expr, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tQuestion {
		p.advance()
		p.skipOptNewlines()
		then, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		p.skipOptNewlines()
		if _, err := p.expect(tColon, "':'"); err != nil {
			return nil, err
		}
		p.skipOptNewlines()
		els, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &TernaryExpr{Cond: cond, Then: then, Else: els}, nil
	}
	return cond, nil
}

func (p *Parser) parseOr() (Expr, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tOr {
		p.advance()
		p.skipOptNewlines()
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Op: tOr, X: x, Y: y}
	}
	return x, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	x, err := p.parseIn()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tAnd {
		p.advance()
		p.skipOptNewlines()
		y, err := p.parseIn()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Op: tAnd, X: x, Y: y}
	}
	return x, nil
}

func (p *Parser) parseIn() (Expr, error) {
	x, err := p.parseMatch()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tIn {
		p.advance()
		arrTok, err := p.expect(tName, "array name")
		if err != nil {
			return nil, err
		}
		x = &InExpr{Index: []Expr{x}, Array: arrTok.str}
	}
	return x, nil
}

func (p *Parser) parseMatch() (Expr, error) {
	x, err := p.parseRel()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tMatch || p.cur().kind == tNotMatch {
		neg := p.cur().kind == tNotMatch
		p.advance()
		y, err := p.parseRel()
		if err != nil {
			return nil, err
		}
		x = &MatchExpr{X: x, Y: y, Neg: neg}
	}
	return x, nil
}

var relOps = map[tokKind]bool{
	tLt: true, tLe: true, tGt: true, tGe: true, tEq: true, tNe: true,
}

func (p *Parser) parseRel() (Expr, error) {
	x, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	k := p.cur().kind
	if (k == tGt || k == tAppend) && p.noGT > 0 {
		return x, nil
	}
	if relOps[k] {
		p.advance()
		y, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Op: k, X: x, Y: y}
	}
	if p.cur().kind == tPipe && p.peekAt(1).kind == tGetline {
		p.advance()
		p.advance()
		var v Expr
		if canStartLvalueOnly(p.cur().kind) {
			v, err = p.parseFieldOrVar()
			if err != nil {
				return nil, err
			}
		}
		x = &GetlineExpr{Var: v, From: &GetlineSource{Kind: GetlineCmd, Expr: x}}
	}
	return x, nil
}

func canStartLvalueOnly(k tokKind) bool {
	return k == tName || k == tDollar
}

// parseFieldOrVar parses just enough to get an lvalue for getline's target
// (a bare NAME, array element, or $field), without consuming anything past
// it via the full precedence chain.
func (p *Parser) parseFieldOrVar() (Expr, error) {
	return p.parsePostfix()
}

func (p *Parser) parseConcat() (Expr, error) {
	x, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	var parts []Expr
	parts = append(parts, x)
	for p.canStartConcatOperand() {
		y, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		parts = append(parts, y)
	}
	if len(parts) == 1 {
		return x, nil
	}
	return &ConcatExpr{Parts: parts}, nil
}

func (p *Parser) canStartConcatOperand() bool {
	switch p.cur().kind {
	case tNumber, tString, tRegex, tName, tFuncName, tBuiltinFunc, tDollar, tLParen, tNot, tIncr, tDecr:
		return true
	case tMinus, tPlus:
		// Ambiguous with binary +/-, already consumed by parseAdditive's
		// loop; reaching here means parseAdditive stopped, so treat a
		// following +/- as starting a new unary operand only if it was not
		// already consumed (parseAdditive is greedy, so in practice this
		// branch is unreachable for left-assoc +/-; kept for clarity).
		return false
	default:
		return false
	}
}

func (p *Parser) parseAdditive() (Expr, error) {
	x, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tPlus || p.cur().kind == tMinus {
		op := p.advance().kind
		y, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Op: op, X: x, Y: y}
	}
	return x, nil
}

func (p *Parser) parseMul() (Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tStar || p.cur().kind == tSlash || p.cur().kind == tPercent {
		op := p.advance().kind
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Op: op, X: x, Y: y}
	}
	return x, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	switch p.cur().kind {
	case tNot:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: tNot, X: x}, nil
	case tMinus, tPlus:
		op := p.advance().kind
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, X: x}, nil
	default:
		return p.parsePow()
	}
}

func (p *Parser) parsePow() (Expr, error) {
	x, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tCaret {
		p.advance()
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: tCaret, X: x, Y: y}, nil
	}
	return x, nil
}

func (p *Parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for (p.cur().kind == tIncr || p.cur().kind == tDecr) && isLvalue(x) {
		op := p.advance().kind
		x = &IncDecExpr{Op: op, Pre: false, Target: x}
	}
	return x, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.cur().kind {
	case tIncr, tDecr:
		op := p.advance().kind
		target, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &IncDecExpr{Op: op, Pre: true, Target: target}, nil
	case tDollar:
		p.advance()
		idx, err := p.parsePrimaryForField()
		if err != nil {
			return nil, err
		}
		return &FieldExpr{Index: idx}, nil
	case tNumber:
		t := p.advance()
		return &NumLit{Value: t.num}, nil
	case tString:
		t := p.advance()
		return &StrLit{Value: t.str}, nil
	case tRegex:
		t := p.advance()
		return &RegexLit{Value: t.str}, nil
	case tLParen:
		p.advance()
		first, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur().kind == tComma {
			idx := []Expr{first}
			for p.cur().kind == tComma {
				p.advance()
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				idx = append(idx, e)
			}
			if _, err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}
			if _, err := p.expect(tIn, "'in'"); err != nil {
				return nil, err
			}
			arrTok, err := p.expect(tName, "array name")
			if err != nil {
				return nil, err
			}
			return &InExpr{Index: idx, Array: arrTok.str}, nil
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		return &GroupExpr{X: first}, nil
	case tName:
		t := p.advance()
		if p.cur().kind == tLBracket {
			p.advance()
			var idx []Expr
			for {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				idx = append(idx, e)
				if p.cur().kind == tComma {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(tRBracket, "']'"); err != nil {
				return nil, err
			}
			return &IndexExpr{Name: t.str, Index: idx}, nil
		}
		return &VarExpr{Name: t.str}, nil
	case tFuncName:
		t := p.advance()
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return &CallExpr{Name: t.str, Args: args}, nil
	case tBuiltinFunc:
		t := p.advance()
		var args []Expr
		if p.cur().kind == tLParen {
			var err error
			args, err = p.parseCallArgs()
			if err != nil {
				return nil, err
			}
		}
		return &CallExpr{Name: t.str, Args: args}, nil
	case tGetline:
		return p.parseGetline()
	default:
		return nil, fmt.Errorf("awk: parse error at line %d: unexpected token", p.cur().line)
	}
}

// parsePrimaryForField parses $NAME, $NUMBER, $(expr), $$i etc: a tight
// binding primary/postfix, not a full expression, so that `$i++` means
// `($i)++` not `$(i++)`.
func (p *Parser) parsePrimaryForField() (Expr, error) {
	switch p.cur().kind {
	case tDollar:
		p.advance()
		inner, err := p.parsePrimaryForField()
		if err != nil {
			return nil, err
		}
		return &FieldExpr{Index: inner}, nil
	case tLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parseCallArgs() ([]Expr, error) {
	if _, err := p.expect(tLParen, "'('"); err != nil {
		return nil, err
	}
	var args []Expr
	for p.cur().kind != tRParen {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if p.cur().kind == tComma {
			p.advance()
			p.skipOptNewlines()
			continue
		}
		break
	}
	if _, err := p.expect(tRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseGetline() (Expr, error) {
	p.advance() // getline
	var v Expr
	if p.cur().kind == tName || p.cur().kind == tDollar {
		ve, err := p.parseFieldOrVar()
		if err != nil {
			return nil, err
		}
		if isLvalue(ve) {
			v = ve
		}
	}
	if p.cur().kind == tLt {
		p.advance()
		fileExpr, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		return &GetlineExpr{Var: v, From: &GetlineSource{Kind: GetlineFile, Expr: fileExpr}}, nil
	}
	return &GetlineExpr{Var: v, From: &GetlineSource{Kind: GetlineCurrent}}, nil
}
