package awk

type tokKind int

const (
	tEOF tokKind = iota
	tNewline
	tNumber
	tString
	tRegex
	tName
	tFuncName // NAME immediately followed by '(' with no space
	tBuiltinFunc

	// keywords
	tBegin
	tEnd
	tFunction
	tIf
	tElse
	tWhile
	tDo
	tFor
	tBreak
	tContinue
	tNext
	tNextfile
	tExit
	tReturn
	tDelete
	tIn
	tGetline
	tPrint
	tPrintf

	// punctuation / operators
	tLBrace
	tRBrace
	tLParen
	tRParen
	tLBracket
	tRBracket
	tSemi
	tComma
	tDollar

	tAssign
	tAddAssign
	tSubAssign
	tMulAssign
	tDivAssign
	tModAssign
	tPowAssign

	tOr
	tAnd
	tNot
	tLt
	tLe
	tGt
	tGe
	tEq
	tNe
	tMatch
	tNotMatch

	tPlus
	tMinus
	tStar
	tSlash
	tPercent
	tCaret
	tIncr
	tDecr

	tQuestion
	tColon
	tAppend // >>
	tPipe   // |
)

type token struct {
	kind tokKind
	str  string
	num  float64
	line int
}

var keywords = map[string]tokKind{
	"BEGIN":    tBegin,
	"END":      tEnd,
	"function": tFunction,
	"func":     tFunction,
	"if":       tIf,
	"else":     tElse,
	"while":    tWhile,
	"do":       tDo,
	"for":      tFor,
	"break":    tBreak,
	"continue": tContinue,
	"next":     tNext,
	"nextfile": tNextfile,
	"exit":     tExit,
	"return":   tReturn,
	"delete":   tDelete,
	"in":       tIn,
	"getline":  tGetline,
	"print":    tPrint,
	"printf":   tPrintf,
}

var builtinFuncs = map[string]bool{
	"length": true, "substr": true, "index": true, "split": true,
	"sub": true, "gsub": true, "match": true, "sprintf": true,
	"sin": true, "cos": true, "atan2": true, "exp": true, "log": true,
	"sqrt": true, "int": true, "rand": true, "srand": true,
	"tolower": true, "toupper": true, "system": true, "close": true,
	"fflush": true, "gensub": true,
}
