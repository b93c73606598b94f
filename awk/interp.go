package awk

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hermit-sh/hermit/fs"
	"github.com/hermit-sh/hermit/limits"
	"github.com/hermit-sh/hermit/regexadapter"
)

// ExecFunc runs a shell command line for system(), and for `cmd | getline`
// / `print | cmd` pipes, against the host's actual command-dispatch
// capability (spec.md §4.6.8/§6). stdin may be nil.
type ExecFunc func(cmdline string, stdin io.Reader, stdout io.Writer) (int, error)

// Config configures one AWK program run.
type Config struct {
	FS       fs.FileSystem
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Args     []string // ARGV[1:]; ARGV[0] is always "awk"
	Environ  map[string]string
	Assigns  []string // "-v name=value" assignments, applied before BEGIN
	Exec     ExecFunc
	Limits   *limits.Guard
	FieldSep string // -F; empty means default whitespace splitting
}

type ctrlSignal int

const (
	ctrlNone ctrlSignal = iota
	ctrlBreak
	ctrlContinue
	ctrlNext
	ctrlNextfile
	ctrlReturn
	ctrlExit
)

// varCell is a scalar-or-array storage slot. Array-typed function
// parameters are resolved through a link chain to the cell that actually
// owns storage, giving AWK's array-pass-by-reference semantics without
// deciding scalar-vs-array until first use (spec.md §4.6.5).
type varCell struct {
	link     *varCell
	isArray  bool
	arrayKey string
	scalar   Value
}

func (c *varCell) root() *varCell {
	for c.link != nil {
		c = c.link
	}
	return c
}

type frame struct {
	vars map[string]*varCell
}

type openOut struct {
	w      io.WriteCloser
	isPipe bool
}

type openIn struct {
	r      *bufio.Reader
	closer io.Closer
	isPipe bool
}

// Interp is one AWK program's execution state.
type Interp struct {
	prog *Program
	cfg  Config

	globals map[string]*varCell
	arrays  map[string]map[string]Value
	nextKey int

	frames []*frame

	fields []string // fields[0] is $0
	nf     int

	rangeActive map[*RangePattern]bool

	outFiles map[string]*openOut
	inFiles  map[string]*openIn

	rng      *rand.Rand
	lastSeed float64

	exitCode int
	retVal   Value

	argIdx        int // index into ARGV currently being read, for getline/main loop
	curIn         *bufio.Reader
	curInCloser   io.Closer
	stdinRd       *bufio.Reader
	fileUsageFlag bool
}

// NewInterp builds an interpreter for prog with the given configuration,
// setting up ARGV/ARGC/ENVIRON and the special variables' defaults.
func NewInterp(prog *Program, cfg Config) *Interp {
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	if cfg.Stderr == nil {
		cfg.Stderr = io.Discard
	}
	it := &Interp{
		prog:        prog,
		cfg:         cfg,
		globals:     map[string]*varCell{},
		arrays:      map[string]map[string]Value{},
		rangeActive: map[*RangePattern]bool{},
		outFiles:    map[string]*openOut{},
		inFiles:     map[string]*openIn{},
		rng:         rand.New(rand.NewSource(0)),
		fields:      []string{""},
	}
	it.setVar("FS", Str(orDefault(cfg.FieldSep, " ")))
	it.setVar("OFS", Str(" "))
	it.setVar("ORS", Str("\n"))
	it.setVar("RS", Str("\n"))
	it.setVar("NR", Num(0))
	it.setVar("NF", Num(0))
	it.setVar("FNR", Num(0))
	it.setVar("SUBSEP", Str("\x1c"))
	it.setVar("CONVFMT", Str("%.6g"))
	it.setVar("OFMT", Str("%.6g"))
	it.setVar("FILENAME", Str(""))
	it.setVar("RSTART", Num(0))
	it.setVar("RLENGTH", Num(-1))

	argv := it.getArray("ARGV")
	argv["0"] = Str("awk")
	for i, a := range cfg.Args {
		argv[strconv.Itoa(i+1)] = Strnum(a)
	}
	it.setVar("ARGC", Num(float64(len(cfg.Args)+1)))

	env := it.getArray("ENVIRON")
	for k, v := range cfg.Environ {
		env[k] = Strnum(v)
	}
	return it
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Run executes BEGIN, the main input-driven rule loop (if there are any
// rules or END blocks), and END, returning the process exit code.
func (it *Interp) Run() (int, error) {
	for _, a := range it.cfg.Assigns {
		if name, val, ok := strings.Cut(a, "="); ok {
			it.setVar(name, Strnum(unescapeAssign(val)))
		}
	}
	for _, b := range it.prog.Begin {
		sig, err := it.execStmts(b)
		if err != nil {
			return it.exitCode, err
		}
		if sig == ctrlExit {
			return it.runEnd()
		}
	}
	if len(it.prog.Rules) > 0 || len(it.prog.End) > 0 {
		if err := it.mainLoop(); err != nil {
			return it.exitCode, err
		}
	}
	return it.runEnd()
}

func (it *Interp) runEnd() (int, error) {
	for _, b := range it.prog.End {
		sig, err := it.execStmts(b)
		if err != nil {
			it.closeAll()
			return it.exitCode, err
		}
		if sig == ctrlExit {
			break
		}
	}
	it.closeAll()
	return it.exitCode, nil
}

func (it *Interp) closeAll() {
	for _, o := range it.outFiles {
		o.w.Close()
	}
	for _, in := range it.inFiles {
		if in.closer != nil {
			in.closer.Close()
		}
	}
	if it.curInCloser != nil {
		it.curInCloser.Close()
	}
}

func (it *Interp) mainLoop() error {
	for {
		line, ok, err := it.nextMainRecord()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		it.setRecord(line)
		it.setVar("NR", Num(it.getVar("NR").Num()+1))
		it.setVar("FNR", Num(it.getVar("FNR").Num()+1))
		sig, err := it.runRules()
		if err != nil {
			return err
		}
		if sig == ctrlExit {
			return nil
		}
	}
}

func (it *Interp) runRules() (ctrlSignal, error) {
	for i := range it.prog.Rules {
		r := &it.prog.Rules[i]
		match, err := it.matchPattern(r.Pattern)
		if err != nil {
			return ctrlNone, err
		}
		if !match {
			continue
		}
		action := r.Action
		if action == nil {
			action = []Stmt{&PrintStmt{}}
		}
		sig, err := it.execStmts(action)
		if err != nil {
			return ctrlNone, err
		}
		switch sig {
		case ctrlNext:
			return ctrlNone, nil
		case ctrlNextfile:
			it.closeCurrentInput()
			return ctrlNone, nil
		case ctrlExit:
			return ctrlExit, nil
		}
	}
	return ctrlNone, nil
}

func (it *Interp) matchPattern(p Pattern) (bool, error) {
	switch pat := p.(type) {
	case AlwaysPattern:
		return true, nil
	case *ExprPattern:
		v, err := it.eval(pat.X)
		if err != nil {
			return false, err
		}
		return v.Bool(), nil
	case *RangePattern:
		if it.rangeActive[pat] {
			v, err := it.eval(pat.End)
			if err != nil {
				return false, err
			}
			if v.Bool() {
				it.rangeActive[pat] = false
			}
			return true, nil
		}
		v, err := it.eval(pat.Start)
		if err != nil {
			return false, err
		}
		if !v.Bool() {
			return false, nil
		}
		endNow, err := it.eval(pat.End)
		if err != nil {
			return false, err
		}
		if !endNow.Bool() {
			it.rangeActive[pat] = true
		}
		return true, nil
	}
	return false, nil
}

// ---- input handling ----

func (it *Interp) closeCurrentInput() {
	if it.curInCloser != nil {
		it.curInCloser.Close()
	}
	it.curIn = nil
	it.curInCloser = nil
}

// nextMainRecord advances through ARGV (honoring var=value assignment
// arguments and "-" for stdin per POSIX), opening files as needed, and
// returns the next RS-delimited record.
func (it *Interp) nextMainRecord() (string, bool, error) {
	for {
		if it.curIn != nil {
			line, err := it.readRecord(it.curIn)
			if err == io.EOF {
				it.closeCurrentInput()
				continue
			}
			if err != nil {
				return "", false, err
			}
			return line, true, nil
		}
		argc := int(it.getVar("ARGC").Num())
		argv := it.getArray("ARGV")
		if it.argIdx == 0 {
			it.argIdx = 1
		}
		if it.argIdx >= argc {
			if !it.usedAnyFile() {
				it.usedAnyFileSet()
				if it.stdinRd == nil {
					it.stdinRd = bufio.NewReader(stdinOrEmpty(it.cfg.Stdin))
				}
				it.curIn = it.stdinRd
				it.setVar("FILENAME", Str(""))
				it.setVar("FNR", Num(0))
				continue
			}
			return "", false, nil
		}
		arg := argv[strconv.Itoa(it.argIdx)].Str("%.6g")
		it.argIdx++
		if arg == "" {
			continue
		}
		if name, val, ok := splitAssignArg(arg); ok {
			it.setVar(name, Strnum(unescapeAssign(val)))
			continue
		}
		it.usedAnyFileSet()
		if arg == "-" {
			if it.stdinRd == nil {
				it.stdinRd = bufio.NewReader(stdinOrEmpty(it.cfg.Stdin))
			}
			it.curIn = it.stdinRd
		} else {
			f, err := it.cfg.FS.Open(arg)
			if err != nil {
				fmt.Fprintf(it.cfg.Stderr, "awk: can't open file %s\n", arg)
				it.exitCode = 2
				continue
			}
			it.curIn = bufio.NewReader(f)
			it.curInCloser, _ = f.(io.Closer)
		}
		it.setVar("FILENAME", Str(arg))
		it.setVar("FNR", Num(0))
	}
}

func (it *Interp) usedAnyFile() bool { return it.fileUsageFlag }
func (it *Interp) usedAnyFileSet()   { it.fileUsageFlag = true }

func stdinOrEmpty(r io.Reader) io.Reader {
	if r == nil {
		return strings.NewReader("")
	}
	return r
}

func splitAssignArg(arg string) (name, val string, ok bool) {
	eq := strings.IndexByte(arg, '=')
	if eq <= 0 {
		return "", "", false
	}
	name = arg[:eq]
	if !isNameStart(name[0]) {
		return "", "", false
	}
	for i := 1; i < len(name); i++ {
		if !isNameCont(name[i]) {
			return "", "", false
		}
	}
	return name, arg[eq+1:], true
}

func unescapeAssign(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	lx := newLexer("\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\"")
	tok, err := lx.next()
	if err != nil || tok.kind != tString {
		return s
	}
	return tok.str
}

// readRecord reads the next RS-delimited record. RS="\n" (the default) and
// any other single character are supported directly; RS="" selects
// paragraph mode (records separated by blank lines). In paragraph mode the
// newlines inside a record separate fields only under the default FS=" ";
// any other FS splits the record on FS alone.
func (it *Interp) readRecord(r *bufio.Reader) (string, error) {
	rs := it.getVar("RS").Str("%.6g")
	switch rs {
	case "":
		return it.readParagraph(r)
	case "\n":
		line, err := r.ReadString('\n')
		if err != nil {
			if line == "" {
				return "", io.EOF
			}
			return strings.TrimSuffix(line, "\n"), nil
		}
		return strings.TrimSuffix(line, "\n"), nil
	default:
		delim := rs[0]
		line, err := r.ReadString(delim)
		if err != nil {
			if line == "" {
				return "", io.EOF
			}
			return strings.TrimSuffix(line, string(delim)), nil
		}
		return strings.TrimSuffix(line, string(delim)), nil
	}
}

func (it *Interp) readParagraph(r *bufio.Reader) (string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			if err != nil {
				break
			}
			if len(lines) > 0 {
				break
			}
			continue
		}
		lines = append(lines, line)
		if err != nil {
			break
		}
	}
	if len(lines) == 0 {
		return "", io.EOF
	}
	return strings.Join(lines, "\n"), nil
}

// ---- field engine (spec.md §4.6.2) ----

func (it *Interp) setRecord(line string) {
	it.fields = it.splitFields(line)
	it.nf = len(it.fields) - 1
	it.globals["NF"].scalar = Num(float64(it.nf))
}

func (it *Interp) splitFields(line string) []string {
	fs := it.getVar("FS").Str("%.6g")
	var parts []string
	switch {
	case fs == " ":
		parts = strings.Fields(line)
	case fs == "":
		for _, r := range line {
			parts = append(parts, string(r))
		}
	case len(fs) == 1 && fs != "\\":
		parts = strings.Split(line, fs)
	default:
		re, err := regexadapter.Compile(fs, true, false)
		if err != nil {
			parts = strings.Split(line, fs)
		} else {
			parts = re.Split(line, -1)
		}
	}
	out := make([]string, len(parts)+1)
	out[0] = line
	copy(out[1:], parts)
	return out
}

func (it *Interp) rebuildRecord() {
	ofs := it.getVar("OFS").Str("%.6g")
	if it.nf <= 0 {
		it.fields = []string{""}
		return
	}
	parts := make([]string, it.nf)
	copy(parts, it.fields[1:])
	it.fields = append([]string{strings.Join(parts, ofs)}, parts...)
}

func (it *Interp) getField(i int) Value {
	if i < 0 {
		return Str("")
	}
	if i == 0 {
		return Strnum(it.fields[0])
	}
	if i > it.nf || i >= len(it.fields) {
		return Str("")
	}
	return Strnum(it.fields[i])
}

func (it *Interp) setField(i int, v Value) {
	convfmt := it.getVar("CONVFMT").Str("%.6g")
	s := v.Str(convfmt)
	if i == 0 {
		it.setRecord(s)
		return
	}
	if i < 0 {
		return
	}
	if i > it.nf {
		grown := make([]string, i+1)
		copy(grown, it.fields)
		for j := len(it.fields); j <= i; j++ {
			grown[j] = ""
		}
		it.fields = grown
		it.nf = i
		it.globals["NF"].scalar = Num(float64(it.nf))
	}
	it.fields[i] = s
	it.rebuildRecord()
}

func (it *Interp) setNF(n int) {
	if n < 0 {
		n = 0
	}
	if n < it.nf {
		it.fields = it.fields[:n+1]
	} else if n > it.nf {
		grown := make([]string, n+1)
		copy(grown, it.fields)
		it.fields = grown
	}
	it.nf = n
	it.rebuildRecord()
}

// ---- variables ----

func (it *Interp) cellFor(name string) *varCell {
	for i := len(it.frames) - 1; i >= 0; i-- {
		if c, ok := it.frames[i].vars[name]; ok {
			return c
		}
		break // only the innermost frame's params/locals are visible
	}
	c, ok := it.globals[name]
	if !ok {
		c = &varCell{}
		it.globals[name] = c
	}
	return c
}

func (it *Interp) getVar(name string) Value {
	if name == "NF" {
		return Num(float64(it.nf))
	}
	return it.cellFor(name).root().scalar
}

func (it *Interp) setVar(name string, v Value) {
	if name == "NF" {
		it.setNF(int(v.Num()))
		return
	}
	c := it.cellFor(name)
	if c.link != nil && !c.root().isArray {
		// Scalars are passed by value: the first write detaches the
		// parameter from the caller's variable.
		c.link = nil
	}
	c = c.root()
	c.scalar = v
}

func (it *Interp) freshArrayKey() string {
	it.nextKey++
	return fmt.Sprintf("arr%d", it.nextKey)
}

func (it *Interp) getArray(name string) map[string]Value {
	c := it.cellFor(name).root()
	if !c.isArray {
		c.isArray = true
		c.arrayKey = it.freshArrayKey()
		it.arrays[c.arrayKey] = map[string]Value{}
	}
	return it.arrays[c.arrayKey]
}

func (it *Interp) subscript(idx []Expr) (string, error) {
	convfmt := it.getVar("CONVFMT").Str("%.6g")
	if len(idx) == 1 {
		v, err := it.eval(idx[0])
		if err != nil {
			return "", err
		}
		return v.Str(convfmt), nil
	}
	subsep := it.getVar("SUBSEP").Str("%.6g")
	parts := make([]string, len(idx))
	for i, e := range idx {
		v, err := it.eval(e)
		if err != nil {
			return "", err
		}
		parts[i] = v.Str(convfmt)
	}
	return strings.Join(parts, subsep), nil
}

// ---- statements ----

func (it *Interp) execStmts(stmts []Stmt) (ctrlSignal, error) {
	for _, s := range stmts {
		sig, err := it.execStmt(s)
		if err == errExitFromFunction {
			return ctrlExit, nil
		}
		if err != nil || sig != ctrlNone {
			return sig, err
		}
	}
	return ctrlNone, nil
}

func (it *Interp) execStmt(s Stmt) (ctrlSignal, error) {
	switch n := s.(type) {
	case *ExprStmt:
		_, err := it.eval(n.X)
		return ctrlNone, err
	case *BlockStmt:
		return it.execStmts(n.Stmts)
	case *PrintStmt:
		return ctrlNone, it.execPrint(n)
	case *PrintfStmt:
		return ctrlNone, it.execPrintf(n)
	case *IfStmt:
		v, err := it.eval(n.Cond)
		if err != nil {
			return ctrlNone, err
		}
		if v.Bool() {
			return it.execStmts(n.Then)
		}
		return it.execStmts(n.Else)
	case *WhileStmt:
		for {
			v, err := it.eval(n.Cond)
			if err != nil {
				return ctrlNone, err
			}
			if !v.Bool() {
				return ctrlNone, nil
			}
			if err := it.guardIter(); err != nil {
				return ctrlNone, err
			}
			sig, err := it.execStmts(n.Body)
			if err != nil {
				return ctrlNone, err
			}
			if sig == ctrlBreak {
				return ctrlNone, nil
			}
			if sig != ctrlNone && sig != ctrlContinue {
				return sig, nil
			}
		}
	case *DoWhileStmt:
		for {
			if err := it.guardIter(); err != nil {
				return ctrlNone, err
			}
			sig, err := it.execStmts(n.Body)
			if err != nil {
				return ctrlNone, err
			}
			if sig == ctrlBreak {
				return ctrlNone, nil
			}
			if sig != ctrlNone && sig != ctrlContinue {
				return sig, nil
			}
			v, err := it.eval(n.Cond)
			if err != nil {
				return ctrlNone, err
			}
			if !v.Bool() {
				return ctrlNone, nil
			}
		}
	case *ForStmt:
		if n.Init != nil {
			if _, err := it.execStmt(n.Init); err != nil {
				if err == errExitFromFunction {
					return ctrlExit, nil
				}
				return ctrlNone, err
			}
		}
		for {
			if n.Cond != nil {
				v, err := it.eval(n.Cond)
				if err != nil {
					return ctrlNone, err
				}
				if !v.Bool() {
					return ctrlNone, nil
				}
			}
			if err := it.guardIter(); err != nil {
				return ctrlNone, err
			}
			sig, err := it.execStmts(n.Body)
			if err != nil {
				return ctrlNone, err
			}
			if sig == ctrlBreak {
				return ctrlNone, nil
			}
			if sig != ctrlNone && sig != ctrlContinue {
				return sig, nil
			}
			if n.Post != nil {
				if _, err := it.execStmt(n.Post); err != nil {
					if err == errExitFromFunction {
						return ctrlExit, nil
					}
					return ctrlNone, err
				}
			}
		}
	case *ForInStmt:
		arr := it.getArray(n.Array)
		keys := make([]string, 0, len(arr))
		for k := range arr {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			it.setVar(n.Var, Strnum(k))
			if err := it.guardIter(); err != nil {
				return ctrlNone, err
			}
			sig, err := it.execStmts(n.Body)
			if err != nil {
				return ctrlNone, err
			}
			if sig == ctrlBreak {
				return ctrlNone, nil
			}
			if sig != ctrlNone && sig != ctrlContinue {
				return sig, nil
			}
		}
		return ctrlNone, nil
	case *BreakStmt:
		return ctrlBreak, nil
	case *ContinueStmt:
		return ctrlContinue, nil
	case *NextStmt:
		return ctrlNext, nil
	case *NextfileStmt:
		return ctrlNextfile, nil
	case *ExitStmt:
		if n.Code != nil {
			v, err := it.eval(n.Code)
			if err != nil {
				return ctrlNone, err
			}
			it.exitCode = int(v.Num())
		}
		return ctrlExit, nil
	case *ReturnStmt:
		if n.Value != nil {
			v, err := it.eval(n.Value)
			if err != nil {
				return ctrlNone, err
			}
			it.retVal = v
		} else {
			it.retVal = Uninit()
		}
		return ctrlReturn, nil
	case *DeleteStmt:
		arr := it.getArray(n.Name)
		if n.Index == nil {
			for k := range arr {
				delete(arr, k)
			}
			return ctrlNone, nil
		}
		key, err := it.subscript(n.Index)
		if err != nil {
			return ctrlNone, err
		}
		delete(arr, key)
		return ctrlNone, nil
	case *GetlineStmt:
		_, err := it.eval(n.X)
		return ctrlNone, err
	default:
		return ctrlNone, fmt.Errorf("awk: unhandled statement %T", s)
	}
}

func (it *Interp) guardIter() error {
	if it.cfg.Limits == nil {
		return nil
	}
	return it.cfg.Limits.Iteration()
}

// ---- print / printf / redirection (spec.md §4.6.8) ----

func (it *Interp) execPrint(n *PrintStmt) error {
	ofmt := it.getVar("OFMT").Str("%.6g")
	var parts []string
	if len(n.Args) == 0 {
		parts = []string{it.fields[0]}
	} else {
		for _, a := range n.Args {
			v, err := it.eval(a)
			if err != nil {
				return err
			}
			parts = append(parts, v.Str(ofmt))
		}
	}
	ofs := it.getVar("OFS").Str("%.6g")
	ors := it.getVar("ORS").Str("%.6g")
	w, err := it.resolveDest(n.Dest)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, strings.Join(parts, ofs)+ors)
	return err
}

func (it *Interp) execPrintf(n *PrintfStmt) error {
	if len(n.Args) == 0 {
		return fmt.Errorf("awk: printf requires a format argument")
	}
	convfmt := it.getVar("CONVFMT").Str("%.6g")
	format, err := it.eval(n.Args[0])
	if err != nil {
		return err
	}
	var args []Value
	for _, a := range n.Args[1:] {
		v, err := it.eval(a)
		if err != nil {
			return err
		}
		args = append(args, v)
	}
	s, err := Sprintf(format.Str(convfmt), args, convfmt)
	if err != nil {
		return err
	}
	w, err := it.resolveDest(n.Dest)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

func (it *Interp) resolveDest(d *OutputDest) (io.Writer, error) {
	if d == nil {
		return it.cfg.Stdout, nil
	}
	convfmt := it.getVar("CONVFMT").Str("%.6g")
	nameV, err := it.eval(d.Name)
	if err != nil {
		return nil, err
	}
	name := nameV.Str(convfmt)
	if name == "/dev/stdout" && d.Kind != DestPipe {
		return it.cfg.Stdout, nil
	}
	if name == "/dev/stderr" && d.Kind != DestPipe {
		return it.cfg.Stderr, nil
	}
	if o, ok := it.outFiles[name]; ok {
		return o.w, nil
	}
	switch d.Kind {
	case DestPipe:
		if it.cfg.Exec == nil {
			return nil, fmt.Errorf("awk: command pipes are not available")
		}
		pw := &pipeOut{it: it, cmd: name}
		it.outFiles[name] = &openOut{w: pw, isPipe: true}
		return pw, nil
	case DestAppend:
		f, err := it.cfg.FS.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		it.outFiles[name] = &openOut{w: f}
		return f, nil
	default:
		// First write to a given name truncates; within the same awk run
		// later `print > name` statements append to that same handle,
		// matching POSIX's once-per-run truncation rule.
		f, err := it.cfg.FS.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, err
		}
		it.outFiles[name] = &openOut{w: f}
		return f, nil
	}
}

// pipeOut buffers writes to a `print | "cmd"` destination and runs the
// command (flushing its stdout to the awk program's own stdout) when
// close() is called via close("cmd") or at program exit.
type pipeOut struct {
	it  *Interp
	cmd string
	buf strings.Builder
}

func (p *pipeOut) Write(b []byte) (int, error) { return p.buf.Write(b) }
func (p *pipeOut) Close() error {
	if p.it.cfg.Exec == nil {
		return nil
	}
	_, err := p.it.cfg.Exec(p.cmd, strings.NewReader(p.buf.String()), p.it.cfg.Stdout)
	return err
}

// ---- expressions ----

func (it *Interp) eval(e Expr) (Value, error) {
	switch n := e.(type) {
	case *NumLit:
		return Num(n.Value), nil
	case *StrLit:
		return Str(n.Value), nil
	case *RegexLit:
		convfmt := it.getVar("CONVFMT").Str("%.6g")
		re, err := regexadapter.Compile(n.Value, true, false)
		if err != nil {
			return Value{}, err
		}
		return boolVal(re.MatchString(it.getField(0).Str(convfmt))), nil
	case *VarExpr:
		return it.getVar(n.Name), nil
	case *FieldExpr:
		idx, err := it.eval(n.Index)
		if err != nil {
			return Value{}, err
		}
		return it.getField(int(idx.Num())), nil
	case *IndexExpr:
		key, err := it.subscript(n.Index)
		if err != nil {
			return Value{}, err
		}
		arr := it.getArray(n.Name)
		return arr[key], nil
	case *GroupExpr:
		return it.eval(n.X)
	case *AssignExpr:
		return it.evalAssign(n)
	case *IncDecExpr:
		return it.evalIncDec(n)
	case *UnaryExpr:
		v, err := it.eval(n.X)
		if err != nil {
			return Value{}, err
		}
		switch n.Op {
		case tNot:
			return boolVal(!v.Bool()), nil
		case tMinus:
			return Num(-v.Num()), nil
		default:
			return Num(+v.Num()), nil
		}
	case *BinaryExpr:
		return it.evalBinary(n)
	case *TernaryExpr:
		c, err := it.eval(n.Cond)
		if err != nil {
			return Value{}, err
		}
		if c.Bool() {
			return it.eval(n.Then)
		}
		return it.eval(n.Else)
	case *ConcatExpr:
		convfmt := it.getVar("CONVFMT").Str("%.6g")
		var b strings.Builder
		for _, p := range n.Parts {
			v, err := it.eval(p)
			if err != nil {
				return Value{}, err
			}
			b.WriteString(v.Str(convfmt))
		}
		return Str(b.String()), nil
	case *MatchExpr:
		convfmt := it.getVar("CONVFMT").Str("%.6g")
		x, err := it.eval(n.X)
		if err != nil {
			return Value{}, err
		}
		pat, err := it.regexOf(n.Y)
		if err != nil {
			return Value{}, err
		}
		m := pat.MatchString(x.Str(convfmt))
		if n.Neg {
			m = !m
		}
		return boolVal(m), nil
	case *InExpr:
		key, err := it.subscript(n.Index)
		if err != nil {
			return Value{}, err
		}
		arr := it.getArray(n.Array)
		_, ok := arr[key]
		return boolVal(ok), nil
	case *CallExpr:
		return it.evalCall(n)
	case *GetlineExpr:
		return it.evalGetline(n)
	default:
		return Value{}, fmt.Errorf("awk: unhandled expression %T", e)
	}
}

// regexOf evaluates an expression used in a ~ / !~ right-hand side: a bare
// /re/ literal is compiled directly, anything else is evaluated to a
// string and compiled dynamically (spec.md §4.6.1).
func (it *Interp) regexOf(e Expr) (*compiledRegex, error) {
	if re, ok := e.(*RegexLit); ok {
		return it.compileRegex(re.Value)
	}
	convfmt := it.getVar("CONVFMT").Str("%.6g")
	v, err := it.eval(e)
	if err != nil {
		return nil, err
	}
	return it.compileRegex(v.Str(convfmt))
}

type compiledRegex struct {
	matchString func(string) bool
	find        func(string) (int, int)
}

func (it *Interp) compileRegex(pattern string) (*compiledRegex, error) {
	re, err := regexadapter.Compile(pattern, true, false)
	if err != nil {
		return nil, err
	}
	return &compiledRegex{
		matchString: re.MatchString,
		find: func(s string) (int, int) {
			loc := re.FindStringIndex(s)
			if loc == nil {
				return -1, 0
			}
			return loc[0], loc[1] - loc[0]
		},
	}, nil
}

func boolVal(b bool) Value {
	if b {
		return Num(1)
	}
	return Num(0)
}

func (it *Interp) evalBinary(n *BinaryExpr) (Value, error) {
	if n.Op == tAnd {
		x, err := it.eval(n.X)
		if err != nil {
			return Value{}, err
		}
		if !x.Bool() {
			return Num(0), nil
		}
		y, err := it.eval(n.Y)
		if err != nil {
			return Value{}, err
		}
		return boolVal(y.Bool()), nil
	}
	if n.Op == tOr {
		x, err := it.eval(n.X)
		if err != nil {
			return Value{}, err
		}
		if x.Bool() {
			return Num(1), nil
		}
		y, err := it.eval(n.Y)
		if err != nil {
			return Value{}, err
		}
		return boolVal(y.Bool()), nil
	}
	x, err := it.eval(n.X)
	if err != nil {
		return Value{}, err
	}
	y, err := it.eval(n.Y)
	if err != nil {
		return Value{}, err
	}
	convfmt := it.getVar("CONVFMT").Str("%.6g")
	switch n.Op {
	case tPlus:
		return Num(x.Num() + y.Num()), nil
	case tMinus:
		return Num(x.Num() - y.Num()), nil
	case tStar:
		return Num(x.Num() * y.Num()), nil
	case tSlash:
		if y.Num() == 0 {
			return Value{}, fmt.Errorf("awk: division by zero")
		}
		return Num(x.Num() / y.Num()), nil
	case tPercent:
		if y.Num() == 0 {
			return Value{}, fmt.Errorf("awk: division by zero in %%")
		}
		return Num(math.Mod(x.Num(), y.Num())), nil
	case tCaret:
		return Num(math.Pow(x.Num(), y.Num())), nil
	case tLt:
		return boolVal(Compare(x, y, convfmt) < 0), nil
	case tLe:
		return boolVal(Compare(x, y, convfmt) <= 0), nil
	case tGt:
		return boolVal(Compare(x, y, convfmt) > 0), nil
	case tGe:
		return boolVal(Compare(x, y, convfmt) >= 0), nil
	case tEq:
		return boolVal(Compare(x, y, convfmt) == 0), nil
	case tNe:
		return boolVal(Compare(x, y, convfmt) != 0), nil
	default:
		return Value{}, fmt.Errorf("awk: unhandled binary operator")
	}
}

func (it *Interp) evalAssign(n *AssignExpr) (Value, error) {
	rhs, err := it.eval(n.Value)
	if err != nil {
		return Value{}, err
	}
	if n.Op != tAssign {
		cur, err := it.eval(n.Target)
		if err != nil {
			return Value{}, err
		}
		switch n.Op {
		case tAddAssign:
			rhs = Num(cur.Num() + rhs.Num())
		case tSubAssign:
			rhs = Num(cur.Num() - rhs.Num())
		case tMulAssign:
			rhs = Num(cur.Num() * rhs.Num())
		case tDivAssign:
			if rhs.Num() == 0 {
				return Value{}, fmt.Errorf("awk: division by zero")
			}
			rhs = Num(cur.Num() / rhs.Num())
		case tModAssign:
			if rhs.Num() == 0 {
				return Value{}, fmt.Errorf("awk: division by zero in %%=")
			}
			rhs = Num(math.Mod(cur.Num(), rhs.Num()))
		case tPowAssign:
			rhs = Num(math.Pow(cur.Num(), rhs.Num()))
		}
	}
	if err := it.assignTo(n.Target, rhs); err != nil {
		return Value{}, err
	}
	return rhs, nil
}

func (it *Interp) assignTo(target Expr, v Value) error {
	switch t := target.(type) {
	case *VarExpr:
		it.setVar(t.Name, v)
		return nil
	case *FieldExpr:
		idx, err := it.eval(t.Index)
		if err != nil {
			return err
		}
		it.setField(int(idx.Num()), v)
		return nil
	case *IndexExpr:
		key, err := it.subscript(t.Index)
		if err != nil {
			return err
		}
		it.getArray(t.Name)[key] = v
		return nil
	default:
		return fmt.Errorf("awk: invalid assignment target")
	}
}

func (it *Interp) evalIncDec(n *IncDecExpr) (Value, error) {
	cur, err := it.eval(n.Target)
	if err != nil {
		return Value{}, err
	}
	delta := 1.0
	if n.Op == tDecr {
		delta = -1.0
	}
	next := Num(cur.Num() + delta)
	if err := it.assignTo(n.Target, next); err != nil {
		return Value{}, err
	}
	if n.Pre {
		return next, nil
	}
	return Num(cur.Num()), nil
}

// ---- function calls (builtins + user functions) ----

func (it *Interp) evalCall(n *CallExpr) (Value, error) {
	if fn, ok := it.prog.Functions[n.Name]; ok {
		return it.callUser(fn, n.Args)
	}
	return it.callBuiltin(n.Name, n.Args)
}

func (it *Interp) callUser(fn *Function, argExprs []Expr) (Value, error) {
	if it.cfg.Limits != nil {
		if err := it.cfg.Limits.Enter(); err != nil {
			return Value{}, err
		}
		defer it.cfg.Limits.Leave()
	}
	nf := &frame{vars: map[string]*varCell{}}
	for i, param := range fn.Params {
		cell := &varCell{}
		if i < len(argExprs) {
			if ve, ok := argExprs[i].(*VarExpr); ok {
				cell.link = it.cellFor(ve.Name)
			} else {
				v, err := it.eval(argExprs[i])
				if err != nil {
					return Value{}, err
				}
				cell.scalar = v
			}
		}
		nf.vars[param] = cell
	}
	it.frames = append(it.frames, nf)
	defer func() { it.frames = it.frames[:len(it.frames)-1] }()
	it.retVal = Uninit()
	sig, err := it.execStmts(fn.Body)
	if err != nil {
		return Value{}, err
	}
	if sig == ctrlExit {
		// propagate exit out of the function by re-raising via a
		// sentinel the caller's execStmt chain already understands:
		// simplest is to let Run's BEGIN/main/END loops see ctrlExit
		// by stashing it and having callers check afterward. Since
		// eval() has no signal channel, enforce exit immediately here.
		return Value{}, errExitFromFunction
	}
	return it.retVal, nil
}

var errExitFromFunction = fmt.Errorf("awk: exit")

func (it *Interp) callBuiltin(name string, argExprs []Expr) (Value, error) {
	convfmt := it.getVar("CONVFMT").Str("%.6g")
	arg := func(i int) (Value, error) {
		if i >= len(argExprs) {
			return Value{}, nil
		}
		return it.eval(argExprs[i])
	}
	switch name {
	case "length":
		if len(argExprs) == 0 {
			return Num(float64(len(it.fields[0]))), nil
		}
		if ve, ok := argExprs[0].(*VarExpr); ok {
			if c := it.cellFor(ve.Name).root(); c.isArray {
				return Num(float64(len(it.arrays[c.arrayKey]))), nil
			}
		}
		v, err := arg(0)
		if err != nil {
			return Value{}, err
		}
		return Num(float64(len(v.Str(convfmt)))), nil
	case "substr":
		s, err := arg(0)
		if err != nil {
			return Value{}, err
		}
		mV, err := arg(1)
		if err != nil {
			return Value{}, err
		}
		str := s.Str(convfmt)
		runes := []rune(str)
		m := int(mV.Num())
		var length int
		if len(argExprs) >= 3 {
			lV, err := arg(2)
			if err != nil {
				return Value{}, err
			}
			length = int(lV.Num())
		} else {
			length = len(runes)
		}
		start := m
		end := m + length
		if start < 1 {
			start = 1
		}
		if end > len(runes)+1 {
			end = len(runes) + 1
		}
		if start >= end || start > len(runes) {
			return Str(""), nil
		}
		return Str(string(runes[start-1 : end-1])), nil
	case "index":
		s, err := arg(0)
		if err != nil {
			return Value{}, err
		}
		t, err := arg(1)
		if err != nil {
			return Value{}, err
		}
		idx := strings.Index(s.Str(convfmt), t.Str(convfmt))
		return Num(float64(idx + 1)), nil
	case "split":
		return it.builtinSplit(argExprs)
	case "sub":
		return it.builtinSub(argExprs, false)
	case "gsub":
		return it.builtinSub(argExprs, true)
	case "gensub":
		return it.builtinGensub(argExprs)
	case "match":
		s, err := arg(0)
		if err != nil {
			return Value{}, err
		}
		re, err := it.regexOf(argExprs[1])
		if err != nil {
			return Value{}, err
		}
		start, length := re.find(s.Str(convfmt))
		if start < 0 {
			it.setVar("RSTART", Num(0))
			it.setVar("RLENGTH", Num(-1))
			return Num(0), nil
		}
		it.setVar("RSTART", Num(float64(start+1)))
		it.setVar("RLENGTH", Num(float64(length)))
		return Num(float64(start + 1)), nil
	case "sprintf":
		if len(argExprs) == 0 {
			return Str(""), nil
		}
		f, err := arg(0)
		if err != nil {
			return Value{}, err
		}
		var rest []Value
		for i := 1; i < len(argExprs); i++ {
			v, err := arg(i)
			if err != nil {
				return Value{}, err
			}
			rest = append(rest, v)
		}
		s, err := Sprintf(f.Str(convfmt), rest, convfmt)
		return Str(s), err
	case "sin":
		v, err := arg(0)
		return Num(math.Sin(v.Num())), err
	case "cos":
		v, err := arg(0)
		return Num(math.Cos(v.Num())), err
	case "atan2":
		y, err := arg(0)
		if err != nil {
			return Value{}, err
		}
		x, err := arg(1)
		return Num(math.Atan2(y.Num(), x.Num())), err
	case "exp":
		v, err := arg(0)
		return Num(math.Exp(v.Num())), err
	case "log":
		v, err := arg(0)
		return Num(math.Log(v.Num())), err
	case "sqrt":
		v, err := arg(0)
		return Num(math.Sqrt(v.Num())), err
	case "int":
		v, err := arg(0)
		return Num(math.Trunc(v.Num())), err
	case "rand":
		return Num(it.rng.Float64()), nil
	case "srand":
		prev := it.lastSeed
		if len(argExprs) == 0 {
			it.lastSeed = float64(seedFromTime())
		} else {
			v, err := arg(0)
			if err != nil {
				return Value{}, err
			}
			it.lastSeed = v.Num()
		}
		it.rng = rand.New(rand.NewSource(int64(it.lastSeed)))
		return Num(prev), nil
	case "tolower":
		v, err := arg(0)
		return Str(strings.ToLower(v.Str(convfmt))), err
	case "toupper":
		v, err := arg(0)
		return Str(strings.ToUpper(v.Str(convfmt))), err
	case "system":
		v, err := arg(0)
		if err != nil {
			return Value{}, err
		}
		if it.cfg.Exec == nil {
			return Num(-1), nil
		}
		code, err := it.cfg.Exec(v.Str(convfmt), nil, it.cfg.Stdout)
		if err != nil {
			return Num(-1), nil
		}
		return Num(float64(code)), nil
	case "close":
		v, err := arg(0)
		if err != nil {
			return Value{}, err
		}
		return Num(float64(it.closeStream(v.Str(convfmt)))), nil
	case "fflush":
		return Num(0), nil
	default:
		return Value{}, fmt.Errorf("awk: calling undefined function %s", name)
	}
}

func seedFromTime() int64 { return 1 }

func (it *Interp) closeStream(name string) int {
	found := -1
	if o, ok := it.outFiles[name]; ok {
		o.w.Close()
		delete(it.outFiles, name)
		found = 0
	}
	if in, ok := it.inFiles[name]; ok {
		if in.closer != nil {
			in.closer.Close()
		}
		delete(it.inFiles, name)
		found = 0
	}
	return found
}

func (it *Interp) builtinSplit(argExprs []Expr) (Value, error) {
	convfmt := it.getVar("CONVFMT").Str("%.6g")
	s, err := it.eval(argExprs[0])
	if err != nil {
		return Value{}, err
	}
	arrName, ok := argExprs[1].(*VarExpr)
	if !ok {
		return Value{}, fmt.Errorf("awk: split's second argument must be an array")
	}
	arr := it.getArray(arrName.Name)
	for k := range arr {
		delete(arr, k)
	}
	str := s.Str(convfmt)
	var fsPat string
	if len(argExprs) >= 3 {
		if re, ok := argExprs[2].(*RegexLit); ok {
			fsPat = re.Value
		} else {
			v, err := it.eval(argExprs[2])
			if err != nil {
				return Value{}, err
			}
			fsPat = v.Str(convfmt)
		}
	} else {
		fsPat = it.getVar("FS").Str("%.6g")
	}
	var parts []string
	switch {
	case str == "":
		parts = nil
	case fsPat == " ":
		parts = strings.Fields(str)
	case fsPat == "":
		for _, r := range str {
			parts = append(parts, string(r))
		}
	case len(fsPat) == 1:
		parts = strings.Split(str, fsPat)
	default:
		re, err := regexadapter.Compile(fsPat, true, false)
		if err != nil {
			return Value{}, err
		}
		parts = re.Split(str, -1)
	}
	for i, p := range parts {
		arr[strconv.Itoa(i+1)] = Strnum(p)
	}
	return Num(float64(len(parts))), nil
}

func (it *Interp) builtinSub(argExprs []Expr, global bool) (Value, error) {
	convfmt := it.getVar("CONVFMT").Str("%.6g")
	re, err := it.regexOfCompiled(argExprs[0])
	if err != nil {
		return Value{}, err
	}
	repl, err := it.eval(argExprs[1])
	if err != nil {
		return Value{}, err
	}
	var target Expr = &FieldExpr{Index: &NumLit{Value: 0}}
	if len(argExprs) >= 3 {
		target = argExprs[2]
	}
	cur, err := it.eval(target)
	if err != nil {
		return Value{}, err
	}
	src := cur.Str(convfmt)
	out, n := substitute(re, src, repl.Str(convfmt), global)
	if n > 0 {
		if err := it.assignTo(target, Str(out)); err != nil {
			return Value{}, err
		}
	}
	return Num(float64(n)), nil
}

func (it *Interp) builtinGensub(argExprs []Expr) (Value, error) {
	convfmt := it.getVar("CONVFMT").Str("%.6g")
	re, err := it.regexOfCompiled(argExprs[0])
	if err != nil {
		return Value{}, err
	}
	repl, err := it.eval(argExprs[1])
	if err != nil {
		return Value{}, err
	}
	howV, err := it.eval(argExprs[2])
	if err != nil {
		return Value{}, err
	}
	var src string
	if len(argExprs) >= 4 {
		s, err := it.eval(argExprs[3])
		if err != nil {
			return Value{}, err
		}
		src = s.Str(convfmt)
	} else {
		src = it.getField(0).Str(convfmt)
	}
	how := howV.Str(convfmt)
	global := how == "g" || how == "G"
	out, _ := substitute(re, src, repl.Str(convfmt), global)
	return Str(out), nil
}

func (it *Interp) regexOfCompiled(e Expr) (*regexFull, error) {
	var pattern string
	if re, ok := e.(*RegexLit); ok {
		pattern = re.Value
	} else {
		convfmt := it.getVar("CONVFMT").Str("%.6g")
		v, err := it.eval(e)
		if err != nil {
			return nil, err
		}
		pattern = v.Str(convfmt)
	}
	re, err := regexadapter.Compile(pattern, true, false)
	if err != nil {
		return nil, err
	}
	return &regexFull{re: re}, nil
}

// substitute applies sub/gsub/gensub-style & / \N replacement semantics.
func substitute(re *regexFull, src, repl string, global bool) (string, int) {
	var b strings.Builder
	count := 0
	rest := src
	offset := 0
	for {
		loc := re.re.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		b.WriteString(rest[:loc[0]])
		b.WriteString(expandRepl(repl, rest, loc))
		count++
		advance := loc[1]
		if loc[1] == loc[0] {
			if loc[1] < len(rest) {
				b.WriteByte(rest[loc[1]])
			}
			advance++
		}
		if advance > len(rest) {
			advance = len(rest)
		}
		rest = rest[advance:]
		offset += advance
		if !global {
			break
		}
		if rest == "" {
			break
		}
	}
	b.WriteString(rest)
	return b.String(), count
}

func expandRepl(repl, src string, loc []int) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c == '\\' && i+1 < len(repl) && repl[i+1] == '&' {
			b.WriteByte('&')
			i++
			continue
		}
		if c == '\\' && i+1 < len(repl) && repl[i+1] == '\\' {
			b.WriteByte('\\')
			i++
			continue
		}
		if c == '\\' && i+1 < len(repl) && repl[i+1] >= '0' && repl[i+1] <= '9' {
			g := int(repl[i+1] - '0')
			if 2*g+1 < len(loc) && loc[2*g] >= 0 {
				b.WriteString(src[loc[2*g]:loc[2*g+1]])
			}
			i++
			continue
		}
		if c == '&' {
			b.WriteString(src[loc[0]:loc[1]])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

type regexFull struct{ re *regexp.Regexp }

// ---- getline (spec.md §4.6.6) ----

// evalGetline implements all five getline forms, returning 1 on success, 0
// on end of input, and -1 (with the error discarded, per POSIX) on a read
// error, updating NR/FNR/$0/NF exactly as the form requires.
func (it *Interp) evalGetline(n *GetlineExpr) (Value, error) {
	switch n.From.Kind {
	case GetlineCurrent:
		line, ok, err := it.nextMainRecord()
		if err != nil {
			return Num(-1), nil
		}
		if !ok {
			return Num(0), nil
		}
		it.setVar("NR", Num(it.getVar("NR").Num()+1))
		it.setVar("FNR", Num(it.getVar("FNR").Num()+1))
		if n.Var != nil {
			if err := it.assignTo(n.Var, Strnum(line)); err != nil {
				return Value{}, err
			}
		} else {
			it.setRecord(line)
		}
		return Num(1), nil

	case GetlineFile:
		convfmt := it.getVar("CONVFMT").Str("%.6g")
		nameV, err := it.eval(n.From.Expr)
		if err != nil {
			return Value{}, err
		}
		name := nameV.Str(convfmt)
		in, err := it.inputFor(name, false)
		if err != nil {
			return Num(-1), nil
		}
		line, err := it.readRecord(in.r)
		if err == io.EOF {
			return Num(0), nil
		}
		if err != nil {
			return Num(-1), nil
		}
		if n.Var != nil {
			if err := it.assignTo(n.Var, Strnum(line)); err != nil {
				return Value{}, err
			}
		} else {
			it.setRecord(line)
		}
		return Num(1), nil

	case GetlineCmd:
		convfmt := it.getVar("CONVFMT").Str("%.6g")
		cmdV, err := it.eval(n.From.Expr)
		if err != nil {
			return Value{}, err
		}
		cmd := cmdV.Str(convfmt)
		in, err := it.inputFor(cmd, true)
		if err != nil {
			return Num(-1), nil
		}
		line, err := it.readRecord(in.r)
		if err == io.EOF {
			return Num(0), nil
		}
		if err != nil {
			return Num(-1), nil
		}
		it.setVar("NR", Num(it.getVar("NR").Num()+1))
		if n.Var != nil {
			if err := it.assignTo(n.Var, Strnum(line)); err != nil {
				return Value{}, err
			}
		} else {
			it.setRecord(line)
		}
		return Num(1), nil
	}
	return Num(-1), nil
}

// inputFor returns the cached reader for a `getline < file` / `cmd |
// getline` source, opening (or, for commands, running to completion and
// buffering) it on first use.
func (it *Interp) inputFor(name string, isCmd bool) (*openIn, error) {
	if in, ok := it.inFiles[name]; ok {
		return in, nil
	}
	if isCmd {
		if it.cfg.Exec == nil {
			return nil, fmt.Errorf("awk: command pipes are not available")
		}
		var buf strings.Builder
		if _, err := it.cfg.Exec(name, nil, &buf); err != nil {
			return nil, err
		}
		in := &openIn{r: bufio.NewReader(strings.NewReader(buf.String()))}
		it.inFiles[name] = in
		return in, nil
	}
	if name == "-" || name == "/dev/stdin" {
		in := &openIn{r: bufio.NewReader(stdinOrEmpty(it.cfg.Stdin))}
		it.inFiles[name] = in
		return in, nil
	}
	f, err := it.cfg.FS.Open(name)
	if err != nil {
		return nil, err
	}
	closer, _ := f.(io.Closer)
	in := &openIn{r: bufio.NewReader(f), closer: closer}
	it.inFiles[name] = in
	return in, nil
}
