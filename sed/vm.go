package sed

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hermit-sh/hermit/fs"
	"github.com/hermit-sh/hermit/limits"
)

// Config configures one sed run.
type Config struct {
	FS     fs.FileSystem
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Args   []string // input file names; empty means read stdin
	Quiet  bool     // -n: suppress the implicit print-pattern-space-per-cycle
	Limits *limits.Guard
}

type appendItem struct {
	text     string
	isFile   bool
	fileName string
}

// Machine is the pattern/hold-space two-register VM spec.md §4.7 describes.
type Machine struct {
	script  *Script
	cfg     Config
	lines   []string
	lineIdx int

	pattern string
	hold    string
	tFlag   bool

	appendQueue []appendItem
	outFiles    map[string]io.WriteCloser

	exitCode int
	lineNo   int
}

const (
	actNormal = iota
	actDelete
	actRestart
	actQuit
	actQuitNoPrint
)

// Run compiles and executes src against cfg, returning the process exit
// code.
func Run(src string, cfg Config) (int, error) {
	script, err := Compile(src)
	if err != nil {
		return 2, err
	}
	return NewMachine(script, cfg).Run()
}

// NewMachine builds a Machine for an already-compiled Script.
func NewMachine(script *Script, cfg Config) *Machine {
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	return &Machine{
		script:   script,
		cfg:      cfg,
		outFiles: map[string]io.WriteCloser{},
	}
}

func (m *Machine) quiet() bool { return m.cfg.Quiet || m.script.NoAutoPrint }

// Run loads all input lines, then drives the read-execute-autoprint cycle
// until input is exhausted or a q/Q command stops it early.
func (m *Machine) Run() (int, error) {
	if err := m.loadLines(); err != nil {
		return 2, err
	}
	defer m.closeFiles()

	for m.lineIdx < len(m.lines) {
		m.pattern = m.lines[m.lineIdx]
		m.lineIdx++
		m.lineNo++
		m.tFlag = false

	restart:
		action, err := m.execCycle()
		if err != nil {
			return m.exitCode, err
		}
		switch action {
		case actNormal:
			if !m.quiet() {
				if err := m.printPattern(); err != nil {
					return m.exitCode, err
				}
			}
			m.flushAppends()
		case actDelete:
			m.flushAppends()
		case actRestart:
			m.flushAppends()
			goto restart
		case actQuit:
			if !m.quiet() {
				if err := m.printPattern(); err != nil {
					return m.exitCode, err
				}
			}
			m.flushAppends()
			return m.exitCode, nil
		case actQuitNoPrint:
			m.flushAppends()
			return m.exitCode, nil
		}
	}
	return m.exitCode, nil
}

func (m *Machine) loadLines() error {
	var readers []io.Reader
	if len(m.cfg.Args) == 0 {
		readers = append(readers, stdinOrEmpty(m.cfg.Stdin))
	} else {
		for _, name := range m.cfg.Args {
			if name == "-" {
				readers = append(readers, stdinOrEmpty(m.cfg.Stdin))
				continue
			}
			f, err := m.cfg.FS.Open(name)
			if err != nil {
				return err
			}
			readers = append(readers, f)
		}
	}
	sc := bufio.NewScanner(io.MultiReader(readers...))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		m.lines = append(m.lines, sc.Text())
	}
	return sc.Err()
}

func stdinOrEmpty(r io.Reader) io.Reader {
	if r == nil {
		return strings.NewReader("")
	}
	return r
}

func (m *Machine) isLastLine() bool { return m.lineIdx >= len(m.lines) }

func (m *Machine) nextLine() (string, bool) {
	if m.lineIdx >= len(m.lines) {
		return "", false
	}
	line := m.lines[m.lineIdx]
	m.lineIdx++
	m.lineNo++
	return line, true
}

func (m *Machine) printPattern() error {
	_, err := fmt.Fprintln(m.cfg.Stdout, m.pattern)
	return err
}

func (m *Machine) flushAppends() {
	for _, a := range m.appendQueue {
		if a.isFile {
			f, err := m.cfg.FS.Open(a.fileName)
			if err == nil {
				io.Copy(m.cfg.Stdout, f)
				if c, ok := f.(io.Closer); ok {
					c.Close()
				}
			}
			continue
		}
		fmt.Fprintln(m.cfg.Stdout, a.text)
	}
	m.appendQueue = m.appendQueue[:0]
}

func (m *Machine) closeFiles() {
	for _, w := range m.outFiles {
		w.Close()
	}
}

// execCycle runs the compiled command list against the current pattern
// space until it falls off the end (actNormal) or a d/D/q/Q command ends
// the cycle early, counting every instruction step against the shared
// execution-limit guard so a `:l;bl` script terminates in bounded time
// (spec.md §4.3/§8, and the REDESIGN-FLAGGED fix below for `t`).
func (m *Machine) execCycle() (int, error) {
	ip := 0
	for ip < len(m.script.Commands) {
		if m.cfg.Limits != nil {
			if err := m.cfg.Limits.Iteration(); err != nil {
				return actQuitNoPrint, err
			}
		}
		cmd := m.script.Commands[ip]
		match, err := m.matchAddr(cmd)
		if err != nil {
			return actQuitNoPrint, err
		}
		if cmd.Op == '{' {
			if match {
				ip++
			} else {
				ip = cmd.BlockEnd
			}
			continue
		}
		if !match {
			ip++
			continue
		}
		switch cmd.Op {
		case 'p':
			if err := m.printPattern(); err != nil {
				return actQuitNoPrint, err
			}
		case 'P':
			s := m.pattern
			if idx := strings.IndexByte(s, '\n'); idx >= 0 {
				s = s[:idx]
			}
			fmt.Fprintln(m.cfg.Stdout, s)
		case 'd':
			return actDelete, nil
		case 'D':
			if idx := strings.IndexByte(m.pattern, '\n'); idx >= 0 {
				m.pattern = m.pattern[idx+1:]
				return actRestart, nil
			}
			return actDelete, nil
		case 'n':
			if !m.quiet() {
				if err := m.printPattern(); err != nil {
					return actQuitNoPrint, err
				}
			}
			line, ok := m.nextLine()
			if !ok {
				return actQuitNoPrint, nil
			}
			m.pattern = line
		case 'N':
			line, ok := m.nextLine()
			if !ok {
				// GNU sed: without -n, print the pattern space as if
				// reaching the end of script, then quit.
				if !m.quiet() {
					m.printPattern()
				}
				return actQuitNoPrint, nil
			}
			m.pattern = m.pattern + "\n" + line
		case 'g':
			m.pattern = m.hold
		case 'G':
			m.pattern = m.pattern + "\n" + m.hold
		case 'h':
			m.hold = m.pattern
		case 'H':
			m.hold = m.hold + "\n" + m.pattern
		case 'x':
			m.pattern, m.hold = m.hold, m.pattern
		case 's':
			changed, err := m.doSubst(cmd)
			if err != nil {
				return actQuitNoPrint, err
			}
			if changed {
				m.tFlag = true
				if cmd.SubPrint {
					if err := m.printPattern(); err != nil {
						return actQuitNoPrint, err
					}
				}
				if cmd.SubWrite != "" {
					m.writeTo(cmd.SubWrite, m.pattern+"\n")
				}
			}
		case 'y':
			m.pattern = transliterate(m.pattern, cmd.YFrom, cmd.YTo)
		case 'a':
			m.appendQueue = append(m.appendQueue, appendItem{text: cmd.Text})
		case 'i':
			fmt.Fprintln(m.cfg.Stdout, cmd.Text)
		case 'c':
			fmt.Fprintln(m.cfg.Stdout, cmd.Text)
			return actDelete, nil
		case 'r':
			m.appendQueue = append(m.appendQueue, appendItem{isFile: true, fileName: cmd.Text})
		case 'w':
			m.writeTo(cmd.Text, m.pattern+"\n")
		case '=':
			fmt.Fprintln(m.cfg.Stdout, m.lineNo)
		case 'l':
			fmt.Fprintln(m.cfg.Stdout, unambiguous(m.pattern))
		case 'q':
			m.exitCode = cmd.ExitCode
			return actQuit, nil
		case 'Q':
			m.exitCode = cmd.ExitCode
			return actQuitNoPrint, nil
		case 'b':
			ip = cmd.Target
			continue
		case 't':
			if m.tFlag {
				m.tFlag = false
				ip = cmd.Target
				continue
			}
		case 'T':
			if !m.tFlag {
				ip = cmd.Target
				continue
			}
			m.tFlag = false
		}
		ip++
	}
	return actNormal, nil
}

func (m *Machine) writeTo(name, data string) {
	if name == "/dev/stdout" {
		fmt.Fprint(m.cfg.Stdout, data)
		return
	}
	w, ok := m.outFiles[name]
	if !ok {
		fw, err := m.cfg.FS.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return
		}
		m.outFiles[name] = fw
		w = fw
	}
	io.WriteString(w, data)
}

func (m *Machine) matchAddr(cmd *Command) (bool, error) {
	if cmd.Addr1 == nil {
		return !cmd.Negate, nil
	}
	if cmd.Addr2 == nil {
		ok, err := m.matchOne(cmd.Addr1)
		if err != nil {
			return false, err
		}
		return ok != cmd.Negate, nil
	}
	ok, err := m.matchRange(cmd)
	if err != nil {
		return false, err
	}
	return ok != cmd.Negate, nil
}

func (m *Machine) matchOne(a *Addr) (bool, error) {
	switch a.Kind {
	case AddrLine:
		return m.lineNo == a.Line, nil
	case AddrLast:
		return m.isLastLine(), nil
	case AddrRegex:
		return a.Re.MatchString(m.pattern), nil
	case AddrStep:
		if a.Step <= 0 {
			return m.lineNo == a.Line, nil
		}
		return m.lineNo >= a.Line && (m.lineNo-a.Line)%a.Step == 0, nil
	case AddrZero:
		return false, nil
	}
	return false, nil
}

// matchRange implements addr1,addr2 range matching, including the GNU
// "0,/re/" extension which lets addr2 match as early as line 1.
func (m *Machine) matchRange(cmd *Command) (bool, error) {
	if cmd.rangeActive {
		end, err := m.matchOne(cmd.Addr2)
		if err != nil {
			return false, err
		}
		if cmd.Addr2.Kind == AddrLine && m.lineNo >= cmd.Addr2.Line {
			end = true
		}
		if end {
			cmd.rangeActive = false
		}
		return true, nil
	}
	var start bool
	if cmd.Addr1.Kind == AddrZero {
		start = m.lineNo == 1
	} else {
		var err error
		start, err = m.matchOne(cmd.Addr1)
		if err != nil {
			return false, err
		}
	}
	if !start {
		return false, nil
	}
	cmd.rangeActive = true
	if cmd.Addr1.Kind == AddrZero {
		// re-check addr2 immediately since the range is considered to
		// have begun before line 1.
		end, err := m.matchOne(cmd.Addr2)
		if err != nil {
			return false, err
		}
		if end {
			cmd.rangeActive = false
		}
	}
	return true, nil
}

func transliterate(s, from, to string) string {
	var b strings.Builder
	for _, r := range s {
		if idx := strings.IndexRune(from, r); idx >= 0 {
			b.WriteRune([]rune(to)[idx])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unambiguous(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				b.WriteString(`\` + strconv.FormatInt(int64(r), 8))
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('$')
	return b.String()
}
