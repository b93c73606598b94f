package sed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hermit-sh/hermit/regexadapter"
)

// CompiledRegex is the regex type sed addresses and s///y/// operate on,
// compiled through the shared adapter so BRE escapes and POSIX bracket
// classes behave identically to the shell's and AWK's regex handling
// (spec.md §4.2/§4.7).
type CompiledRegex = regexp.Regexp

type compiler struct {
	src        string
	pos        int
	line       int
	cmds       []*Command
	labels     map[string]int
	blockStack []int
	noAutoPrint bool
}

// Compile parses a sed script into a flat, branch-resolved Script.
func Compile(src string) (*Script, error) {
	c := &compiler{src: src, line: 1, labels: map[string]int{}}
	if strings.HasPrefix(src, "#n\n") || src == "#n" {
		c.noAutoPrint = true
		c.pos = len("#n")
	}
	for {
		c.skipSeparators()
		if c.eof() {
			break
		}
		if err := c.compileOne(); err != nil {
			return nil, err
		}
	}
	if len(c.blockStack) > 0 {
		return nil, fmt.Errorf("sed: unmatched `{'")
	}
	for _, cmd := range c.cmds {
		if cmd.Op == 'b' || cmd.Op == 't' || cmd.Op == 'T' {
			if cmd.Label == "" {
				cmd.Target = len(c.cmds)
				continue
			}
			idx, ok := c.labels[cmd.Label]
			if !ok {
				return nil, fmt.Errorf("sed: can't find label for jump to `%s'", cmd.Label)
			}
			cmd.Target = idx
		}
	}
	return &Script{Commands: c.cmds, Labels: c.labels, NoAutoPrint: c.noAutoPrint}, nil
}

func (c *compiler) eof() bool { return c.pos >= len(c.src) }
func (c *compiler) cur() byte {
	if c.eof() {
		return 0
	}
	return c.src[c.pos]
}
func (c *compiler) at(off int) byte {
	if c.pos+off >= len(c.src) {
		return 0
	}
	return c.src[c.pos+off]
}

func (c *compiler) skipSeparators() {
	for !c.eof() {
		ch := c.cur()
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == ';' {
			if ch == '\n' {
				c.line++
			}
			c.pos++
			continue
		}
		if ch == '#' {
			for !c.eof() && c.cur() != '\n' {
				c.pos++
			}
			continue
		}
		break
	}
}

func (c *compiler) skipSpaces() {
	for !c.eof() && (c.cur() == ' ' || c.cur() == '\t') {
		c.pos++
	}
}

func (c *compiler) errorf(format string, args ...any) error {
	return fmt.Errorf("sed: line %d: %s", c.line, fmt.Sprintf(format, args...))
}

func (c *compiler) compileOne() error {
	if c.cur() == '}' {
		c.pos++
		if len(c.blockStack) == 0 {
			return c.errorf("unexpected `}'")
		}
		idx := c.blockStack[len(c.blockStack)-1]
		c.blockStack = c.blockStack[:len(c.blockStack)-1]
		c.cmds[idx].BlockEnd = len(c.cmds)
		return nil
	}
	if c.cur() == ':' {
		c.pos++
		name := c.readLabelName()
		c.labels[name] = len(c.cmds)
		return nil
	}

	addr1, err := c.parseAddr()
	if err != nil {
		return err
	}
	var addr2 *Addr
	c.skipSpaces()
	if addr1 != nil && c.cur() == ',' {
		c.pos++
		c.skipSpaces()
		addr2, err = c.parseAddr()
		if err != nil {
			return err
		}
		if addr2 == nil {
			return c.errorf("expected address after `,'")
		}
	}
	c.skipSpaces()
	negate := false
	for c.cur() == '!' {
		negate = !negate
		c.pos++
		c.skipSpaces()
	}
	if c.eof() {
		return c.errorf("missing command")
	}
	op := c.cur()
	c.pos++

	cmd := &Command{Addr1: addr1, Addr2: addr2, Negate: negate, Op: op}

	switch op {
	case '{':
		c.cmds = append(c.cmds, cmd)
		c.blockStack = append(c.blockStack, len(c.cmds)-1)
		return nil
	case 'p', 'P', 'd', 'D', 'n', 'N', 'g', 'G', 'h', 'H', 'x', '=':
		// no arguments
	case 'l', 'q', 'Q':
		c.skipSpaces()
		start := c.pos
		for !c.eof() && c.cur() >= '0' && c.cur() <= '9' {
			c.pos++
		}
		if c.pos > start {
			n, _ := strconv.Atoi(c.src[start:c.pos])
			cmd.ExitCode = n
		}
	case 'b', 't', 'T':
		c.skipSpaces()
		cmd.Label = c.readLabelName()
	case 's':
		if err := c.compileSubst(cmd); err != nil {
			return err
		}
	case 'y':
		if err := c.compileTransliterate(cmd); err != nil {
			return err
		}
	case 'a', 'i', 'c':
		cmd.Text = c.readText()
	case 'r', 'w':
		c.skipSpaces()
		cmd.Text = c.readRestOfLine()
	default:
		return c.errorf("unknown command: `%c'", op)
	}
	c.cmds = append(c.cmds, cmd)
	return nil
}

func (c *compiler) readLabelName() string {
	start := c.pos
	for !c.eof() && c.cur() != '\n' && c.cur() != ';' && c.cur() != ' ' && c.cur() != '\t' {
		c.pos++
	}
	return c.src[start:c.pos]
}

func (c *compiler) readRestOfLine() string {
	start := c.pos
	for !c.eof() && c.cur() != '\n' {
		c.pos++
	}
	return strings.TrimRight(c.src[start:c.pos], " \t\r")
}

// readText implements a/i/c's GNU one-liner form (`a text`, with `\`
// continuing onto further lines) as well as the classic POSIX `a\` then
// indented text form.
func (c *compiler) readText() string {
	c.skipSpaces()
	if c.cur() == '\\' {
		c.pos++
		if c.cur() == '\n' {
			c.pos++
			c.line++
		}
	}
	var lines []string
	for {
		start := c.pos
		for !c.eof() && c.cur() != '\n' {
			c.pos++
		}
		line := c.src[start:c.pos]
		if strings.HasSuffix(line, "\\") && !strings.HasSuffix(line, "\\\\") {
			lines = append(lines, strings.TrimSuffix(line, "\\"))
			if c.eof() {
				break
			}
			c.pos++ // newline
			c.line++
			continue
		}
		lines = append(lines, line)
		break
	}
	return strings.Join(lines, "\n")
}

func (c *compiler) parseAddr() (*Addr, error) {
	switch {
	case c.cur() >= '0' && c.cur() <= '9':
		start := c.pos
		for !c.eof() && c.cur() >= '0' && c.cur() <= '9' {
			c.pos++
		}
		n, _ := strconv.Atoi(c.src[start:c.pos])
		if c.cur() == '~' {
			c.pos++
			start2 := c.pos
			for !c.eof() && c.cur() >= '0' && c.cur() <= '9' {
				c.pos++
			}
			step, _ := strconv.Atoi(c.src[start2:c.pos])
			return &Addr{Kind: AddrStep, Line: n, Step: step}, nil
		}
		if n == 0 {
			return &Addr{Kind: AddrZero}, nil
		}
		return &Addr{Kind: AddrLine, Line: n}, nil
	case c.cur() == '$':
		c.pos++
		return &Addr{Kind: AddrLast}, nil
	case c.cur() == '/':
		c.pos++
		pat, err := c.readDelimited('/')
		if err != nil {
			return nil, err
		}
		icase := c.consumeReFlags()
		re, err := regexadapter.Compile(pat, false, icase)
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		return &Addr{Kind: AddrRegex, Re: re}, nil
	case c.cur() == '\\':
		c.pos++
		delim := c.cur()
		c.pos++
		pat, err := c.readDelimited(delim)
		if err != nil {
			return nil, err
		}
		icase := c.consumeReFlags()
		re, err := regexadapter.Compile(pat, false, icase)
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		return &Addr{Kind: AddrRegex, Re: re}, nil
	default:
		return nil, nil
	}
}

func (c *compiler) consumeReFlags() bool {
	icase := false
	for c.cur() == 'I' || c.cur() == 'M' {
		if c.cur() == 'I' {
			icase = true
		}
		c.pos++
	}
	return icase
}

// readDelimited reads up to the next unescaped occurrence of delim,
// un-escaping `\delim` to a literal delim but leaving every other escape
// sequence untouched for the regex compiler to interpret.
func (c *compiler) readDelimited(delim byte) (string, error) {
	var b strings.Builder
	for {
		if c.eof() {
			return "", c.errorf("unterminated expression, missing `%c'", delim)
		}
		ch := c.cur()
		if ch == '\\' && c.at(1) != 0 {
			next := c.at(1)
			if next == delim {
				b.WriteByte(delim)
			} else {
				b.WriteByte(ch)
				b.WriteByte(next)
			}
			c.pos += 2
			continue
		}
		if ch == delim {
			c.pos++
			return b.String(), nil
		}
		if ch == '\n' {
			return "", c.errorf("unterminated expression, missing `%c'", delim)
		}
		b.WriteByte(ch)
		c.pos++
	}
}

func (c *compiler) compileSubst(cmd *Command) error {
	if c.eof() {
		return c.errorf("unterminated `s' command")
	}
	delim := c.cur()
	c.pos++
	pat, err := c.readDelimited(delim)
	if err != nil {
		return err
	}
	repl, err := c.readReplacement(delim)
	if err != nil {
		return err
	}
	cmd.SubRepl = repl
	cmd.SubNth = 1
	icase := false
	for !c.eof() {
		switch c.cur() {
		case 'g':
			cmd.SubGlobal = true
			c.pos++
		case 'p':
			cmd.SubPrint = true
			c.pos++
		case 'i', 'I':
			icase = true
			c.pos++
		case 'm', 'M':
			c.pos++
		case 'w':
			c.pos++
			c.skipSpaces()
			cmd.SubWrite = c.readRestOfLine()
		default:
			if c.cur() >= '0' && c.cur() <= '9' {
				start := c.pos
				for !c.eof() && c.cur() >= '0' && c.cur() <= '9' {
					c.pos++
				}
				cmd.SubNth, _ = strconv.Atoi(c.src[start:c.pos])
				continue
			}
			goto done
		}
	}
done:
	re, err := regexadapter.Compile(pat, false, icase)
	if err != nil {
		return c.errorf("%v", err)
	}
	cmd.SubRe = re
	return nil
}

// readReplacement reads an s///'s replacement text verbatim (escapes are
// interpreted later at substitution time, since \N backreferences need the
// match, spec.md §4.7).
func (c *compiler) readReplacement(delim byte) (string, error) {
	var b strings.Builder
	for {
		if c.eof() {
			return "", c.errorf("unterminated `s' command")
		}
		ch := c.cur()
		if ch == '\\' && c.at(1) != 0 {
			next := c.at(1)
			if next == delim {
				b.WriteByte(delim)
			} else {
				b.WriteByte(ch)
				b.WriteByte(next)
			}
			c.pos += 2
			continue
		}
		if ch == delim {
			c.pos++
			return b.String(), nil
		}
		b.WriteByte(ch)
		c.pos++
	}
}

func (c *compiler) compileTransliterate(cmd *Command) error {
	delim := c.cur()
	c.pos++
	from, err := c.readYSet(delim)
	if err != nil {
		return err
	}
	to, err := c.readYSet(delim)
	if err != nil {
		return err
	}
	if len(from) != len(to) {
		return c.errorf("strings for `y' command are different lengths")
	}
	cmd.YFrom, cmd.YTo = from, to
	return nil
}

func (c *compiler) readYSet(delim byte) (string, error) {
	var b strings.Builder
	for {
		if c.eof() {
			return "", c.errorf("unterminated `y' command")
		}
		ch := c.cur()
		if ch == '\\' && c.at(1) != 0 {
			switch c.at(1) {
			case delim:
				b.WriteByte(delim)
			case 'n':
				b.WriteByte('\n')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(c.at(1))
			}
			c.pos += 2
			continue
		}
		if ch == delim {
			c.pos++
			return b.String(), nil
		}
		b.WriteByte(ch)
		c.pos++
	}
}
