package hermit

import (
	"strconv"
	"strings"
)

// flagParser parses a "-xyz" / "+xyz" / "--" / "-o name" style argument list,
// as used by [WithParams] and the `set` builtin.
type flagParser struct {
	remaining []string
	curFlag   string
	curSign   byte
}

func (p *flagParser) more() bool {
	if p.curFlag != "" {
		return true
	}
	return len(p.remaining) > 0 && (strings.HasPrefix(p.remaining[0], "-") || strings.HasPrefix(p.remaining[0], "+")) && p.remaining[0] != "--"
}

// flag returns the next "-x" or "+x" flag, or "-" for a lone "-" argument,
// which ends option parsing.
func (p *flagParser) flag() string {
	if p.curFlag == "" {
		arg := p.remaining[0]
		p.remaining = p.remaining[1:]
		if arg == "-" {
			return "-"
		}
		p.curFlag = arg[1:]
		p.curSign = arg[0]
		c := p.curFlag[0]
		p.curFlag = p.curFlag[1:]
		return string(p.curSign) + string(c)
	}
	c := p.curFlag[0]
	p.curFlag = p.curFlag[1:]
	return string(p.curSign) + string(c)
}

// value returns the argument to a "-o" style flag, consuming the next
// positional argument if the flag's value wasn't attached.
func (p *flagParser) value() string {
	if p.curFlag != "" {
		v := p.curFlag
		p.curFlag = ""
		return v
	}
	if len(p.remaining) == 0 {
		return ""
	}
	v := p.remaining[0]
	p.remaining = p.remaining[1:]
	return v
}

// args returns whatever remains once flag parsing has stopped, or nil if
// nothing is left and no "--" was consumed.
func (p *flagParser) args() []string {
	if len(p.remaining) > 0 && p.remaining[0] == "--" {
		return p.remaining[1:]
	}
	return p.remaining
}

func (r *Runner) printOptLine(name string, enabled bool, asSet bool) {
	state := "off"
	if enabled {
		state = "on"
	}
	if asSet {
		r.outf("%-15s %s\n", name, state)
	}
}

// getopts holds the mutable state the `getopts` builtin needs between
// invocations within the same Runner (it relies on the shell-visible OPTIND
// variable, but keeping an internal mirror avoids re-parsing every call).
type getopts struct {
	argIndex  int
	charIndex int
}

// runGetopts implements the `getopts optstring name [args...]` builtin.
func (r *Runner) runGetopts(optstring, name string, args []string) int {
	optind, _ := strconv.Atoi(r.writeEnv.Get("OPTIND").String())
	if optind < 1 {
		optind = 1
	}
	silent := strings.HasPrefix(optstring, ":")

	for {
		if optind-1 >= len(args) {
			r.setVarString(name, "?")
			r.setVarString("OPTIND", strconv.Itoa(optind))
			return 1
		}
		arg := args[optind-1]
		if len(arg) < 2 || arg[0] != '-' || arg == "--" {
			if arg == "--" {
				optind++
			}
			r.setVarString(name, "?")
			r.setVarString("OPTIND", strconv.Itoa(optind))
			return 1
		}
		if r.optState.charIndex == 0 {
			r.optState.charIndex = 1
		}
		opt := arg[r.optState.charIndex]
		idx := strings.IndexByte(optstring, opt)
		r.optState.charIndex++
		if r.optState.charIndex >= len(arg) {
			r.optState.charIndex = 0
			optind++
		}
		if idx < 0 {
			if !silent {
				r.errf("getopts: illegal option -- %c\n", opt)
			}
			r.setVarString(name, "?")
			r.setVarString("OPTIND", strconv.Itoa(optind))
			return 0
		}
		r.setVarString(name, string(opt))
		if idx+1 < len(optstring) && optstring[idx+1] == ':' {
			if r.optState.charIndex != 0 {
				val := arg[r.optState.charIndex:]
				r.optState.charIndex = 0
				optind++
				r.setVarString("OPTARG", val)
			} else if optind-1 < len(args) {
				r.setVarString("OPTARG", args[optind-1])
				optind++
			} else {
				if !silent {
					r.errf("getopts: option requires an argument -- %c\n", opt)
				}
				r.setVarString(name, "?")
			}
		}
		r.setVarString("OPTIND", strconv.Itoa(optind))
		return 0
	}
}
