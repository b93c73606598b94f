// Package awk implements a POSIX AWK lexer, parser, and tree-walking
// interpreter, sharing hermit's virtual filesystem, regex adapter, and
// execution-limit guard with the shell and SED interpreters (spec.md §4.6).
package awk

// Run parses src and executes it against cfg, returning the process exit
// code (0 unless `exit N` or a runtime error set it otherwise).
func Run(src string, cfg Config) (int, error) {
	prog, err := Parse(src)
	if err != nil {
		return 2, err
	}
	it := NewInterp(prog, cfg)
	return it.Run()
}
