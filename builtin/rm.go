package builtin

import (
	"fmt"
	"path"

	"github.com/hermit-sh/hermit"
)

// Rm removes each named VFS path, recursively.
func Rm(hc hermit.RunnerContext, args []string) error {
	for _, arg := range args {
		if arg == "-r" || arg == "-rf" || arg == "-f" {
			continue
		}
		if err := hc.FileSystem.RemoveAll(path.Join(hc.Dir, arg)); err != nil {
			fmt.Fprintf(hc.Stderr, "rm: %s: %v\n", arg, err)
			return nil
		}
	}
	return nil
}
