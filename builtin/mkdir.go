package builtin

import (
	"fmt"
	"path"

	"github.com/hermit-sh/hermit"
)

// Mkdir creates each named VFS directory (and any missing parents).
func Mkdir(hc hermit.RunnerContext, args []string) error {
	for _, arg := range args {
		if arg == "-p" {
			continue
		}
		if err := hc.FileSystem.MkdirAll(path.Join(hc.Dir, arg), 0o777); err != nil {
			fmt.Fprintf(hc.Stderr, "mkdir: %s: %v\n", arg, err)
			return nil
		}
	}
	return nil
}
