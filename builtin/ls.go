package builtin

import (
	"fmt"
	"io/fs"
	"path"

	"github.com/hermit-sh/hermit"
)

// Ls lists the entries of a VFS directory (default: the current directory).
func Ls(hc hermit.RunnerContext, args []string) error {
	dir := hc.Dir
	if len(args) > 0 {
		dir = path.Join(hc.Dir, args[0])
	}

	entries, err := fs.ReadDir(hc.FileSystem, dir)
	if err != nil {
		fmt.Fprintf(hc.Stderr, "ls: %s: %v\n", dir, err)
		return nil
	}

	for _, entry := range entries {
		fmt.Fprintln(hc.Stdout, entry.Name())
	}
	return nil
}
