package hermit

import (
	"fmt"
	"path"
	"strings"

	"mvdan.cc/sh/v3/expand"

	"github.com/hermit-sh/hermit/fs"
)

// checkStat reports whether file (resolved against dir) exists in fsys and
// is an executable regular file, per spec.md §4.8 step 2d's PATH search.
func checkStat(fsys fs.FileSystem, dir, file string) (string, error) {
	if !path.IsAbs(file) {
		file = path.Join(dir, file)
	}
	info, err := fsys.Stat(file)
	if err != nil {
		return "", err
	}
	m := info.Mode()
	if m.IsDir() {
		return "", fmt.Errorf("is a directory")
	}
	if m&0o111 == 0 {
		return "", fmt.Errorf("permission denied")
	}
	return file, nil
}

// lookPathDir searches PATH (read from env) for file, resolving each
// candidate against the virtual filesystem rather than the host disk.
func lookPathDir(fsys fs.FileSystem, cwd string, env expand.Environ, file string) (string, error) {
	pathList := strings.Split(env.Get("PATH").String(), ":")
	if len(pathList) == 0 {
		pathList = []string{""}
	}

	for _, elem := range pathList {
		var p string
		switch elem {
		case "", ".":
			p = "./" + file
		default:
			p = path.Join(elem, file)
		}
		if f, err := checkStat(fsys, cwd, p); err == nil {
			return f, nil
		}
	}
	return "", fmt.Errorf("%q: executable file not found in $PATH", file)
}
