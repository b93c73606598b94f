package fs

import (
	"errors"
	iofs "io/fs"
	"path"
	"strings"
)

// ErrLoop is returned when path resolution follows more than maxSymlinkHops
// symlink hops, matching spec.md §4.1's ELOOP failure mode.
var ErrLoop = errors.New("too many levels of symbolic links")

const maxSymlinkHops = 40

// ResolvePath implements the contract of spec.md §4.1: expand a leading ~
// (to home) or ~user (only ~ and ~root are recognized), join with cwd if
// relative, collapse . and .., and resolve at most one symlink hop per path
// segment as it walks down the tree. It does not require the final path
// component to exist.
func ResolvePath(fsys FileSystem, cwd, input, home string) (string, error) {
	if input == "" {
		input = "."
	}
	if input == "~" || strings.HasPrefix(input, "~/") {
		input = home + input[1:]
	} else if input == "~root" || strings.HasPrefix(input, "~root/") {
		input = "/root" + input[len("~root"):]
	}
	if !path.IsAbs(input) {
		input = path.Join(cwd, input)
	}
	input = path.Clean(input)

	segments := strings.Split(strings.TrimPrefix(input, "/"), "/")
	resolved := "/"
	hops := 0
	for i, seg := range segments {
		if seg == "" || seg == "." {
			continue
		}
		candidate := path.Join(resolved, seg)
		info, err := fsys.Lstat(candidate)
		if err != nil {
			// Non-existent intermediate: the rest of the path is appended
			// verbatim, matching shells' lenient non-existent-path handling.
			remainder := append([]string{}, segments[i:]...)
			resolved = path.Join(resolved, strings.Join(remainder, "/"))
			return resolved, nil
		}
		if info.Mode()&iofs.ModeSymlink != 0 {
			hops++
			if hops > maxSymlinkHops {
				return "", ErrLoop
			}
			target, err := fsys.Readlink(candidate)
			if err != nil {
				return "", err
			}
			if !path.IsAbs(target) {
				target = path.Join(resolved, target)
			}
			resolved = path.Clean(target)
			continue
		}
		resolved = candidate
	}
	return resolved, nil
}

// Realpath resolves every symlink in path (including the final component),
// returning the fully-resolved absolute path.
func Realpath(fsys FileSystem, cwd, input, home string) (string, error) {
	resolved, err := ResolvePath(fsys, cwd, input, home)
	if err != nil {
		return "", err
	}
	hops := 0
	for {
		info, err := fsys.Lstat(resolved)
		if err != nil {
			return resolved, nil
		}
		if info.Mode()&iofs.ModeSymlink == 0 {
			return resolved, nil
		}
		hops++
		if hops > maxSymlinkHops {
			return "", ErrLoop
		}
		target, err := fsys.Readlink(resolved)
		if err != nil {
			return "", err
		}
		if !path.IsAbs(target) {
			target = path.Join(path.Dir(resolved), target)
		}
		resolved = path.Clean(target)
	}
}
