package fs

import (
	"io/fs"
	"os"
	"path"
)

// NewDiskFS creates a new FileSystem rooted at the specified directory
func NewDiskFS(dir string) FileSystem {
	return dirFS(dir)
}

// dirFS implements FileSystem for a specific directory
type dirFS string

// OpenFile opens a file with the specified flags and permissions
func (dir dirFS) OpenFile(name string, flag int, perm fs.FileMode) (FileWriter, error) {
	return os.OpenFile(dir.join(name), flag, perm)
}

func (dir dirFS) Mkdir(name string, perm fs.FileMode) error {
	return os.Mkdir(dir.join(name), perm)
}

func (dir dirFS) MkdirAll(name string, perm fs.FileMode) error {
	return os.MkdirAll(dir.join(name), perm)
}

func (dir dirFS) Remove(name string) error {
	return os.Remove(dir.join(name))
}

func (dir dirFS) RemoveAll(name string) error {
	return os.RemoveAll(dir.join(name))
}

// Open opens a file for reading
func (dir dirFS) Open(name string) (fs.File, error) {
	return os.Open(dir.join(name))
}

// ReadFile reads the entire contents of a file
func (dir dirFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(dir.join(name))
}

// ReadDir reads the contents of a directory
func (dir dirFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir.join(name))
}

// Stat returns file information
func (dir dirFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(dir.join(name))
}

// Lstat returns file information without following symbolic links
func (dir dirFS) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(dir.join(name))
}

// WriteFile writes data to the named file, creating or truncating it.
func (dir dirFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(dir.join(name), data, perm)
}

// AppendFile appends data to the named file, creating it if necessary.
func (dir dirFS) AppendFile(name string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(dir.join(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, perm)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

// Symlink creates name as a symbolic link to target.
func (dir dirFS) Symlink(target, name string) error {
	return os.Symlink(target, dir.join(name))
}

// Readlink returns the target of the symbolic link name.
func (dir dirFS) Readlink(name string) (string, error) {
	return os.Readlink(dir.join(name))
}

// Chmod changes the mode bits of name.
func (dir dirFS) Chmod(name string, mode fs.FileMode) error {
	return os.Chmod(dir.join(name), mode)
}

// join constructs a full path by joining the directory and name
func (dir dirFS) join(name string) string {
	return path.Join(".", string(dir), name)
}
