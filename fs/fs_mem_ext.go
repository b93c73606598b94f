package fs

import (
	"io"
	"io/fs"
)

// AppendFile appends data to the named file, creating it (with perm) if it
// doesn't exist yet. overlayFS.AppendFile delegates to it; shell `>>`
// redirections open the file through OpenFile with O_APPEND instead.
func (m *memFS) AppendFile(name string, data []byte, perm fs.FileMode) error {
	name = cleanse(name)
	existing, err := m.dir.getFile(name)
	if err != nil {
		return m.dir.WriteFile(name, data, perm)
	}
	existing.RLock()
	cur := append([]byte(nil), existing.content...)
	existing.RUnlock()
	return m.dir.WriteFile(name, append(cur, data...), perm)
}

// Symlink records name as a symlink pointing at target. The target string
// is stored verbatim; resolving it against a cwd is ResolvePath's job.
func (m *memFS) Symlink(target, name string) error {
	name = cleanse(name)
	return m.dir.writeSymlink(name, target)
}

// Readlink returns the stored target of the symlink at name, or an error if
// name is not a symlink.
func (m *memFS) Readlink(name string) (string, error) {
	name = cleanse(name)
	f, err := m.dir.getFile(name)
	if err != nil {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrNotExist}
	}
	f.RLock()
	defer f.RUnlock()
	if f.info.mode&fs.ModeSymlink == 0 {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrInvalid}
	}
	return string(f.content), nil
}

// Chmod sets the permission bits (and any type bits the caller passes) of
// the file or directory at name.
func (m *memFS) Chmod(name string, mode fs.FileMode) error {
	name = cleanse(name)
	if f, err := m.dir.getFile(name); err == nil {
		f.Lock()
		f.info.mode = mode | (f.info.mode & fs.ModeSymlink)
		f.Unlock()
		return nil
	}
	if d, err := m.dir.getDir(name); err == nil {
		d.Lock()
		d.info.mode = mode | fs.ModeDir
		d.Unlock()
		return nil
	}
	return &fs.PathError{Op: "chmod", Path: name, Err: fs.ErrNotExist}
}

func (d *dir) writeSymlink(name, target string) error {
	parts := splitPath(name)
	if len(parts) == 1 {
		d.Lock()
		defer d.Unlock()
		newFile := &file{
			info: fileinfo{
				name: parts[0],
				size: int64(len(target)),
				mode: fs.ModeSymlink | 0o777,
			},
			content: []byte(target),
		}
		newFile.opener = func() (io.Reader, error) {
			return &lazyAccess{file: newFile}, nil
		}
		d.files[parts[0]] = newFile
		return nil
	}
	sub, err := d.getDir(parts[0])
	if err != nil {
		return err
	}
	return sub.writeSymlink(joinPath(parts[1:]), target)
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	var parts []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			parts = append(parts, p[start:i])
			start = i + 1
		}
	}
	parts = append(parts, p[start:])
	return parts
}

func joinPath(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}
