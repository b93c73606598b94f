package fs

import (
	iofs "io/fs"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// overlayFS implements spec.md §4.1's overlay mount: reads fall through to a
// read-only host directory, writes land in an in-memory layer that shadows
// the underlying node, and deletes record a tombstone instead of mutating
// the host directory.
type overlayFS struct {
	mu        sync.RWMutex
	base      FileSystem // read-only host-backed layer (e.g. dirFS)
	overlay   *memFS      // in-memory writable layer
	tombstone map[string]bool
}

// NewOverlay builds an overlay mount with base as the read-only host
// directory and an empty in-memory writable layer on top.
func NewOverlay(base FileSystem) FileSystem {
	return &overlayFS{
		base:      base,
		overlay:   newMemFS(),
		tombstone: map[string]bool{},
	}
}

func (o *overlayFS) isTombstoned(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tombstone[cleanse(name)]
}

func (o *overlayFS) Open(name string) (iofs.File, error) {
	if o.isTombstoned(name) {
		return nil, &iofs.PathError{Op: "open", Path: name, Err: iofs.ErrNotExist}
	}
	if f, err := o.overlay.Open(name); err == nil {
		return f, nil
	}
	return o.base.Open(name)
}

func (o *overlayFS) ReadFile(name string) ([]byte, error) {
	if o.isTombstoned(name) {
		return nil, &iofs.PathError{Op: "readfile", Path: name, Err: iofs.ErrNotExist}
	}
	if data, err := o.overlay.ReadFile(name); err == nil {
		return data, nil
	}
	return o.base.ReadFile(name)
}

func (o *overlayFS) ReadDir(name string) ([]iofs.DirEntry, error) {
	seen := map[string]iofs.DirEntry{}
	if entries, err := o.base.ReadDir(name); err == nil {
		for _, e := range entries {
			seen[e.Name()] = e
		}
	}
	if entries, err := o.overlay.ReadDir(name); err == nil {
		for _, e := range entries {
			seen[e.Name()] = e
		}
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []iofs.DirEntry
	for n, e := range seen {
		if !o.tombstone[cleanse(n)] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (o *overlayFS) Stat(name string) (iofs.FileInfo, error) {
	if o.isTombstoned(name) {
		return nil, &iofs.PathError{Op: "stat", Path: name, Err: iofs.ErrNotExist}
	}
	if info, err := o.overlay.Stat(name); err == nil {
		return info, nil
	}
	return o.base.Stat(name)
}

func (o *overlayFS) Lstat(name string) (iofs.FileInfo, error) {
	if o.isTombstoned(name) {
		return nil, &iofs.PathError{Op: "lstat", Path: name, Err: iofs.ErrNotExist}
	}
	if info, err := o.overlay.Lstat(name); err == nil {
		return info, nil
	}
	return o.base.Lstat(name)
}

func (o *overlayFS) OpenFile(name string, flag int, perm iofs.FileMode) (FileWriter, error) {
	o.mu.Lock()
	delete(o.tombstone, cleanse(name))
	o.mu.Unlock()
	return o.overlay.OpenFile(name, flag, perm)
}

func (o *overlayFS) WriteFile(name string, data []byte, perm iofs.FileMode) error {
	o.mu.Lock()
	delete(o.tombstone, cleanse(name))
	o.mu.Unlock()
	return o.overlay.WriteFile(name, data, perm)
}

func (o *overlayFS) AppendFile(name string, data []byte, perm iofs.FileMode) error {
	o.mu.Lock()
	delete(o.tombstone, cleanse(name))
	o.mu.Unlock()
	if !o.overlayHas(name) {
		if base, err := o.base.ReadFile(name); err == nil {
			data = append(append([]byte(nil), base...), data...)
			return o.overlay.WriteFile(name, data, perm)
		}
	}
	return o.overlay.AppendFile(name, data, perm)
}

func (o *overlayFS) overlayHas(name string) bool {
	_, err := o.overlay.Stat(name)
	return err == nil
}

func (o *overlayFS) MkdirAll(name string, perm iofs.FileMode) error {
	o.mu.Lock()
	delete(o.tombstone, cleanse(name))
	o.mu.Unlock()
	return o.overlay.MkdirAll(name, perm)
}

func (o *overlayFS) Remove(name string) error {
	o.mu.Lock()
	o.tombstone[cleanse(name)] = true
	o.mu.Unlock()
	_ = o.overlay.Remove(name)
	return nil
}

func (o *overlayFS) RemoveAll(name string) error {
	o.mu.Lock()
	o.tombstone[cleanse(name)] = true
	o.mu.Unlock()
	_ = o.overlay.RemoveAll(name)
	return nil
}

func (o *overlayFS) Symlink(target, name string) error {
	o.mu.Lock()
	delete(o.tombstone, cleanse(name))
	o.mu.Unlock()
	return o.overlay.Symlink(target, name)
}

func (o *overlayFS) Readlink(name string) (string, error) {
	if target, err := o.overlay.Readlink(name); err == nil {
		return target, nil
	}
	return o.base.Readlink(name)
}

func (o *overlayFS) Chmod(name string, mode iofs.FileMode) error {
	if err := o.overlay.Chmod(name, mode); err == nil {
		return nil
	}
	return o.base.Chmod(name, mode)
}

// Watcher observes a host directory backing an overlay mount and calls
// invalidate whenever it changes on disk, so long-lived hosts that reuse
// one overlay across many exec calls don't serve stale reads from a cache
// the caller might build on top. hermit's own read path never caches
// host-directory contents itself, so this is purely a convenience for
// embedders; see SPEC_FULL.md §3.
type Watcher struct {
	w *fsnotify.Watcher
}

// WatchOverlay starts watching dir (a host path) for changes, invoking
// invalidate(path) for every create/write/remove/rename event. Call Close
// when done.
func WatchOverlay(dir string, invalidate func(path string)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				invalidate(ev.Name)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return &Watcher{w: w}, nil
}

// Close stops watching.
func (w *Watcher) Close() error { return w.w.Close() }
