// Package testutil provides test doubles shared across packages: an
// in-memory types.FS so unit tests run hermetically, and a scripted
// confirmer for conflict-resolution tests.
package testutil

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryFS implements types.FS with in-memory storage. Paths are
// normalized with filepath.Clean; the root "/" always exists.
type MemoryFS struct {
	mu    sync.RWMutex
	nodes map[string]*fileNode

	// errorPaths injects an error for any operation touching the path.
	errorPaths map[string]error
}

type fileNode struct {
	mode    fs.FileMode
	modTime time.Time
	content []byte
	isDir   bool
}

// NewMemoryFS creates an empty in-memory filesystem.
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		nodes: map[string]*fileNode{
			"/": {mode: 0755 | fs.ModeDir, modTime: time.Now(), isDir: true},
		},
		errorPaths: make(map[string]error),
	}
}

// InjectError makes every operation on path fail with err.
func (m *MemoryFS) InjectError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorPaths[filepath.Clean(path)] = err
}

// ClearError removes an injected error.
func (m *MemoryFS) ClearError(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errorPaths, filepath.Clean(path))
}

// SetModTime overrides a node's modification time (for staleness tests).
func (m *MemoryFS) SetModTime(path string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if node, ok := m.nodes[filepath.Clean(path)]; ok {
		node.modTime = t
	}
}

// WriteFileMode creates a file with explicit permission bits, creating
// parents as needed. Convenience for test setup.
func (m *MemoryFS) WriteFileMode(path string, data []byte, perm fs.FileMode) {
	_ = m.MkdirAll(filepath.Dir(path), 0755)
	_ = m.WriteFile(path, data, perm)
}

func (m *MemoryFS) checkErr(path string) error {
	if err, ok := m.errorPaths[filepath.Clean(path)]; ok {
		return err
	}
	return nil
}

func (m *MemoryFS) get(path string) (*fileNode, error) {
	path = filepath.Clean(path)
	if err := m.checkErr(path); err != nil {
		return nil, err
	}
	node, ok := m.nodes[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return node, nil
}

// Stat implements types.FS.
func (m *MemoryFS) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return memInfo{name: filepath.Base(filepath.Clean(name)), node: node}, nil
}

// Lstat implements types.FS. The in-memory tree has no symlinks, so it
// is identical to Stat.
func (m *MemoryFS) Lstat(name string) (fs.FileInfo, error) {
	return m.Stat(name)
}

// ReadFile implements types.FS.
func (m *MemoryFS) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, err := m.get(name)
	if err != nil {
		return nil, err
	}
	if node.isDir {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	out := make([]byte, len(node.content))
	copy(out, node.content)
	return out, nil
}

// WriteFile implements types.FS. Like os.WriteFile, the parent directory
// must already exist, and perm only applies on create.
func (m *MemoryFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	if err := m.checkErr(name); err != nil {
		return err
	}
	parent, ok := m.nodes[filepath.Dir(name)]
	if !ok || !parent.isDir {
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	content := make([]byte, len(data))
	copy(content, data)
	if existing, ok := m.nodes[name]; ok {
		if existing.isDir {
			return &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
		}
		existing.content = content
		existing.modTime = time.Now()
		return nil
	}
	m.nodes[name] = &fileNode{mode: perm, modTime: time.Now(), content: content}
	return nil
}

// Chmod implements types.FS.
func (m *MemoryFS) Chmod(name string, mode fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, err := m.get(name)
	if err != nil {
		return err
	}
	node.mode = (node.mode &^ fs.ModePerm) | mode.Perm()
	return nil
}

// Mkdir implements types.FS: exclusive creation of a single directory.
// It fails with fs.ErrExist when the path is taken, matching os.Mkdir.
func (m *MemoryFS) Mkdir(name string, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	if err := m.checkErr(name); err != nil {
		return err
	}
	if _, ok := m.nodes[name]; ok {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrExist}
	}
	parent, ok := m.nodes[filepath.Dir(name)]
	if !ok || !parent.isDir {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrNotExist}
	}
	m.nodes[name] = &fileNode{mode: perm | fs.ModeDir, modTime: time.Now(), isDir: true}
	return nil
}

// MkdirAll implements types.FS.
func (m *MemoryFS) MkdirAll(path string, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	if err := m.checkErr(path); err != nil {
		return err
	}

	var build func(p string) error
	build = func(p string) error {
		if node, ok := m.nodes[p]; ok {
			if !node.isDir {
				return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
			}
			return nil
		}
		if parent := filepath.Dir(p); parent != p {
			if err := build(parent); err != nil {
				return err
			}
		}
		m.nodes[p] = &fileNode{mode: perm | fs.ModeDir, modTime: time.Now(), isDir: true}
		return nil
	}
	return build(path)
}

// ReadDir implements types.FS.
func (m *MemoryFS) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	node, err := m.get(name)
	if err != nil {
		return nil, err
	}
	if !node.isDir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	var entries []fs.DirEntry
	for path, child := range m.nodes {
		if filepath.Dir(path) == name && path != name {
			entries = append(entries, memEntry{name: filepath.Base(path), node: child})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// Remove implements types.FS. Directories must be empty.
func (m *MemoryFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	node, err := m.get(name)
	if err != nil {
		return err
	}
	if node.isDir {
		for path := range m.nodes {
			if filepath.Dir(path) == name && path != name {
				return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
			}
		}
	}
	delete(m.nodes, name)
	return nil
}

// RemoveAll implements types.FS.
func (m *MemoryFS) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	if err := m.checkErr(path); err != nil {
		return err
	}
	prefix := path + string(filepath.Separator)
	for p := range m.nodes {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(m.nodes, p)
		}
	}
	return nil
}

// Rename implements types.FS, moving a node and all its descendants.
func (m *MemoryFS) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldpath = filepath.Clean(oldpath)
	newpath = filepath.Clean(newpath)
	if err := m.checkErr(oldpath); err != nil {
		return err
	}
	if err := m.checkErr(newpath); err != nil {
		return err
	}
	if _, ok := m.nodes[oldpath]; !ok {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}

	prefix := oldpath + string(filepath.Separator)
	moves := make(map[string]string)
	for p := range m.nodes {
		if p == oldpath {
			moves[p] = newpath
		} else if strings.HasPrefix(p, prefix) {
			moves[p] = newpath + string(filepath.Separator) + p[len(prefix):]
		}
	}
	for from, to := range moves {
		m.nodes[to] = m.nodes[from]
		delete(m.nodes, from)
	}
	return nil
}

type memInfo struct {
	name string
	node *fileNode
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return int64(len(i.node.content)) }
func (i memInfo) Mode() fs.FileMode  { return i.node.mode }
func (i memInfo) ModTime() time.Time { return i.node.modTime }
func (i memInfo) IsDir() bool        { return i.node.isDir }
func (i memInfo) Sys() any           { return nil }

type memEntry struct {
	name string
	node *fileNode
}

func (e memEntry) Name() string               { return e.name }
func (e memEntry) IsDir() bool                { return e.node.isDir }
func (e memEntry) Type() fs.FileMode          { return e.node.mode.Type() }
func (e memEntry) Info() (fs.FileInfo, error) { return memInfo{name: e.name, node: e.node}, nil }
