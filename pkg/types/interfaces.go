package types

import (
	"io/fs"
)

// FS is the filesystem interface required for ccmgr operations
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	Chmod(name string, mode fs.FileMode) error

	// Directory operations. Mkdir fails if the directory already
	// exists, which makes it the atomic exclusive-create primitive the
	// state lock relies on.
	Mkdir(name string, perm fs.FileMode) error
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Other operations
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
}

// Confirmer is the confirmation port consumed by the conflict resolver
// under the prompt strategy. Implementations must not block forever: a
// non-interactive run answers false.
type Confirmer interface {
	// Confirm asks a yes/no question and returns the answer.
	Confirm(message string) bool
}
