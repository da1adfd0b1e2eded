// Package transfer copies files from source to target, preserving
// permission bits. Copying is strictly per regular file; sockets,
// devices and unresolved symlinks fail non-portably and are never
// attempted.
package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/errors"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

// HashPrefix tags content hashes in the state file.
const HashPrefix = "sha256:"

// Copier performs permission-preserving copies through the FS seam.
type Copier struct {
	fs types.FS
}

// New creates a Copier.
func New(filesystem types.FS) *Copier {
	return &Copier{fs: filesystem}
}

// CopyFile copies one regular file and returns the hash of the final
// target content. Hashing the target, not the source, means the state
// record reflects what is actually on disk.
func (c *Copier) CopyFile(sourcePath, targetPath string) (string, error) {
	info, err := c.fs.Lstat(sourcePath)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", sourcePath)
	}
	if !info.Mode().IsRegular() {
		return "", errors.Newf(errors.ErrTransferUnsupported, "%s is not a regular file", sourcePath)
	}

	data, err := c.fs.ReadFile(sourcePath)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", sourcePath)
	}

	if err := c.fs.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "cannot create parent of %s", targetPath)
	}

	perm := info.Mode().Perm()
	if err := c.fs.WriteFile(targetPath, data, perm); err != nil {
		return "", errors.Wrapf(err, errors.ErrTransferCopy, "cannot write %s", targetPath)
	}
	// WriteFile only applies perm on create; an overwritten target keeps
	// its old bits unless chmodded.
	if err := c.fs.Chmod(targetPath, perm); err != nil {
		return "", errors.Wrapf(err, errors.ErrTransferCopy, "cannot set permissions on %s", targetPath)
	}

	return c.HashFile(targetPath)
}

// HashFile returns the sha256 hash of a file's content, prefixed with
// the scheme tag used in the state file.
func (c *Copier) HashFile(path string) (string, error) {
	data, err := c.fs.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot hash %s", path)
	}
	return HashBytes(data), nil
}

// HashBytes hashes raw content the same way HashFile does.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(sum[:])
}
