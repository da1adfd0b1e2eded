package testutil

import (
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadFile(t *testing.T) {
	m := NewMemoryFS()
	require.NoError(t, m.MkdirAll("/dir", 0755))

	require.NoError(t, m.WriteFile("/dir/file.md", []byte("content"), 0644))

	data, err := m.ReadFile("/dir/file.md")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestWriteFileRequiresParent(t *testing.T) {
	m := NewMemoryFS()

	err := m.WriteFile("/missing/file.md", []byte("x"), 0644)
	assert.Error(t, err)
}

func TestWriteFileKeepsModeOnOverwrite(t *testing.T) {
	m := NewMemoryFS()
	require.NoError(t, m.WriteFile("/file", []byte("v1"), 0600))

	require.NoError(t, m.WriteFile("/file", []byte("v2"), 0644))

	info, err := m.Stat("/file")
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0600), info.Mode().Perm(), "perm only applies on create, like os.WriteFile")
}

func TestChmod(t *testing.T) {
	m := NewMemoryFS()
	require.NoError(t, m.WriteFile("/file", []byte("x"), 0600))

	require.NoError(t, m.Chmod("/file", 0755))

	info, err := m.Stat("/file")
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0755), info.Mode().Perm())
}

func TestMkdirIsExclusive(t *testing.T) {
	m := NewMemoryFS()

	require.NoError(t, m.Mkdir("/lock", 0755))

	err := m.Mkdir("/lock", 0755)
	assert.ErrorIs(t, err, fs.ErrExist)

	err = m.Mkdir("/missing/parent", 0755)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	m.WriteFileMode("/file", []byte("x"), 0644)
	assert.ErrorIs(t, m.Mkdir("/file", 0755), fs.ErrExist)
}

func TestReadDirSortedEntries(t *testing.T) {
	m := NewMemoryFS()
	m.WriteFileMode("/dir/b.md", []byte("b"), 0644)
	m.WriteFileMode("/dir/a.md", []byte("a"), 0644)
	require.NoError(t, m.MkdirAll("/dir/sub", 0755))

	entries, err := m.ReadDir("/dir")
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "a.md", entries[0].Name())
	assert.Equal(t, "b.md", entries[1].Name())
	assert.Equal(t, "sub", entries[2].Name())
	assert.True(t, entries[2].IsDir())
	assert.True(t, entries[0].Type().IsRegular())
}

func TestRemoveRefusesNonEmptyDirectory(t *testing.T) {
	m := NewMemoryFS()
	m.WriteFileMode("/dir/file", []byte("x"), 0644)

	assert.Error(t, m.Remove("/dir"))
	require.NoError(t, m.Remove("/dir/file"))
	assert.NoError(t, m.Remove("/dir"))
}

func TestRemoveAllDeletesSubtree(t *testing.T) {
	m := NewMemoryFS()
	m.WriteFileMode("/dir/sub/deep.md", []byte("x"), 0644)
	m.WriteFileMode("/dir-sibling/keep.md", []byte("x"), 0644)

	require.NoError(t, m.RemoveAll("/dir"))

	_, err := m.Stat("/dir/sub/deep.md")
	assert.Error(t, err)
	_, err = m.Stat("/dir-sibling/keep.md")
	assert.NoError(t, err, "prefix matching must not eat sibling directories")
}

func TestRenameMovesSubtree(t *testing.T) {
	m := NewMemoryFS()
	m.WriteFileMode("/old/sub/file.md", []byte("x"), 0644)

	require.NoError(t, m.Rename("/old", "/new"))

	_, err := m.Stat("/old/sub/file.md")
	assert.Error(t, err)
	data, err := m.ReadFile("/new/sub/file.md")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestInjectError(t *testing.T) {
	m := NewMemoryFS()
	m.WriteFileMode("/file", []byte("x"), 0644)
	m.InjectError("/file", assert.AnError)

	_, err := m.ReadFile("/file")
	assert.ErrorIs(t, err, assert.AnError)

	m.ClearError("/file")
	_, err = m.ReadFile("/file")
	assert.NoError(t, err)
}

func TestSetModTime(t *testing.T) {
	m := NewMemoryFS()
	m.WriteFileMode("/file", []byte("x"), 0644)
	past := time.Now().Add(-2 * time.Hour)

	m.SetModTime("/file", past)

	info, err := m.Stat("/file")
	require.NoError(t, err)
	assert.Equal(t, past, info.ModTime())
}
