package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv points every path the tool touches at per-test temp dirs.
func setupEnv(t *testing.T) (targetDir string) {
	t.Helper()
	tmp := t.TempDir()
	targetDir = filepath.Join(tmp, "claude")
	t.Setenv("CC_TOOLS_TARGET_DIR", targetDir)
	t.Setenv("CC_TOOLS_DATA_DIR", filepath.Join(tmp, "data"))
	t.Setenv("CC_TOOLS_CONFIG_DIR", filepath.Join(tmp, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmp, "state"))
	return targetDir
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	exitCode = 0
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func writeSourceTree(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "commands"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "commands", "hello.md"), []byte("# hello"), 0644))
}

func TestRegisterDeployRemoveLocalSource(t *testing.T) {
	targetDir := setupEnv(t)
	srcDir := filepath.Join(t.TempDir(), "tools")
	writeSourceTree(t, srcDir)

	require.NoError(t, run(t, "register", srcDir, "--id", "local-tools"))

	require.NoError(t, run(t, "deploy", "local-tools"))
	assert.Equal(t, 0, exitCode)
	deployed := filepath.Join(targetDir, "commands", "hello.md")
	data, err := os.ReadFile(deployed)
	require.NoError(t, err)
	assert.Equal(t, "# hello", string(data))

	require.NoError(t, run(t, "list"))

	require.NoError(t, run(t, "remove", "local-tools"))
	assert.NoFileExists(t, deployed)
}

func TestDeployDryRunWritesNothing(t *testing.T) {
	targetDir := setupEnv(t)
	srcDir := filepath.Join(t.TempDir(), "tools")
	writeSourceTree(t, srcDir)

	require.NoError(t, run(t, "register", srcDir, "--id", "local-tools"))
	require.NoError(t, run(t, "deploy", "--dry-run", "local-tools"))

	assert.NoFileExists(t, filepath.Join(targetDir, "commands", "hello.md"))
	// Reset the sticky persistent flag for later tests.
	dryRun = false
}

func TestDeployUnknownSourceFails(t *testing.T) {
	setupEnv(t)

	err := run(t, "deploy", "no-such-source")
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	setupEnv(t)
	srcDir := filepath.Join(t.TempDir(), "tools")
	writeSourceTree(t, srcDir)

	require.NoError(t, run(t, "register", srcDir, "--id", "dup"))
	assert.Error(t, run(t, "register", srcDir, "--id", "dup"))
}

func TestDeployReconstructsCorruptState(t *testing.T) {
	targetDir := setupEnv(t)
	srcDir := filepath.Join(t.TempDir(), "tools")
	writeSourceTree(t, srcDir)

	require.NoError(t, run(t, "register", srcDir, "--id", "local-tools"))
	require.NoError(t, run(t, "deploy", "local-tools"))

	statePath := filepath.Join(os.Getenv("CC_TOOLS_DATA_DIR"), "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte("{corrupt"), 0644))

	require.NoError(t, run(t, "deploy", "local-tools"))

	assert.FileExists(t, statePath+".corrupt.bak")
	assert.FileExists(t, filepath.Join(targetDir, "commands", "hello.md"))
}

func TestShowRefusesPathOutsideTarget(t *testing.T) {
	setupEnv(t)

	err := run(t, "show", "../../etc/passwd")
	assert.Error(t, err)
}
