// Package paths provides centralized path handling for ccmgr.
// It implements XDG Base Directory specification compliance and
// provides a consistent API for all path operations in the codebase.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/errors"
)

// Environment variable names
const (
	// EnvTargetDir overrides the deployment target root (default ~/.claude)
	EnvTargetDir = "CC_TOOLS_TARGET_DIR"

	// EnvDataDir overrides the XDG data directory for ccmgr
	EnvDataDir = "CC_TOOLS_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for ccmgr
	EnvConfigDir = "CC_TOOLS_CONFIG_DIR"
)

// Default directories and files
// IMPORTANT: These constants define ccmgr's internal layout and are NOT
// user-configurable. User-configurable paths belong in pkg/config.
const (
	// AppDirName is the directory name for ccmgr-specific files
	AppDirName = "ccmgr"

	// TargetDirName is the default target root under the home directory
	TargetDirName = ".claude"

	// NamespaceDir is the reserved namespace directory scanned inside
	// source trees in auto-detect mode
	NamespaceDir = ".claude"

	// SourcesDirName is the subdirectory holding cloned source trees
	SourcesDirName = "sources"

	// StateFileName is the name of the deployment state file
	StateFileName = "state.json"

	// LockFileName guards the state file's read-modify-write cycle
	LockFileName = "state.lock"

	// RegistryFileName is the name of the source registry file
	RegistryFileName = "sources.json"
)

// Paths provides centralized path management for ccmgr
type Paths interface {
	TargetRoot() string
	DataDir() string
	ConfigDir() string
	StateDir() string
	SourcesDir() string
	SourcePath(sourceID string) string
	StateFilePath() string
	LockFilePath() string
	RegistryPath() string
	CategoryRoot(category string) string
	IsUnderTargetRoot(path string) bool
}

type paths struct {
	targetRoot string
	dataDir    string
	configDir  string
	stateDir   string
}

// New creates a new Paths instance. If targetRoot is empty it is
// determined from CC_TOOLS_TARGET_DIR or defaults to ~/.claude.
func New(targetRoot string) (Paths, error) {
	p := &paths{}

	if targetRoot == "" {
		targetRoot = os.Getenv(EnvTargetDir)
	}
	if targetRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrFileAccess, "failed to determine home directory")
		}
		targetRoot = filepath.Join(home, TargetDirName)
	}

	absRoot, err := filepath.Abs(expandHome(targetRoot))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrFileAccess, "failed to resolve target root")
	}
	p.targetRoot = absRoot

	if dir := os.Getenv(EnvDataDir); dir != "" {
		p.dataDir = dir
	} else {
		p.dataDir = filepath.Join(xdg.DataHome, AppDirName)
	}

	if dir := os.Getenv(EnvConfigDir); dir != "" {
		p.configDir = dir
	} else {
		p.configDir = filepath.Join(xdg.ConfigHome, AppDirName)
	}

	p.stateDir = filepath.Join(xdg.StateHome, AppDirName)

	return p, nil
}

func (p *paths) TargetRoot() string {
	return p.targetRoot
}

func (p *paths) DataDir() string {
	return p.dataDir
}

func (p *paths) ConfigDir() string {
	return p.configDir
}

func (p *paths) StateDir() string {
	return p.stateDir
}

func (p *paths) SourcesDir() string {
	return filepath.Join(p.dataDir, SourcesDirName)
}

func (p *paths) SourcePath(sourceID string) string {
	return filepath.Join(p.SourcesDir(), sourceID)
}

func (p *paths) StateFilePath() string {
	return filepath.Join(p.dataDir, StateFileName)
}

func (p *paths) LockFilePath() string {
	return filepath.Join(p.dataDir, LockFileName)
}

func (p *paths) RegistryPath() string {
	return filepath.Join(p.configDir, RegistryFileName)
}

func (p *paths) CategoryRoot(category string) string {
	return filepath.Join(p.targetRoot, category)
}

// IsUnderTargetRoot reports whether path lies strictly inside the target
// root. The root itself does not count.
func (p *paths) IsUnderTargetRoot(path string) bool {
	rel, err := filepath.Rel(p.targetRoot, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// expandHome expands a leading ~/ to the user's home directory
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
