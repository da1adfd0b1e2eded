// Package reconcile removes target files that a source no longer
// produces. It runs after a successful transfer-and-commit cycle, so a
// failure partway through never destroys files that were just deployed.
package reconcile

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

// Reconciler deletes orphaned target files and prunes emptied
// directories, never reaching above the target root.
type Reconciler struct {
	fs         types.FS
	targetRoot string
}

// New creates a Reconciler bounded by targetRoot.
func New(filesystem types.FS, targetRoot string) *Reconciler {
	return &Reconciler{fs: filesystem, targetRoot: targetRoot}
}

// Reconcile computes previousTargets minus newTargets and deletes the
// difference, then prunes directories that became empty. It returns the
// paths actually removed. Per-path failures are logged and do not abort
// the remaining deletions.
func (r *Reconciler) Reconcile(previous *types.DeploymentRecord, newFiles []types.DeployedFile) ([]string, error) {
	logger := logging.GetLogger("reconcile")

	if previous == nil || len(previous.DeployedFiles) == 0 {
		return nil, nil
	}

	keep := make(map[string]struct{}, len(newFiles))
	for _, f := range newFiles {
		keep[f.TargetPath] = struct{}{}
	}

	var removed []string
	parents := make(map[string]struct{})

	for _, f := range previous.DeployedFiles {
		if _, ok := keep[f.TargetPath]; ok {
			continue
		}
		if !r.isUnderRoot(f.TargetPath) {
			logger.Warn().Str("path", f.TargetPath).Msg("recorded target outside root, refusing to delete")
			continue
		}
		if err := r.fs.Remove(f.TargetPath); err != nil {
			if os.IsNotExist(err) {
				// Already gone; still counts as reconciled.
				removed = append(removed, f.TargetPath)
				parents[filepath.Dir(f.TargetPath)] = struct{}{}
				continue
			}
			logger.Warn().Err(err).Str("path", f.TargetPath).Msg("failed to remove orphaned file")
			continue
		}
		logger.Info().Str("path", f.TargetPath).Msg("removed orphaned file")
		removed = append(removed, f.TargetPath)
		parents[filepath.Dir(f.TargetPath)] = struct{}{}
	}

	for dir := range parents {
		r.pruneEmpty(dir)
	}

	sort.Strings(removed)
	return removed, nil
}

// RemoveAll deletes every file in the record; used by uninstall.
func (r *Reconciler) RemoveAll(record *types.DeploymentRecord) ([]string, error) {
	return r.Reconcile(record, nil)
}

// pruneEmpty walks upward from dir, removing directories that became
// empty, stopping at the target root. The root itself is never removed.
func (r *Reconciler) pruneEmpty(dir string) {
	logger := logging.GetLogger("reconcile")

	for r.isUnderRoot(dir) {
		entries, err := r.fs.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := r.fs.Remove(dir); err != nil {
			logger.Debug().Err(err).Str("dir", dir).Msg("could not prune directory")
			return
		}
		logger.Info().Str("dir", dir).Msg("pruned empty directory")
		dir = filepath.Dir(dir)
	}
}

// isUnderRoot reports whether path is strictly inside the target root.
func (r *Reconciler) isUnderRoot(path string) bool {
	rel, err := filepath.Rel(r.targetRoot, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." {
		return false
	}
	return !filepath.IsAbs(rel) && rel != "" && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
