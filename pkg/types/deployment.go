package types

import "time"

// PatternMatch is one file selected for deployment, after target-path
// resolution. Ephemeral: recomputed on every deploy.
type PatternMatch struct {
	// SourceRelPath is the path relative to the source tree root.
	SourceRelPath string

	// TargetRelPath is the path relative to the target root, always of
	// the form <category>/<...>.
	TargetRelPath string

	// Category the file is deployed into.
	Category Category
}

// DeployedFile is the durable unit of deployment state. Created when a
// transfer succeeds, updated when a redeploy changes the hash, deleted by
// the reconciler or an explicit uninstall.
type DeployedFile struct {
	SourceRelPath string    `json:"sourceRelativePath"`
	TargetPath    string    `json:"targetAbsolutePath"`
	ContentHash   string    `json:"contentHash"`
	DeployedAt    time.Time `json:"deployedAt"`
}

// DeploymentRecord is the per-source slice of the state file. Owned
// exclusively by the state store and only ever written through its
// atomic commit path.
type DeploymentRecord struct {
	SourceID       string         `json:"sourceId"`
	DeployedFiles  []DeployedFile `json:"deployedFiles"`
	LastDeployedAt time.Time      `json:"lastDeployedAt"`
	LastErrors     []string       `json:"lastErrors,omitempty"`
}

// TargetPaths returns the set of absolute target paths in the record.
func (r *DeploymentRecord) TargetPaths() map[string]struct{} {
	if r == nil {
		return map[string]struct{}{}
	}
	paths := make(map[string]struct{}, len(r.DeployedFiles))
	for _, f := range r.DeployedFiles {
		paths[f.TargetPath] = struct{}{}
	}
	return paths
}

// DeployOptions modify a single deploy run.
type DeployOptions struct {
	// Force overwrites differing targets without consulting the
	// conflict strategy.
	Force bool

	// DryRun computes and reports every decision without touching the
	// target tree or the state file.
	DryRun bool

	// ConflictStrategy gates transfers onto existing, differing targets.
	ConflictStrategy ConflictStrategy
}

// DeploymentResult enumerates what a deploy run did (or, under DryRun,
// would have done) for one source.
type DeploymentResult struct {
	SourceID string

	// Deployed lists files that were written this run. Files already
	// matching by hash are not repeated here, which makes a second
	// unchanged run report an empty delta.
	Deployed []DeployedFile

	// Skipped lists target paths left untouched by a skip decision.
	Skipped []string

	// Failed lists target paths whose transfer failed.
	Failed []string

	// Conflicts lists target paths that existed with differing content,
	// whatever the eventual decision was.
	Conflicts []string

	// Removed lists target paths deleted by orphan reconciliation.
	Removed []string
}

// HasFailures reports whether any per-file transfer failed.
func (r *DeploymentResult) HasFailures() bool {
	return len(r.Failed) > 0
}
