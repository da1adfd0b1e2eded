// Package deploy orchestrates a source deployment: mapping, conflict
// resolution, transfer, state commit and orphan reconciliation, in that
// strict order. Per-file failures never abort the source's deploy; only
// a state-layer failure is fatal for a source, and a failing source
// never aborts its siblings in a multi-source batch.
package deploy

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/conflict"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/errors"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/mapper"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/reconcile"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/state"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/transfer"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

// DefaultConcurrency bounds the multi-source worker pool.
const DefaultConcurrency = 3

// Engine runs deployments. Construct one per process; all state flows
// through the injected store, never through package globals.
type Engine struct {
	fs          types.FS
	targetRoot  string
	mapper      *mapper.Mapper
	store       *state.Store
	resolver    *conflict.Resolver
	copier      *transfer.Copier
	concurrency int
}

// Options configures an Engine.
type Options struct {
	FS         types.FS
	TargetRoot string
	Mapper     *mapper.Mapper
	Store      *state.Store
	Resolver   *conflict.Resolver

	// Concurrency bounds DeployAll's worker pool; zero means the
	// default of 3.
	Concurrency int
}

// NewEngine creates an Engine from its collaborators.
func NewEngine(opts Options) *Engine {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{
		fs:          opts.FS,
		targetRoot:  opts.TargetRoot,
		mapper:      opts.Mapper,
		store:       opts.Store,
		resolver:    opts.Resolver,
		copier:      transfer.New(opts.FS),
		concurrency: concurrency,
	}
}

// Deploy runs the full cycle for one source:
// mapper -> resolver/transfer -> state commit -> reconcile.
func (e *Engine) Deploy(ctx context.Context, source types.Source, opts types.DeployOptions) (*types.DeploymentResult, error) {
	logger := logging.GetLogger("deploy").With().Str("source", source.ID).Logger()
	done := logging.LogOperationStart(logger, "deploy")
	defer done()

	result := &types.DeploymentResult{SourceID: source.ID}

	mappings, err := e.mapper.ComputeMappings(source)
	if err != nil {
		return result, err
	}

	previous, err := e.loadPrevious(source.ID, logger)
	if err != nil {
		return result, err
	}
	prevByTarget := make(map[string]types.DeployedFile)
	if previous != nil {
		for _, f := range previous.DeployedFiles {
			prevByTarget[f.TargetPath] = f
		}
	}

	var committed []types.DeployedFile
	var deployErrors []string
	now := time.Now()

	for _, m := range mappings {
		if ctx.Err() != nil {
			return result, errors.Wrap(ctx.Err(), errors.ErrInternal, "deploy cancelled")
		}

		sourcePath := filepath.Join(source.RootPath, m.SourceRelPath)
		targetPath := filepath.Join(e.targetRoot, m.TargetRelPath)

		sourceData, err := e.fs.ReadFile(sourcePath)
		if err != nil {
			// Mapping-level error: omit the path, keep going.
			logger.Warn().Err(err).Str("path", sourcePath).Msg("unreadable source file, omitting")
			if prev, ok := prevByTarget[targetPath]; ok {
				committed = append(committed, prev)
			}
			continue
		}
		sourceHash := transfer.HashBytes(sourceData)

		if targetData, err := e.fs.ReadFile(targetPath); err == nil {
			targetHash := transfer.HashBytes(targetData)
			if targetHash == sourceHash {
				// Identical redeploy is a no-op, not a conflict. Only a
				// previously recorded target stays recorded; an identical
				// file the engine never placed is never claimed.
				if entry, ok := e.carryForward(prevByTarget, m, targetPath, targetHash, now); ok {
					committed = append(committed, entry)
				}
				continue
			}

			result.Conflicts = append(result.Conflicts, targetPath)
			decision := types.DecisionProceed
			if !opts.Force {
				decision = e.resolver.Resolve(targetPath, opts.ConflictStrategy)
			}
			if decision == types.DecisionSkip {
				result.Skipped = append(result.Skipped, targetPath)
				// A previously recorded file stays recorded so the
				// reconciler will not treat it as an orphan.
				if prev, ok := prevByTarget[targetPath]; ok {
					committed = append(committed, prev)
				}
				continue
			}
		}

		if opts.DryRun {
			entry := types.DeployedFile{
				SourceRelPath: m.SourceRelPath,
				TargetPath:    targetPath,
				ContentHash:   sourceHash,
				DeployedAt:    now,
			}
			result.Deployed = append(result.Deployed, entry)
			committed = append(committed, entry)
			continue
		}

		hash, err := e.copier.CopyFile(sourcePath, targetPath)
		if err != nil {
			logger.Warn().Err(err).Str("target", targetPath).Msg("transfer failed")
			result.Failed = append(result.Failed, targetPath)
			deployErrors = append(deployErrors, err.Error())
			if prev, ok := prevByTarget[targetPath]; ok {
				committed = append(committed, prev)
			}
			continue
		}

		entry := types.DeployedFile{
			SourceRelPath: m.SourceRelPath,
			TargetPath:    targetPath,
			ContentHash:   hash,
			DeployedAt:    now,
		}
		result.Deployed = append(result.Deployed, entry)
		committed = append(committed, entry)
	}

	if opts.DryRun {
		result.Removed = e.dryRunRemovals(previous, committed)
		return result, nil
	}

	if err := e.store.Commit(source.ID, committed, deployErrors); err != nil {
		// State-layer failure is fatal for this source; the previous
		// committed record is intact because commit is atomic.
		return result, err
	}

	reconciler := reconcile.New(e.fs, e.targetRoot)
	removed, err := reconciler.Reconcile(previous, committed)
	if err != nil {
		return result, err
	}
	result.Removed = removed

	logger.Info().
		Int("deployed", len(result.Deployed)).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Int("removed", len(result.Removed)).
		Msg("deploy finished")

	return result, nil
}

// DeployAll deploys several sources on a bounded worker pool. A failing
// source never aborts its siblings; per-source errors come back in the
// map alongside any result that was produced.
func (e *Engine) DeployAll(ctx context.Context, sources []types.Source, opts types.DeployOptions) (map[string]*types.DeploymentResult, map[string]error) {
	results := make(map[string]*types.DeploymentResult, len(sources))
	failures := make(map[string]error)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, src := range sources {
		src := src
		g.Go(func() error {
			result, err := e.Deploy(ctx, src, opts)
			mu.Lock()
			defer mu.Unlock()
			results[src.ID] = result
			if err != nil {
				failures[src.ID] = err
			}
			return nil
		})
	}

	_ = g.Wait()
	return results, failures
}

// Remove uninstalls every deployed file for a source and drops its
// record from the state file.
func (e *Engine) Remove(ctx context.Context, source types.Source) ([]string, error) {
	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), errors.ErrInternal, "remove cancelled")
	}

	previous, err := e.store.Get(source.ID)
	if err != nil && !errors.IsErrorCode(err, errors.ErrStateCorrupt) {
		return nil, err
	}
	if previous == nil {
		return nil, nil
	}

	reconciler := reconcile.New(e.fs, e.targetRoot)
	removed, err := reconciler.RemoveAll(previous)
	if err != nil {
		return removed, err
	}
	if err := e.store.Forget(source.ID); err != nil {
		return removed, err
	}
	return removed, nil
}

// loadPrevious fetches the prior record, downgrading corruption to a
// warning: the corrupt file was already preserved as a backup, and the
// caller may rebuild it via state.Reconstruct.
func (e *Engine) loadPrevious(sourceID string, logger zerolog.Logger) (*types.DeploymentRecord, error) {
	previous, err := e.store.Get(sourceID)
	if err != nil {
		if errors.IsErrorCode(err, errors.ErrStateCorrupt) {
			logger.Warn().Err(err).Msg("state file corrupt, deploying against an empty record")
			return nil, nil
		}
		return nil, err
	}
	return previous, nil
}

// carryForward keeps an unchanged target's prior record entry, with a
// refreshed hash when the record was stale. A target with no prior entry
// reports false: the record only ever holds files the engine placed.
func (e *Engine) carryForward(prevByTarget map[string]types.DeployedFile, m types.PatternMatch, targetPath, hash string, now time.Time) (types.DeployedFile, bool) {
	prev, ok := prevByTarget[targetPath]
	if !ok {
		return types.DeployedFile{}, false
	}
	if prev.ContentHash == hash {
		return prev, true
	}
	return types.DeployedFile{
		SourceRelPath: m.SourceRelPath,
		TargetPath:    targetPath,
		ContentHash:   hash,
		DeployedAt:    now,
	}, true
}

// dryRunRemovals reports what reconciliation would delete without
// touching the filesystem.
func (e *Engine) dryRunRemovals(previous *types.DeploymentRecord, committed []types.DeployedFile) []string {
	if previous == nil {
		return nil
	}
	keep := make(map[string]struct{}, len(committed))
	for _, f := range committed {
		keep[f.TargetPath] = struct{}{}
	}
	var removed []string
	for _, f := range previous.DeployedFiles {
		if _, ok := keep[f.TargetPath]; !ok {
			removed = append(removed, f.TargetPath)
		}
	}
	sort.Strings(removed)
	return removed
}
