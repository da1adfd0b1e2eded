package state

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/transfer"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

// MappingFunc computes the current mappings for a source. Injected so
// reconstruction does not depend on the mapper package directly.
type MappingFunc func(types.Source) ([]types.PatternMatch, error)

// ReconstructResult reports what a reconstruction recovered.
type ReconstructResult struct {
	// Records holds the rebuilt per-source records, also committed to
	// the state file.
	Records map[string]*types.DeploymentRecord

	// Unattributed lists target files that matched no registered
	// source's current mapping. They are reported, never deleted.
	Unattributed []string
}

// Reconstruct rebuilds the state file by re-scanning the target root.
// Every target file matching a currently computable mapping for some
// registered source gets a synthesized record entry with a fresh hash.
// Reconstruction only rebuilds bookkeeping; it never deletes data.
func (s *Store) Reconstruct(sources []types.Source, computeMappings MappingFunc, targetRoot string) (*ReconstructResult, error) {
	logger := logging.GetLogger("state.reconstruct")
	copier := transfer.New(s.fs)

	// Target path -> owning source and relative path, from the live
	// mappings of every registered source.
	type attribution struct {
		sourceID      string
		sourceRelPath string
	}
	attributions := make(map[string][]attribution)
	for _, src := range sources {
		mappings, err := computeMappings(src)
		if err != nil {
			logger.Warn().Err(err).Str("source", src.ID).Msg("cannot compute mappings during reconstruction")
			continue
		}
		for _, m := range mappings {
			target := filepath.Join(targetRoot, m.TargetRelPath)
			attributions[target] = append(attributions[target], attribution{
				sourceID:      src.ID,
				sourceRelPath: m.SourceRelPath,
			})
		}
	}

	result := &ReconstructResult{
		Records: make(map[string]*types.DeploymentRecord),
	}

	s.walkTarget(targetRoot, func(path string, _ fs.DirEntry) {
		owners, ok := attributions[path]
		if !ok {
			result.Unattributed = append(result.Unattributed, path)
			return
		}
		hash, err := copier.HashFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("cannot hash target file during reconstruction")
			return
		}
		info, err := s.fs.Stat(path)
		if err != nil {
			return
		}
		for _, owner := range owners {
			rec := result.Records[owner.sourceID]
			if rec == nil {
				rec = &types.DeploymentRecord{SourceID: owner.sourceID}
				result.Records[owner.sourceID] = rec
			}
			rec.DeployedFiles = append(rec.DeployedFiles, types.DeployedFile{
				SourceRelPath: owner.sourceRelPath,
				TargetPath:    path,
				ContentHash:   hash,
				DeployedAt:    info.ModTime(),
			})
			if info.ModTime().After(rec.LastDeployedAt) {
				rec.LastDeployedAt = info.ModTime()
			}
		}
	})

	sort.Strings(result.Unattributed)

	for _, path := range result.Unattributed {
		logger.Warn().Str("path", path).Msg("target file matches no registered source, leaving untouched")
	}

	// Commit the rebuilt records in one write.
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acquireLock(); err != nil {
		return nil, err
	}
	defer s.releaseLock()

	st := emptyFile()
	for id, rec := range result.Records {
		st.Sources[id] = rec
	}
	if err := s.write(st); err != nil {
		return nil, err
	}

	logger.Info().
		Int("sources", len(result.Records)).
		Int("unattributed", len(result.Unattributed)).
		Msg("reconstructed state from target tree")

	return result, nil
}

// walkTarget visits every regular file under root.
func (s *Store) walkTarget(root string, fn func(path string, entry fs.DirEntry)) {
	entries, err := s.fs.ReadDir(root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		full := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			s.walkTarget(full, fn)
			continue
		}
		if entry.Type().IsRegular() {
			fn(full, entry)
		}
	}
}
