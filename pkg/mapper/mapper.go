// Package mapper computes which files in a source tree are deployed and
// under which target-relative path. Two strategies exist: auto-detect,
// which scans the conventional .claude/<category> and <category> roots,
// and type-based, which maps the whole tree into a single category
// subject to filtering rules.
//
// Mapping is a pure function of the source tree and the source's
// configuration; the target tree is never touched here.
package mapper

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/errors"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/paths"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

// Mapper computes deployment mappings for sources.
type Mapper struct {
	fs         types.FS
	extensions []string
}

// New creates a Mapper. defaultExtensions is the type-based allow-list
// used when a source does not carry its own; empty means .md only.
func New(filesystem types.FS, defaultExtensions []string) *Mapper {
	if len(defaultExtensions) == 0 {
		defaultExtensions = []string{".md"}
	}
	return &Mapper{fs: filesystem, extensions: defaultExtensions}
}

// ComputeMappings returns every file the source currently produces,
// with target paths resolved. Unreadable paths are logged and omitted;
// they never fail the whole mapping.
func (m *Mapper) ComputeMappings(source types.Source) ([]types.PatternMatch, error) {
	if err := source.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrSourceInvalid, "cannot map invalid source")
	}
	if source.RootPath == "" {
		return nil, errors.Newf(errors.ErrSourceInvalid, "source %s has no local checkout", source.ID)
	}

	var matches []types.PatternMatch
	switch source.Mode {
	case types.ModeAutoDetect:
		matches = m.autoDetect(source)
	case types.ModeTypeBased:
		matches = m.typeBased(source)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].TargetRelPath != matches[j].TargetRelPath {
			return matches[i].TargetRelPath < matches[j].TargetRelPath
		}
		return matches[i].SourceRelPath < matches[j].SourceRelPath
	})
	return matches, nil
}

// autoDetect scans the conventional roots for each category. A file
// under the roots of two categories is deployed to both; that is a
// documented ambiguity, not an error.
func (m *Mapper) autoDetect(source types.Source) []types.PatternMatch {
	logger := logging.GetLogger("mapper").With().Str("source", source.ID).Logger()

	var matches []types.PatternMatch
	for _, cat := range types.AllCategories() {
		seen := make(map[string]struct{})
		for _, root := range categoryRoots(source, cat) {
			rootAbs := path.Join(source.RootPath, root)
			info, err := m.fs.Stat(rootAbs)
			if err != nil || !info.IsDir() {
				continue
			}
			m.walk(rootAbs, "", func(rel string, entry fs.DirEntry) {
				if _, dup := seen[rel]; dup {
					return
				}
				seen[rel] = struct{}{}
				matches = append(matches, types.PatternMatch{
					SourceRelPath: path.Join(root, rel),
					TargetRelPath: path.Join(string(cat), rel),
					Category:      cat,
				})
			})
		}
		if len(seen) > 0 {
			logger.Debug().Str("category", string(cat)).Int("files", len(seen)).Msg("auto-detected category root")
		}
	}
	return matches
}

// categoryRoots returns the source-relative root directories scanned for
// a category: the source's configured patterns, or the conventional
// .claude/<category> and <category> locations.
func categoryRoots(source types.Source, cat types.Category) []string {
	if patterns, ok := source.CategoryPatterns[cat]; ok && len(patterns) > 0 {
		roots := make([]string, 0, len(patterns))
		for _, p := range patterns {
			roots = append(roots, strings.TrimSuffix(strings.TrimSuffix(p, "/**"), "/"))
		}
		return roots
	}
	return []string{
		path.Join(paths.NamespaceDir, string(cat)),
		string(cat),
	}
}

// typeBased maps the whole tree into the source's category, applying the
// ordered filters: noise directories, dot components, uppercase
// basenames, then the extension allow-list.
func (m *Mapper) typeBased(source types.Source) []types.PatternMatch {
	extensions := source.Extensions
	if len(extensions) == 0 {
		extensions = m.extensions
	}

	var matches []types.PatternMatch
	m.walkFiltered(source.RootPath, "", extensions, func(rel string, entry fs.DirEntry) {
		matches = append(matches, types.PatternMatch{
			SourceRelPath: rel,
			TargetRelPath: path.Join(string(source.Category), rel),
			Category:      source.Category,
		})
	})
	return matches
}

// walk visits every regular file below dir, calling fn with the path
// relative to the walk root. Non-regular entries are skipped with a
// warning; unreadable directories are logged and omitted.
func (m *Mapper) walk(dir, rel string, fn func(rel string, entry fs.DirEntry)) {
	logger := logging.GetLogger("mapper")

	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("skipping unreadable directory")
		return
	}
	for _, entry := range entries {
		entryRel := path.Join(rel, entry.Name())
		switch {
		case entry.IsDir():
			m.walk(path.Join(dir, entry.Name()), entryRel, fn)
		case entry.Type().IsRegular():
			fn(entryRel, entry)
		default:
			logger.Warn().Str("path", path.Join(dir, entry.Name())).Msg("skipping non-regular file")
		}
	}
}

// walkFiltered is walk with the type-based filters applied.
func (m *Mapper) walkFiltered(dir, rel string, extensions []string, fn func(rel string, entry fs.DirEntry)) {
	logger := logging.GetLogger("mapper")

	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("skipping unreadable directory")
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if isNoiseDir(name) || strings.HasPrefix(name, ".") {
			continue
		}
		entryRel := path.Join(rel, name)
		if entry.IsDir() {
			m.walkFiltered(path.Join(dir, name), entryRel, extensions, fn)
			continue
		}
		if !entry.Type().IsRegular() {
			logger.Warn().Str("path", path.Join(dir, name)).Msg("skipping non-regular file")
			continue
		}
		if startsUpper(name) {
			continue
		}
		if !hasAllowedExtension(name, extensions) {
			continue
		}
		fn(entryRel, entry)
	}
}

// noiseDirs are build/VCS directories never treated as payload.
var noiseDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"vendor":       {},
	"__pycache__":  {},
}

func isNoiseDir(name string) bool {
	_, ok := noiseDirs[name]
	return ok
}

// startsUpper reports whether the basename's first character is
// uppercase. This is the convention that excludes README.md, LICENSE
// and friends without an explicit denylist.
func startsUpper(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return c >= 'A' && c <= 'Z'
}

func hasAllowedExtension(name string, extensions []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, allowed := range extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
