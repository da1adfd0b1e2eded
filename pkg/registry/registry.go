// Package registry persists the set of registered sources. The deploy
// engine consumes Sources read-only; creation and validation happen
// here.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/errors"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

// fileVersion tags the registry document schema.
const fileVersion = 1

type registryFile struct {
	Version int            `json:"version"`
	Sources []types.Source `json:"sources"`
}

// Registry reads and writes the sources file.
type Registry struct {
	fs   types.FS
	path string
}

// New creates a Registry backed by the given file path.
func New(filesystem types.FS, path string) *Registry {
	return &Registry{fs: filesystem, path: path}
}

// List returns every registered source, sorted by id.
func (r *Registry) List() ([]types.Source, error) {
	f, err := r.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(f.Sources, func(i, j int) bool { return f.Sources[i].ID < f.Sources[j].ID })
	return f.Sources, nil
}

// Get returns one source by id.
func (r *Registry) Get(id string) (*types.Source, error) {
	f, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range f.Sources {
		if f.Sources[i].ID == id {
			return &f.Sources[i], nil
		}
	}
	return nil, errors.Newf(errors.ErrSourceNotFound, "source %q is not registered", id)
}

// Add registers a new source. The id must be unique for the lifetime of
// the registration.
func (r *Registry) Add(source types.Source) error {
	if err := source.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrSourceInvalid, "refusing to register invalid source")
	}

	f, err := r.load()
	if err != nil {
		return err
	}
	for _, existing := range f.Sources {
		if existing.ID == source.ID {
			return errors.Newf(errors.ErrSourceExists, "source %q is already registered", source.ID)
		}
	}

	f.Sources = append(f.Sources, source)
	return r.write(f)
}

// Update replaces an existing source record (e.g. after a clone sets
// RootPath). The id never changes.
func (r *Registry) Update(source types.Source) error {
	f, err := r.load()
	if err != nil {
		return err
	}
	for i := range f.Sources {
		if f.Sources[i].ID == source.ID {
			f.Sources[i] = source
			return r.write(f)
		}
	}
	return errors.Newf(errors.ErrSourceNotFound, "source %q is not registered", source.ID)
}

// Remove drops a source's registration.
func (r *Registry) Remove(id string) error {
	f, err := r.load()
	if err != nil {
		return err
	}
	kept := f.Sources[:0]
	found := false
	for _, s := range f.Sources {
		if s.ID == id {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return errors.Newf(errors.ErrSourceNotFound, "source %q is not registered", id)
	}
	f.Sources = kept
	return r.write(f)
}

func (r *Registry) load() (*registryFile, error) {
	data, err := r.fs.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &registryFile{Version: fileVersion}, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot read registry %s", r.path)
	}
	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "registry %s is corrupt", r.path)
	}
	return &f, nil
}

// write uses the same temp-and-rename idiom as the state store so the
// registry is never partially written.
func (r *Registry) write(f *registryFile) error {
	f.Version = fileVersion
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "cannot serialize registry")
	}
	if err := r.fs.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create registry directory")
	}
	tmp := r.path + ".tmp"
	if err := r.fs.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", tmp)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "cannot rename registry into place")
	}
	logger := logging.GetLogger("registry")
	logger.Debug().Int("sources", len(f.Sources)).Msg("registry written")
	return nil
}

var repoIDPattern = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// DeriveID produces a stable source id from a repository URL:
// "https://github.com/owner/repo.git" becomes "owner-repo".
func DeriveID(repoURL string) string {
	trimmed := strings.TrimSuffix(repoURL, ".git")
	trimmed = strings.TrimSuffix(trimmed, "/")

	// scp-style git URLs: git@host:owner/repo
	if strings.Contains(trimmed, "@") && !strings.Contains(trimmed, "://") {
		if i := strings.LastIndex(trimmed, ":"); i >= 0 {
			trimmed = trimmed[i+1:]
		}
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) >= 2 {
		trimmed = parts[len(parts)-2] + "-" + parts[len(parts)-1]
	} else {
		trimmed = parts[len(parts)-1]
	}
	return repoIDPattern.ReplaceAllString(trimmed, "-")
}
