// Package state owns the durable record of every currently-deployed
// file. The on-disk artifact is a versioned JSON document; all writes go
// through an atomic temp-file-and-rename path guarded by a lock file, so
// a crash mid-write never corrupts previously committed state.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/errors"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 2

// Lock acquisition parameters. Contention is retried with exponential
// backoff before surfacing as a fatal error for the deploy.
const (
	lockAttempts     = 5
	lockInitialDelay = 50 * time.Millisecond
	lockStaleAfter   = 10 * time.Minute
)

// Metadata is the global bookkeeping slice of the state file.
type Metadata struct {
	LastCleanup time.Time `json:"lastCleanup,omitempty"`
	TotalFiles  int       `json:"totalFiles"`
}

// File is the persisted state document: the durable contract between
// runs. Readers must migrate older versions forward, never reject them.
type File struct {
	Version  int                                `json:"version"`
	Sources  map[string]*types.DeploymentRecord `json:"sources"`
	Metadata Metadata                           `json:"metadata"`
}

// Store reads and writes the state file.
type Store struct {
	fs        types.FS
	statePath string
	lockPath  string

	// mu serializes commits within this process; the lock file extends
	// that to concurrent processes.
	mu  sync.Mutex
	now func() time.Time
}

// New creates a Store for the given state and lock file paths.
func New(filesystem types.FS, statePath, lockPath string) *Store {
	return &Store{
		fs:        filesystem,
		statePath: statePath,
		lockPath:  lockPath,
		now:       time.Now,
	}
}

// Get returns the deployment record for a source, or nil when the source
// has never been deployed.
func (s *Store) Get(sourceID string) (*types.DeploymentRecord, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	return st.Sources[sourceID], nil
}

// All returns every deployment record keyed by source id.
func (s *Store) All() (map[string]*types.DeploymentRecord, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	return st.Sources, nil
}

// Commit atomically replaces the record for one source. The full state
// document is re-read, updated and renamed into place, so concurrent
// commits for other sources are never lost and a crash cannot leave a
// partial write behind.
func (s *Store) Commit(sourceID string, files []types.DeployedFile, deployErrors []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	st, err := s.load()
	if err != nil {
		if !errors.IsErrorCode(err, errors.ErrStateCorrupt) {
			return err
		}
		// Corruption was backed up by load; commit proceeds against an
		// empty store so the new result is not lost.
		st = emptyFile()
	}

	st.Sources[sourceID] = &types.DeploymentRecord{
		SourceID:       sourceID,
		DeployedFiles:  files,
		LastDeployedAt: s.now(),
		LastErrors:     deployErrors,
	}

	return s.write(st)
}

// Forget removes a source's record entirely (after an uninstall).
func (s *Store) Forget(sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	st, err := s.load()
	if err != nil {
		return err
	}
	delete(st.Sources, sourceID)
	return s.write(st)
}

// load reads and, if needed, migrates the state file. A missing file
// yields an empty document. A corrupt file is preserved as a backup and
// reported with ErrStateCorrupt; no information is destroyed.
func (s *Store) load() (*File, error) {
	logger := logging.GetLogger("state")

	data, err := s.fs.ReadFile(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyFile(), nil
		}
		return nil, errors.Wrapf(err, errors.ErrStateLoad, "cannot read state file %s", s.statePath)
	}

	version, err := peekVersion(data)
	if err != nil {
		s.backupCorrupt(data)
		return nil, errors.Wrapf(err, errors.ErrStateCorrupt, "state file %s is not valid JSON", s.statePath)
	}

	if version < CurrentVersion {
		migrated, err := migrate(data, version)
		if err != nil {
			s.backupCorrupt(data)
			return nil, err
		}
		s.backupPreMigration(data, version)
		data = migrated
		logger.Info().Int("from", version).Int("to", CurrentVersion).Msg("migrated state file")
	}

	var st File
	if err := json.Unmarshal(data, &st); err != nil {
		s.backupCorrupt(data)
		return nil, errors.Wrapf(err, errors.ErrStateCorrupt, "state file %s is corrupt", s.statePath)
	}
	if st.Sources == nil {
		st.Sources = make(map[string]*types.DeploymentRecord)
	}
	return &st, nil
}

// write serializes the document and renames it over the destination.
// The temp file lives in the same directory so the rename is atomic.
func (s *Store) write(st *File) error {
	st.Version = CurrentVersion
	total := 0
	for _, rec := range st.Sources {
		total += len(rec.DeployedFiles)
	}
	st.Metadata.TotalFiles = total

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrStateWrite, "cannot serialize state")
	}

	dir := filepath.Dir(s.statePath)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create state directory %s", dir)
	}

	tmp := s.statePath + ".tmp"
	if err := s.fs.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrStateWrite, "cannot write temp state file %s", tmp)
	}
	if err := s.fs.Rename(tmp, s.statePath); err != nil {
		return errors.Wrapf(err, errors.ErrStateWrite, "cannot rename state file into place")
	}
	return nil
}

// MarkCleanup records the timestamp of the last reconcile pass.
func (s *Store) MarkCleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	st, err := s.load()
	if err != nil {
		return err
	}
	st.Metadata.LastCleanup = s.now()
	return s.write(st)
}

// acquireLock claims the lock directory, retrying with exponential
// backoff. Mkdir is the atomic exclusive-create primitive: when two
// processes race, exactly one creation succeeds and the other observes
// fs.ErrExist. Locks older than lockStaleAfter are treated as leftovers
// from a crashed process and broken.
func (s *Store) acquireLock() error {
	logger := logging.GetLogger("state")

	if err := s.fs.MkdirAll(filepath.Dir(s.lockPath), 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create lock directory")
	}

	delay := lockInitialDelay
	for attempt := 0; attempt < lockAttempts; attempt++ {
		err := s.fs.Mkdir(s.lockPath, 0755)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return errors.Wrap(err, errors.ErrStateLocked, "cannot create lock directory")
		}

		if info, statErr := s.fs.Stat(s.lockPath); statErr == nil &&
			s.now().Sub(info.ModTime()) > lockStaleAfter {
			logger.Warn().Str("path", s.lockPath).Msg("breaking stale state lock")
			_ = s.fs.Remove(s.lockPath)
			// Re-acquisition races through Mkdir, so at most one of the
			// breakers wins.
			continue
		}

		logger.Debug().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("state file locked, retrying")
		time.Sleep(delay)
		delay *= 2
	}

	return errors.Newf(errors.ErrStateLocked, "state file %s is locked by another process", s.statePath)
}

func (s *Store) releaseLock() {
	logger := logging.GetLogger("state")
	if err := s.fs.Remove(s.lockPath); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("failed to remove lock file")
	}
}

// backupCorrupt preserves an unreadable state file next to the original.
func (s *Store) backupCorrupt(data []byte) {
	logger := logging.GetLogger("state")
	backup := s.statePath + ".corrupt.bak"
	if err := s.fs.WriteFile(backup, data, 0644); err != nil {
		logger.Warn().Err(err).Msg("failed to back up corrupt state file")
		return
	}
	logger.Warn().Str("backup", backup).Msg("preserved corrupt state file")
}

// backupPreMigration retains the pre-migration document.
func (s *Store) backupPreMigration(data []byte, version int) {
	logger := logging.GetLogger("state")
	backup := s.statePath + ".v" + strconv.Itoa(version) + ".bak"
	if err := s.fs.WriteFile(backup, data, 0644); err != nil {
		logger.Warn().Err(err).Msg("failed to back up pre-migration state file")
	}
}

func emptyFile() *File {
	return &File{
		Version: CurrentVersion,
		Sources: make(map[string]*types.DeploymentRecord),
	}
}

func peekVersion(data []byte) (int, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, err
	}
	if probe.Version == 0 {
		// Version tags start at 1; an absent tag means the oldest format.
		return 1, nil
	}
	return probe.Version, nil
}
