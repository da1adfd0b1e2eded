// Package gitutil keeps registered source checkouts up to date by
// spawning the git binary. The deployment engine never calls into this
// package; the CLI sequences a sync before each deploy.
package gitutil

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/errors"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
)

// DefaultTimeout bounds a single git invocation so a wedged remote
// surfaces as a recoverable failure, not a hang.
const DefaultTimeout = 2 * time.Minute

// Syncer clones or pulls source repositories.
type Syncer struct {
	timeout time.Duration
}

// NewSyncer creates a Syncer with the default timeout.
func NewSyncer() *Syncer {
	return &Syncer{timeout: DefaultTimeout}
}

// NewSyncerWithTimeout creates a Syncer with a custom timeout.
func NewSyncerWithTimeout(timeout time.Duration) *Syncer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Syncer{timeout: timeout}
}

// Sync ensures destDir holds an up-to-date checkout of repoURL and
// returns the HEAD commit id. A fresh directory is cloned; an existing
// one is pulled.
func (s *Syncer) Sync(ctx context.Context, repoURL, destDir string) (string, error) {
	logger := logging.GetLogger("gitutil").With().Str("repo", repoURL).Logger()

	if _, err := os.Stat(destDir); os.IsNotExist(err) {
		logger.Info().Str("dest", destDir).Msg("cloning repository")
		if err := s.run(ctx, "", errors.ErrGitClone, "clone", "--depth", "1", repoURL, destDir); err != nil {
			return "", err
		}
	} else {
		logger.Info().Str("dest", destDir).Msg("pulling repository")
		if err := s.run(ctx, destDir, errors.ErrGitPull, "pull", "--ff-only"); err != nil {
			return "", err
		}
	}

	return s.head(ctx, destDir)
}

// head returns the commit id of HEAD in dir.
func (s *Syncer) head(ctx context.Context, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrGitPull, "cannot resolve HEAD")
	}
	return strings.TrimSpace(string(out)), nil
}

func (s *Syncer) run(ctx context.Context, dir string, code errors.ErrorCode, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Newf(errors.ErrGitTimeout, "git %s timed out after %s", args[0], s.timeout)
		}
		return errors.Wrapf(err, code, "git %s failed: %s", args[0], strings.TrimSpace(stderr.String()))
	}
	return nil
}
