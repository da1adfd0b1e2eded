package deploy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/conflict"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/mapper"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/state"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/testutil"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/transfer"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

type harness struct {
	fs     *testutil.MemoryFS
	store  *state.Store
	engine *Engine
}

func newHarness(t *testing.T, confirmer types.Confirmer) *harness {
	t.Helper()
	fs := testutil.NewMemoryFS()
	store := state.New(fs, "/data/state.json", "/data/state.lock")
	engine := NewEngine(Options{
		FS:         fs,
		TargetRoot: "/target",
		Mapper:     mapper.New(fs, nil),
		Store:      store,
		Resolver:   conflict.New(confirmer, confirmer != nil),
	})
	return &harness{fs: fs, store: store, engine: engine}
}

func commandsSource() types.Source {
	return types.Source{ID: "repo-a", RootPath: "/src", Mode: types.ModeAutoDetect}
}

func (h *harness) writeSource(path, content string) {
	h.fs.WriteFileMode(path, []byte(content), 0644)
}

func TestDeployCopiesAndRecords(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/a.md", "alpha")
	h.writeSource("/src/commands/sub/b.md", "beta")

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	assert.Len(t, result.Deployed, 2)
	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.Failed)
	assert.Empty(t, result.Conflicts)

	data, err := h.fs.ReadFile("/target/commands/a.md")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	rec, err := h.store.Get("repo-a")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Len(t, rec.DeployedFiles, 2)
	assert.Equal(t, transfer.HashBytes([]byte("alpha")), rec.DeployedFiles[0].ContentHash)
}

func TestDeployTwiceIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/a.md", "alpha")

	_, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	second, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	assert.Empty(t, second.Deployed, "unchanged content must not redeploy")
	assert.Empty(t, second.Conflicts, "matching hash is a no-op, not a conflict")
	assert.Empty(t, second.Removed)

	rec, err := h.store.Get("repo-a")
	require.NoError(t, err)
	assert.Len(t, rec.DeployedFiles, 1, "the record survives the no-op run")
}

func TestDeploySkipStrategyLeavesDifferingTarget(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/a.md", "new content")
	h.fs.WriteFileMode("/target/commands/a.md", []byte("user edit"), 0644)

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/target/commands/a.md"}, result.Skipped)
	assert.Equal(t, []string{"/target/commands/a.md"}, result.Conflicts)
	assert.Empty(t, result.Deployed)

	data, err := h.fs.ReadFile("/target/commands/a.md")
	require.NoError(t, err)
	assert.Equal(t, "user edit", string(data))

	// A target the engine never placed is not claimed by the record.
	rec, err := h.store.Get("repo-a")
	require.NoError(t, err)
	assert.Empty(t, rec.DeployedFiles)
}

func TestDeployIdenticalUnrecordedTargetIsNeverClaimed(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/a.md", "same content")
	// The user placed an identical file before this source ever deployed.
	h.fs.WriteFileMode("/target/commands/a.md", []byte("same content"), 0644)

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	assert.Empty(t, result.Deployed)
	rec, err := h.store.Get("repo-a")
	require.NoError(t, err)
	assert.Empty(t, rec.DeployedFiles, "a file the engine never placed must not enter the record")

	// Dropping the source file later must not delete the user's file.
	require.NoError(t, h.fs.Remove("/src/commands/a.md"))
	result, err = h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	assert.Empty(t, result.Removed)
	data, readErr := h.fs.ReadFile("/target/commands/a.md")
	require.NoError(t, readErr)
	assert.Equal(t, "same content", string(data))
}

func TestDeploySkippedRecordedFileIsNotOrphaned(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/a.md", "v1")

	_, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	// User edits the deployed file; next deploy skips it but must keep
	// the record entry so reconciliation does not delete it.
	h.fs.WriteFileMode("/target/commands/a.md", []byte("user edit"), 0644)
	h.writeSource("/src/commands/a.md", "v2")

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/target/commands/a.md"}, result.Skipped)
	assert.Empty(t, result.Removed)

	data, err := h.fs.ReadFile("/target/commands/a.md")
	require.NoError(t, err)
	assert.Equal(t, "user edit", string(data))
}

func TestDeployOverwriteStrategyReplacesTarget(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/a.md", "new content")
	h.fs.WriteFileMode("/target/commands/a.md", []byte("old content"), 0644)

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategyOverwrite,
	})
	require.NoError(t, err)

	assert.Len(t, result.Deployed, 1)
	data, err := h.fs.ReadFile("/target/commands/a.md")
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))
}

func TestDeployPromptFollowsConfirmer(t *testing.T) {
	confirmer := &testutil.ScriptedConfirmer{Answers: []bool{false, true}}
	h := newHarness(t, confirmer)
	h.writeSource("/src/commands/a.md", "new a")
	h.writeSource("/src/commands/b.md", "new b")
	h.fs.WriteFileMode("/target/commands/a.md", []byte("old a"), 0644)
	h.fs.WriteFileMode("/target/commands/b.md", []byte("old b"), 0644)

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategyPrompt,
	})
	require.NoError(t, err)

	// a.md answered no, b.md answered yes (mappings are sorted).
	assert.Equal(t, []string{"/target/commands/a.md"}, result.Skipped)
	require.Len(t, result.Deployed, 1)
	assert.Equal(t, "/target/commands/b.md", result.Deployed[0].TargetPath)
}

func TestDeployForceBypassesResolver(t *testing.T) {
	confirmer := &testutil.ScriptedConfirmer{Answers: []bool{false}}
	h := newHarness(t, confirmer)
	h.writeSource("/src/commands/a.md", "new content")
	h.fs.WriteFileMode("/target/commands/a.md", []byte("old content"), 0644)

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		Force:            true,
		ConflictStrategy: types.StrategyPrompt,
	})
	require.NoError(t, err)

	assert.Len(t, result.Deployed, 1)
	assert.Empty(t, confirmer.Asked, "force must not prompt")
}

func TestDeployRemovesOrphanedTargets(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/keep.md", "keep")
	h.writeSource("/src/commands/drop.md", "drop")

	_, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	require.NoError(t, h.fs.Remove("/src/commands/drop.md"))

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/target/commands/drop.md"}, result.Removed)
	_, statErr := h.fs.Stat("/target/commands/drop.md")
	assert.Error(t, statErr)
	_, statErr = h.fs.Stat("/target/commands/keep.md")
	assert.NoError(t, statErr)
}

func TestDeployDryRunTouchesNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/a.md", "alpha")

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		DryRun:           true,
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	assert.Len(t, result.Deployed, 1)
	_, statErr := h.fs.Stat("/target/commands/a.md")
	assert.Error(t, statErr, "dry run must not write the target")

	rec, err := h.store.Get("repo-a")
	require.NoError(t, err)
	assert.Nil(t, rec, "dry run must not commit state")
}

func TestDeployDryRunReportsWouldBeRemovals(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/drop.md", "drop")

	_, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	require.NoError(t, h.fs.Remove("/src/commands/drop.md"))

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		DryRun:           true,
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/target/commands/drop.md"}, result.Removed)
	_, statErr := h.fs.Stat("/target/commands/drop.md")
	assert.NoError(t, statErr, "dry run must not delete orphans")
}

func TestDeployTransferFailureDoesNotAbortSiblings(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/bad.md", "bad")
	h.writeSource("/src/commands/good.md", "good")
	h.fs.InjectError("/target/commands/bad.md", assert.AnError)

	result, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err, "per-file failures never abort the source deploy")

	assert.Equal(t, []string{"/target/commands/bad.md"}, result.Failed)
	require.Len(t, result.Deployed, 1)
	assert.Equal(t, "/target/commands/good.md", result.Deployed[0].TargetPath)

	rec, err := h.store.Get("repo-a")
	require.NoError(t, err)
	assert.Len(t, rec.LastErrors, 1, "the transfer failure is recorded on the source")
}

func TestDeployCancelledContext(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/a.md", "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Deploy(ctx, commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	assert.Error(t, err)
}

func TestDeployAllIsolatesFailingSource(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/a.md", "alpha")

	good := commandsSource()
	broken := types.Source{ID: "broken", RootPath: "", Mode: types.ModeAutoDetect}

	results, failures := h.engine.DeployAll(context.Background(), []types.Source{good, broken}, types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})

	require.Contains(t, results, "repo-a")
	assert.Len(t, results["repo-a"].Deployed, 1)
	assert.Contains(t, failures, "broken")
	assert.NotContains(t, failures, "repo-a")
}

func TestRemoveDeletesFilesAndForgetsRecord(t *testing.T) {
	h := newHarness(t, nil)
	h.writeSource("/src/commands/a.md", "alpha")

	_, err := h.engine.Deploy(context.Background(), commandsSource(), types.DeployOptions{
		ConflictStrategy: types.StrategySkip,
	})
	require.NoError(t, err)

	removed, err := h.engine.Remove(context.Background(), commandsSource())
	require.NoError(t, err)

	assert.Equal(t, []string{"/target/commands/a.md"}, removed)
	_, statErr := h.fs.Stat("/target/commands/a.md")
	assert.Error(t, statErr)

	rec, err := h.store.Get("repo-a")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRemoveUnknownSourceIsNoOp(t *testing.T) {
	h := newHarness(t, nil)

	removed, err := h.engine.Remove(context.Background(), commandsSource())
	require.NoError(t, err)
	assert.Empty(t, removed)
}
