package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/testutil"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/transfer"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

func TestReconstructRecoversAttributedFiles(t *testing.T) {
	fs := testutil.NewMemoryFS()
	fs.WriteFileMode("/target/commands/a.md", []byte("a"), 0644)
	fs.WriteFileMode("/target/commands/sub/b.md", []byte("b"), 0644)
	fs.WriteFileMode("/target/agents/stray.md", []byte("stray"), 0644)
	store := newTestStore(fs)

	source := types.Source{ID: "repo-a", RootPath: "/src", Mode: types.ModeAutoDetect}
	mappings := func(src types.Source) ([]types.PatternMatch, error) {
		return []types.PatternMatch{
			{SourceRelPath: "commands/a.md", TargetRelPath: "commands/a.md", Category: types.CategoryCommands},
			{SourceRelPath: "commands/sub/b.md", TargetRelPath: "commands/sub/b.md", Category: types.CategoryCommands},
		}, nil
	}

	result, err := store.Reconstruct([]types.Source{source}, mappings, "/target")
	require.NoError(t, err)

	rec := result.Records["repo-a"]
	require.NotNil(t, rec)
	require.Len(t, rec.DeployedFiles, 2)
	assert.Equal(t, transfer.HashBytes([]byte("a")), rec.DeployedFiles[0].ContentHash)

	// The stray file is reported, never touched.
	assert.Equal(t, []string{"/target/agents/stray.md"}, result.Unattributed)
	_, statErr := fs.Stat("/target/agents/stray.md")
	assert.NoError(t, statErr)

	// The rebuilt state is durable.
	loaded, err := store.Get("repo-a")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.DeployedFiles, 2)
}

func TestReconstructSharedTargetAttributedToBothSources(t *testing.T) {
	fs := testutil.NewMemoryFS()
	fs.WriteFileMode("/target/agents/tool.md", []byte("tool"), 0644)
	store := newTestStore(fs)

	sources := []types.Source{
		{ID: "repo-a", Mode: types.ModeAutoDetect},
		{ID: "repo-b", Mode: types.ModeAutoDetect},
	}
	mappings := func(src types.Source) ([]types.PatternMatch, error) {
		return []types.PatternMatch{
			{SourceRelPath: "tool.md", TargetRelPath: "agents/tool.md", Category: types.CategoryAgents},
		}, nil
	}

	result, err := store.Reconstruct(sources, mappings, "/target")
	require.NoError(t, err)

	assert.Len(t, result.Records, 2)
	assert.Empty(t, result.Unattributed)
}

func TestReconstructSurvivesMappingFailure(t *testing.T) {
	fs := testutil.NewMemoryFS()
	fs.WriteFileMode("/target/commands/a.md", []byte("a"), 0644)
	store := newTestStore(fs)

	sources := []types.Source{
		{ID: "broken", Mode: types.ModeAutoDetect},
		{ID: "repo-a", Mode: types.ModeAutoDetect},
	}
	mappings := func(src types.Source) ([]types.PatternMatch, error) {
		if src.ID == "broken" {
			return nil, assert.AnError
		}
		return []types.PatternMatch{
			{SourceRelPath: "a.md", TargetRelPath: "commands/a.md", Category: types.CategoryCommands},
		}, nil
	}

	result, err := store.Reconstruct(sources, mappings, "/target")
	require.NoError(t, err)

	assert.Len(t, result.Records, 1)
	assert.NotNil(t, result.Records["repo-a"])
}
