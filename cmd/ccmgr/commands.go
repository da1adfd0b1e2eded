package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/errors"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/registry"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

var (
	registerID         string
	registerMode       string
	registerCategory   string
	registerExtensions []string

	registerCmd = &cobra.Command{
		Use:   "register <repository-url-or-path>",
		Short: "Register a source repository",
		Long: `Register a git repository (cloned into the data directory) or a local
directory as a deployment source. Remote sources are synced on every
deploy; local sources are scanned in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			mode, err := types.ParseDeploymentMode(registerMode)
			if err != nil {
				return err
			}

			source := types.Source{
				Mode:       mode,
				Extensions: registerExtensions,
			}
			if registerCategory != "" {
				cat, err := types.ParseCategory(registerCategory)
				if err != nil {
					return err
				}
				source.Category = cat
			}

			arg := args[0]
			if info, err := os.Stat(arg); err == nil && info.IsDir() {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return err
				}
				source.RootPath = abs
				source.ID = registerID
				if source.ID == "" {
					source.ID = filepath.Base(abs)
				}
			} else {
				source.Repository = arg
				source.ID = registerID
				if source.ID == "" {
					source.ID = registry.DeriveID(arg)
				}
				source.RootPath = app.paths.SourcePath(source.ID)
			}

			if err := app.registry.Add(source); err != nil {
				return err
			}

			if source.Repository != "" {
				commit, err := app.syncer.Sync(cmd.Context(), source.Repository, source.RootPath)
				if err != nil {
					// Registration stands; the clone is retried on deploy.
					log.Warn().Err(err).Str("source", source.ID).Msg("initial clone failed")
					fmt.Printf("Registered %s (initial clone failed: %v)\n", styleName(source.ID), err)
					return nil
				}
				fmt.Printf("Registered %s at %s\n", styleName(source.ID), shortHash(commit))
				return nil
			}

			fmt.Printf("Registered %s from %s\n", styleName(source.ID), source.RootPath)
			return nil
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered sources and their deployment status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			sources, err := app.registry.List()
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Println("No sources registered. Use 'ccmgr register' to add one.")
				return nil
			}

			records, err := app.store.All()
			if err != nil {
				log.Warn().Err(err).Msg("cannot read deployment state, listing registrations only")
				records = nil
			}

			return renderSourceTable(sources, records)
		},
	}

	deployConflicts string

	deployCmd = &cobra.Command{
		Use:   "deploy [source-id...]",
		Short: "Deploy registered sources into the target directory",
		Long: `Deploy the named sources, or every registered source when none are
named. Remote sources are synced first. Exit code 2 means the deploy
completed but some files failed to transfer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			sources, err := selectSources(app, args)
			if err != nil {
				return err
			}

			reconstructIfCorrupt(app)

			strategy, err := app.conflictStrategy(deployConflicts)
			if err != nil {
				return err
			}
			opts := types.DeployOptions{
				Force:            force,
				DryRun:           dryRun,
				ConflictStrategy: strategy,
			}

			// Sync remote sources up front; a sync failure sidelines the
			// source for this run but never aborts its siblings.
			syncFailures := make(map[string]error)
			var deployable []types.Source
			for _, src := range sources {
				if src.Repository == "" || dryRun {
					deployable = append(deployable, src)
					continue
				}
				if _, err := app.syncer.Sync(cmd.Context(), src.Repository, src.RootPath); err != nil {
					log.Warn().Err(err).Str("source", src.ID).Msg("sync failed, skipping source")
					syncFailures[src.ID] = err
					continue
				}
				deployable = append(deployable, src)
			}

			var results map[string]*types.DeploymentResult
			failures := make(map[string]error)
			if len(deployable) == 1 {
				result, err := app.engine.Deploy(cmd.Context(), deployable[0], opts)
				results = map[string]*types.DeploymentResult{deployable[0].ID: result}
				if err != nil {
					failures[deployable[0].ID] = err
				}
			} else if len(deployable) > 1 {
				results, failures = app.engine.DeployAll(cmd.Context(), deployable, opts)
			}
			for id, err := range syncFailures {
				failures[id] = err
			}

			renderDeployResults(results, failures, dryRun)

			if !dryRun && len(results) > 0 {
				if err := app.store.MarkCleanup(); err != nil {
					log.Warn().Err(err).Msg("cannot record cleanup timestamp")
				}
			}

			if len(failures) == len(sources) && len(sources) > 0 {
				// Nothing deployed at all: fatal, not partial.
				for _, err := range failures {
					return err
				}
			}
			if len(failures) > 0 || anyFileFailures(results) {
				exitCode = 2
			}
			return nil
		},
	}

	removeKeepFiles bool

	removeCmd = &cobra.Command{
		Use:   "remove <source-id>",
		Short: "Remove a source and its deployed files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			source, err := app.registry.Get(args[0])
			if err != nil {
				return err
			}

			var removed []string
			if !removeKeepFiles {
				removed, err = app.engine.Remove(cmd.Context(), *source)
				if err != nil {
					return err
				}
			}

			if err := app.registry.Remove(source.ID); err != nil {
				return err
			}
			if source.Repository != "" {
				if err := app.fs.RemoveAll(source.RootPath); err != nil {
					log.Warn().Err(err).Str("path", source.RootPath).Msg("cannot remove source checkout")
				}
			}

			if removeKeepFiles {
				fmt.Printf("Unregistered %s; deployed files kept in place\n", styleName(source.ID))
			} else {
				fmt.Printf("Removed %s (%d deployed files deleted)\n", styleName(source.ID), len(removed))
			}
			return nil
		},
	}

	showCmd = &cobra.Command{
		Use:   "show <category/path>",
		Short: "Render a deployed artifact",
		Long: `Render a deployed artifact in the terminal, e.g.
'ccmgr show commands/review.md'. Markdown files are rendered; anything
else is printed as-is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			target := args[0]
			if !filepath.IsAbs(target) {
				target = filepath.Join(app.paths.TargetRoot(), target)
			}
			if !app.paths.IsUnderTargetRoot(target) {
				return fmt.Errorf("%s is outside the target directory", target)
			}

			data, err := app.fs.ReadFile(target)
			if err != nil {
				return err
			}
			return renderArtifact(cmd.OutOrStdout(), target, data)
		},
	}
)

func init() {
	registerCmd.Flags().StringVar(&registerID, "id", "", "Source id (default: derived from the URL or directory name)")
	registerCmd.Flags().StringVar(&registerMode, "mode", string(types.ModeAutoDetect), "Deployment mode: auto-detect or type-based")
	registerCmd.Flags().StringVar(&registerCategory, "category", "", "Category for type-based sources: commands, agents or hooks")
	registerCmd.Flags().StringSliceVar(&registerExtensions, "extensions", nil, "Type-based extension allow-list for this source (default .md)")

	deployCmd.Flags().StringVar(&deployConflicts, "conflicts", "", "Conflict strategy: skip, overwrite or prompt (default from config)")

	removeCmd.Flags().BoolVar(&removeKeepFiles, "keep-files", false, "Unregister only; leave deployed files in place")
}

// reconstructIfCorrupt rebuilds the state file from the target tree when
// the persisted one is unreadable. The corrupt file is already preserved
// as a backup by the store, so this only rebuilds bookkeeping.
func reconstructIfCorrupt(app *app) {
	if _, err := app.store.All(); err == nil || !errors.IsErrorCode(err, errors.ErrStateCorrupt) {
		return
	}
	log.Warn().Msg("state file corrupt, reconstructing from target tree")

	registered, err := app.registry.List()
	if err != nil {
		log.Warn().Err(err).Msg("cannot list sources for reconstruction")
		return
	}
	result, err := app.store.Reconstruct(registered, app.mapper.ComputeMappings, app.paths.TargetRoot())
	if err != nil {
		log.Warn().Err(err).Msg("reconstruction failed, deploying against an empty record")
		return
	}
	for _, path := range result.Unattributed {
		fmt.Printf("%s %s matches no registered source; left untouched\n", warnStyle.Render("!"), path)
	}
}

// selectSources resolves the positional source-id arguments, or every
// registered source when none are given.
func selectSources(app *app, args []string) ([]types.Source, error) {
	if len(args) == 0 {
		sources, err := app.registry.List()
		if err != nil {
			return nil, err
		}
		if len(sources) == 0 {
			return nil, fmt.Errorf("no sources registered; use 'ccmgr register' first")
		}
		return sources, nil
	}

	sources := make([]types.Source, 0, len(args))
	for _, id := range args {
		source, err := app.registry.Get(id)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}
	return sources, nil
}

// anyFileFailures reports whether any per-file transfer failed across
// the batch.
func anyFileFailures(results map[string]*types.DeploymentResult) bool {
	for _, result := range results {
		if result != nil && result.HasFailures() {
			return true
		}
	}
	return false
}

// sortedResultIDs gives the batch output a stable order.
func sortedResultIDs(results map[string]*types.DeploymentResult, failures map[string]error) []string {
	seen := make(map[string]struct{}, len(results)+len(failures))
	var ids []string
	for id := range results {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for id := range failures {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// shortHash abbreviates a commit id for display.
func shortHash(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

// joinOrDash renders a possibly-empty list for table cells.
func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
