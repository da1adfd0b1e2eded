package main

import (
	"github.com/myokoym/cc-tools-manager-sub001/pkg/config"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/conflict"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/deploy"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/filesystem"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/gitutil"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/mapper"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/paths"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/registry"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/state"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/ui"
)

// app bundles the wired collaborators for the command handlers. One app
// is built per invocation; there are no package-level singletons.
type app struct {
	fs       types.FS
	paths    paths.Paths
	cfg      *config.Config
	registry *registry.Registry
	store    *state.Store
	mapper   *mapper.Mapper
	engine   *deploy.Engine
	syncer   *gitutil.Syncer
}

func newApp() (*app, error) {
	fs := filesystem.NewOS()

	p, err := paths.New("")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(p.ConfigDir())
	if err != nil {
		return nil, err
	}

	store := state.New(fs, p.StateFilePath(), p.LockFilePath())
	m := mapper.New(fs, cfg.Deploy.Extensions)

	interactive := ui.IsInteractive()
	resolver := conflict.New(ui.NewTerminalConfirmer(), interactive)

	engine := deploy.NewEngine(deploy.Options{
		FS:          fs,
		TargetRoot:  p.TargetRoot(),
		Mapper:      m,
		Store:       store,
		Resolver:    resolver,
		Concurrency: cfg.Deploy.Concurrency,
	})

	return &app{
		fs:       fs,
		paths:    p,
		cfg:      cfg,
		registry: registry.New(fs, p.RegistryPath()),
		store:    store,
		mapper:   m,
		engine:   engine,
		syncer:   gitutil.NewSyncer(),
	}, nil
}

// conflictStrategy resolves the effective strategy: the --conflicts flag
// if set, else the configured default.
func (a *app) conflictStrategy(flag string) (types.ConflictStrategy, error) {
	if flag != "" {
		return types.ParseConflictStrategy(flag)
	}
	return types.ParseConflictStrategy(a.cfg.Deploy.ConflictStrategy)
}
