package main

import (
	"path/filepath"

	"minionkernel/internal/config"
	"minionkernel/internal/datastore"
	"minionkernel/internal/fenix"
	"minionkernel/internal/fileclaim"
	"minionkernel/internal/flow"
	"minionkernel/internal/health"
	"minionkernel/internal/messaging"
	"minionkernel/internal/registry"
	"minionkernel/internal/taskdag"
	"minionkernel/internal/warroom"
)

// app bundles every wired coordination-kernel collaborator a CLI command
// needs. It is built once per invocation from global flags/env and closed
// on exit.
type app struct {
	cfg     *config.Config
	store   *datastore.Store
	reg     *registry.Registry
	msg     *messaging.Messenger
	claims  *fileclaim.Service
	room    *warroom.WarRoom
	flows   *flow.Loader
	tasks   *taskdag.Engine
	hp      *health.Monitor
	fenix   *fenix.Service
	workDir string
}

// buildApp wires every package under internal/ the way a daemon process
// would, rooted at workDir.
func buildApp(workDir string, cfg *config.Config) (*app, error) {
	store, err := datastore.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	reg := registry.New(store, cfg)
	room := warroom.New(store)
	msg := messaging.New(store, reg, room, cfg.Project, filepath.Join(workDir, "inbox"))
	claims := fileclaim.New(store)
	loader := flow.NewLoader(filepath.Join(cfg.DocsDir, "flows"))
	_ = loader.LoadAll() // missing/empty flow dir is not fatal; Base still resolves
	hp := health.NewMonitor(store, msg, cfg.Health.WoundedPct, cfg.Health.CriticalPct, cfg.Health.AlertHigh, cfg.Health.AlertLow)
	tasks := taskdag.New(store, loader, room, hp)
	fx := fenix.New(store, room, hp)

	return &app{
		cfg:     cfg,
		store:   store,
		reg:     reg,
		msg:     msg,
		claims:  claims,
		room:    room,
		flows:   loader,
		tasks:   tasks,
		hp:      hp,
		fenix:   fx,
		workDir: workDir,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
