package main

import (
	"context"
	"database/sql"

	"minionkernel/internal/datastore"
	"minionkernel/internal/health"
)

// flagTx sets a process-wide flag (spec.md §3 Flag, §4.L) in its own
// transaction, for CLI commands that need to write one outside the normal
// messaging/task transactions.
func flagTx(ctx context.Context, store *datastore.Store, key, value string) error {
	return store.WithTx(ctx, func(tx *sql.Tx) error {
		return datastore.SetFlagTx(tx, key, value, "cli")
	})
}

// withApp builds the wired app for this invocation, runs fn, and closes the
// datastore before returning — every command is a single short-lived
// process invocation, never a long-lived connection holder.
func withApp(fn func(a *app) (interface{}, error)) (interface{}, error) {
	cfg := loadConfig()
	a, err := buildApp(a0WorkDir(), cfg)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return fn(a)
}

// a0WorkDir is the project-rooted work directory commands operate under;
// it defaults to the current directory, matching spec.md §6's
// project-rooted persisted-state layout.
func a0WorkDir() string {
	return "."
}

func modeFromFlag(s string) health.Mode {
	switch s {
	case "self-reported":
		return health.ModeSelfReported
	case "none":
		return health.ModeNone
	default:
		return health.ModeDaemon
	}
}
