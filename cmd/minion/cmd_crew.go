package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"minionkernel/internal/daemon"
	"minionkernel/internal/datastore"
	"minionkernel/internal/provider"
)

// crewCmds implements the external-collaborator lifecycle group. Most of
// these are one-shot control signals written to the datastore's flags
// table; a running daemon observes them on its next poll (spec.md §4.K
// step 1, §6).
func crewCmds() []*cobra.Command {
	var class, model, transport string
	spawnParty := &cobra.Command{
		Use:  "spawn_party <agent>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpawnParty(cmd.Context(), args[0], class, model, transport)
		},
	}
	spawnParty.Flags().StringVar(&class, "class", "coder", "Agent class")
	spawnParty.Flags().StringVar(&model, "model", "", "Model identifier (GEMINI_MODEL if empty)")
	spawnParty.Flags().StringVar(&transport, "transport", "genai", "Provider transport")

	standDown := &cobra.Command{
		Use:  "stand_down",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, flagTx(cmd.Context(), a.store, "stand_down", "true")
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "stand_down_set"})
			return nil
		},
	}

	retireAgent := &cobra.Command{
		Use:  "retire_agent <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				if err := a.store.Retire(cmd.Context(), args[0]); err != nil {
					return nil, err
				}
				return nil, setRetired(cmd.Context(), a.store, args[0])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "retired", "agent": args[0]})
			return nil
		},
	}

	var recruitClass, recruitModel, recruitTransport string
	recruit := &cobra.Command{
		Use:  "recruit <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := withApp(func(a *app) (interface{}, error) {
				return a.reg.Register(cmd.Context(), args[0], recruitClass, recruitModel, recruitTransport)
			})
			if err != nil {
				return err
			}
			emit(a)
			return nil
		},
	}
	recruit.Flags().StringVar(&recruitClass, "class", "coder", "Agent class")
	recruit.Flags().StringVar(&recruitModel, "model", "", "Model identifier")
	recruit.Flags().StringVar(&recruitTransport, "transport", "genai", "Provider transport")

	var handOffFrom string
	handOffZone := &cobra.Command{
		Use:  "hand_off_zone <zone> <to-agent>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.reg.SetStatus(cmd.Context(), args[1], "zone:"+args[0])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "zone_handed_off", "zone": args[0], "from": handOffFrom, "to": args[1]})
			return nil
		},
	}
	handOffZone.Flags().StringVar(&handOffFrom, "from", "", "Prior zone holder, for logging only")

	interrupt := &cobra.Command{
		Use:  "interrupt <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, setInterrupt(cmd.Context(), a.store, args[0])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "interrupted", "agent": args[0]})
			return nil
		},
	}

	resume := &cobra.Command{
		Use:  "resume <name> <message>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				if err := clearInterrupt(cmd.Context(), a.store, args[0]); err != nil {
					return nil, err
				}
				// "system" is not a registered agent, so the message is inserted directly.
				return nil, a.store.WithTx(cmd.Context(), func(tx *sql.Tx) error {
					id, err := datastore.InsertMessage(tx, "system", args[0], "", false, "")
					if err != nil {
						return err
					}
					dir := filepath.Join(a.workDir, "inbox", "system")
					path := filepath.Join(dir, fmt.Sprintf("%d.md", id))
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return err
					}
					if err := os.WriteFile(path, []byte(args[1]), 0o644); err != nil {
						return err
					}
					return datastore.SetMessageContentPathTx(tx, id, path)
				})
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "resumed", "agent": args[0]})
			return nil
		},
	}

	listCrews := &cobra.Command{
		Use:  "list_crews",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := withApp(func(a *app) (interface{}, error) {
				return a.reg.Who(cmd.Context())
			})
			if err != nil {
				return err
			}
			emit(entries)
			return nil
		},
	}

	return []*cobra.Command{spawnParty, standDown, retireAgent, recruit, handOffZone, interrupt, resume, listCrews}
}

func setRetired(ctx context.Context, store *datastore.Store, agent string) error {
	return flagTx(ctx, store, "retire:"+agent, "true")
}

func setInterrupt(ctx context.Context, store *datastore.Store, agent string) error {
	return flagTx(ctx, store, "interrupt:"+agent, "true")
}

func clearInterrupt(ctx context.Context, store *datastore.Store, agent string) error {
	return store.ClearFlag(ctx, "interrupt:"+agent)
}

// runSpawnParty boots a daemon for agent against a genai provider and runs
// its poll loop in the foreground until interrupted, stood down, or
// retired.
func runSpawnParty(ctx context.Context, agentName, class, model, transport string) error {
	cfg := loadConfig()
	a, err := buildApp(a0WorkDir(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("spawn_party: GEMINI_API_KEY is not set")
	}
	if model == "" {
		model = os.Getenv("GEMINI_MODEL")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return fmt.Errorf("spawn_party: genai client: %w", err)
	}
	var prov provider.Provider = provider.NewGenAI(client)

	contract, err := daemon.LoadContractDocs(cfg.DocsDir)
	if err != nil {
		return err
	}
	defer contract.Close()

	d := daemon.New(agentName, class, model, cfg.Project, daemon.Deps{
		Config:     cfg,
		Store:      a.store,
		Registry:   a.reg,
		Messages:   a.msg,
		Tasks:      a.tasks,
		Health:     a.hp,
		Fenix:      a.fenix,
		Provider:   prov,
		Contract:   contract,
		StateDir:   filepath.Join(a.workDir, "state"),
		AlertDir:   filepath.Join(a.workDir, "state"),
		StreamsDir: filepath.Join(a.workDir, "streams"),
	})

	if err := d.Boot(ctx, transport); err != nil {
		return err
	}

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = d.Run(runCtx, func(ctx context.Context, res *daemon.PollResult) error {
		return d.RunTurn(ctx, fmt.Sprintf("poll: %d unread, %d open tasks", res.UnreadCount, len(res.OpenTaskIDs)))
	})
	switch {
	case err == daemon.ErrStandDown || err == daemon.ErrRetired:
		emit(map[string]string{"status": "exited", "reason": err.Error()})
		os.Exit(exitGraceful)
	case err != nil && err != context.Canceled:
		return err
	}
	return nil
}
