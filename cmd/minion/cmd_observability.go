package main

import (
	"github.com/spf13/cobra"

	"minionkernel/internal/daemon"
)

func observabilityCmds() []*cobra.Command {
	partyStatus := &cobra.Command{
		Use:  "party_status <agent>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := withApp(func(a *app) (interface{}, error) {
				who, err := a.reg.Who(cmd.Context())
				if err != nil {
					return nil, err
				}
				var entry interface{}
				for _, w := range who {
					if w.Agent.Name == args[0] {
						entry = w
						break
					}
				}
				state, _ := daemon.ReadState(subDir(a, "state"), args[0])
				return map[string]interface{}{"registry": entry, "daemon_state": state}, nil
			})
			if err != nil {
				return err
			}
			emit(out)
			return nil
		},
	}

	sitrep := &cobra.Command{
		Use:  "sitrep",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := withApp(func(a *app) (interface{}, error) {
				who, err := a.reg.Who(cmd.Context())
				if err != nil {
					return nil, err
				}
				plan, _ := a.room.ActivePlan(cmd.Context(), a.cfg.Project)
				tasks, err := a.tasks.ListTasks(cmd.Context(), a.cfg.Project, "")
				if err != nil {
					return nil, err
				}
				claims, err := a.claims.List(cmd.Context())
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"agents": who,
					"plan":   plan,
					"tasks":  tasks,
					"claims": claims,
				}, nil
			})
			if err != nil {
				return err
			}
			emit(out)
			return nil
		},
	}

	poll := &cobra.Command{
		Use:  "poll <agent>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := withApp(func(a *app) (interface{}, error) {
				msgs, err := a.msg.CheckInbox(cmd.Context(), args[0])
				if err != nil {
					return nil, err
				}
				tasks, err := a.tasks.ListTasks(cmd.Context(), a.cfg.Project, "open")
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"unread": msgs, "open_tasks": tasks}, nil
			})
			if err != nil {
				return err
			}
			emit(out)
			return nil
		},
	}

	listTools := &cobra.Command{
		Use:  "list_tools",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			emit(commandNames())
			return nil
		},
	}

	return []*cobra.Command{partyStatus, sitrep, poll, listTools}
}

func subDir(a *app, sub string) string {
	return a.workDir + "/" + sub
}

func commandNames() []string {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	return names
}
