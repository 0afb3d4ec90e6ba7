package main

import (
	"github.com/spf13/cobra"

	"minionkernel/internal/flow"
)

func flowCmds() []*cobra.Command {
	list := &cobra.Command{
		Use:  "list_flows",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := withApp(func(a *app) (interface{}, error) {
				return a.flows.Names(), nil
			})
			if err != nil {
				return err
			}
			emit(names)
			return nil
		},
	}

	show := &cobra.Command{
		Use:  "show_flow <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := withApp(func(a *app) (interface{}, error) {
				return a.flows.Resolve(args[0])
			})
			if err != nil {
				return err
			}
			emit(f)
			return nil
		},
	}

	nextStatus := &cobra.Command{
		Use:  "next_status <task-id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := withApp(func(a *app) (interface{}, error) {
				t, err := a.tasks.GetTask(cmd.Context(), args[0])
				if err != nil {
					return nil, err
				}
				var f *flow.Flow
				if t.TaskType == "" || t.TaskType == "_base" {
					base := flow.Base
					f = &base
				} else {
					f, err = a.flows.Resolve(t.TaskType)
					if err != nil {
						return nil, err
					}
				}
				stage := f.Stages[t.Status]
				return map[string]interface{}{
					"current": t.Status,
					"next":    stage.Next,
					"fail":    stage.Fail,
					"terminal": stage.Terminal,
				}, nil
			})
			if err != nil {
				return err
			}
			emit(out)
			return nil
		},
	}

	var transitionAgent string
	transition := &cobra.Command{
		Use:  "transition <task-id> <target-stage>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.tasks.ReopenTask(cmd.Context(), transitionAgent, args[0], args[1])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "transitioned", "task": args[0], "to": args[1]})
			return nil
		},
	}
	transition.Flags().StringVar(&transitionAgent, "agent", "", "Calling agent (lead)")
	transition.MarkFlagRequired("agent")

	return []*cobra.Command{list, show, nextStatus, transition}
}
