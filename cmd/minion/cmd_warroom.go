package main

import (
	"github.com/spf13/cobra"
)

func warroomCmds() []*cobra.Command {
	setPlan := &cobra.Command{
		Use:  "set_plan <agent> <text>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := withApp(func(a *app) (interface{}, error) {
				return a.room.SetPlan(cmd.Context(), args[0], a.cfg.Project, args[1])
			})
			if err != nil {
				return err
			}
			emit(p)
			return nil
		},
	}

	getPlan := &cobra.Command{
		Use:  "get_plan",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := withApp(func(a *app) (interface{}, error) {
				return a.room.ActivePlan(cmd.Context(), a.cfg.Project)
			})
			if err != nil {
				return err
			}
			emit(p)
			return nil
		},
	}

	updatePlanStatus := &cobra.Command{
		Use:  "update_plan_status <plan-id> <status>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.room.UpdatePlanStatus(cmd.Context(), args[0], args[1])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "updated", "plan": args[0]})
			return nil
		},
	}

	var priority string
	logCmd := &cobra.Command{
		Use:  "log <agent> <entry-file>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.room.Log(cmd.Context(), args[0], args[1], priority)
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "logged"})
			return nil
		},
	}
	logCmd.Flags().StringVar(&priority, "priority", "normal", "Entry priority")

	var count int
	getLog := &cobra.Command{
		Use:  "get_log",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := withApp(func(a *app) (interface{}, error) {
				return a.room.GetLog(cmd.Context(), count)
			})
			if err != nil {
				return err
			}
			emit(entries)
			return nil
		},
	}
	getLog.Flags().IntVar(&count, "count", 20, "Number of recent entries")

	return []*cobra.Command{setPlan, getPlan, updatePlanStatus, logCmd, getLog}
}
