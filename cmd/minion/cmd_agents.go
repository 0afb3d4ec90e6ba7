package main

import (
	"github.com/spf13/cobra"
)

func agentCmds() []*cobra.Command {
	var class, model, transport string
	register := &cobra.Command{
		Use:  "register <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := withApp(func(a *app) (interface{}, error) {
				return a.reg.Register(cmd.Context(), args[0], class, model, transport)
			})
			if err != nil {
				return err
			}
			emit(a)
			return nil
		},
	}
	register.Flags().StringVar(&class, "class", "", "Agent class")
	register.Flags().StringVar(&model, "model", "", "Model identifier")
	register.Flags().StringVar(&transport, "transport", "", "Provider transport")

	deregister := &cobra.Command{
		Use:  "deregister <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.reg.Deregister(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "deregistered", "agent": args[0]})
			return nil
		},
	}

	rename := &cobra.Command{
		Use:  "rename <old> <new>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.reg.Rename(cmd.Context(), args[0], args[1])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "renamed", "from": args[0], "to": args[1]})
			return nil
		},
	}

	who := &cobra.Command{
		Use:  "who",
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

	var selfReportedHP bool
	setContext := &cobra.Command{
		Use:  "set_context <name> <summary>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.reg.SetContext(cmd.Context(), args[0], args[1], selfReportedHP)
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "context_set", "agent": args[0]})
			return nil
		},
	}
	setContext.Flags().BoolVar(&selfReportedHP, "self-reported-hp", false, "Mark HP mode as self-reported")

	setStatus := &cobra.Command{
		Use:  "set_status <name> <status>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.reg.SetStatus(cmd.Context(), args[0], args[1])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "status_set", "agent": args[0]})
			return nil
		},
	}

	coldStart := &cobra.Command{
		Use:  "cold_start <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			briefing, err := withApp(func(a *app) (interface{}, error) {
				return a.fenix.ColdStart(cmd.Context(), args[0], a.cfg.Project)
			})
			if err != nil {
				return err
			}
			emit(briefing)
			return nil
		},
	}

	var manifest string
	var files []string
	fenixDown := &cobra.Command{
		Use:  "fenix_down <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := withApp(func(a *app) (interface{}, error) {
				return a.fenix.FenixDown(cmd.Context(), args[0], files, manifest)
			})
			if err != nil {
				return err
			}
			emit(rec)
			return nil
		},
	}
	fenixDown.Flags().StringVar(&manifest, "manifest", "", "Knowledge-dump manifest text")
	fenixDown.Flags().StringArrayVar(&files, "file", nil, "Dumped knowledge file path (repeatable)")

	var turnInput, turnOutput, denom int64
	var hpMode string
	updateHP := &cobra.Command{
		Use:  "update_hp <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				mode := modeFromFlag(hpMode)
				return nil, a.hp.RecordTurn(cmd.Context(), args[0], turnInput, turnOutput, denom, mode)
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "hp_recorded", "agent": args[0]})
			return nil
		},
	}
	updateHP.Flags().Int64Var(&turnInput, "turn-input", 0, "Turn input tokens")
	updateHP.Flags().Int64Var(&turnOutput, "turn-output", 0, "Turn output tokens")
	updateHP.Flags().Int64Var(&denom, "context-window", 0, "Context window denominator")
	updateHP.Flags().StringVar(&hpMode, "mode", "daemon", "HP mode: daemon, self-reported, none")

	checkActivity := &cobra.Command{
		Use:  "check_activity <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.reg.CheckActivity(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "touched", "agent": args[0]})
			return nil
		},
	}

	checkFreshness := &cobra.Command{
		Use:  "check_freshness <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.reg.CheckFreshness(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "fresh", "agent": args[0]})
			return nil
		},
	}

	return []*cobra.Command{register, deregister, rename, who, setContext, setStatus, coldStart, fenixDown, updateHP, checkActivity, checkFreshness}
}
