package main

import (
	"github.com/spf13/cobra"

	"minionkernel/internal/taskdag"
)

func taskCmds() []*cobra.Command {
	in := taskdag.CreateTaskInput{}
	var blockedBy, files []string
	create := &cobra.Command{
		Use:  "create_task <title>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]
			in.BlockedBy = blockedBy
			in.Files = files
			t, err := withApp(func(a *app) (interface{}, error) {
				in.Project = a.cfg.Project
				return a.tasks.CreateTask(cmd.Context(), in)
			})
			if err != nil {
				return err
			}
			emit(t)
			return nil
		},
	}
	create.Flags().StringVar(&in.TaskFile, "task-file", "", "Task spec file path")
	create.Flags().StringVar(&in.Zone, "zone", "", "Zone/area label")
	create.Flags().StringVar(&in.CreatedBy, "created-by", "", "Creating agent")
	create.Flags().StringVar(&in.ClassRequired, "class-required", "", "Required worker class")
	create.Flags().StringVar(&in.TaskType, "task-type", "", "Flow name (empty = base flow)")
	create.Flags().StringVar(&in.RequirementPath, "requirement", "", "Requirement document path")
	create.Flags().StringArrayVar(&blockedBy, "blocked-by", nil, "Blocking task id (repeatable)")
	create.Flags().StringArrayVar(&files, "file", nil, "Associated file path (repeatable)")

	assign := &cobra.Command{
		Use:  "assign_task <task-id> <agent>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			warning, err := withApp(func(a *app) (interface{}, error) {
				return a.tasks.AssignTask(cmd.Context(), args[0], args[1])
			})
			if err != nil {
				return err
			}
			emit(map[string]interface{}{"status": "assigned", "warning": warning})
			return nil
		},
	}

	pull := &cobra.Command{
		Use:  "pull_task <task-id> <agent>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.tasks.PullTask(cmd.Context(), args[1], args[0])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "pulled", "task": args[0]})
			return nil
		},
	}

	var progress string
	var updateFiles []string
	update := &cobra.Command{
		Use:  "update_task <task-id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.tasks.UpdateTask(cmd.Context(), args[0], progress, updateFiles)
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "updated", "task": args[0]})
			return nil
		},
	}
	update.Flags().StringVar(&progress, "progress", "", "Progress note")
	update.Flags().StringArrayVar(&updateFiles, "file", nil, "Touched file path (repeatable)")

	submit := &cobra.Command{
		Use:  "submit_result <task-id> <result-file>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.tasks.SubmitResult(cmd.Context(), args[0], args[1])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "result_submitted", "task": args[0]})
			return nil
		},
	}

	var agent string
	var failed bool
	completePhase := &cobra.Command{
		Use:  "complete_phase <task-id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := withApp(func(a *app) (interface{}, error) {
				return a.tasks.CompletePhase(cmd.Context(), agent, args[0], failed)
			})
			if err != nil {
				return err
			}
			emit(res)
			return nil
		},
	}
	completePhase.Flags().StringVar(&agent, "agent", "", "Calling agent")
	completePhase.Flags().BoolVar(&failed, "failed", false, "Route through the fail branch")
	completePhase.MarkFlagRequired("agent")

	var closeAgent string
	closeTask := &cobra.Command{
		Use:  "close_task <task-id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.tasks.CloseTask(cmd.Context(), closeAgent, args[0])
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "closed", "task": args[0]})
			return nil
		},
	}
	closeTask.Flags().StringVar(&closeAgent, "agent", "", "Calling agent (lead)")
	closeTask.MarkFlagRequired("agent")

	var reopenAgent, targetStage string
	reopen := &cobra.Command{
		Use:  "reopen_task <task-id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.tasks.ReopenTask(cmd.Context(), reopenAgent, args[0], targetStage)
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "reopened", "task": args[0]})
			return nil
		},
	}
	reopen.Flags().StringVar(&reopenAgent, "agent", "", "Calling agent (lead)")
	reopen.Flags().StringVar(&targetStage, "stage", "", "Target stage to reopen into")
	reopen.MarkFlagRequired("agent")

	get := &cobra.Command{
		Use:  "get_task <task-id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := withApp(func(a *app) (interface{}, error) {
				return a.tasks.GetTask(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			emit(t)
			return nil
		},
	}

	var status string
	list := &cobra.Command{
		Use:  "list_tasks",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := withApp(func(a *app) (interface{}, error) {
				return a.tasks.ListTasks(cmd.Context(), a.cfg.Project, status)
			})
			if err != nil {
				return err
			}
			emit(tasks)
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by status")

	lineage := &cobra.Command{
		Use:  "task_lineage <task-id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := withApp(func(a *app) (interface{}, error) {
				return a.tasks.TaskLineage(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			emit(l)
			return nil
		},
	}

	return []*cobra.Command{create, assign, pull, update, submit, completePhase, closeTask, reopen, get, list, lineage}
}
