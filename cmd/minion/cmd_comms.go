package main

import (
	"time"

	"github.com/spf13/cobra"

	"minionkernel/internal/messaging"
)

func commsCmds() []*cobra.Command {
	var cc []string
	send := &cobra.Command{
		Use:  "send <from> <to> <content>",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := withApp(func(a *app) (interface{}, error) {
				return a.msg.Send(cmd.Context(), args[0], args[1], args[2], cc)
			})
			if err != nil {
				return err
			}
			emit(res)
			return nil
		},
	}
	send.Flags().StringArrayVar(&cc, "cc", nil, "Additional CC recipient (repeatable)")

	checkInbox := &cobra.Command{
		Use:  "check_inbox <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := withApp(func(a *app) (interface{}, error) {
				return a.msg.CheckInbox(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			emit(msgs)
			return nil
		},
	}

	var olderThan time.Duration
	purge := &cobra.Command{
		Use:  "purge_inbox <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := withApp(func(a *app) (interface{}, error) {
				return a.msg.Purge(cmd.Context(), args[0], olderThan)
			})
			if err != nil {
				return err
			}
			emit(map[string]interface{}{"purged": n})
			return nil
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 0, "Purge messages older than this duration")

	var limit int
	getHistory := &cobra.Command{
		Use:  "get_history <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := withApp(func(a *app) (interface{}, error) {
				return a.msg.GetHistory(cmd.Context(), args[0], limit)
			})
			if err != nil {
				return err
			}
			emit(msgs)
			return nil
		},
	}
	getHistory.Flags().IntVar(&limit, "limit", 50, "Max messages to return")

	listTriggers := &cobra.Command{
		Use:  "list_triggers",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			emit(messaging.ListTriggers())
			return nil
		},
	}

	clearMoonCrash := &cobra.Command{
		Use:  "clear_moon_crash",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.msg.ClearMoonCrash(cmd.Context())
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "cleared"})
			return nil
		},
	}

	return []*cobra.Command{send, checkInbox, purge, getHistory, listTriggers, clearMoonCrash}
}
