package main

import (
	"github.com/spf13/cobra"
)

func fileCmds() []*cobra.Command {
	claim := &cobra.Command{
		Use:  "claim_file <agent> <path>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := withApp(func(a *app) (interface{}, error) {
				return a.claims.Claim(cmd.Context(), args[0], args[1])
			})
			if err != nil {
				return err
			}
			emit(res)
			return nil
		},
	}

	var force bool
	release := &cobra.Command{
		Use:  "release_file <agent> <path>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := withApp(func(a *app) (interface{}, error) {
				return nil, a.claims.Release(cmd.Context(), args[0], args[1], force)
			})
			if err != nil {
				return err
			}
			emit(map[string]string{"status": "released", "path": args[1]})
			return nil
		},
	}
	release.Flags().BoolVar(&force, "force", false, "Lead-only force-release of a stale holder")

	list := &cobra.Command{
		Use:  "list_claims",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := withApp(func(a *app) (interface{}, error) {
				return a.claims.List(cmd.Context())
			})
			if err != nil {
				return err
			}
			emit(claims)
			return nil
		},
	}

	return []*cobra.Command{claim, release, list}
}
